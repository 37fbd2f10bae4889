// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package liveevents

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"

	"github.com/port-labs/ocean-sub002/pkg/config"
	oceanerrors "github.com/port-labs/ocean-sub002/pkg/errors"
	"github.com/port-labs/ocean-sub002/pkg/kindgraph"
	"github.com/port-labs/ocean-sub002/pkg/mapping"
	"github.com/port-labs/ocean-sub002/pkg/portapi"
	"github.com/port-labs/ocean-sub002/pkg/portclient"
)

// DeadLetterSink receives events whose retries were exhausted. The
// default sink only logs; integrations wanting durable dead-letter
// storage (a queue, a bucket, a table) supply their own.
type DeadLetterSink interface {
	Publish(ctx context.Context, ev Event, processorPath string, err error)
}

// LoggingDeadLetterSink is the default DeadLetterSink: it logs at error
// level and drops the event.
type LoggingDeadLetterSink struct {
	Log logr.Logger
}

func (s LoggingDeadLetterSink) Publish(_ context.Context, ev Event, path string, err error) {
	s.Log.Error(err, "webhook event dead-lettered", "path", path, "bytes", len(ev.Body))
}

// Manager is the Webhook Processor Manager (spec §4.C7): it owns the
// registered (path, Processor) table, the HTTP surface those paths are
// served on, and the per-routing-key ordering queue that feeds accepted
// deltas through the same mapping engine and Port client the resync
// orchestrator uses.
type Manager struct {
	Client      portclient.Client
	Mapper      *mapping.Mapper
	Log         logr.Logger
	DeadLetter  DeadLetterSink
	MaxAttempts int           // default 5
	BackoffBase time.Duration // default 200ms

	mu            sync.RWMutex
	pac           *config.CompiledPAC
	kindBlueprint map[string]string
	processors    map[string]Processor

	queue *routingQueue
}

// NewManager builds a Manager bound to pac's compiled resources. SetPAC
// may be called later (on hot-reload) to update the kind/blueprint
// resolution the Manager uses to build delete keys.
func NewManager(ctx context.Context, pac *config.CompiledPAC, client portclient.Client, mapper *mapping.Mapper, log logr.Logger) *Manager {
	m := &Manager{
		Client:      client,
		Mapper:      mapper,
		Log:         log,
		MaxAttempts: 5,
		BackoffBase: 200 * time.Millisecond,
		processors:  make(map[string]Processor),
		queue:       newRoutingQueue(ctx),
	}
	m.DeadLetter = LoggingDeadLetterSink{Log: log}
	m.SetPAC(pac)
	return m
}

// SetPAC swaps the compiled configuration a Manager resolves kind
// blueprints against. Safe to call while the Manager is serving traffic;
// the new snapshot is read by every delivery attempt that applies its
// deltas after the swap, including later retries of an event that was
// already in flight.
func (m *Manager) SetPAC(pac *config.CompiledPAC) {
	_, kindBlueprint, _ := kindgraph.BuildWithBlueprints(pac.Resources)
	m.mu.Lock()
	m.pac = pac
	m.kindBlueprint = kindBlueprint
	m.mu.Unlock()
}

func (m *Manager) snapshot() (*config.CompiledPAC, map[string]string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pac, m.kindBlueprint
}

// Register associates path with a Processor. Call before Router is
// mounted; registering the same path twice replaces the Processor.
func (m *Manager) Register(path string, p Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processors[path] = p
}

// Close stops the routing queue, waiting for in-flight events to finish.
func (m *Manager) Close() {
	m.queue.Close()
}

// Router builds the HTTP surface: one POST route per registered path,
// CORS enabled since webhook senders are third-party origins.
func (m *Manager) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"*"},
	}))

	m.mu.RLock()
	paths := make([]string, 0, len(m.processors))
	for path := range m.processors {
		paths = append(paths, path)
	}
	m.mu.RUnlock()

	for _, path := range paths {
		path := path
		r.Post(path, m.handler(path))
	}
	return r
}

func (m *Manager) handler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		proc := m.processors[path]
		m.mu.RUnlock()
		if proc == nil {
			http.NotFound(w, r)
			return
		}

		if !proc.Authenticate(r) {
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading request body", http.StatusBadRequest)
			return
		}
		ev := Event{Path: path, Headers: r.Header.Clone(), Body: body}

		ctx := r.Context()
		if err := m.deliver(ctx, path, proc, ev); err != nil {
			if ctx.Err() != nil {
				http.Error(w, "request cancelled", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, fmt.Sprintf("processing failed: %v", err), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Deliver routes ev to the Processor registered at path, honoring the same
// per-routing-key ordering and retry/backoff the HTTP handler uses. Non-
// HTTP trigger strategies (pkg/listener's queue-driven Strategy) call this
// directly instead of going through Router.
func (m *Manager) Deliver(ctx context.Context, path string, ev Event) error {
	m.mu.RLock()
	proc := m.processors[path]
	m.mu.RUnlock()
	if proc == nil {
		return fmt.Errorf("no processor registered for path %q", path)
	}
	return m.deliver(ctx, path, proc, ev)
}

func (m *Manager) deliver(ctx context.Context, path string, proc Processor, ev Event) error {
	if !proc.Filter(ctx, ev) {
		return nil
	}
	key := proc.RoutingKey(ctx, ev)
	done := m.queue.Submit(key, func(ctx context.Context) error {
		return m.process(ctx, path, proc, ev)
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process runs proc.Handle with retry-with-backoff for transient
// failures, dead-lettering ev once m.MaxAttempts is exhausted, per spec
// §4.C7 ("re-queued with backoff up to N attempts; then dead-lettered").
func (m *Manager) process(ctx context.Context, path string, proc Processor, ev Event) error {
	maxAttempts := m.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		deltas, err := proc.Handle(ctx, ev)
		if err == nil {
			err = m.applyDeltas(ctx, deltas)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetriable(err) {
			m.DeadLetter.Publish(ctx, ev, path, err)
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		if sleepErr := m.sleep(ctx, attempt); sleepErr != nil {
			return sleepErr
		}
	}
	m.DeadLetter.Publish(ctx, ev, path, lastErr)
	return lastErr
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if oceanerrors.IsCancelled(err) {
		return false
	}
	return oceanerrors.IsTransient(err) || !oceanerrors.IsPermanent(err)
}

func (m *Manager) sleep(ctx context.Context, attempt int) error {
	base := m.BackoffBase
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base << attempt
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	timer := time.NewTimer(d/2 + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// applyDeltas pushes every Delta through the same mapping + Port client
// path the resync kind pipeline uses: Upserts are re-mapped through
// pkg/mapping against the kind's CompiledResource, Deletes are resolved
// straight to EntityKeys via the kind's statically-known blueprint.
func (m *Manager) applyDeltas(ctx context.Context, deltas []Delta) error {
	pac, kindBlueprint := m.snapshot()
	for _, d := range deltas {
		cr, ok := pac.ResourceByKind(d.Kind)
		if !ok {
			return fmt.Errorf("live event for unregistered kind %q", d.Kind)
		}

		if len(d.Upserts) > 0 {
			entities, mapErrs := m.Mapper.MapRecords(ctx, cr, d.Upserts, pac.ResolutionPolicy(), m.Client)
			for _, mapErr := range mapErrs {
				m.Log.Error(mapErr, "live event mapping error", "kind", d.Kind)
			}
			if len(entities) > 0 {
				byBlueprint := map[string][]portapi.Entity{}
				for _, e := range entities {
					k := e.Key()
					byBlueprint[k.Blueprint] = append(byBlueprint[k.Blueprint], e)
				}
				for blueprint, group := range byBlueprint {
					if err := m.Client.UpsertBatch(ctx, blueprint, group); err != nil {
						return err
					}
				}
			}
		}

		if len(d.Deletes) > 0 {
			blueprint, ok := kindBlueprint[d.Kind]
			if !ok {
				return fmt.Errorf("live event delete for kind %q with unresolved blueprint", d.Kind)
			}
			var keys portapi.EntityKeySet
			for _, identifier := range d.Deletes {
				key, err := portapi.NewEntityKey(blueprint, identifier)
				if err != nil {
					continue
				}
				keys = keys.Add(key)
			}
			if keys.Len() > 0 {
				if err := m.Client.DeleteBatch(ctx, keys); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package liveevents

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/port-labs/ocean-sub002/pkg/config"
	oceanerrors "github.com/port-labs/ocean-sub002/pkg/errors"
	"github.com/port-labs/ocean-sub002/pkg/expression"
	"github.com/port-labs/ocean-sub002/pkg/mapping"
	"github.com/port-labs/ocean-sub002/pkg/portclient"
)

const repositoryWebhookYAML = `
resources:
  - kind: repository
    port:
      entity:
        mappings:
          identifier: "id"
          blueprint: "bp"
`

func buildWebhookPAC(t *testing.T) *config.CompiledPAC {
	t.Helper()
	programs := map[string]func(context.Context, any) (any, error){
		"id": func(_ context.Context, in any) (any, error) { return in.(map[string]any)["name"], nil },
		"bp": func(context.Context, any) (any, error) { return "service", nil },
	}
	fake := expression.NewFakeEvaluator(programs)
	loader := config.NewLoader(config.LoaderOptions{Evaluator: fake})
	pac, err := loader.LoadBytes([]byte(repositoryWebhookYAML))
	require.NoError(t, err)
	return pac
}

// stubProcessor authenticates a request only when acceptOK is set, and
// returns one delta for kind "repository" carrying records and deletes,
// unless handleErr is set to force a failure.
type stubProcessor struct {
	acceptOK  bool
	handleErr error
	records   []any
	deletes   []string
	calls     int
}

func (p *stubProcessor) Authenticate(r *http.Request) bool { return p.acceptOK }
func (p *stubProcessor) Filter(context.Context, Event) bool { return true }
func (p *stubProcessor) Kinds(context.Context, Event) []string { return []string{"repository"} }
func (p *stubProcessor) RoutingKey(context.Context, Event) string { return "repository/checkout" }
func (p *stubProcessor) Handle(context.Context, Event) ([]Delta, error) {
	p.calls++
	if p.handleErr != nil {
		return nil, p.handleErr
	}
	return []Delta{{Kind: "repository", Upserts: p.records, Deletes: p.deletes}}, nil
}

func newTestManager(t *testing.T, client portclient.Client) *Manager {
	t.Helper()
	pac := buildWebhookPAC(t)
	m := NewManager(context.Background(), pac, client, mapping.NewMapper(4), logr.Discard())
	m.BackoffBase = time.Millisecond
	return m
}

func TestHandlerAcksAndUpsertsOnSuccess(t *testing.T) {
	client := portclient.NewFakeClient()
	m := newTestManager(t, client)
	defer m.Close()

	proc := &stubProcessor{acceptOK: true, records: []any{map[string]any{"name": "checkout"}}}
	m.Register("/hooks/github", proc)

	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/hooks/github", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, client.Snapshot(), 1)
	assert.Equal(t, 1, proc.calls)
}

func TestHandlerRejectsFailedAuthentication(t *testing.T) {
	client := portclient.NewFakeClient()
	m := newTestManager(t, client)
	defer m.Close()

	proc := &stubProcessor{acceptOK: false}
	m.Register("/hooks/github", proc)

	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/hooks/github", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, proc.calls, "authentication failure must short-circuit before Handle is called")
}

func TestProcessDeadLettersAfterExhaustingRetries(t *testing.T) {
	client := portclient.NewFakeClient()
	m := newTestManager(t, client)
	m.MaxAttempts = 3
	defer m.Close()

	var deadLettered int
	m.DeadLetter = deadLetterFunc(func(context.Context, Event, string, error) { deadLettered++ })

	boom := &oceanerrors.TransientRemoteError{StatusCode: 503, Err: errors.New("upstream flaky")}
	proc := &stubProcessor{acceptOK: true, handleErr: boom}
	m.Register("/hooks/github", proc)

	err := m.process(context.Background(), "/hooks/github", proc, Event{Path: "/hooks/github"})
	require.Error(t, err)
	assert.Equal(t, 3, proc.calls)
	assert.Equal(t, 1, deadLettered)
}

func TestProcessDoesNotRetryPermanentError(t *testing.T) {
	client := portclient.NewFakeClient()
	m := newTestManager(t, client)
	defer m.Close()

	var deadLettered int
	m.DeadLetter = deadLetterFunc(func(context.Context, Event, string, error) { deadLettered++ })

	perm := &oceanerrors.PermanentRemoteError{StatusCode: 422, Err: errors.New("unprocessable")}
	proc := &stubProcessor{acceptOK: true, handleErr: perm}

	err := m.process(context.Background(), "/hooks/github", proc, Event{Path: "/hooks/github"})
	require.Error(t, err)
	assert.Equal(t, 1, proc.calls, "a permanent error must not be retried")
	assert.Equal(t, 1, deadLettered)
}

func TestApplyDeltasDeletesByResolvedBlueprint(t *testing.T) {
	client := portclient.NewFakeClient()
	m := newTestManager(t, client)
	defer m.Close()

	proc := &stubProcessor{acceptOK: true, records: []any{map[string]any{"name": "checkout"}}}
	require.NoError(t, m.process(context.Background(), "/hooks/github", proc, Event{}))
	require.Len(t, client.Snapshot(), 1)

	proc.records = nil
	proc.deletes = []string{"checkout"}
	require.NoError(t, m.process(context.Background(), "/hooks/github", proc, Event{}))
	assert.Len(t, client.Snapshot(), 0)
}

type deadLetterFunc func(ctx context.Context, ev Event, path string, err error)

func (f deadLetterFunc) Publish(ctx context.Context, ev Event, path string, err error) {
	f(ctx, ev, path, err)
}

// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package run implements the `ocean run` (alias `sail`) command: load the
// integration's startup config and port-app-config, build the resync
// orchestrator and webhook manager, and start whichever event-listener
// strategy the config selects, running until the process receives a
// termination signal. Grounded on cmd/apply's GetApplyRunner/RunE split:
// a Runner struct carries flag-bound fields plus, here, the per-
// integration hooks (Fetchers, Processors) that only the embedding
// integration's own main.go can supply.
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/port-labs/ocean-sub002/pkg/config"
	oceanerrors "github.com/port-labs/ocean-sub002/pkg/errors"
	"github.com/port-labs/ocean-sub002/pkg/liveevents"
	"github.com/port-labs/ocean-sub002/pkg/listener"
	"github.com/port-labs/ocean-sub002/pkg/mapping"
	"github.com/port-labs/ocean-sub002/pkg/portclient"
	"github.com/port-labs/ocean-sub002/pkg/resync/kindpipeline"
	"github.com/port-labs/ocean-sub002/pkg/resync/orchestrator"
	"github.com/port-labs/ocean-sub002/pkg/runstate"
)

// GetRunRunner builds a Runner and its cobra command. Fetchers and
// processors are left for the caller to populate on the returned Runner
// before Command.Execute(): they are the per-integration code the core
// never owns (spec's "per-integration data fetchers" are out of scope).
func GetRunRunner() *Runner {
	r := &Runner{
		Fetchers:   map[string]kindpipeline.Fetcher{},
		Processors: map[string]liveevents.Processor{},
	}
	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"sail"},
		Short:   "Start the integration using the current configuration",
		RunE:    r.RunE,
	}
	cmd.Flags().StringVar(&r.IntegrationConfigPath, "integration-config", "config.yaml",
		"Path to the integration's startup configuration (Port credentials, event listener, resync schedule).")
	cmd.Flags().StringVar(&r.PACPath, "port-app-config", "port-app-config.yaml",
		"Path to the port-app-config document describing kinds and mappings.")
	cmd.Flags().BoolVar(&r.Development, "development", false,
		"Use a human-readable development logger instead of the production JSON logger.")
	r.Command = cmd
	return r
}

// Command returns a ready-to-register `run` command with empty Fetchers
// and Processors. An embedding integration's main.go should call
// GetRunRunner directly instead, so it can populate those maps.
func Command() *cobra.Command {
	return GetRunRunner().Command
}

// Runner carries run's flags plus the per-integration hooks.
type Runner struct {
	Command *cobra.Command

	IntegrationConfigPath string
	PACPath               string
	Development           bool

	// Fetchers maps a kind name to the Fetcher that retrieves its raw
	// records. Supplied by the embedding integration.
	Fetchers map[string]kindpipeline.Fetcher
	// Processors maps a registered webhook/queue path to the Processor
	// handling requests under it. Supplied by the embedding integration.
	Processors map[string]liveevents.Processor
	// Subscriber is the external pub/sub client used when the event
	// listener type is kafka-like. Required only for that type.
	Subscriber listener.Subscriber
}

func (r *Runner) RunE(cmd *cobra.Command, _ []string) error {
	log, err := r.buildLogger()
	if err != nil {
		return &oceanerrors.ConfigError{Reason: "building logger", Err: err}
	}

	integRaw, err := os.ReadFile(r.IntegrationConfigPath)
	if err != nil {
		return &oceanerrors.ConfigError{Reason: "reading integration config", Err: err}
	}
	integ, err := config.LoadIntegration(integRaw)
	if err != nil {
		return &oceanerrors.ConfigError{Reason: "invalid integration config", Err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := r.buildClient(*integ, log)

	pacLoader := config.NewLoader(config.LoaderOptions{})
	pacWatcher := config.NewFileWatcher(r.PACPath, pacLoader)

	var mapper = mapping.NewMapper(4)

	var manager *liveevents.Manager
	needsManager := integ.EventListener.Type == config.EventListenerWebhook || integ.EventListener.Type == config.EventListenerKafka

	var pacMu sync.RWMutex
	var currentPAC *config.CompiledPAC
	ready := make(chan struct{})
	var closeOnce sync.Once

	watchErrCh := make(chan error, 1)
	go func() {
		watchErrCh <- pacWatcher.Watch(ctx, func(pac *config.CompiledPAC, loadErr error) {
			if loadErr != nil {
				log.Error(loadErr, "loading port-app-config failed; keeping previous version running")
				closeOnce.Do(func() { close(ready) })
				return
			}
			pacMu.Lock()
			currentPAC = pac
			m := manager
			pacMu.Unlock()
			if m != nil {
				m.SetPAC(pac)
			}
			closeOnce.Do(func() { close(ready) })
		})
	}()

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	if needsManager {
		pacMu.RLock()
		pac := currentPAC
		pacMu.RUnlock()
		if pac == nil {
			pac = &config.CompiledPAC{}
		}
		m := liveevents.NewManager(ctx, pac, client, mapper, log)
		defer m.Close()
		for path, proc := range r.Processors {
			m.Register(path, proc)
		}
		pacMu.Lock()
		manager = m
		pacMu.Unlock()
	}

	orch := &orchestrator.Orchestrator{
		IntegrationIdentifier: integ.Identifier,
		Client:                client,
		Log:                   log,
	}
	for kind, fetcher := range r.Fetchers {
		orch.RegisterFetcher(kind, fetcher)
	}

	resync := func(ctx context.Context) (*runstate.RunState, error) {
		pacMu.RLock()
		pac := currentPAC
		pacMu.RUnlock()
		if pac == nil {
			return nil, fmt.Errorf("no port-app-config loaded yet")
		}
		return orch.Run(ctx, pac)
	}

	strategy, err := listener.New(*integ, resync, manager, r.Subscriber, log)
	if err != nil {
		return &oceanerrors.ConfigError{Reason: "selecting event listener strategy", Err: err}
	}

	if integ.ResyncOnStart && integ.EventListener.Type != config.EventListenerScheduled && integ.EventListener.Type != config.EventListenerOnce {
		if _, err := resync(ctx); err != nil {
			log.Error(err, "initial resync-on-start failed")
		}
	}

	log.Info("starting event listener", "type", integ.EventListener.Type)
	runErr := strategy.Run(ctx)

	select {
	case watchErr := <-watchErrCh:
		if watchErr != nil {
			log.Error(watchErr, "port-app-config watcher exited")
		}
	default:
	}
	return runErr
}

func (r *Runner) buildLogger() (logr.Logger, error) {
	var zl *zap.Logger
	var err error
	if r.Development {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Discard(), fmt.Errorf("building logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

func (r *Runner) buildClient(integ config.Integration, log logr.Logger) portclient.Client {
	tokens := portclient.NewClientCredentialsProvider(integ.Port.BaseURL, integ.Port.ClientID, integ.Port.ClientSecret, nil)
	return portclient.New(portclient.Options{
		BaseURL: integ.Port.BaseURL,
		Tokens:  tokens,
		Log:     log,
	})
}

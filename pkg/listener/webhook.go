// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/port-labs/ocean-sub002/pkg/liveevents"
)

// Webhook serves the liveevents.Manager's router on Address until ctx is
// cancelled. No resync runs originate from this strategy: inbound requests
// go straight to C7 via the Manager, exactly as spec §4.C8 describes.
type Webhook struct {
	Manager *liveevents.Manager
	Address string
	Log     logr.Logger
}

func (w Webhook) Run(ctx context.Context) error {
	if w.Address == "" {
		return fmt.Errorf("webhook listener requires eventListener.address")
	}

	srv := &http.Server{Addr: w.Address, Handler: w.Manager.Router()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	w.Log.Info("webhook listener started", "address", w.Address)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			w.Log.Error(err, "webhook listener shutdown")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/port-labs/ocean-sub002/pkg/runstate"
)

// Once runs a single resync and returns, grounded on cmd/apply's run-once-
// then-exit behavior: there is no server loop to keep alive, the caller's
// process exits once Run returns.
type Once struct {
	Resync ResyncFunc
	Log    logr.Logger
}

func (o Once) Run(ctx context.Context) error {
	rs, err := o.Resync(ctx)
	if err != nil {
		return err
	}
	if rs == nil {
		return nil
	}
	o.Log.Info("resync finished", "id", rs.ID(), "phase", string(rs.Phase()), "duration", rs.Duration())
	if rs.Phase() == runstate.PhaseFailed {
		return fmt.Errorf("resync run %s failed", rs.ID())
	}
	return nil
}

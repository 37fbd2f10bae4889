// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package newcmd implements the `ocean new` stub. Scaffolding a new
// integration (templating its directory layout, default config, CI
// workflow) is handled by separate Ocean CLI tooling, not the core
// runtime binary; this command exists so `ocean`'s help output still
// documents the verb and points the user at the right tool.
package newcmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "new [integration-name]",
		Short: "Scaffold a new integration (not implemented by the core runtime)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "scaffolding a new integration is handled by the Ocean CLI tooling, not this core runtime binary.")
			return nil
		},
	}
}

// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/port-labs/ocean-sub002/cmd/ocean/newcmd"
	"github.com/port-labs/ocean-sub002/cmd/ocean/run"
	oceanerrors "github.com/port-labs/ocean-sub002/pkg/errors"
)

func main() {
	cmd := &cobra.Command{
		Use:           "ocean",
		Short:         "Run the Port Ocean integration core runtime",
		Long:          "Run the Port Ocean integration core runtime: resync, live events and the CLI surface every integration embeds.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(run.Command(), newcmd.Command())

	os.Exit(oceanerrors.CheckErr(os.Stderr, cmd.Execute()))
}

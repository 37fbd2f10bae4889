// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oceanerrors "github.com/port-labs/ocean-sub002/pkg/errors"
)

func TestGetRunRunnerWiresFlagsAndAliases(t *testing.T) {
	r := GetRunRunner()
	assert.Equal(t, "run", r.Command.Use)
	assert.Equal(t, []string{"sail"}, r.Command.Aliases)
	assert.Equal(t, "config.yaml", r.IntegrationConfigPath)
	assert.Equal(t, "port-app-config.yaml", r.PACPath)
	assert.NotNil(t, r.Fetchers)
	assert.NotNil(t, r.Processors)
}

func TestRunEReturnsConfigErrorWhenIntegrationConfigMissing(t *testing.T) {
	r := GetRunRunner()
	r.IntegrationConfigPath = filepath.Join(t.TempDir(), "does-not-exist.yaml")

	err := r.RunE(r.Command, nil)
	require.Error(t, err)
	assert.Equal(t, oceanerrors.ExitConfigError, oceanerrors.ExitCode(err))
}

func TestRunEReturnsConfigErrorWhenIntegrationConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "not: [valid")

	r := GetRunRunner()
	r.IntegrationConfigPath = path

	err := r.RunE(r.Command, nil)
	require.Error(t, err)
	assert.Equal(t, oceanerrors.ExitConfigError, oceanerrors.ExitCode(err))
}

func TestBuildLoggerProducesUsableLogger(t *testing.T) {
	r := GetRunRunner()
	r.Development = true
	log, err := r.buildLogger()
	require.NoError(t, err)
	log.Info("test message")
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validIntegration = `
port:
  clientId: abc
  clientSecret: def
  baseUrl: https://api.getport.io
eventListener:
  type: scheduled
identifier: my-github-integration
type: github
scheduledResyncInterval: 1h
resyncOnStart: true
secrets:
  githubToken: ghp_xxx
`

func TestLoadIntegrationAcceptsValidConfig(t *testing.T) {
	in, err := LoadIntegration([]byte(validIntegration))
	require.NoError(t, err)
	assert.Equal(t, "my-github-integration", in.Identifier)
	assert.Equal(t, EventListenerScheduled, in.EventListener.Type)
}

func TestLoadIntegrationRejectsMissingCredentials(t *testing.T) {
	const missing = `
port:
  baseUrl: https://api.getport.io
eventListener:
  type: scheduled
identifier: x
type: github
`
	_, err := LoadIntegration([]byte(missing))
	assert.Error(t, err)
}

func TestLoadIntegrationRejectsWebhookWithoutAddress(t *testing.T) {
	const noAddress = `
port:
  clientId: abc
  clientSecret: def
  baseUrl: https://api.getport.io
eventListener:
  type: webhook
identifier: x
type: github
`
	_, err := LoadIntegration([]byte(noAddress))
	assert.ErrorContains(t, err, "eventListener.address")
}

func TestRequireSecretsReportsAllMissingKeys(t *testing.T) {
	in := &Integration{Secrets: map[string]string{"a": "present"}}
	err := RequireSecrets(in, "a", "b", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.Contains(t, err.Error(), "c")
}

func TestRequireSecretsPassesWhenAllPresent(t *testing.T) {
	in := &Integration{Secrets: map[string]string{"a": "1", "b": "2"}}
	assert.NoError(t, RequireSecrets(in, "a", "b"))
}

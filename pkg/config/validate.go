// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var structValidator = validator.New()

// LoadIntegration decodes and validates the integration's own startup
// configuration (spec §6): Port credentials, event listener selection,
// resync scheduling. Unlike a PAC resource, a malformed Integration is
// always fatal: there is no kind to disable, the process has nothing
// safe to run.
func LoadIntegration(raw []byte) (*Integration, error) {
	var in Integration
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decoding integration config: %w", err)
	}
	if err := structValidator.Struct(&in); err != nil {
		return nil, fmt.Errorf("invalid integration config: %w", err)
	}
	if in.EventListener.Type == EventListenerWebhook && in.EventListener.Address == "" {
		return nil, fmt.Errorf("invalid integration config: eventListener.address is required for type %q", in.EventListener.Type)
	}
	if in.EventListener.Type == EventListenerKafka && len(in.EventListener.Brokers) == 0 {
		return nil, fmt.Errorf("invalid integration config: eventListener.brokers is required for type %q", in.EventListener.Type)
	}
	return &in, nil
}

// RequireSecrets checks that every key in required is present and
// non-empty in in.Secrets, returning one aggregated error naming every
// key that is missing.
func RequireSecrets(in *Integration, required ...string) error {
	var missing []string
	for _, k := range required {
		if in.Secrets[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("integration config missing required secrets: %v", missing)
	}
	return nil
}

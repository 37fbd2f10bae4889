// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Package config decodes, validates and hot-reloads a port-app-config
// (PAC): the user's declarative kind+mapping spec, plus the integration's
// own startup configuration. See spec §3 (Port-App-Config) and §6
// (configuration surface).
package config

import "time"

// SearchIdentifierResolution selects how a search-identifier relation
// value (spec §4.C4 step 6) is resolved during a run. It is a run-level
// setting, carried on the PAC rather than per-relation.
type SearchIdentifierResolution string

const (
	// ResolutionStrict resolves every search identifier via C2.search
	// before upsert; 0 or more than 1 matching entity is a mapping error
	// for that record. This is the default when unset.
	ResolutionStrict SearchIdentifierResolution = "strict"
	// ResolutionPermissive passes the search identifier through unresolved,
	// letting the remote catalog match it at upsert time.
	ResolutionPermissive SearchIdentifierResolution = "permissive"
)

// EventListenerType selects which trigger strategy (pkg/listener) drives
// resync runs.
type EventListenerType string

const (
	EventListenerScheduled EventListenerType = "scheduled"
	EventListenerWebhook   EventListenerType = "webhook"
	EventListenerKafka     EventListenerType = "kafka-like"
	EventListenerOnce      EventListenerType = "once"
)

// Integration carries the recognized startup configuration options from
// spec §6. Per-integration third-party secrets are validated for presence
// only; their meaning is opaque to the core.
type Integration struct {
	Port struct {
		ClientID     string `yaml:"clientId" validate:"required"`
		ClientSecret string `yaml:"clientSecret" validate:"required"`
		BaseURL      string `yaml:"baseUrl" validate:"required,url"`
	} `yaml:"port" validate:"required"`

	EventListener struct {
		Type EventListenerType `yaml:"type" validate:"required,oneof=scheduled webhook kafka-like once"`
		// Type-specific parameters, left to the listener strategy.
		Address string `yaml:"address,omitempty"`
		Topic   string `yaml:"topic,omitempty"`
		Brokers []string `yaml:"brokers,omitempty"`
	} `yaml:"eventListener" validate:"required"`

	Identifier string `yaml:"identifier" validate:"required"`
	Type       string `yaml:"type" validate:"required"`

	InitializePortResources bool `yaml:"initializePortResources"`
	ScheduledResyncInterval time.Duration `yaml:"scheduledResyncInterval"`
	ResyncOnStart           bool          `yaml:"resyncOnStart"`

	// Secrets holds per-integration third-party credentials (e.g. a
	// GitHub token). The core validates only that required keys are
	// present (see RequireSecrets); it never interprets values.
	Secrets map[string]string `yaml:"secrets,omitempty"`
}

// PAC is the ordered list of resource configs plus run-level flags, as
// described in spec §3.
type PAC struct {
	Resources []ResourceConfig `yaml:"resources" validate:"required,dive"`

	CreateMissingRelatedEntities bool `yaml:"createMissingRelatedEntities"`
	DeleteDependentEntities      bool `yaml:"deleteDependentEntities"`
	EnableMergeEntity            bool `yaml:"enableMergeEntity"`

	// SearchIdentifierResolution governs how relations that evaluate to a
	// search identifier are resolved (see ResolutionPolicy). Empty means
	// unset, which resolves to ResolutionStrict.
	SearchIdentifierResolution SearchIdentifierResolution `yaml:"searchIdentifierResolution,omitempty" validate:"omitempty,oneof=strict permissive"`

	// EmbedOriginalDataInItemsToParse is the PAC-wide default for RCs that
	// don't set EmbedOriginalData explicitly. nil means unset, which
	// resolves to true for backwards compatibility (see spec §9).
	EmbedOriginalDataInItemsToParse *bool `yaml:"embedOriginalDataInItemsToParse,omitempty"`
}

// ResolutionPolicy resolves the effective search-identifier resolution
// policy, defaulting to ResolutionStrict when unset.
func (p PAC) ResolutionPolicy() SearchIdentifierResolution {
	if p.SearchIdentifierResolution == ResolutionPermissive {
		return ResolutionPermissive
	}
	return ResolutionStrict
}

// embedOriginalDataDefault resolves the PAC-wide default, true unless
// explicitly set to false.
func (p PAC) embedOriginalDataDefault() bool {
	if p.EmbedOriginalDataInItemsToParse != nil {
		return *p.EmbedOriginalDataInItemsToParse
	}
	return true
}

// ResourceConfig (RC) describes one kind: where its selector and mapping
// expressions come from, as raw (uncompiled) expression strings.
type ResourceConfig struct {
	Kind     string `yaml:"kind" validate:"required"`
	Selector struct {
		Query string `yaml:"query"`
	} `yaml:"selector"`

	Port struct {
		Entity struct {
			Mappings EntityMapping `yaml:"mappings" validate:"required"`
		} `yaml:"entity" validate:"required"`
	} `yaml:"port" validate:"required"`

	// ItemsToParse, if set, is evaluated to a sub-sequence of the raw
	// record, exploding it into one mapping invocation per element.
	ItemsToParse string `yaml:"itemsToParse,omitempty"`

	// EmbedOriginalDataOverride overrides PAC.EmbedOriginalDataInItemsToParse
	// for this kind specifically. nil means "use the PAC-wide default".
	// Read through the EmbedOriginalData method, not this field directly.
	EmbedOriginalDataOverride *bool `yaml:"embedOriginalData,omitempty"`
}

// EntityMapping is the set of expressions producing one entity from one
// raw record (or itemsToParse element).
type EntityMapping struct {
	Identifier string `yaml:"identifier" validate:"required"`
	Blueprint  string `yaml:"blueprint" validate:"required"`
	Title      string `yaml:"title,omitempty"`
	Team       string `yaml:"team,omitempty"`
	Icon       string `yaml:"icon,omitempty"`

	Properties map[string]PropertyMapping `yaml:"properties,omitempty"`
	Relations  map[string]RelationMapping `yaml:"relations,omitempty"`
}

// PropertyMapping is one entry of EntityMapping.Properties: an expression
// plus whether its failure should fail the whole entity.
type PropertyMapping struct {
	Expression string `yaml:"expression" validate:"required"`
	Required   bool   `yaml:"required"`
}

// RelationMapping is one entry of EntityMapping.Relations. TargetBlueprint
// is used by pkg/kindgraph to derive the kind dependency graph; it need
// not be set if the expression always yields a search identifier.
type RelationMapping struct {
	Expression      string `yaml:"expression" validate:"required"`
	TargetBlueprint string `yaml:"targetBlueprint,omitempty"`
	Many            bool   `yaml:"many"`
}

// EmbedOriginalData resolves the effective embedOriginalData flag for rc,
// given the PAC-wide default.
func (rc ResourceConfig) EmbedOriginalData(pac PAC) bool {
	if rc.EmbedOriginalDataOverride != nil {
		return *rc.EmbedOriginalDataOverride
	}
	return pac.embedOriginalDataDefault()
}

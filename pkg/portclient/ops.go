// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	oceanerrors "github.com/port-labs/ocean-sub002/pkg/errors"
	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// UpsertBatch creates or updates every entity in entities, all belonging
// to blueprint, splitting into multiple requests if the batch exceeds
// DefaultBatchLimits. Entities within one HTTP batch are applied together,
// but a failure in one sub-batch does not prevent the others from being
// attempted.
func (c *RESTClient) UpsertBatch(ctx context.Context, blueprint string, entities []portapi.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	var firstErr error
	for _, batch := range splitIntoBatches(entities, DefaultBatchLimits) {
		wireBatch := make([]wireEntity, 0, len(batch))
		for _, e := range batch {
			wireBatch = append(wireBatch, toWireEntity(e))
		}
		path := fmt.Sprintf("/v1/blueprints/%s/entities/bulk?upsert=true&merge=true", blueprint)
		_, status, err := c.do(ctx, http.MethodPost, path, map[string]any{"entities": wireBatch})
		if err != nil && firstErr == nil {
			firstErr = classify(status, err)
		}
	}
	return firstErr
}

// DeleteBatch deletes every key, grouped by blueprint into one request per
// blueprint. A 404 for an already-absent entity is not an error: deletion
// is idempotent.
func (c *RESTClient) DeleteBatch(ctx context.Context, keys portapi.EntityKeySet) error {
	var firstErr error
	for blueprint, group := range keys.ByBlueprint() {
		identifiers := make([]string, 0, len(group))
		for _, k := range group {
			identifiers = append(identifiers, k.Identifier)
		}
		path := fmt.Sprintf("/v1/blueprints/%s/entities/bulk", blueprint)
		_, status, err := c.do(ctx, http.MethodDelete, path, map[string]any{"entities": identifiers})
		if err != nil && status != http.StatusNotFound {
			if firstErr == nil {
				firstErr = classify(status, err)
			}
		}
	}
	return firstErr
}

// Search resolves a SearchIdentifier to the matching target identifiers.
// pkg/mapping calls this under the strict search-identifier resolution
// policy, turning a relation's search identifier into a concrete
// identifier before upsert.
func (c *RESTClient) Search(ctx context.Context, si portapi.SearchIdentifier) ([]string, error) {
	path := fmt.Sprintf("/v1/blueprints/%s/entities/search", si.TargetBlueprint)
	respBody, status, err := c.do(ctx, http.MethodPost, path, map[string]any{
		"combinator": si.Combinator,
		"rules":      si.Rules,
	})
	if err != nil {
		return nil, classify(status, err)
	}

	var out struct {
		Entities []struct {
			Identifier string `json:"identifier"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	identifiers := make([]string, 0, len(out.Entities))
	for _, e := range out.Entities {
		identifiers = append(identifiers, e.Identifier)
	}
	return identifiers, nil
}

// EnsureBlueprint creates bp if it does not already exist, or updates its
// relation declarations if it does. Nothing in this module calls it: the
// initializePortResources setting does not push blueprints at startup.
func (c *RESTClient) EnsureBlueprint(ctx context.Context, bp portapi.Blueprint) error {
	relations := make(map[string]any, len(bp.Relations))
	for _, r := range bp.Relations {
		relations[r.Name] = map[string]any{"target": r.Target, "many": r.Many}
	}
	path := fmt.Sprintf("/v1/blueprints/%s", bp.Identifier)
	_, status, err := c.do(ctx, http.MethodPatch, path, map[string]any{
		"identifier": bp.Identifier,
		"relations":  relations,
	})
	if err != nil {
		return classify(status, err)
	}
	return nil
}

// GetIntegrationState fetches the opaque, integration-owned state blob
// persisted between runs (last-successful-run cursor, seen sets too large
// to keep in memory, etc).
func (c *RESTClient) GetIntegrationState(ctx context.Context, identifier string) (map[string]any, error) {
	path := fmt.Sprintf("/v1/integrations/%s", identifier)
	respBody, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, classify(status, err)
	}
	var out struct {
		State map[string]any `json:"state"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decoding integration state: %w", err)
	}
	return out.State, nil
}

// SetIntegrationState persists state for identifier, overwriting whatever
// was stored previously.
func (c *RESTClient) SetIntegrationState(ctx context.Context, identifier string, state map[string]any) error {
	path := fmt.Sprintf("/v1/integrations/%s", identifier)
	_, status, err := c.do(ctx, http.MethodPatch, path, map[string]any{"state": state})
	if err != nil {
		return classify(status, err)
	}
	return nil
}

// classify translates the client's internal remoteErr into the typed
// errors the kind pipeline and orchestrator branch on (pkg/errors).
func classify(status int, err error) error {
	var rerr *remoteErr
	if !errors.As(err, &rerr) {
		return err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &oceanerrors.AuthError{StatusCode: status, Err: err}
	case status == http.StatusTooManyRequests || status >= 500:
		return &oceanerrors.TransientRemoteError{StatusCode: status, Err: err}
	default:
		return &oceanerrors.PermanentRemoteError{StatusCode: status, Err: err}
	}
}

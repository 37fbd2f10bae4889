// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPAC = `
resources:
  - kind: repository
    selector:
      query: "$.archived == false"
    port:
      entity:
        mappings:
          identifier: "$.name"
          blueprint: "\"service\""
          title: "$.full_name"
          properties:
            language:
              expression: "$.language"
  - kind: pull-request
    itemsToParse: "$.commits[*]"
    port:
      entity:
        mappings:
          identifier: "$.sha"
          blueprint: "\"commit\""
          relations:
            repo:
              expression: "$.repoName"
              targetBlueprint: "service"
createMissingRelatedEntities: true
`

func TestLoadCompilesEveryResource(t *testing.T) {
	l := NewLoader(LoaderOptions{})
	pac, err := l.Load(strings.NewReader(validPAC))
	require.NoError(t, err)

	assert.Len(t, pac.Resources, 2)
	assert.Empty(t, pac.Disabled)
	assert.True(t, pac.CreateMissingRelatedEntities)

	repo, ok := pac.ResourceByKind("repository")
	require.True(t, ok)
	assert.NotNil(t, repo.Selector)
	assert.NotNil(t, repo.Mapping.Identifier)
	assert.Contains(t, repo.Mapping.Properties, "language")

	pr, ok := pac.ResourceByKind("pull-request")
	require.True(t, ok)
	assert.NotNil(t, pr.ItemsToParse)
	rel, ok := pr.Mapping.Relations["repo"]
	require.True(t, ok)
	assert.Equal(t, "service", rel.TargetBlueprint)
}

func TestLoadDisablesMalformedKindWithoutFailingOthers(t *testing.T) {
	const mixedPAC = `
resources:
  - kind: good
    port:
      entity:
        mappings:
          identifier: "$.id"
          blueprint: "\"thing\""
  - kind: bad
    port:
      entity:
        mappings:
          blueprint: "\"thing\""
`
	l := NewLoader(LoaderOptions{})
	pac, err := l.Load(strings.NewReader(mixedPAC))
	require.NoError(t, err)

	assert.Len(t, pac.Resources, 1)
	require.Len(t, pac.Disabled, 1)
	assert.Equal(t, "bad", pac.Disabled[0].Kind)
	assert.ErrorContains(t, pac.Disabled[0].Err, "identifier")

	_, ok := pac.ResourceByKind("good")
	assert.True(t, ok)
}

func TestLoadRejectsEmptyResourceList(t *testing.T) {
	l := NewLoader(LoaderOptions{})
	_, err := l.Load(strings.NewReader("resources: []\n"))
	assert.Error(t, err)
}

func TestLoadRejectsUnparsableYAML(t *testing.T) {
	l := NewLoader(LoaderOptions{})
	_, err := l.Load(strings.NewReader("not: [valid"))
	assert.Error(t, err)
}

func TestEmbedOriginalDataFallsBackToPACDefault(t *testing.T) {
	yes, no := true, false

	pacUnset := PAC{}
	rc := ResourceConfig{Kind: "k"}
	assert.True(t, rc.EmbedOriginalData(pacUnset), "PAC-wide default is true when unset")

	pacFalse := PAC{EmbedOriginalDataInItemsToParse: &no}
	rc.EmbedOriginalDataOverride = &yes
	assert.True(t, rc.EmbedOriginalData(pacFalse), "RC override wins over the PAC-wide default")

	pacTrue := PAC{EmbedOriginalDataInItemsToParse: &yes}
	rc.EmbedOriginalDataOverride = &no
	assert.False(t, rc.EmbedOriginalData(pacTrue), "RC override wins even when it disables what the PAC enables")
}

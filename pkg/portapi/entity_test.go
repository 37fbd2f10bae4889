// Copyright 2019 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityValidate(t *testing.T) {
	tests := []struct {
		name    string
		entity  Entity
		isError bool
	}{
		{
			name:   "valid entity",
			entity: Entity{Blueprint: "service", Identifier: "checkout"},
		},
		{
			name:    "missing blueprint",
			entity:  Entity{Identifier: "checkout"},
			isError: true,
		},
		{
			name:    "missing identifier",
			entity:  Entity{Blueprint: "service"},
			isError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.entity.Validate()
			if tc.isError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMergeLastWriterWinsForScalars(t *testing.T) {
	first := Entity{
		Blueprint:  "service",
		Identifier: "checkout",
		Title:      "Checkout v1",
		Properties: map[string]any{"language": "go", "tier": 1},
	}
	second := Entity{
		Blueprint:  "service",
		Identifier: "checkout",
		Title:      "Checkout v2",
		Properties: map[string]any{"tier": 2},
	}

	merged := Merge(first, second, MergeModeLastWriterWins)
	assert.Equal(t, "Checkout v2", merged.Title)
	assert.Equal(t, 2, merged.Properties["tier"])
	assert.Equal(t, "go", merged.Properties["language"], "unset scalar properties survive from the earlier record")
}

func TestMergeUnionsListRelationsOnlyWhenRequested(t *testing.T) {
	first := Entity{
		Blueprint:  "service",
		Identifier: "checkout",
		Relations:  map[string]RelationValue{"owners": ManyRelationValue([]string{"alice", "bob"})},
	}
	second := Entity{
		Blueprint:  "service",
		Identifier: "checkout",
		Relations:  map[string]RelationValue{"owners": ManyRelationValue([]string{"bob", "carol"})},
	}

	union := Merge(first, second, MergeModeUnion)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, union.Relations["owners"].Many)

	lww := Merge(first, second, MergeModeLastWriterWins)
	assert.ElementsMatch(t, []string{"bob", "carol"}, lww.Relations["owners"].Many)
}

func TestRelationValueKinds(t *testing.T) {
	assert.True(t, EmptyRelationValue().IsEmpty())
	assert.False(t, SingleRelationValue("x").IsEmpty())

	search := SearchRelationValue(SearchIdentifier{TargetBlueprint: "user"})
	assert.True(t, search.IsSearch())
	assert.False(t, SingleRelationValue("x").IsSearch())

	assert.True(t, ManyRelationValue([]string{"a"}).IsMulti())
	assert.False(t, SingleRelationValue("a").IsMulti())
}

func TestEntityKey(t *testing.T) {
	e := Entity{Blueprint: "service", Identifier: "checkout"}
	assert.Equal(t, EntityKey{Blueprint: "service", Identifier: "checkout"}, e.Key())
}

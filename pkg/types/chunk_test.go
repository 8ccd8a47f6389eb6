package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeContentHash(t *testing.T) {
	a := &CodeChunk{Content: "def f():\n    pass"}
	b := &CodeChunk{Content: "def f():\n    pass"}
	c := &CodeChunk{Content: "def f():\n    return 1"}

	a.ComputeContentHash()
	b.ComputeContentHash()
	c.ComputeContentHash()

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.NotEqual(t, a.ContentHash, c.ContentHash)
	assert.Len(t, a.ContentHash, 64)
}

func TestContains_StrictBounds(t *testing.T) {
	outer := &CodeChunk{StartLine: 10, EndLine: 50}

	tests := []struct {
		name  string
		other *CodeChunk
		want  bool
	}{
		{"fully inside", &CodeChunk{StartLine: 20, EndLine: 30}, true},
		{"same span", &CodeChunk{StartLine: 10, EndLine: 50}, false},
		{"shares start line", &CodeChunk{StartLine: 10, EndLine: 30}, false},
		{"shares end line", &CodeChunk{StartLine: 20, EndLine: 50}, false},
		{"overlaps end", &CodeChunk{StartLine: 40, EndLine: 60}, false},
		{"disjoint", &CodeChunk{StartLine: 60, EndLine: 70}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outer.Contains(tt.other))
		})
	}
}

func TestValidate(t *testing.T) {
	chunk := &CodeChunk{
		Repository: "acme/api",
		FilePath:   "models/user.py",
		Language:   "python",
		ChunkType:  ChunkFunction,
		Content:    "def f(): pass",
		StartLine:  1,
		EndLine:    1,
	}
	chunk.ComputeContentHash()
	require.NoError(t, chunk.Validate())

	bad := *chunk
	bad.ChunkType = "snippet"
	assert.Error(t, bad.Validate())

	bad = *chunk
	bad.StartLine = 5
	bad.EndLine = 2
	assert.Error(t, bad.Validate())

	bad = *chunk
	bad.ContentHash = ""
	assert.Error(t, bad.Validate())
}

func TestTextSummary(t *testing.T) {
	chunk := &CodeChunk{
		NamePath:  "models.user.User.validate",
		Signature: "def validate(self) -> bool",
		Docstring: "Validate the user record.",
	}
	summary := chunk.TextSummary()
	assert.Contains(t, summary, "models.user.User.validate")
	assert.Contains(t, summary, "def validate(self) -> bool")
	assert.Contains(t, summary, "Validate the user record.")

	// A chunk without a docstring still produces a usable summary.
	bare := &CodeChunk{NamePath: "pkg.helper"}
	assert.Equal(t, "pkg.helper", bare.TextSummary())
}

func TestGraphEdge(t *testing.T) {
	edge := &GraphEdge{SourceID: 1, TargetID: 1, Relation: RelationCalls}
	assert.True(t, edge.SelfLoop())
	assert.NoError(t, edge.ValidateRelation())

	edge.Relation = "references"
	assert.Error(t, edge.ValidateRelation())
}

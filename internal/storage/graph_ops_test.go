package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcope/reposcope/pkg/types"
)

func testNode(id int64, kind types.NodeKind, label string) *types.GraphNode {
	return &types.GraphNode{
		ID:         id,
		ChunkID:    id,
		Kind:       kind,
		Label:      label,
		FilePath:   "app.py",
		Repository: "myrepo",
	}
}

func seedGraph(t *testing.T, storage *SQLiteStorage) {
	ctx := context.Background()
	nodes := []*types.GraphNode{
		testNode(1, types.NodeModule, "app"),
		testNode(2, types.NodeFunction, "app.load"),
		testNode(3, types.NodeFunction, "app.save"),
	}
	edges := []types.GraphEdge{
		{SourceID: 1, TargetID: 2, Relation: types.RelationContains, Weight: 1},
		{SourceID: 1, TargetID: 3, Relation: types.RelationContains, Weight: 1},
		{SourceID: 2, TargetID: 3, Relation: types.RelationCalls, Weight: 1},
	}
	require.NoError(t, storage.ReplaceGraph(ctx, "myrepo", nodes, edges))
}

func TestReplaceGraphAndLookup(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	seedGraph(t, storage)

	node, err := storage.GetNode(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "app.load", node.Label)
	assert.Equal(t, types.NodeFunction, node.Kind)
	assert.True(t, node.Resolved())

	_, err = storage.GetNode(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := storage.FindNodeByNamePath(ctx, "myrepo", "app.save")
	require.NoError(t, err)
	assert.Equal(t, int64(3), found.ID)

	_, err = storage.FindNodeByNamePath(ctx, "myrepo", "app.missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = storage.FindNodeByNamePath(ctx, "other", "app.save")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetNodesPreservesRequestOrder(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	seedGraph(t, storage)

	nodes, err := storage.GetNodes(ctx, []int64{3, 1, 99})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, int64(3), nodes[0].ID)
	assert.Equal(t, int64(1), nodes[1].ID)

	nodes, err = storage.GetNodes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestEdgesInsertionOrder(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	seedGraph(t, storage)

	out, err := storage.OutEdges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].TargetID)
	assert.Equal(t, int64(3), out[1].TargetID)
	assert.Equal(t, types.RelationContains, out[0].Relation)

	in, err := storage.InEdges(ctx, 3)
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, int64(1), in[0].SourceID)
	assert.Equal(t, int64(2), in[1].SourceID)
	assert.Equal(t, types.RelationCalls, in[1].Relation)

	out, err = storage.OutEdges(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReplaceGraphSupersedes(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	seedGraph(t, storage)

	nodes := []*types.GraphNode{
		testNode(10, types.NodeFunction, "app.run"),
	}
	require.NoError(t, storage.ReplaceGraph(ctx, "myrepo", nodes, nil))

	_, err := storage.GetNode(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	node, err := storage.GetNode(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "app.run", node.Label)

	edges, err := storage.OutEdges(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestReplaceGraphInvalidRelationLeavesOldGraph(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	seedGraph(t, storage)

	bad := []types.GraphEdge{
		{SourceID: 1, TargetID: 2, Relation: "depends"},
	}
	err := storage.ReplaceGraph(ctx, "myrepo", []*types.GraphNode{testNode(20, types.NodeFunction, "x")}, bad)
	require.Error(t, err)

	// The failed replace rolled back, the previous graph is intact
	node, err := storage.GetNode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "app", node.Label)

	out, err := storage.OutEdges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestReplaceGraphDuplicateEdgesCollapse(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	nodes := []*types.GraphNode{
		testNode(1, types.NodeFunction, "app.f"),
		testNode(2, types.NodeFunction, "app.g"),
	}
	edges := []types.GraphEdge{
		{SourceID: 1, TargetID: 2, Relation: types.RelationCalls, Weight: 1},
		{SourceID: 1, TargetID: 2, Relation: types.RelationCalls, Weight: 1},
		{SourceID: 1, TargetID: 2, Relation: types.RelationImports, Weight: 1},
	}
	require.NoError(t, storage.ReplaceGraph(ctx, "myrepo", nodes, edges))

	out, err := storage.OutEdges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestGraphCyclesAreStorable(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	nodes := []*types.GraphNode{
		testNode(1, types.NodeModule, "a"),
		testNode(2, types.NodeModule, "b"),
	}
	edges := []types.GraphEdge{
		{SourceID: 1, TargetID: 2, Relation: types.RelationImports, Weight: 1},
		{SourceID: 2, TargetID: 1, Relation: types.RelationImports, Weight: 1},
	}
	require.NoError(t, storage.ReplaceGraph(ctx, "myrepo", nodes, edges))

	out, err := storage.OutEdges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].TargetID)

	out, err = storage.OutEdges(ctx, 2)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].TargetID)
}

package graph

import (
	"context"
	"fmt"

	"github.com/reposcope/reposcope/internal/storage"
	"github.com/reposcope/reposcope/pkg/types"
)

const (
	// MaxTraversalDepth caps subgraph expansion regardless of the request.
	MaxTraversalDepth = 10
	// maxPathHops bounds shortest-path search. 32 hops exceeds any realistic
	// dependency chain; hitting it is treated as no path.
	maxPathHops = 32
)

// Traverser answers bounded reachability queries against the stored graph.
type Traverser struct {
	store storage.Storage
}

// NewTraverser creates a Traverser.
func NewTraverser(store storage.Storage) *Traverser {
	return &Traverser{store: store}
}

// Traverse expands the graph from a start node up to maxDepth hops in the
// requested direction and returns the visited subgraph. Expansion is
// breadth-first with neighbors taken in edge insertion order, so the same
// query always returns the same subgraph. Cycles terminate through the
// visited set.
func (t *Traverser) Traverse(ctx context.Context, startID int64, direction types.Direction, maxDepth int) (*types.Subgraph, error) {
	if maxDepth <= 0 {
		return nil, fmt.Errorf("%w: max depth must be positive", types.ErrInvalidQuery)
	}
	if maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}
	switch direction {
	case types.DirectionForward, types.DirectionBackward, types.DirectionBoth:
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", types.ErrInvalidQuery, direction)
	}

	if _, err := t.store.GetNode(ctx, startID); err != nil {
		return nil, err
	}

	visited := map[int64]bool{startID: true}
	order := []int64{startID}
	frontier := []int64{startID}
	var edges []types.GraphEdge
	seenEdge := make(map[edgeKey]bool)

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, id := range frontier {
			neighbors, stepEdges, err := t.expand(ctx, id, direction)
			if err != nil {
				return nil, err
			}
			for _, e := range stepEdges {
				key := edgeKey{e.SourceID, e.TargetID, e.Relation}
				if !seenEdge[key] {
					seenEdge[key] = true
					edges = append(edges, e)
				}
			}
			for _, n := range neighbors {
				if visited[n] {
					continue
				}
				visited[n] = true
				order = append(order, n)
				next = append(next, n)
			}
		}
		frontier = next
	}

	nodes, err := t.store.GetNodes(ctx, order)
	if err != nil {
		return nil, err
	}
	sub := &types.Subgraph{Nodes: make([]types.GraphNode, 0, len(nodes)), Edges: edges}
	for _, n := range nodes {
		sub.Nodes = append(sub.Nodes, *n)
	}
	return sub, nil
}

// expand returns a node's neighbors and the edges reaching them for one
// direction.
func (t *Traverser) expand(ctx context.Context, id int64, direction types.Direction) ([]int64, []types.GraphEdge, error) {
	var neighbors []int64
	var edges []types.GraphEdge

	if direction == types.DirectionForward || direction == types.DirectionBoth {
		out, err := t.store.OutEdges(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range out {
			edges = append(edges, e)
			neighbors = append(neighbors, e.TargetID)
		}
	}
	if direction == types.DirectionBackward || direction == types.DirectionBoth {
		in, err := t.store.InEdges(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range in {
			edges = append(edges, e)
			neighbors = append(neighbors, e.SourceID)
		}
	}
	return neighbors, edges, nil
}

// ShortestPath finds a minimum-hop directed route between two nodes. A node
// reaches itself with a zero-length path. Self-loop edges never contribute.
// No route within the hop ceiling returns ErrNoPath.
func (t *Traverser) ShortestPath(ctx context.Context, fromID, toID int64) (*types.Path, error) {
	if _, err := t.store.GetNode(ctx, fromID); err != nil {
		return nil, err
	}
	if _, err := t.store.GetNode(ctx, toID); err != nil {
		return nil, err
	}
	if fromID == toID {
		return &types.Path{NodeIDs: []int64{fromID}, Length: 0}, nil
	}

	parent := map[int64]int64{fromID: fromID}
	frontier := []int64{fromID}

	for hops := 0; hops < maxPathHops && len(frontier) > 0; hops++ {
		var next []int64
		for _, id := range frontier {
			out, err := t.store.OutEdges(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, e := range out {
				if e.SelfLoop() {
					continue
				}
				if _, seen := parent[e.TargetID]; seen {
					continue
				}
				parent[e.TargetID] = id
				if e.TargetID == toID {
					return buildPath(parent, fromID, toID), nil
				}
				next = append(next, e.TargetID)
			}
		}
		frontier = next
	}

	return nil, types.ErrNoPath
}

func buildPath(parent map[int64]int64, fromID, toID int64) *types.Path {
	var reversed []int64
	for id := toID; ; id = parent[id] {
		reversed = append(reversed, id)
		if id == fromID {
			break
		}
	}
	ids := make([]int64, len(reversed))
	for i, id := range reversed {
		ids[len(reversed)-1-i] = id
	}
	return &types.Path{NodeIDs: ids, Length: len(ids) - 1}
}

// Dependencies returns the nodes a node directly depends on (one forward hop).
func (t *Traverser) Dependencies(ctx context.Context, nodeID int64) ([]*types.GraphNode, error) {
	return t.oneHop(ctx, nodeID, types.DirectionForward)
}

// Dependents returns the nodes that directly depend on a node (one backward hop).
func (t *Traverser) Dependents(ctx context.Context, nodeID int64) ([]*types.GraphNode, error) {
	return t.oneHop(ctx, nodeID, types.DirectionBackward)
}

// oneHop follows only imports and calls edges. Structural containment and
// inheritance edges are traversal concerns, not dependencies.
func (t *Traverser) oneHop(ctx context.Context, nodeID int64, direction types.Direction) ([]*types.GraphNode, error) {
	if _, err := t.store.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}
	_, edges, err := t.expand(ctx, nodeID, direction)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(edges))
	var unique []int64
	for _, e := range edges {
		if e.Relation != types.RelationImports && e.Relation != types.RelationCalls {
			continue
		}
		n := e.TargetID
		if direction == types.DirectionBackward {
			n = e.SourceID
		}
		if n == nodeID || seen[n] {
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}
	return t.store.GetNodes(ctx, unique)
}

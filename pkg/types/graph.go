package types

import "errors"

// NodeKind represents the kind of graph node
type NodeKind string

const (
	NodeModule   NodeKind = "module"
	NodeClass    NodeKind = "class"
	NodeFunction NodeKind = "function"
)

// RelationType represents the kind of edge between graph nodes
type RelationType string

const (
	RelationImports  RelationType = "imports"
	RelationCalls    RelationType = "calls"
	RelationInherits RelationType = "inherits"
	RelationContains RelationType = "contains"
)

// Direction selects which way a traversal walks edges
type Direction string

const (
	// DirectionForward follows outgoing edges (dependencies)
	DirectionForward Direction = "forward"
	// DirectionBackward follows incoming edges (dependents)
	DirectionBackward Direction = "backward"
	// DirectionBoth follows edges in both directions
	DirectionBoth Direction = "both"
)

// GraphNode is a node in the dependency graph. Nodes map 1:1 to chunks when
// the symbol resolves inside the repository; ChunkID is zero for external or
// unresolved symbols, which are excluded from traversal fan-out.
type GraphNode struct {
	ID         int64
	ChunkID    int64 // 0 when no resolvable chunk exists
	Kind       NodeKind
	Label      string
	FilePath   string
	Repository string

	// Cached metrics, computed at build time, not authoritative
	Complexity int
	LineCount  int
}

// Resolved reports whether the node is backed by an indexed chunk.
func (n *GraphNode) Resolved() bool {
	return n.ChunkID != 0
}

// GraphEdge is a directed edge between two graph nodes. Edges carry no
// identity beyond (source, target, relation) and may form cycles.
type GraphEdge struct {
	SourceID int64
	TargetID int64
	Relation RelationType
	Weight   float64
}

// SelfLoop reports whether the edge starts and ends on the same node.
func (e *GraphEdge) SelfLoop() bool {
	return e.SourceID == e.TargetID
}

// ValidateRelation checks the relation is one of the known kinds.
func (e *GraphEdge) ValidateRelation() error {
	switch e.Relation {
	case RelationImports, RelationCalls, RelationInherits, RelationContains:
		return nil
	default:
		return errors.New("invalid relation type")
	}
}

// Subgraph is the bounded result of a traversal: the visited nodes and the
// edges connecting them.
type Subgraph struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

// Path is a minimum-hop route between two nodes. A path from a node to
// itself has a single node and zero edges.
type Path struct {
	NodeIDs []int64
	Length  int // Hop count, len(NodeIDs)-1
}

package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/reposcope/reposcope/internal/storage"
	"github.com/reposcope/reposcope/pkg/types"
)

// ResolutionPolicy controls how symbol references are matched to chunks.
type ResolutionPolicy struct {
	// SameModuleFirst tries the referencing chunk's own module scope before
	// falling back to repository-wide matching.
	SameModuleFirst bool
}

// DefaultResolutionPolicy matches the way dynamic-language imports behave:
// local scope first, then anywhere in the repository.
func DefaultResolutionPolicy() ResolutionPolicy {
	return ResolutionPolicy{SameModuleFirst: true}
}

// Builder derives the dependency graph from a repository's chunk set and
// persists it. References that resolve to nothing inside the repository
// (standard library, third-party, dynamic dispatch) are dropped silently;
// the graph only ever contains nodes backed by indexed chunks.
type Builder struct {
	store  storage.Storage
	policy ResolutionPolicy
	logger *zap.Logger
}

// NewBuilder creates a graph builder.
func NewBuilder(store storage.Storage, policy ResolutionPolicy, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{store: store, policy: policy, logger: logger}
}

// Rebuild recomputes a repository's graph from its stored chunks and swaps
// it in atomically.
func (b *Builder) Rebuild(ctx context.Context, repository string) error {
	chunks, err := b.store.ListChunks(ctx, storage.ChunkFilter{Repository: repository})
	if err != nil {
		return fmt.Errorf("failed to load chunks for graph: %w", err)
	}

	nodes, edges := b.Build(repository, chunks)
	if err := b.store.ReplaceGraph(ctx, repository, nodes, edges); err != nil {
		return fmt.Errorf("failed to persist graph: %w", err)
	}

	b.logger.Info("graph rebuilt",
		zap.String("repository", repository),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)))
	return nil
}

// Build computes nodes and edges in memory. Node ids are the backing chunk
// ids. Edge order follows chunk order, so rebuilds from the same chunk set
// produce the same graph.
func (b *Builder) Build(repository string, chunks []*types.CodeChunk) ([]*types.GraphNode, []types.GraphEdge) {
	idx := newChunkIndex(chunks)

	nodes := make([]*types.GraphNode, 0, len(chunks))
	for _, chunk := range chunks {
		nodes = append(nodes, &types.GraphNode{
			ID:         chunk.ID,
			ChunkID:    chunk.ID,
			Kind:       nodeKind(chunk.ChunkType),
			Label:      chunk.NamePath,
			FilePath:   chunk.FilePath,
			Repository: repository,
			Complexity: chunk.Complexity,
			LineCount:  chunk.LineCount,
		})
	}

	var edges []types.GraphEdge
	seen := make(map[edgeKey]bool)
	add := func(source, target int64, relation types.RelationType) {
		key := edgeKey{source, target, relation}
		if seen[key] {
			return
		}
		seen[key] = true
		edges = append(edges, types.GraphEdge{
			SourceID: source,
			TargetID: target,
			Relation: relation,
			Weight:   1,
		})
	}

	for _, chunk := range chunks {
		// Containment: link each definition under its enclosing scope.
		if chunk.ChunkType != types.ChunkFile {
			if parent := idx.containerOf(chunk); parent != nil {
				add(parent.ID, chunk.ID, types.RelationContains)
			}
		}

		// Imports on file chunks, inheritance on class chunks. Both live
		// in the Imports reference list.
		relation := types.RelationImports
		if chunk.ChunkType == types.ChunkClass {
			relation = types.RelationInherits
		}
		if chunk.ChunkType == types.ChunkFile || chunk.ChunkType == types.ChunkClass {
			for _, ref := range chunk.Imports {
				if target := b.resolve(idx, chunk, ref); target != nil && target.ID != chunk.ID {
					add(chunk.ID, target.ID, relation)
				}
			}
		}

		// Calls from any chunk. Self-recursion keeps its self-loop edge.
		for _, ref := range chunk.Calls {
			if target := b.resolve(idx, chunk, ref); target != nil {
				add(chunk.ID, target.ID, types.RelationCalls)
			}
		}
	}

	return nodes, edges
}

func nodeKind(ct types.ChunkType) types.NodeKind {
	switch ct {
	case types.ChunkFile:
		return types.NodeModule
	case types.ChunkClass:
		return types.NodeClass
	default:
		return types.NodeFunction
	}
}

type edgeKey struct {
	source   int64
	target   int64
	relation types.RelationType
}

// chunkIndex provides the lookup structures reference resolution needs.
type chunkIndex struct {
	byNamePath map[string]*types.CodeChunk
	bySuffix   map[string][]*types.CodeChunk // Last name segment -> candidates
}

func newChunkIndex(chunks []*types.CodeChunk) *chunkIndex {
	idx := &chunkIndex{
		byNamePath: make(map[string]*types.CodeChunk, len(chunks)),
		bySuffix:   make(map[string][]*types.CodeChunk),
	}
	for _, chunk := range chunks {
		if chunk.NamePath == "" {
			continue
		}
		// First definition wins when qualified names collide
		if _, ok := idx.byNamePath[chunk.NamePath]; !ok {
			idx.byNamePath[chunk.NamePath] = chunk
		}
		last := lastSegment(chunk.NamePath)
		idx.bySuffix[last] = append(idx.bySuffix[last], chunk)
	}
	for _, candidates := range idx.bySuffix {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	}
	return idx
}

// containerOf finds the chunk whose qualified name is the direct parent
// scope of c, restricted to the same file.
func (idx *chunkIndex) containerOf(c *types.CodeChunk) *types.CodeChunk {
	dot := strings.LastIndex(c.NamePath, ".")
	if dot <= 0 {
		return nil
	}
	parent, ok := idx.byNamePath[c.NamePath[:dot]]
	if !ok || parent.FilePath != c.FilePath {
		return nil
	}
	return parent
}

// resolve matches a reference against the repository's chunks: exact
// qualified name first, then the referencing module's scope, then any chunk
// whose qualified name ends with the reference. Unresolvable references
// return nil.
func (b *Builder) resolve(idx *chunkIndex, from *types.CodeChunk, ref string) *types.CodeChunk {
	if ref == "" {
		return nil
	}
	if target, ok := idx.byNamePath[ref]; ok {
		return target
	}
	if b.policy.SameModuleFirst {
		// Walk outward through enclosing scopes: app.Outer.f tries
		// app.Outer.<ref>, then app.<ref>.
		for scope := enclosingScope(from); scope != ""; scope = parentScope(scope) {
			if target, ok := idx.byNamePath[scope+"."+ref]; ok {
				return target
			}
		}
	}

	candidates := idx.bySuffix[lastSegment(ref)]
	tail := "." + ref
	for _, c := range candidates {
		if strings.HasSuffix(c.NamePath, tail) {
			return c
		}
	}
	return nil
}

// enclosingScope returns the scope a chunk's references resolve in: the
// module path itself for file chunks, the parent qualified name otherwise.
func enclosingScope(c *types.CodeChunk) string {
	if c.ChunkType == types.ChunkFile {
		return c.NamePath
	}
	return parentScope(c.NamePath)
}

// parentScope strips the last name segment, returning "" at the top.
func parentScope(namePath string) string {
	dot := strings.LastIndex(namePath, ".")
	if dot <= 0 {
		return ""
	}
	return namePath[:dot]
}

func lastSegment(namePath string) string {
	if dot := strings.LastIndex(namePath, "."); dot >= 0 {
		return namePath[dot+1:]
	}
	return namePath
}

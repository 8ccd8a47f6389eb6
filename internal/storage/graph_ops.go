package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/reposcope/reposcope/pkg/types"
)

// Graph persistence. Nodes share ids with their backing chunks, edges keep
// insertion order through their rowid so repeated traversals visit neighbors
// in the same sequence.

func (s *SQLiteStorage) replaceGraphWithQuerier(ctx context.Context, q querier, repository string, nodes []*types.GraphNode, edges []types.GraphEdge) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM edges WHERE repository = ?", repository); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM nodes WHERE repository = ?", repository); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}

	nodeQuery := `
		INSERT INTO nodes (id, chunk_id, repository, kind, label, file_path, complexity, line_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, n := range nodes {
		if _, err := q.ExecContext(ctx, nodeQuery,
			n.ID, n.ChunkID, repository, string(n.Kind), n.Label, n.FilePath,
			n.Complexity, n.LineCount); err != nil {
			return fmt.Errorf("failed to insert node %q: %w", n.Label, err)
		}
	}

	edgeQuery := `
		INSERT INTO edges (repository, source_id, target_id, relation, weight)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relation) DO NOTHING
	`
	for _, e := range edges {
		if err := e.ValidateRelation(); err != nil {
			return fmt.Errorf("edge %d->%d: %w", e.SourceID, e.TargetID, err)
		}
		if _, err := q.ExecContext(ctx, edgeQuery,
			repository, e.SourceID, e.TargetID, string(e.Relation), e.Weight); err != nil {
			return fmt.Errorf("failed to insert edge %d->%d: %w", e.SourceID, e.TargetID, err)
		}
	}
	return nil
}

// ReplaceGraph atomically supersedes a repository's node and edge set.
// Readers see the old graph or the new one, never a mix.
func (s *SQLiteStorage) ReplaceGraph(ctx context.Context, repository string, nodes []*types.GraphNode, edges []types.GraphEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.replaceGraphWithQuerier(ctx, tx, repository, nodes, edges); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (t *sqliteTx) ReplaceGraph(ctx context.Context, repository string, nodes []*types.GraphNode, edges []types.GraphEdge) error {
	return t.storage.replaceGraphWithQuerier(ctx, t.querier(), repository, nodes, edges)
}

const nodeColumns = "id, chunk_id, repository, kind, label, file_path, complexity, line_count"

func scanNode(row interface{ Scan(...interface{}) error }) (*types.GraphNode, error) {
	node := &types.GraphNode{}
	var kind string
	err := row.Scan(&node.ID, &node.ChunkID, &node.Repository, &kind, &node.Label,
		&node.FilePath, &node.Complexity, &node.LineCount)
	if err != nil {
		return nil, err
	}
	node.Kind = types.NodeKind(kind)
	return node, nil
}

func (s *SQLiteStorage) getNodeWithQuerier(ctx context.Context, q querier, nodeID int64) (*types.GraphNode, error) {
	query := "SELECT " + nodeColumns + " FROM nodes WHERE id = ?"
	node, err := scanNode(q.QueryRowContext(ctx, query, nodeID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return node, nil
}

// GetNode retrieves a graph node by id
func (s *SQLiteStorage) GetNode(ctx context.Context, nodeID int64) (*types.GraphNode, error) {
	return s.getNodeWithQuerier(ctx, s.querier(), nodeID)
}

func (t *sqliteTx) GetNode(ctx context.Context, nodeID int64) (*types.GraphNode, error) {
	return t.storage.getNodeWithQuerier(ctx, t.querier(), nodeID)
}

func (s *SQLiteStorage) getNodesWithQuerier(ctx context.Context, q querier, nodeIDs []int64) ([]*types.GraphNode, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(nodeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := "SELECT " + nodeColumns + " FROM nodes WHERE id IN (" + placeholders + ")"
	args := make([]interface{}, len(nodeIDs))
	for i, id := range nodeIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]*types.GraphNode, len(nodeIDs))
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		byID[node.ID] = node
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the requested order
	nodes := make([]*types.GraphNode, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if node, ok := byID[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// GetNodes retrieves multiple nodes, returned in request order. Missing ids
// are skipped.
func (s *SQLiteStorage) GetNodes(ctx context.Context, nodeIDs []int64) ([]*types.GraphNode, error) {
	return s.getNodesWithQuerier(ctx, s.querier(), nodeIDs)
}

func (t *sqliteTx) GetNodes(ctx context.Context, nodeIDs []int64) ([]*types.GraphNode, error) {
	return t.storage.getNodesWithQuerier(ctx, t.querier(), nodeIDs)
}

func (s *SQLiteStorage) findNodeByNamePathWithQuerier(ctx context.Context, q querier, repository, namePath string) (*types.GraphNode, error) {
	query := `
		SELECT ` + nodeColumns + ` FROM nodes
		WHERE repository = ? AND label = ?
		ORDER BY id ASC LIMIT 1
	`
	node, err := scanNode(q.QueryRowContext(ctx, query, repository, namePath))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find node: %w", err)
	}
	return node, nil
}

// FindNodeByNamePath looks up a node by its qualified name within a repository
func (s *SQLiteStorage) FindNodeByNamePath(ctx context.Context, repository, namePath string) (*types.GraphNode, error) {
	return s.findNodeByNamePathWithQuerier(ctx, s.querier(), repository, namePath)
}

func (t *sqliteTx) FindNodeByNamePath(ctx context.Context, repository, namePath string) (*types.GraphNode, error) {
	return t.storage.findNodeByNamePathWithQuerier(ctx, t.querier(), repository, namePath)
}

func scanEdges(rows *sql.Rows) ([]types.GraphEdge, error) {
	var edges []types.GraphEdge
	for rows.Next() {
		var e types.GraphEdge
		var relation string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &relation, &e.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Relation = types.RelationType(relation)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *SQLiteStorage) outEdgesWithQuerier(ctx context.Context, q querier, nodeID int64) ([]types.GraphEdge, error) {
	query := `
		SELECT source_id, target_id, relation, weight
		FROM edges WHERE source_id = ? ORDER BY id ASC
	`
	rows, err := q.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get out edges: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEdges(rows)
}

// OutEdges returns a node's outgoing edges in insertion order
func (s *SQLiteStorage) OutEdges(ctx context.Context, nodeID int64) ([]types.GraphEdge, error) {
	return s.outEdgesWithQuerier(ctx, s.querier(), nodeID)
}

func (t *sqliteTx) OutEdges(ctx context.Context, nodeID int64) ([]types.GraphEdge, error) {
	return t.storage.outEdgesWithQuerier(ctx, t.querier(), nodeID)
}

func (s *SQLiteStorage) inEdgesWithQuerier(ctx context.Context, q querier, nodeID int64) ([]types.GraphEdge, error) {
	query := `
		SELECT source_id, target_id, relation, weight
		FROM edges WHERE target_id = ? ORDER BY id ASC
	`
	rows, err := q.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get in edges: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEdges(rows)
}

// InEdges returns a node's incoming edges in insertion order
func (s *SQLiteStorage) InEdges(ctx context.Context, nodeID int64) ([]types.GraphEdge, error) {
	return s.inEdgesWithQuerier(ctx, s.querier(), nodeID)
}

func (t *sqliteTx) InEdges(ctx context.Context, nodeID int64) ([]types.GraphEdge, error) {
	return t.storage.inEdgesWithQuerier(ctx, t.querier(), nodeID)
}

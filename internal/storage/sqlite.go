package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reposcope/reposcope/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) Close() error {
	return errors.New("cannot close storage from within a transaction")
}

func (t *sqliteTx) BeginTx(_ context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Repository operations

func (s *SQLiteStorage) upsertRepositoryWithQuerier(ctx context.Context, q querier, repo *Repository) error {
	now := time.Now()
	query := `
		INSERT INTO repositories (name, root_path, total_files, total_chunks, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			root_path = excluded.root_path,
			total_files = excluded.total_files,
			total_chunks = excluded.total_chunks,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
	`
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.UpdatedAt = now
	_, err := q.ExecContext(ctx, query,
		repo.Name, repo.RootPath, repo.TotalFiles, repo.TotalChunks,
		repo.LastIndexedAt, repo.CreatedAt, repo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert repository: %w", err)
	}

	// Resolve the id for both insert and update paths
	row := q.QueryRowContext(ctx, "SELECT id FROM repositories WHERE name = ?", repo.Name)
	if err := row.Scan(&repo.ID); err != nil {
		return fmt.Errorf("failed to resolve repository id: %w", err)
	}
	return nil
}

// UpsertRepository creates or updates a repository record
func (s *SQLiteStorage) UpsertRepository(ctx context.Context, repo *Repository) error {
	return s.upsertRepositoryWithQuerier(ctx, s.querier(), repo)
}

func (t *sqliteTx) UpsertRepository(ctx context.Context, repo *Repository) error {
	return t.storage.upsertRepositoryWithQuerier(ctx, t.querier(), repo)
}

func (s *SQLiteStorage) getRepositoryWithQuerier(ctx context.Context, q querier, name string) (*Repository, error) {
	query := `
		SELECT id, name, root_path, total_files, total_chunks,
		       last_indexed_at, created_at, updated_at
		FROM repositories WHERE name = ?
	`
	repo := &Repository{}
	var lastIndexed sql.NullTime
	err := q.QueryRowContext(ctx, query, name).Scan(
		&repo.ID, &repo.Name, &repo.RootPath, &repo.TotalFiles, &repo.TotalChunks,
		&lastIndexed, &repo.CreatedAt, &repo.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	if lastIndexed.Valid {
		repo.LastIndexedAt = lastIndexed.Time
	}
	return repo, nil
}

// GetRepository retrieves a repository by name
func (s *SQLiteStorage) GetRepository(ctx context.Context, name string) (*Repository, error) {
	return s.getRepositoryWithQuerier(ctx, s.querier(), name)
}

func (t *sqliteTx) GetRepository(ctx context.Context, name string) (*Repository, error) {
	return t.storage.getRepositoryWithQuerier(ctx, t.querier(), name)
}

func (s *SQLiteStorage) listRepositoriesWithQuerier(ctx context.Context, q querier) ([]*Repository, error) {
	query := `
		SELECT id, name, root_path, total_files, total_chunks,
		       last_indexed_at, created_at, updated_at
		FROM repositories ORDER BY name
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*Repository
	for rows.Next() {
		repo := &Repository{}
		var lastIndexed sql.NullTime
		if err := rows.Scan(&repo.ID, &repo.Name, &repo.RootPath, &repo.TotalFiles,
			&repo.TotalChunks, &lastIndexed, &repo.CreatedAt, &repo.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		if lastIndexed.Valid {
			repo.LastIndexedAt = lastIndexed.Time
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// ListRepositories returns all indexed repositories
func (s *SQLiteStorage) ListRepositories(ctx context.Context) ([]*Repository, error) {
	return s.listRepositoriesWithQuerier(ctx, s.querier())
}

func (t *sqliteTx) ListRepositories(ctx context.Context) ([]*Repository, error) {
	return t.storage.listRepositoriesWithQuerier(ctx, t.querier())
}

func (s *SQLiteStorage) deleteRepositoryWithQuerier(ctx context.Context, q querier, name string) error {
	// Graph rows and embeddings cascade through files/chunks; nodes and
	// edges are scoped by repository name directly.
	if _, err := q.ExecContext(ctx, "DELETE FROM edges WHERE repository = ?", name); err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM nodes WHERE repository = ?", name); err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}
	result, err := q.ExecContext(ctx, "DELETE FROM repositories WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRepository removes a repository and all derived data
func (s *SQLiteStorage) DeleteRepository(ctx context.Context, name string) error {
	return s.deleteRepositoryWithQuerier(ctx, s.querier(), name)
}

func (t *sqliteTx) DeleteRepository(ctx context.Context, name string) error {
	return t.storage.deleteRepositoryWithQuerier(ctx, t.querier(), name)
}

// File operations

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	now := time.Now()
	query := `
		INSERT INTO files (repository_id, repository, file_path, language, content_hash,
		                   size_bytes, parse_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, file_path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			parse_error = excluded.parse_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
	`
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	_, err := q.ExecContext(ctx, query,
		file.RepositoryID, file.Repository, file.FilePath, file.Language, file.ContentHash,
		file.SizeBytes, file.ParseError, file.LastIndexedAt, file.CreatedAt, file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	row := q.QueryRowContext(ctx, "SELECT id FROM files WHERE repository = ? AND file_path = ?",
		file.Repository, file.FilePath)
	if err := row.Scan(&file.ID); err != nil {
		return fmt.Errorf("failed to resolve file id: %w", err)
	}
	return nil
}

// UpsertFile creates or updates a file record
func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, repository, filePath string) (*File, error) {
	query := `
		SELECT id, repository_id, repository, file_path, language, content_hash,
		       size_bytes, parse_error, last_indexed_at, created_at, updated_at
		FROM files WHERE repository = ? AND file_path = ?
	`
	file := &File{}
	var lastIndexed sql.NullTime
	err := q.QueryRowContext(ctx, query, repository, filePath).Scan(
		&file.ID, &file.RepositoryID, &file.Repository, &file.FilePath, &file.Language,
		&file.ContentHash, &file.SizeBytes, &file.ParseError, &lastIndexed,
		&file.CreatedAt, &file.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if lastIndexed.Valid {
		file.LastIndexedAt = lastIndexed.Time
	}
	return file, nil
}

// GetFile retrieves a file by repository and path
func (s *SQLiteStorage) GetFile(ctx context.Context, repository, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), repository, filePath)
}

func (t *sqliteTx) GetFile(ctx context.Context, repository, filePath string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), repository, filePath)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, repository string) ([]*File, error) {
	query := `
		SELECT id, repository_id, repository, file_path, language, content_hash,
		       size_bytes, parse_error, last_indexed_at, created_at, updated_at
		FROM files WHERE repository = ? ORDER BY file_path
	`
	rows, err := q.QueryContext(ctx, query, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		file := &File{}
		var lastIndexed sql.NullTime
		if err := rows.Scan(&file.ID, &file.RepositoryID, &file.Repository, &file.FilePath,
			&file.Language, &file.ContentHash, &file.SizeBytes, &file.ParseError,
			&lastIndexed, &file.CreatedAt, &file.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		if lastIndexed.Valid {
			file.LastIndexedAt = lastIndexed.Time
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// ListFiles returns all tracked files for a repository
func (s *SQLiteStorage) ListFiles(ctx context.Context, repository string) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), repository)
}

func (t *sqliteTx) ListFiles(ctx context.Context, repository string) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), repository)
}

func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, repository, filePath string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM files WHERE repository = ? AND file_path = ?",
		repository, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFile removes a file and its chunks
func (s *SQLiteStorage) DeleteFile(ctx context.Context, repository, filePath string) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), repository, filePath)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, repository, filePath string) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), repository, filePath)
}

// Chunk operations

func (s *SQLiteStorage) replaceChunksWithQuerier(ctx context.Context, q querier, fileID int64, chunks []*types.CodeChunk) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	query := `
		INSERT INTO chunks (file_id, repository, file_path, language, chunk_type, content,
		                    start_line, end_line, name, name_path, signature, docstring,
		                    decorators, imports, calls, complexity, line_count, content_hash,
		                    created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for _, chunk := range chunks {
		decorators, err := marshalStringList(chunk.Decorators)
		if err != nil {
			return err
		}
		imports, err := marshalStringList(chunk.Imports)
		if err != nil {
			return err
		}
		calls, err := marshalStringList(chunk.Calls)
		if err != nil {
			return err
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
		chunk.UpdatedAt = now
		result, err := q.ExecContext(ctx, query,
			fileID, chunk.Repository, chunk.FilePath, chunk.Language, string(chunk.ChunkType),
			chunk.Content, chunk.StartLine, chunk.EndLine, chunk.Name, chunk.NamePath,
			chunk.Signature, chunk.Docstring, decorators, imports, calls,
			chunk.Complexity, chunk.LineCount, chunk.ContentHash,
			chunk.CreatedAt, chunk.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %q: %w", chunk.NamePath, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		chunk.ID = id
	}
	return nil
}

// ReplaceChunks swaps a file's chunk set atomically
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, fileID int64, chunks []*types.CodeChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.replaceChunksWithQuerier(ctx, tx, fileID, chunks); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (t *sqliteTx) ReplaceChunks(ctx context.Context, fileID int64, chunks []*types.CodeChunk) error {
	return t.storage.replaceChunksWithQuerier(ctx, t.querier(), fileID, chunks)
}

const chunkColumns = `
	id, repository, file_path, language, chunk_type, content, start_line, end_line,
	name, name_path, signature, docstring, decorators, imports, calls,
	complexity, line_count, content_hash, created_at, updated_at
`

func scanChunk(row interface{ Scan(...interface{}) error }) (*types.CodeChunk, error) {
	chunk := &types.CodeChunk{}
	var chunkType, decorators, imports, calls string
	err := row.Scan(
		&chunk.ID, &chunk.Repository, &chunk.FilePath, &chunk.Language, &chunkType,
		&chunk.Content, &chunk.StartLine, &chunk.EndLine, &chunk.Name, &chunk.NamePath,
		&chunk.Signature, &chunk.Docstring, &decorators, &imports, &calls,
		&chunk.Complexity, &chunk.LineCount, &chunk.ContentHash,
		&chunk.CreatedAt, &chunk.UpdatedAt)
	if err != nil {
		return nil, err
	}
	chunk.ChunkType = types.ChunkType(chunkType)
	if chunk.Decorators, err = unmarshalStringList(decorators); err != nil {
		return nil, err
	}
	if chunk.Imports, err = unmarshalStringList(imports); err != nil {
		return nil, err
	}
	if chunk.Calls, err = unmarshalStringList(calls); err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, chunkID int64) (*types.CodeChunk, error) {
	query := "SELECT " + chunkColumns + " FROM chunks WHERE id = ?"
	chunk, err := scanChunk(q.QueryRowContext(ctx, query, chunkID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return chunk, nil
}

// GetChunk retrieves a chunk by id
func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*types.CodeChunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID int64) (*types.CodeChunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (s *SQLiteStorage) listChunksWithQuerier(ctx context.Context, q querier, filter ChunkFilter) ([]*types.CodeChunk, error) {
	query := "SELECT " + chunkColumns + " FROM chunks WHERE 1=1"
	var args []interface{}
	if filter.Repository != "" {
		query += " AND repository = ?"
		args = append(args, filter.Repository)
	}
	if filter.FilePath != "" {
		query += " AND file_path = ?"
		args = append(args, filter.FilePath)
	}
	if filter.Language != "" {
		query += " AND language = ?"
		args = append(args, filter.Language)
	}
	if filter.ChunkType != "" {
		query += " AND chunk_type = ?"
		args = append(args, string(filter.ChunkType))
	}
	if filter.NamePath != "" {
		query += " AND name_path = ?"
		args = append(args, filter.NamePath)
	}
	query += " ORDER BY file_path, start_line"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.CodeChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// ListChunks returns chunks matching the filter
func (s *SQLiteStorage) ListChunks(ctx context.Context, filter ChunkFilter) ([]*types.CodeChunk, error) {
	return s.listChunksWithQuerier(ctx, s.querier(), filter)
}

func (t *sqliteTx) ListChunks(ctx context.Context, filter ChunkFilter) ([]*types.CodeChunk, error) {
	return t.storage.listChunksWithQuerier(ctx, t.querier(), filter)
}

func (s *SQLiteStorage) deleteChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// DeleteChunksByFile removes all chunks belonging to a file
func (s *SQLiteStorage) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return s.deleteChunksByFileWithQuerier(ctx, s.querier(), fileID)
}

func (t *sqliteTx) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, emb *Embedding) error {
	if len(emb.Vector) == 0 {
		return errors.New("embedding vector cannot be empty")
	}
	if emb.Dimension == 0 {
		emb.Dimension = len(emb.Vector)
	}
	if emb.Dimension != len(emb.Vector) {
		return fmt.Errorf("%w: declared %d, got %d", ErrDimensionMismatch, emb.Dimension, len(emb.Vector))
	}
	if err := s.checkDimensionWithQuerier(ctx, q, emb.Domain, emb.Dimension); err != nil {
		return err
	}

	query := `
		INSERT INTO embeddings (chunk_id, domain, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, domain) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, query,
		emb.ChunkID, string(emb.Domain), serializeVector(emb.Vector),
		emb.Dimension, emb.Provider, emb.Model, emb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// checkDimensionWithQuerier enforces a single dimension per domain across
// the database, recording it on first write.
func (s *SQLiteStorage) checkDimensionWithQuerier(ctx context.Context, q querier, domain types.EmbeddingDomain, dim int) error {
	key := "embedding_dim:" + string(domain)
	var current string
	err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&current)
	if err == sql.ErrNoRows {
		_, err := q.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", key, fmt.Sprintf("%d", dim))
		return err
	}
	if err != nil {
		return err
	}
	if current != fmt.Sprintf("%d", dim) {
		return fmt.Errorf("%w: index built with dimension %s, got %d", ErrDimensionMismatch, current, dim)
	}
	return nil
}

// UpsertEmbedding stores a vector for a (chunk, domain) pair
func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), emb)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), emb)
}

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, chunkID int64, domain types.EmbeddingDomain) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, domain, vector, dimension, provider, model, created_at
		FROM embeddings WHERE chunk_id = ? AND domain = ?
	`
	emb := &Embedding{}
	var domainStr string
	var blob []byte
	err := q.QueryRowContext(ctx, query, chunkID, string(domain)).Scan(
		&emb.ID, &emb.ChunkID, &domainStr, &blob, &emb.Dimension,
		&emb.Provider, &emb.Model, &emb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	emb.Domain = types.EmbeddingDomain(domainStr)
	emb.Vector, err = deserializeVector(blob)
	if err != nil {
		return nil, err
	}
	return emb, nil
}

// GetEmbedding retrieves the stored vector for a (chunk, domain) pair
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64, domain types.EmbeddingDomain) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), chunkID, domain)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID int64, domain types.EmbeddingDomain) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), chunkID, domain)
}

// Lexical search

// SearchLexical runs a trigram full-text query over chunk names, signatures,
// and source. Scores are negated bm25 values so higher is better.
func (s *SQLiteStorage) SearchLexical(ctx context.Context, repository, query string, limit int, minScore float64) ([]types.RankedRef, error) {
	return s.searchLexicalWithQuerier(ctx, s.querier(), repository, query, limit, minScore)
}

func (t *sqliteTx) SearchLexical(ctx context.Context, repository, query string, limit int, minScore float64) ([]types.RankedRef, error) {
	return t.storage.searchLexicalWithQuerier(ctx, t.querier(), repository, query, limit, minScore)
}

func (s *SQLiteStorage) searchLexicalWithQuerier(ctx context.Context, q querier, repository, query string, limit int, minScore float64) ([]types.RankedRef, error) {
	if limit <= 0 {
		return []types.RankedRef{}, nil
	}
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return []types.RankedRef{}, nil
	}

	sqlQuery := `
		SELECT c.id, -bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.rowid = c.id
		WHERE chunks_fts MATCH ? AND c.repository = ?
		ORDER BY score DESC, c.id ASC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, sanitized, repository, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := make([]types.RankedRef, 0, limit)
	for rows.Next() {
		var ref types.RankedRef
		if err := rows.Scan(&ref.ChunkID, &ref.Score); err != nil {
			return nil, fmt.Errorf("failed to scan lexical result: %w", err)
		}
		if ref.Score < minScore {
			continue
		}
		ref.Rank = len(refs) + 1
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// sanitizeFTSQuery turns free text into a safe FTS5 match expression by
// quoting each token. The trigram tokenizer needs tokens of at least three
// characters; shorter ones are dropped.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		if len(f) < 3 {
			continue
		}
		tokens = append(tokens, `"`+f+`"`)
	}
	return strings.Join(tokens, " ")
}

// Meta operations

func (s *SQLiteStorage) getMetaWithQuerier(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %q: %w", key, err)
	}
	return value, nil
}

// GetMeta retrieves a metadata value
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	return s.getMetaWithQuerier(ctx, s.querier(), key)
}

func (t *sqliteTx) GetMeta(ctx context.Context, key string) (string, error) {
	return t.storage.getMetaWithQuerier(ctx, t.querier(), key)
}

func (s *SQLiteStorage) setMetaWithQuerier(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

// SetMeta stores a metadata value
func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	return s.setMetaWithQuerier(ctx, s.querier(), key, value)
}

func (t *sqliteTx) SetMeta(ctx context.Context, key, value string) error {
	return t.storage.setMetaWithQuerier(ctx, t.querier(), key, value)
}

// Stats

func (s *SQLiteStorage) statsWithQuerier(ctx context.Context, q querier, repository string) (*RepositoryStats, error) {
	stats := &RepositoryStats{Repository: repository}

	repo, err := s.getRepositoryWithQuerier(ctx, q, repository)
	if err != nil {
		return nil, err
	}
	stats.LastIndexedAt = repo.LastIndexedAt

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM files WHERE repository = ?", &stats.FilesCount},
		{"SELECT COUNT(*) FROM chunks WHERE repository = ?", &stats.ChunksCount},
		{"SELECT COUNT(*) FROM embeddings e JOIN chunks c ON e.chunk_id = c.id WHERE c.repository = ?", &stats.EmbeddingsCount},
		{"SELECT COUNT(*) FROM nodes WHERE repository = ?", &stats.NodesCount},
		{"SELECT COUNT(*) FROM edges WHERE repository = ?", &stats.EdgesCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query, repository).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}
	return stats, nil
}

// Stats returns index statistics for a repository
func (s *SQLiteStorage) Stats(ctx context.Context, repository string) (*RepositoryStats, error) {
	return s.statsWithQuerier(ctx, s.querier(), repository)
}

func (t *sqliteTx) Stats(ctx context.Context, repository string) (*RepositoryStats, error) {
	return t.storage.statsWithQuerier(ctx, t.querier(), repository)
}

// JSON helpers for string-list columns

func marshalStringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

func unmarshalStringList(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

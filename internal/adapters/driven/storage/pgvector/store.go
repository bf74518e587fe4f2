// Package pgvector provides a PostgreSQL knowledge store using the pgvector extension.
//
// Each collection is its own table. A CHECK constraint pins every row's
// collection_name to its table, so a cross-collection row cannot be stored
// even if a caller bypasses the Go-side check.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.KnowledgeStore = (*Store)(nil)

// pingTimeout bounds the connection check at startup.
const pingTimeout = 5 * time.Second

// tables maps collections to their fixed table names.
var tables = map[domain.Collection]string{
	domain.CollectionPolicy: "policy_master_collection",
	domain.CollectionClaims: "claims_collection",
}

// Store is a pgvector-backed implementation of driven.KnowledgeStore.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
	locks      map[domain.Collection]*sync.Mutex
	closed     atomic.Bool
}

// New connects to PostgreSQL and creates the collection tables if needed.
func New(ctx context.Context, connString string, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive: %w", domain.ErrInvalidInput)
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", mapError(err))
	}

	s := &Store{
		pool:       pool,
		dimensions: dimensions,
		locks:      make(map[domain.Collection]*sync.Mutex, len(tables)),
	}
	for c := range tables {
		s.locks[c] = &sync.Mutex{}
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enabling pgvector: %w", mapError(err))
	}
	for _, c := range domain.Collections() {
		if _, err := s.pool.Exec(ctx, createTableSQL(c, s.dimensions)); err != nil {
			return fmt.Errorf("creating table %s: %w", tables[c], mapError(err))
		}
	}
	return nil
}

// Upsert inserts or replaces a chunk vector. A replaced row keeps its seq.
func (s *Store) Upsert(ctx context.Context, collection domain.Collection, chunk domain.Chunk,
	embedding []float32, meta domain.RecordMetadata) error {
	if meta.Collection != collection {
		return fmt.Errorf("upsert %s into %s: %w", meta.Collection, collection, domain.ErrCrossCollectionWrite)
	}
	table, err := tableFor(collection)
	if err != nil {
		return err
	}
	if chunk.ID == "" || len(embedding) != s.dimensions {
		return fmt.Errorf("upsert: expected chunk id and %d dimensions: %w", s.dimensions, domain.ErrInvalidInput)
	}
	if s.closed.Load() {
		return domain.ErrStoreUnavailable
	}

	lock := s.locks[collection]
	lock.Lock()
	defer lock.Unlock()

	_, err = s.pool.Exec(ctx, `INSERT INTO `+table+` (chunk_id, collection_name, content, category, client_id,
			submission_date, source_document_id, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chunk_id) DO UPDATE SET
			content = excluded.content,
			category = excluded.category,
			client_id = excluded.client_id,
			submission_date = excluded.submission_date,
			source_document_id = excluded.source_document_id,
			embedding = excluded.embedding`,
		chunk.ID, string(collection), chunk.Content, meta.Category, meta.ClientID,
		meta.SubmissionDate, meta.SourceDocumentID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("upserting chunk %s: %w", chunk.ID, mapError(err))
	}
	return nil
}

// Query returns the topK nearest rows by cosine distance.
func (s *Store) Query(ctx context.Context, collection domain.Collection, vector []float32,
	topK int, filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	if _, err := tableFor(collection); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, domain.ErrStoreUnavailable
	}
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}

	query, args := buildQuery(collection, filter, topK)
	rows, err := s.pool.Query(ctx, query, append([]any{pgvector.NewVector(vector)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, mapError(err))
	}
	defer rows.Close()

	hits := make([]domain.QueryHit, 0, topK)
	for rows.Next() {
		var (
			hit  domain.QueryHit
			name string
		)
		if err := rows.Scan(&hit.ChunkID, &hit.Content, &hit.Metadata.Category, &hit.Metadata.ClientID,
			&hit.Metadata.SubmissionDate, &hit.Metadata.SourceDocumentID, &name, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hit.Metadata.Collection = domain.Collection(name)
		if hit.Metadata.Collection != collection {
			continue
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", mapError(err))
	}
	return hits, nil
}

// List returns every matching row of a collection in insertion order.
func (s *Store) List(ctx context.Context, collection domain.Collection,
	filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	if _, err := tableFor(collection); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, domain.ErrStoreUnavailable
	}

	query, args := buildList(collection, filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, mapError(err))
	}
	defer rows.Close()

	var hits []domain.QueryHit
	for rows.Next() {
		var (
			hit  domain.QueryHit
			name string
		)
		if err := rows.Scan(&hit.ChunkID, &hit.Content, &hit.Metadata.Category, &hit.Metadata.ClientID,
			&hit.Metadata.SubmissionDate, &hit.Metadata.SourceDocumentID, &name); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		hit.Metadata.Collection = domain.Collection(name)
		if hit.Metadata.Collection != collection {
			continue
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", mapError(err))
	}
	return hits, nil
}

// Count returns the number of rows in a collection.
func (s *Store) Count(ctx context.Context, collection domain.Collection) (int, error) {
	table, err := tableFor(collection)
	if err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, domain.ErrStoreUnavailable
	}
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, mapError(err))
	}
	return n, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}

func tableFor(collection domain.Collection) (string, error) {
	table, ok := tables[collection]
	if !ok {
		return "", fmt.Errorf("unknown collection %q: %w", collection, domain.ErrInvalidInput)
	}
	return table, nil
}

func createTableSQL(collection domain.Collection, dimensions int) string {
	table := tables[collection]
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		seq                BIGSERIAL,
		chunk_id           TEXT PRIMARY KEY,
		collection_name    TEXT NOT NULL CHECK (collection_name = '` + string(collection) + `'),
		content            TEXT NOT NULL,
		category           TEXT NOT NULL DEFAULT '',
		client_id          TEXT NOT NULL DEFAULT '',
		submission_date    TEXT NOT NULL DEFAULT '',
		source_document_id TEXT NOT NULL,
		embedding          vector(` + strconv.Itoa(dimensions) + `) NOT NULL
	)`
}

// buildQuery returns the similarity query and its arguments after the
// query vector, which is always $1.
func buildQuery(collection domain.Collection, filter domain.MetadataFilter, topK int) (string, []any) {
	where, args := buildWhere(collection, filter, 2)
	args = append(args, topK)

	query := `SELECT chunk_id, content, category, client_id, submission_date, source_document_id,
			collection_name, 1 - (embedding <=> $1) AS score
		FROM ` + tables[collection] + `
		WHERE ` + where + `
		ORDER BY embedding <=> $1, seq
		LIMIT $` + strconv.Itoa(len(args)+1)
	return query, args
}

// buildList returns the unranked enumeration query and its arguments.
func buildList(collection domain.Collection, filter domain.MetadataFilter) (string, []any) {
	where, args := buildWhere(collection, filter, 1)
	query := `SELECT chunk_id, content, category, client_id, submission_date, source_document_id,
			collection_name
		FROM ` + tables[collection] + `
		WHERE ` + where + `
		ORDER BY seq`
	return query, args
}

// buildWhere renders filter as a WHERE clause whose placeholders start at first.
func buildWhere(collection domain.Collection, filter domain.MetadataFilter, first int) (string, []any) {
	args := []any{string(collection)}
	where := []string{fmt.Sprintf("collection_name = $%d", first)}

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)+first-1))
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.ClientID != "" {
		add("client_id = $%d", filter.ClientID)
	}
	if filter.SubmittedFrom != "" {
		add("submission_date >= $%d", filter.SubmittedFrom)
	}
	if filter.SubmittedTo != "" {
		add("submission_date <= $%d", filter.SubmittedTo)
	}
	return strings.Join(where, " AND "), args
}

// mapError marks connection-level failures as domain.ErrStoreUnavailable.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)
	if errors.As(err, &connectErr) || errors.As(err, &netErr) ||
		pgconn.Timeout(err) || pgconn.SafeToRetry(err) ||
		errors.Is(err, pgx.ErrTxClosed) || strings.Contains(err.Error(), "closed pool") {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}

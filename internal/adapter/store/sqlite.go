package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"finrag/internal/domain"
	"finrag/internal/logger"
)

// SQLiteFileName is the index file created under Options.Dir.
const SQLiteFileName = "index.sqlite"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    collection TEXT NOT NULL,
    text TEXT NOT NULL,
    metadata TEXT NOT NULL,
    dim INTEGER NOT NULL,
    vector BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);

CREATE TABLE IF NOT EXISTS schema_info (
    collection TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    config_hash TEXT NOT NULL
);
`

// SQLiteIndex stores documents in a single SQLite table, one row per
// document, with vectors as little-endian float32 blobs. Metadata filters
// are evaluated in SQL; scoring happens in Go.
type SQLiteIndex struct {
	conn *sql.DB
	opts Options
	mu   sync.RWMutex
}

// OpenSQLite opens or creates <dir>/index.sqlite.
func OpenSQLite(opts Options) (*SQLiteIndex, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(opts.Dir, SQLiteFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteIndex{conn: conn, opts: opts}, nil
}

func (s *SQLiteIndex) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, s.opts.Collection); err != nil {
		return fmt.Errorf("failed to reset collection %s: %w", s.opts.Collection, err)
	}
	return nil
}

func (s *SQLiteIndex) Add(ctx context.Context, chunks []domain.ChunkRecord, embeddings [][]float32) (domain.AddResult, error) {
	return addInBatches(ctx, s, chunks, embeddings, s.opts.BatchSize)
}

func (s *SQLiteIndex) insertBatch(ctx context.Context, docs []domain.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	dim, err := currentDim(ctx, tx, s.opts.Collection)
	if err != nil {
		return err
	}
	if _, err := checkDimensions(dim, docs); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (id, collection, text, metadata, dim, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, d.ID, s.opts.Collection, d.Text, string(meta), len(d.Vector), serializeVector(d.Vector)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func currentDim(ctx context.Context, q queryer, collection string) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, `SELECT dim FROM documents WHERE collection = ? LIMIT 1`, collection).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read index dimension: %w", err)
	}
	return dim, nil
}

func (s *SQLiteIndex) Search(ctx context.Context, query []float32, filter domain.Filter, k int) []domain.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.search(ctx, query, filter, k)
	if err != nil {
		logger.Warn("search failed: %v", err)
		return []domain.SearchResult{}
	}
	return results
}

func (s *SQLiteIndex) search(ctx context.Context, query []float32, filter domain.Filter, k int) ([]domain.SearchResult, error) {
	dim, err := currentDim(ctx, s.conn, s.opts.Collection)
	if err != nil {
		return nil, err
	}
	if err := validQuery(query, dim); err != nil {
		return nil, err
	}

	where, args := filterClause(filter)
	args = append([]any{s.opts.Collection}, args...)
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, text, metadata, vector FROM documents WHERE collection = ?`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.IndexedDocument
	for rows.Next() {
		var (
			d    domain.IndexedDocument
			meta string
			blob []byte
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", d.ID, err)
		}
		d.Vector = deserializeVector(blob)
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rank(query, docs, filter, k), nil
}

// filterClause renders the filter as AND-ed json_extract IN (...) terms.
func filterClause(filter domain.Filter) (string, []any) {
	if filter.IsEmpty() {
		return "", nil
	}
	var (
		sb   strings.Builder
		args []any
	)
	for _, c := range filter.Conditions {
		if len(c.In) == 0 {
			continue
		}
		sb.WriteString(` AND json_extract(metadata, ?) IN (`)
		args = append(args, `$."`+c.Field+`"`)
		for i, v := range c.In {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, v)
		}
		sb.WriteString(")")
	}
	return sb.String(), args
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, s.opts.Collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (s *SQLiteIndex) Stats(ctx context.Context) domain.IndexStats {
	n, err := s.Count(ctx)
	if err != nil {
		logger.Warn("%v", err)
	}
	return domain.IndexStats{
		DocumentCount:  n,
		CollectionName: s.opts.Collection,
		Directory:      s.opts.Dir,
		Backend:        BackendSQLite,
	}
}

func (s *SQLiteIndex) Close() error {
	return s.conn.Close()
}

func (s *SQLiteIndex) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.conn.QueryRow(`SELECT version, config_hash FROM schema_info WHERE collection = ?`, s.opts.Collection).
		Scan(&info.Version, &info.ConfigHash)
	if err == sql.ErrNoRows {
		return &info, nil
	}
	return &info, err
}

func (s *SQLiteIndex) SetSchemaInfo(info *SchemaInfo) error {
	_, err := s.conn.Exec(`INSERT INTO schema_info (collection, version, config_hash) VALUES (?, ?, ?)
ON CONFLICT(collection) DO UPDATE SET version = excluded.version, config_hash = excluded.config_hash`,
		s.opts.Collection, info.Version, info.ConfigHash)
	return err
}

// serializeVector converts a float32 slice to bytes for storage
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts bytes back to a float32 slice
func deserializeVector(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

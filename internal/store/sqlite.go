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
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/bookrag/bookrag/internal/corpus"
)

// SQLiteChunkStore persists chunk records and index state in SQLite.
// WAL mode allows a reader (retrieve) and a writer (index build) from
// separate processes without corruption.
type SQLiteChunkStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ ChunkStore = (*SQLiteChunkStore)(nil)

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id             TEXT PRIMARY KEY,
	text           TEXT NOT NULL,
	embedding      BLOB,
	chapter_title  TEXT NOT NULL DEFAULT '',
	chapter_number INTEGER NOT NULL,
	position       INTEGER NOT NULL,
	source_id      TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	tags           TEXT NOT NULL DEFAULT '{}'
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_chapter_position
	ON chunks(chapter_number, position);
CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLiteChunkStore opens (or creates) a chunk store at path.
// An empty path creates an in-memory store for testing.
func NewSQLiteChunkStore(path string) (*SQLiteChunkStore, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(chunkSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteChunkStore{db: db, path: path}, nil
}

// SaveChunks stores chunk records, replacing existing ids.
func (s *SQLiteChunkStore) SaveChunks(ctx context.Context, chunks []corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, text, embedding, chapter_title, chapter_number, position, source_id, category, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		tags, err := json.Marshal(tagsOrEmpty(c.Tags))
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", c.ID, err)
		}

		var emb []byte
		if c.HasEmbedding() {
			emb = encodeVector(c.Embedding)
		}

		if _, err := stmt.ExecContext(ctx, c.ID, c.Text, emb,
			c.ChapterTitle, c.ChapterNumber, c.Position,
			c.SourceID, c.Category, string(tags)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk returns one chunk by id.
func (s *SQLiteChunkStore) GetChunk(ctx context.Context, id string) (*corpus.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, embedding, chapter_title, chapter_number, position, source_id, category, tags
		FROM chunks WHERE id = ?`, id)

	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", id, err)
	}
	return c, nil
}

// GetChunks returns chunks for the given ids, in the same order.
// Missing ids are skipped.
func (s *SQLiteChunkStore) GetChunks(ctx context.Context, ids []string) ([]corpus.Chunk, error) {
	if len(ids) == 0 {
		return []corpus.Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding, chapter_title, chapter_number, position, source_id, category, tags
		FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]corpus.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		byID[c.ID] = *c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	// Preserve request order
	result := make([]corpus.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// AllChunks returns the whole corpus ordered by ascending id.
func (s *SQLiteChunkStore) AllChunks(ctx context.Context) ([]corpus.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding, chapter_title, chapter_number, position, source_id, category, tags
		FROM chunks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all chunks: %w", err)
	}
	defer rows.Close()

	var result []corpus.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// Count returns the number of stored chunks.
func (s *SQLiteChunkStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// GetState returns the value for a state key, or empty string if unset.
func (s *SQLiteChunkStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetState stores a state key-value pair.
func (s *SQLiteChunkStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Close closes the database.
func (s *SQLiteChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*corpus.Chunk, error) {
	var c corpus.Chunk
	var emb []byte
	var tags string

	err := row.Scan(&c.ID, &c.Text, &emb, &c.ChapterTitle, &c.ChapterNumber,
		&c.Position, &c.SourceID, &c.Category, &tags)
	if err != nil {
		return nil, err
	}

	if len(emb) > 0 {
		c.Embedding = decodeVector(emb)
	}
	if tags != "" && tags != "{}" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

func tagsOrEmpty(tags map[string]bool) map[string]bool {
	if tags == nil {
		return map[string]bool{}
	}
	return tags
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice.
func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

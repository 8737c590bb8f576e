// Package index stores page chunks and their embeddings in SQLite, using
// sqlite-vec for nearest-neighbour search.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrDimensionMismatch is returned when an existing index was built with a
// different embedding size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Page represents a row in the pages table.
type Page struct {
	ID          int64
	URL         string
	Title       string
	ContentHash string
}

// Chunk is one piece of a page's text, in page order.
type Chunk struct {
	Position int
	Content  string
}

// Result is a chunk returned by Search, closest first.
type Result struct {
	ChunkID  int64
	URL      string
	Title    string
	Content  string
	Distance float64
}

// Store wraps the SQLite database of the vector index.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// Open opens (or creates) the index at dbPath for vectors of embeddingDim
// dimensions.
func Open(dbPath string, embeddingDim int) (*Store, error) {
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", embeddingDim)
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s := &Store{db: db, embeddingDim: embeddingDim}
	if err := s.checkDimension(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EmbeddingDim returns the vector size of the index.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

func (s *Store) checkDimension() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'embedding_dim'").Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec("INSERT INTO meta (key, value) VALUES ('embedding_dim', ?)", strconv.Itoa(s.embeddingDim))
		return err
	}
	if err != nil {
		return err
	}
	if stored != strconv.Itoa(s.embeddingDim) {
		return fmt.Errorf("%w: index has %s, embeddings have %d", ErrDimensionMismatch, stored, s.embeddingDim)
	}
	return nil
}

// PageHash returns the stored content hash of url, if the page is indexed.
func (s *Store) PageHash(ctx context.Context, url string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT content_hash FROM pages WHERE url = ?", url).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// ReplacePage stores page with its chunks and their vectors in a single
// transaction, replacing whatever was stored for the page's URL before.
// vectors[i] belongs to chunks[i]. On error nothing is written, so a page
// is never left with a fresh hash but missing vectors.
func (s *Store) ReplacePage(ctx context.Context, page Page, chunks []Chunk, vectors [][]float32) (int64, error) {
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for _, v := range vectors {
		if len(v) != s.embeddingDim {
			return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), s.embeddingDim)
		}
	}

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT id FROM pages WHERE url = ?", page.URL).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				"INSERT INTO pages (url, title, content_hash) VALUES (?, ?, ?)",
				page.URL, page.Title, page.ContentHash)
			if err != nil {
				return err
			}
			if id, err = res.LastInsertId(); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := deletePageChunks(ctx, tx, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE pages SET title = ?, content_hash = ?, indexed_at = CURRENT_TIMESTAMP
				WHERE id = ?`, page.Title, page.ContentHash, id); err != nil {
				return err
			}
		}
		return insertChunks(ctx, tx, id, chunks, vectors)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func deletePageChunks(ctx context.Context, tx *sql.Tx, pageID int64) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM vec_chunks WHERE chunk_id IN (
			SELECT id FROM chunks WHERE page_id = ?
		)`, pageID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE page_id = ?", pageID)
	return err
}

func insertChunks(ctx context.Context, tx *sql.Tx, pageID int64, chunks []Chunk, vectors [][]float32) error {
	chunkStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (page_id, position, content) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for i, c := range chunks {
		res, err := chunkStmt.ExecContext(ctx, pageID, c.Position, c.Content)
		if err != nil {
			return err
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := vecStmt.ExecContext(ctx, chunkID, serializeFloat32(vectors[i])); err != nil {
			return err
		}
	}
	return nil
}

// Search performs a KNN search returning the k nearest chunks.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != s.embeddingDim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), s.embeddingDim)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance, c.content, p.url, p.title
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN pages p ON p.id = c.page_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ChunkID, &r.Distance, &r.Content, &r.URL, &r.Title); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats counts the indexed pages and chunks.
func (s *Store) Stats(ctx context.Context) (pages, chunks int, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM pages), (SELECT COUNT(*) FROM chunks)").Scan(&pages, &chunks)
	return pages, chunks, err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

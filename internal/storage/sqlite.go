package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Tornshorts/RAG-Tutorial/internal/keyword"
	"github.com/Tornshorts/RAG-Tutorial/internal/models"
	"github.com/Tornshorts/RAG-Tutorial/internal/vector"
)

const (
	dbFileName  = "index.db"
	keywordDir  = "keyword"
	entryFields = "id, text, source, page, created_at"
)

// SQLiteStore keeps entries in SQLite under a persist directory, with an in-memory
// vector index and a Bleve keyword index derived from the table.
type SQLiteStore struct {
	dir    string
	logger *zap.Logger

	mu           sync.RWMutex
	db           *sql.DB
	vectors      vector.VectorIndex
	keywords     *keyword.BleveIndex
	keywordStale bool
}

// NewSQLiteStore opens or creates the store in dir. Parent directories are created.
func NewSQLiteStore(dir string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)
	s := &SQLiteStore{dir: dir, logger: o.logger}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) open() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return unavailable("create persist directory: %v", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(s.dir, dbFileName))
	if err != nil {
		return unavailable("open database: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return unavailable("enable WAL: %v", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return unavailable("initialize schema: %v", err)
	}

	vectors, err := vector.NewMemoryIndex(0)
	if err != nil {
		_ = db.Close()
		return err
	}
	n, err := warmVectors(db, vectors)
	if err != nil {
		_ = db.Close()
		return unavailable("load embeddings: %v", err)
	}

	keywords, err := keyword.NewBleveIndex(filepath.Join(s.dir, keywordDir))
	if err != nil {
		_ = db.Close()
		return unavailable("open keyword index: %v", err)
	}

	s.db = db
	s.vectors = vectors
	s.keywords = keywords
	if count, err := keywords.DocCount(); err != nil || int(count) != n {
		s.keywordStale = true
	}
	s.logger.Debug("Opened index store",
		zap.String("dir", s.dir),
		zap.Int("entries", n),
		zap.Bool("keyword_stale", s.keywordStale))
	return nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		source TEXT NOT NULL,
		page INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source);
	`
	_, err := db.Exec(schema)
	return err
}

func warmVectors(db *sql.DB, idx vector.VectorIndex) (int, error) {
	rows, err := db.Query(`SELECT id, embedding FROM entries ORDER BY rowid`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var (
		ids  []string
		vecs [][]float32
	)
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return 0, err
		}
		vec, err := vector.Decode(blob)
		if err != nil {
			return 0, fmt.Errorf("entry %s: %w", id, err)
		}
		ids = append(ids, id)
		vecs = append(vecs, vec)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if err := idx.Add(context.Background(), ids, vecs); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ready reports ErrStoreUnavailable after Close or a failed Reset. Caller holds mu.
func (s *SQLiteStore) ready() error {
	if s.db == nil {
		return unavailable("store %s is closed", s.dir)
	}
	return nil
}

// ExistingIDs returns every persisted chunk ID.
func (s *SQLiteStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entries`)
	if err != nil {
		return nil, unavailable("list ids: %v", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan id: %v", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list ids: %v", err)
	}
	return ids, nil
}

// Insert writes entries in one transaction. The vector and keyword indices are updated only
// after the commit succeeds.
func (s *SQLiteStore) Insert(ctx context.Context, entries []*models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}

	dim := s.vectors.Dimensions()
	if dim == 0 {
		dim = len(entries[0].Embedding)
	}
	for _, e := range entries {
		if len(e.Embedding) == 0 || len(e.Embedding) != dim {
			return fmt.Errorf("entry %s: embedding has %d dimensions, store expects %d", e.ID, len(e.Embedding), dim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, text, source, page, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Text, e.Metadata.Source, e.Metadata.Page, vector.Encode(e.Embedding), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}

	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	for i, e := range entries {
		e.CreatedAt = now
		ids[i] = e.ID
		vecs[i] = e.Embedding
	}
	if err := s.vectors.Add(ctx, ids, vecs); err != nil {
		return fmt.Errorf("update vector index: %w", err)
	}
	if err := s.keywords.IndexEntries(ctx, entries); err != nil {
		// rebuilt from the table on the next keyword search
		s.keywordStale = true
		s.logger.Warn("Keyword index update failed", zap.Error(err))
	}
	return nil
}

// Query returns up to k entries by descending cosine similarity.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int) ([]*models.ScoredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}

	hits, err := s.vectors.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return []*models.ScoredEntry{}, nil
	}
	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[h.ID] = h.Score
	}
	return s.fetch(ctx, ids, scores)
}

// KeywordSearch returns entries whose text matches query, best first.
func (s *SQLiteStore) KeywordSearch(ctx context.Context, query string, limit int) ([]*models.ScoredEntry, error) {
	s.mu.Lock()
	if err := s.ready(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.keywordStale {
		if err := s.rebuildKeywords(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	hits, err := s.keywords.Search(ctx, query, limit, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[h.ID] = h.Score
	}
	return s.fetch(ctx, ids, scores)
}

// rebuildKeywords recreates the keyword index from the entries table. Caller holds mu.
func (s *SQLiteStore) rebuildKeywords(ctx context.Context) error {
	path := filepath.Join(s.dir, keywordDir)
	if s.keywords != nil {
		_ = s.keywords.Close()
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove keyword index: %w", err)
	}
	idx, err := keyword.NewBleveIndex(path)
	if err != nil {
		return unavailable("recreate keyword index: %v", err)
	}
	s.keywords = idx

	rows, err := s.db.QueryContext(ctx, `SELECT `+entryFields+` FROM entries`)
	if err != nil {
		return unavailable("read entries: %v", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return unavailable("read entries: %v", err)
	}
	if err := idx.IndexEntries(ctx, entries); err != nil {
		return fmt.Errorf("rebuild keyword index: %w", err)
	}
	s.keywordStale = false
	s.logger.Info("Rebuilt keyword index", zap.Int("entries", len(entries)))
	return nil
}

// fetch loads entries for ids and returns them in ids order. Caller holds mu.
func (s *SQLiteStore) fetch(ctx context.Context, ids []string, scores map[string]float64) ([]*models.ScoredEntry, error) {
	if len(ids) == 0 {
		return []*models.ScoredEntry{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryFields+` FROM entries WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, unavailable("fetch entries: %v", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, unavailable("fetch entries: %v", err)
	}
	byID := make(map[string]*models.IndexEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	out := make([]*models.ScoredEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, &models.ScoredEntry{Entry: e, Score: scores[id]})
		}
	}
	return out, nil
}

func scanEntries(rows *sql.Rows) ([]*models.IndexEntry, error) {
	defer rows.Close()
	var entries []*models.IndexEntry
	for rows.Next() {
		var e models.IndexEntry
		if err := rows.Scan(&e.ID, &e.Text, &e.Metadata.Source, &e.Metadata.Page, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Metadata.ID = e.ID
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, unavailable("count entries: %v", err)
	}
	return n, nil
}

// Stats returns the entry count and distinct sources in lexical order.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM entries ORDER BY source`)
	if err != nil {
		return nil, unavailable("list sources: %v", err)
	}
	defer rows.Close()
	stats := &models.StoreStats{Entries: n, Sources: []string{}}
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, unavailable("scan source: %v", err)
		}
		stats.Sources = append(stats.Sources, src)
	}
	return stats, rows.Err()
}

// Reset closes the store, removes the persist directory and reopens it empty.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.closeLocked()
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove persist directory: %w", err)
	}
	s.logger.Info("Removed index store", zap.String("dir", s.dir))
	return s.open()
}

// Close closes the database and keyword index.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SQLiteStore) closeLocked() error {
	var firstErr error
	if s.keywords != nil {
		if err := s.keywords.Close(); err != nil {
			firstErr = err
		}
		s.keywords = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.db = nil
	}
	if s.vectors != nil {
		s.vectors.Reset()
	}
	return firstErr
}

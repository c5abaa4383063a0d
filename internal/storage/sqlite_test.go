package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tornshorts/RAG-Tutorial/internal/config"
	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

func newEntry(id, source string, page int, text string, emb ...float32) *models.IndexEntry {
	return &models.IndexEntry{
		ID:        id,
		Text:      text,
		Metadata:  models.EntryMetadata{Source: source, Page: page, ID: id},
		Embedding: emb,
	}
}

func openStore(t *testing.T, dir string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_emptyStore(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "index"))
	ctx := context.Background()

	ids, err := s.ExistingIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
	hits, err := s.Query(ctx, []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("Query on empty store: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("expected empty non-nil result, got %v", hits)
	}
}

func TestSQLiteStore_InsertQuery(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "index"))
	ctx := context.Background()

	err := s.Insert(ctx, []*models.IndexEntry{
		newEntry("data/a.pdf:0:0", "data/a.pdf", 0, "cats purr", 1, 0, 0),
		newEntry("data/a.pdf:0:1", "data/a.pdf", 0, "dogs bark", 0, 1, 0),
		newEntry("data/b.pdf:2:0", "data/b.pdf", 2, "cats and dogs", 0.7, 0.7, 0),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	hits, err := s.Query(ctx, []float32{1, 0.1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Entry.ID != "data/a.pdf:0:0" || hits[1].Entry.ID != "data/b.pdf:2:0" {
		t.Errorf("unexpected order: %s, %s", hits[0].Entry.ID, hits[1].Entry.ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits should be sorted by descending score")
	}
	got := hits[1].Entry
	if got.Text != "cats and dogs" || got.Metadata.Source != "data/b.pdf" || got.Metadata.Page != 2 || got.Metadata.ID != got.ID {
		t.Errorf("entry not restored: %+v", got)
	}

	all, _ := s.Query(ctx, []float32{1, 0, 0}, 10)
	if len(all) != 3 {
		t.Errorf("k larger than store: got %d hits", len(all))
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 3 || len(stats.Sources) != 2 || stats.Sources[0] != "data/a.pdf" {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestSQLiteStore_InsertIsAllOrNothing(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "index"))
	ctx := context.Background()
	if err := s.Insert(ctx, []*models.IndexEntry{newEntry("a:0:0", "a", 0, "x", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	// duplicate id in the middle of a batch rolls back the whole batch
	err := s.Insert(ctx, []*models.IndexEntry{
		newEntry("a:0:1", "a", 0, "y", 0, 1),
		newEntry("a:0:0", "a", 0, "dup", 1, 1),
	})
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	n, _ := s.Count(ctx)
	if n != 1 {
		t.Errorf("expected 1 entry after failed batch, got %d", n)
	}
	hits, _ := s.Query(ctx, []float32{0, 1}, 10)
	if len(hits) != 1 {
		t.Errorf("vector index must not see rolled-back rows, got %d hits", len(hits))
	}

	// wrong dimension is rejected before touching the table
	if err := s.Insert(ctx, []*models.IndexEntry{newEntry("a:1:0", "a", 1, "z", 1, 2, 3)}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	s1, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Insert(ctx, []*models.IndexEntry{
		newEntry("a:0:0", "a", 0, "persistent words", 1, 0),
		newEntry("a:0:1", "a", 0, "more text", 0, 1),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2 := openStore(t, dir)
	ids, err := s2.ExistingIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ids["a:0:1"]; !ok || len(ids) != 2 {
		t.Errorf("ids after reopen: %v", ids)
	}
	hits, _ := s2.Query(ctx, []float32{0, 1}, 1)
	if len(hits) != 1 || hits[0].Entry.ID != "a:0:1" {
		t.Errorf("vector index not warmed: %+v", hits)
	}
	kw, err := s2.KeywordSearch(ctx, "persistent", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(kw) != 1 || kw[0].Entry.ID != "a:0:0" {
		t.Errorf("keyword search after reopen: %+v", kw)
	}
}

func TestSQLiteStore_KeywordRebuiltWhenMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	s1, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = s1.Insert(ctx, []*models.IndexEntry{newEntry("a:0:0", "a", 0, "rebuildable", 1)})
	_ = s1.Close()
	if err := os.RemoveAll(filepath.Join(dir, keywordDir)); err != nil {
		t.Fatal(err)
	}

	s2 := openStore(t, dir)
	kw, err := s2.KeywordSearch(ctx, "rebuildable", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(kw) != 1 {
		t.Errorf("expected keyword index to be rebuilt, got %d hits", len(kw))
	}
}

func TestSQLiteStore_Reset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	s := openStore(t, dir)
	ctx := context.Background()
	if err := s.Insert(ctx, []*models.IndexEntry{newEntry("a:0:0", "a", 0, "x", 1, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(dir, "stray")
	if err := os.WriteFile(marker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("reset should remove the whole persist directory")
	}
	ids, err := s.ExistingIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty ids after reset, got %v", ids)
	}
	// a new dimension is accepted after reset
	if err := s.Insert(ctx, []*models.IndexEntry{newEntry("b:0:0", "b", 0, "y", 1, 0)}); err != nil {
		t.Errorf("insert after reset: %v", err)
	}
}

func TestSQLiteStore_corruptDatabase(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, dbFileName), []byte("this is not a sqlite database, just text padding it out"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := NewSQLiteStore(dir)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSQLiteStore_closed(t *testing.T) {
	s, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
	if _, err := s.ExistingIDs(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable after Close, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	s, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendSQLite, PersistDir: dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(KeywordSearcher); !ok {
		t.Error("sqlite store should support keyword search")
	}

	if _, err := Open(context.Background(), config.StorageConfig{Backend: "chroma"}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

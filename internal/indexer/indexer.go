package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Tornshorts/RAG-Tutorial/internal/chunkid"
	"github.com/Tornshorts/RAG-Tutorial/internal/embedding"
	"github.com/Tornshorts/RAG-Tutorial/internal/models"
	"github.com/Tornshorts/RAG-Tutorial/internal/storage"
)

var (
	// ErrNoDocumentsFound is returned when the source directory yields no documents.
	ErrNoDocumentsFound = errors.New("no documents found")
	// ErrIngestInProgress is returned by Reset while an ingest holds the store.
	ErrIngestInProgress = errors.New("ingest in progress")
)

const (
	defaultConcurrency = 4
	defaultBatchSize   = 16
)

// DocumentLoader reads the documents of a directory in a stable order.
type DocumentLoader interface {
	LoadDirectory(ctx context.Context, dir string) ([]*models.Document, error)
}

// Indexer runs incremental ingest: only chunks whose ID is not yet stored are embedded
// and inserted. At most one ingest runs at a time; concurrent calls for the same
// directory share one run.
type Indexer struct {
	store       storage.IndexStore
	embedder    embedding.Embedder
	loader      DocumentLoader
	splitter    *Splitter
	concurrency int
	batchSize   int
	logger      *zap.Logger

	group singleflight.Group
	mu    sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingest progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithSplitter replaces the default 500/50 splitter.
func WithSplitter(s *Splitter) IndexerOption {
	return func(idx *Indexer) {
		if s != nil {
			idx.splitter = s
		}
	}
}

// WithConcurrency bounds the number of embedding requests in flight.
func WithConcurrency(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.concurrency = n
		}
	}
}

// WithBatchSize sets how many chunk texts go into one embedding request.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer over store using embedder and loader.
func NewIndexer(store storage.IndexStore, embedder embedding.Embedder, loader DocumentLoader, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:       store,
		embedder:    embedder,
		loader:      loader,
		splitter:    NewSplitter(),
		concurrency: defaultConcurrency,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	return idx
}

// Ingest loads dir, splits and identifies its chunks, and stores the ones not yet present.
// Existing IDs are never re-embedded or overwritten, even if their text changed.
// Any embedding failure aborts the run before anything is inserted.
//
// The run is shared by every caller for dir and does not stop when one of them gives up:
// a cancelled ctx returns ctx.Err() to that caller only.
func (idx *Indexer) Ingest(ctx context.Context, dir string) (*models.IngestResult, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := idx.group.DoChan(dir, func() (any, error) {
		idx.mu.Lock()
		defer idx.mu.Unlock()
		return idx.ingest(runCtx, dir)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			idx.logger.Debug("Joined in-flight ingest", zap.String("dir", dir))
		}
		res := *r.Val.(*models.IngestResult)
		return &res, nil
	}
}

func (idx *Indexer) ingest(ctx context.Context, dir string) (*models.IngestResult, error) {
	start := time.Now()
	docs, err := idx.loader.LoadDirectory(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocumentsFound, dir)
	}

	chunks := chunkid.Assign(idx.splitter.SplitAll(docs))
	idx.logger.Debug("Split documents",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)))

	existing, err := idx.store.ExistingIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read existing ids: %w", err)
	}
	fresh := make([]*models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := existing[c.ID]; !ok {
			fresh = append(fresh, c)
		}
	}

	if len(fresh) > 0 {
		if err := idx.embed(ctx, fresh); err != nil {
			return nil, err
		}
		entries := make([]*models.IndexEntry, len(fresh))
		for i, c := range fresh {
			entries[i] = c.Entry()
		}
		if err := idx.store.Insert(ctx, entries); err != nil {
			return nil, fmt.Errorf("insert entries: %w", err)
		}
	}

	idx.logger.Info("Ingest finished",
		zap.String("dir", dir),
		zap.Int("added", len(fresh)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)))
	return &models.IngestResult{Added: len(fresh), Total: len(chunks)}, nil
}

// embed fills Embedding on every chunk. Batches run concurrently; the first failure
// cancels the rest and is returned.
func (idx *Indexer) embed(ctx context.Context, chunks []*models.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)
	for start := 0; start < len(chunks); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			vecs, err := idx.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed %s: %w", batch[0].ID, err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embed %s: %w", batch[0].ID,
					&embedding.Error{Err: fmt.Errorf("got %d vectors for %d texts", len(vecs), len(batch))})
			}
			for i, c := range batch {
				c.Embedding = vecs[i]
			}
			return nil
		})
	}
	return g.Wait()
}

// Reset clears the store. It fails with ErrIngestInProgress instead of waiting for a
// running ingest.
func (idx *Indexer) Reset(ctx context.Context) error {
	if !idx.mu.TryLock() {
		return ErrIngestInProgress
	}
	defer idx.mu.Unlock()
	if err := idx.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	idx.logger.Info("Index reset")
	return nil
}

// Store returns the underlying index store.
func (idx *Indexer) Store() storage.IndexStore {
	return idx.store
}

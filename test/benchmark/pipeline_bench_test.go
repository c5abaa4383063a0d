package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/Tornshorts/RAG-Tutorial/internal/chunkid"
	"github.com/Tornshorts/RAG-Tutorial/internal/embedding"
	"github.com/Tornshorts/RAG-Tutorial/internal/indexer"
	"github.com/Tornshorts/RAG-Tutorial/internal/models"
	"github.com/Tornshorts/RAG-Tutorial/internal/search"
	"github.com/Tornshorts/RAG-Tutorial/internal/storage"
)

var words = strings.Fields("board token dice rent bank deed house hotel jail chance chest auction trade mortgage railroad utility")

func randomText(r *rand.Rand, n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(words[r.Intn(len(words))])
		b.WriteByte(' ')
	}
	return b.String()
}

func buildDocs(count, pages, pageLen int) []*models.Document {
	r := rand.New(rand.NewSource(42))
	docs := make([]*models.Document, count)
	for i := range docs {
		doc := &models.Document{Source: fmt.Sprintf("data/doc%03d.pdf", i)}
		for p := 0; p < pages; p++ {
			doc.Pages = append(doc.Pages, models.Page{Index: p, Text: randomText(r, pageLen)})
		}
		docs[i] = doc
	}
	return docs
}

type staticLoader []*models.Document

func (l staticLoader) LoadDirectory(ctx context.Context, dir string) ([]*models.Document, error) {
	return l, nil
}

func BenchmarkSplitAndAssign(b *testing.B) {
	docs := buildDocs(20, 10, 3000)
	splitter := indexer.NewSplitter()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chunkid.Assign(splitter.SplitAll(docs))
	}
}

func BenchmarkIngest_fresh(b *testing.B) {
	docs := buildDocs(10, 5, 2000)
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		store, err := storage.NewSQLiteStore(b.TempDir())
		if err != nil {
			b.Fatal(err)
		}
		idx := indexer.NewIndexer(store, embedding.NewMockEmbedder(64), staticLoader(docs))
		b.StartTimer()
		if _, err := idx.Ingest(ctx, "data"); err != nil {
			b.Fatal(err)
		}
		b.StopTimer()
		_ = store.Close()
		b.StartTimer()
	}
}

func BenchmarkIngest_unchanged(b *testing.B) {
	docs := buildDocs(10, 5, 2000)
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	idx := indexer.NewIndexer(store, embedding.NewMockEmbedder(64), staticLoader(docs))
	if _, err := idx.Ingest(ctx, "data"); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Ingest(ctx, "data"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRetrieve(b *testing.B) {
	docs := buildDocs(20, 5, 2000)
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	emb := embedding.NewMockEmbedder(64)
	if _, err := indexer.NewIndexer(store, emb, staticLoader(docs)).Ingest(ctx, "data"); err != nil {
		b.Fatal(err)
	}
	engine := search.NewEngine(emb, store, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Retrieve(ctx, "who pays rent on a mortgaged railroad"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHybridSearch(b *testing.B) {
	docs := buildDocs(20, 5, 2000)
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	emb := embedding.NewMockEmbedder(64)
	if _, err := indexer.NewIndexer(store, emb, staticLoader(docs)).Ingest(ctx, "data"); err != nil {
		b.Fatal(err)
	}
	engine := search.NewEngine(emb, store, nil)
	req := search.SearchRequest{Query: "mortgage railroad", Limit: 10}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Search(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

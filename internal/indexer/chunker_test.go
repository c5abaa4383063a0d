package indexer

import (
	"strings"
	"testing"

	"github.com/Tornshorts/RAG-Tutorial/internal/chunkid"
	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

func pageDoc(source string, texts ...string) *models.Document {
	doc := &models.Document{Source: source}
	for i, t := range texts {
		doc.Pages = append(doc.Pages, models.Page{Index: i, Text: t})
	}
	return doc
}

func TestSplitter_threeChunks(t *testing.T) {
	s := NewSplitter()
	text := strings.Repeat("abcdefghij", 120) // 1200 chars
	chunks := chunkid.Assign(s.Split(pageDoc("a.pdf", text)))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := []string{"a.pdf:0:0", "a.pdf:0:1", "a.pdf:0:2"}
	for i, c := range chunks {
		if c.ID != want[i] {
			t.Errorf("chunk %d ID=%q, want %q", i, c.ID, want[i])
		}
		if n := len([]rune(c.Text)); n > DefaultChunkSize {
			t.Errorf("chunk %d length %d exceeds %d", i, n, DefaultChunkSize)
		}
	}
	// consecutive chunks share the overlap
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		if !strings.HasPrefix(chunks[i].Text, prev[len(prev)-DefaultChunkOverlap:]) {
			t.Errorf("chunk %d does not start with the tail of chunk %d", i, i-1)
		}
	}
	if got := chunks[2].Text; got != text[900:] {
		t.Errorf("last chunk should cover the tail of the page, got %d chars", len(got))
	}
}

func TestSplitter_shortAndExactPages(t *testing.T) {
	s := NewSplitter()
	if got := s.Split(pageDoc("a.pdf", "hello")); len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("short page: got %v", got)
	}
	if got := s.Split(pageDoc("a.pdf", strings.Repeat("x", 500))); len(got) != 1 {
		t.Errorf("page of exactly chunk size: got %d chunks", len(got))
	}
	if got := s.Split(pageDoc("a.pdf", strings.Repeat("x", 501))); len(got) != 2 {
		t.Errorf("page one over chunk size: got %d chunks", len(got))
	}
}

func TestSplitter_emptyPagesAndDocs(t *testing.T) {
	s := NewSplitter()
	if got := s.Split(pageDoc("a.pdf")); len(got) != 0 {
		t.Errorf("zero pages: got %d chunks", len(got))
	}
	if got := s.Split(pageDoc("a.pdf", "", "  \n\t ")); len(got) != 0 {
		t.Errorf("blank pages: got %d chunks", len(got))
	}
	if got := s.Split(nil); got != nil {
		t.Errorf("nil doc: got %v", got)
	}
}

func TestSplitter_documentOrder(t *testing.T) {
	s := NewSplitter(WithChunkSize(10), WithChunkOverlap(2))
	docs := []*models.Document{
		pageDoc("a.pdf", strings.Repeat("a", 20), "", "second page"),
		pageDoc("b.pdf", "b"),
	}
	chunks := chunkid.Assign(s.SplitAll(docs))
	want := []string{"a.pdf:0:0", "a.pdf:0:1", "a.pdf:0:2", "a.pdf:2:0", "a.pdf:2:1", "b.pdf:0:0"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if c.ID != want[i] {
			t.Errorf("chunk %d ID=%q, want %q", i, c.ID, want[i])
		}
	}
}

func TestSplitter_runes(t *testing.T) {
	s := NewSplitter(WithChunkSize(4), WithChunkOverlap(1))
	chunks := s.Split(pageDoc("j.pdf", "日本語のテキスト"))
	for _, c := range chunks {
		if n := len([]rune(c.Text)); n > 4 {
			t.Errorf("chunk %q has %d runes", c.Text, n)
		}
	}
	if chunks[0].Text != "日本語の" {
		t.Errorf("first chunk: got %q", chunks[0].Text)
	}
}

func TestNewSplitter_clampsOverlap(t *testing.T) {
	s := NewSplitter(WithChunkSize(100), WithChunkOverlap(100))
	if s.ChunkOverlap() != 25 {
		t.Errorf("overlap should clamp to size/4, got %d", s.ChunkOverlap())
	}
	d := NewSplitter(WithChunkSize(0), WithChunkOverlap(-1))
	if d.ChunkSize() != DefaultChunkSize || d.ChunkOverlap() != DefaultChunkOverlap {
		t.Errorf("invalid options should keep defaults, got %d/%d", d.ChunkSize(), d.ChunkOverlap())
	}
}

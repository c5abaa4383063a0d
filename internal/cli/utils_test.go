package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
	"github.com/Tornshorts/RAG-Tutorial/internal/search"
)

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "json"} {
		if _, err := ParseOutputFormat(s); err != nil {
			t.Errorf("ParseOutputFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	ans := &models.Answer{
		Text:    "Paris.",
		Sources: []models.SourceRef{{Source: "geo.pdf", Page: 3}, {Source: "geo.pdf", Page: 3}},
	}
	if err := WriteAnswer(&buf, ans, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Paris.") {
		t.Errorf("answer missing: %q", out)
	}
	if strings.Count(out, "geo.pdf (page 3)") != 2 {
		t.Errorf("expected duplicate sources kept: %q", out)
	}
}

func TestWriteAnswer_partial(t *testing.T) {
	var buf bytes.Buffer
	ans := &models.Answer{Partial: true, Sources: []models.SourceRef{{Source: "a.pdf"}}}
	if err := WriteAnswer(&buf, ans, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no answer generated") || !strings.Contains(buf.String(), "a.pdf (page 0)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	ans := &models.Answer{Text: "x", Sources: []models.SourceRef{{Source: "a.pdf", Page: 1}}}
	if err := WriteAnswer(&buf, ans, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.Answer
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Text != "x" || len(decoded.Sources) != 1 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteSearchResults(t *testing.T) {
	results := []*search.Result{
		{ID: "data/a.pdf:0:0", Source: "data/a.pdf", Snippet: "hello world", Score: 0.9, Rank: 1},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "hello", results, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 1 results") || !strings.Contains(out, "data/a.pdf:0:0") {
		t.Errorf("text output: %q", out)
	}

	buf.Reset()
	if err := WriteSearchResults(&buf, "hello", nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"results": []`) {
		t.Errorf("json output for no results: %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := NewStatus(&models.StoreStats{Entries: 5, Sources: []string{"data/a.pdf"}}, "sqlite")
	st.DiskUsageBytes = 2048
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"sqlite", "Total chunks: 5", "2.0 KiB", "data/a.pdf"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if !st.DocumentsLoaded {
		t.Error("DocumentsLoaded should be true")
	}

	empty := NewStatus(&models.StoreStats{}, "qdrant")
	buf.Reset()
	if err := WriteStatus(&buf, empty, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"documents_loaded": false`) || !strings.Contains(buf.String(), `"sources": []`) {
		t.Errorf("json: %q", buf.String())
	}
}

func TestWriteIngestResult(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteIngestResult(&buf, &models.IngestResult{Added: 0, Total: 3}, OutputText)
	if !strings.Contains(buf.String(), "No new documents") {
		t.Errorf("got %q", buf.String())
	}
	buf.Reset()
	_ = WriteIngestResult(&buf, &models.IngestResult{Added: 2, Total: 5}, OutputText)
	if !strings.Contains(buf.String(), "Added 2 new chunks (5 chunks loaded)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("got %s", got)
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("日本語テキスト", 3); got != "日本語..." {
		t.Errorf("runes: got %s", got)
	}
}

// Package cli formats command output for the ragtutorial binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
	"github.com/Tornshorts/RAG-Tutorial/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its sources.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	if answer.Partial {
		fmt.Fprintln(w, "(no answer generated)")
	} else {
		fmt.Fprintf(w, "\n%s\n", answer.Text)
	}
	if len(answer.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range answer.Sources {
			fmt.Fprintf(w, "  - %s (page %d)\n", s.Source, s.Page)
		}
	}
	return nil
}

type searchOutput struct {
	Query   string           `json:"query"`
	Results []*search.Result `json:"results"`
}

// WriteSearchResults writes hybrid or keyword search results.
func WriteSearchResults(w io.Writer, query string, results []*search.Result, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*search.Result{}
		}
		return writeJSON(w, searchOutput{Query: query, Results: results})
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(results), query)
	for _, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
			r.Rank, r.Score, r.KeywordScore, r.SemanticScore)
		fmt.Fprintf(w, "ID: %s\n", r.ID)
		fmt.Fprintf(w, "\n%s\n\n", Truncate(r.Snippet, 200))
	}
	return nil
}

// Status is the summary printed by the status command.
type Status struct {
	DocumentsLoaded bool     `json:"documents_loaded"`
	TotalChunks     int      `json:"total_chunks"`
	Sources         []string `json:"sources"`
	Backend         string   `json:"backend"`
	PersistDir      string   `json:"persist_dir,omitempty"`
	DiskUsageBytes  int64    `json:"disk_usage_bytes,omitempty"`
}

// NewStatus builds a Status from store statistics.
func NewStatus(stats *models.StoreStats, backend string) *Status {
	sources := stats.Sources
	if sources == nil {
		sources = []string{}
	}
	return &Status{
		DocumentsLoaded: stats.Entries > 0,
		TotalChunks:     stats.Entries,
		Sources:         sources,
		Backend:         backend,
	}
}

// WriteStatus writes index status.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Backend:      %s\n", st.Backend)
	if st.PersistDir != "" {
		fmt.Fprintf(w, "Persist dir:  %s\n", st.PersistDir)
	}
	fmt.Fprintf(w, "Total chunks: %d\n", st.TotalChunks)
	if st.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "Disk usage:   %s\n", FormatBytes(st.DiskUsageBytes))
	}
	if len(st.Sources) > 0 {
		fmt.Fprintf(w, "Sources (%d):\n", len(st.Sources))
		for _, s := range st.Sources {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	return nil
}

// WriteIngestResult writes the outcome of an ingest run.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Added == 0 {
		fmt.Fprintf(w, "No new documents to add (%d chunks loaded)\n", res.Total)
		return nil
	}
	fmt.Fprintf(w, "Added %d new chunks (%d chunks loaded)\n", res.Added, res.Total)
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

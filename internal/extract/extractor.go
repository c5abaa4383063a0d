// Package extract loads documents from disk as ordered pages of plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

// DefaultExtensions are the file types loaded when none are configured.
var DefaultExtensions = []string{".pdf"}

// Loader reads a directory of documents and extracts their text page by page.
type Loader struct {
	extensions map[string]struct{}
	logger     *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithExtensions sets the file extensions to load (with leading dot, case-insensitive).
func WithExtensions(exts []string) Option {
	return func(l *Loader) {
		if len(exts) == 0 {
			return
		}
		l.extensions = make(map[string]struct{}, len(exts))
		for _, e := range exts {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			l.extensions[e] = struct{}{}
		}
	}
}

// WithLogger sets the logger. If nil, a no-op logger is used.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader returns a Loader for DefaultExtensions unless overridden.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{}
	WithExtensions(DefaultExtensions)(l)
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Accepts reports whether path has one of the loader's extensions.
func (l *Loader) Accepts(path string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadDirectory loads every matching regular file directly inside dir, in lexical order.
// Subdirectories are not descended into. A file that cannot be read or parsed aborts the
// whole load; the error names the file. A missing directory, or one with no matching
// files, returns an empty slice and no error.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) ([]*models.Document, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Debug("Data directory does not exist", zap.String("dir", dir))
		return []*models.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if l.Accepts(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]*models.Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := l.LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded document",
			zap.String("source", doc.Source),
			zap.Int("pages", len(doc.Pages)))
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadFile reads one file. Source is set to SourceName(path).
func (l *Loader) LoadFile(path string) (*models.Document, error) {
	source, err := SourceName(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	pages, err := ExtractPages(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return &models.Document{Source: source, Pages: pages}, nil
}

// SourceName returns the source recorded for the file at path: the name of its parent
// directory and its own name, slash-separated ("data/a.pdf"). Relative, absolute and
// symlinked spellings of the same file give the same name.
func SourceName(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return filepath.ToSlash(filepath.Join(filepath.Base(dir), filepath.Base(abs))), nil
}

// ExtractPages splits content into zero-based pages according to ext (with leading dot).
// PDF pages, XLSX sheets and PPTX slides each become one page; anything else is a single
// plain-text page.
func ExtractPages(content []byte, ext string) ([]models.Page, error) {
	var (
		texts []string
		err   error
	)
	switch ext {
	case ".pdf":
		texts, err = extractPDF(content)
	case ".xlsx":
		texts, err = extractExcel(content)
	case ".pptx":
		texts, err = extractPPTX(content)
	default:
		texts = []string{extractPlain(content)}
	}
	if err != nil {
		return nil, err
	}
	pages := make([]models.Page, len(texts))
	for i, t := range texts {
		pages[i] = models.Page{Index: i, Text: t}
	}
	return pages, nil
}

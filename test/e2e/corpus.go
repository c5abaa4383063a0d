package e2e

import (
	"fmt"
	"os"
	"path/filepath"
)

// CorpusPage is one page of a generated corpus file together with a term that appears
// on that page only.
type CorpusPage struct {
	File  string
	Page  int
	Text  string
	Query string
}

// CorpusFile is a generated document: its name and the text of each page.
type CorpusFile struct {
	Name  string
	Pages []string
}

// Corpus is a set of generated documents in several formats.
type Corpus struct {
	Files []CorpusFile
}

// BuildCorpus returns a corpus of four files: a PDF, a workbook, a slide deck and a
// text file. Every page carries a distinct keyword.
func BuildCorpus() *Corpus {
	return &Corpus{Files: []CorpusFile{
		{Name: "a-handbook.pdf", Pages: []string{
			"Each player starts with fifteen hundred dollars in the bank reserve.",
			"Rolling doubles three times sends the token straight to jail.",
			"Mortgaged property collects no rent until the loan is repaid.",
		}},
		{Name: "b-rules.xlsx", Pages: []string{
			"Auction bidding opens when a player declines to buy a deed.",
			"Houses must be built evenly across a colour group.",
		}},
		{Name: "c-deck.pptx", Pages: []string{
			"Chance cards may advance a token to the nearest railroad.",
			"Community chest pays a beauty contest prize of ten dollars.",
		}},
		{Name: "d-notes.txt", Pages: []string{
			"Free parking carries no reward under the official tournament rules.",
		}},
	}}
}

// Pages returns every page of the corpus in load order.
func (c *Corpus) Pages() []CorpusPage {
	queries := map[string]string{
		"a-handbook.pdf:0": "reserve",
		"a-handbook.pdf:1": "doubles",
		"a-handbook.pdf:2": "mortgaged",
		"b-rules.xlsx:0":   "auction",
		"b-rules.xlsx:1":   "evenly",
		"c-deck.pptx:0":    "railroad",
		"c-deck.pptx:1":    "beauty",
		"d-notes.txt:0":    "tournament",
	}
	var out []CorpusPage
	for _, f := range c.Files {
		for i, text := range f.Pages {
			out = append(out, CorpusPage{
				File:  f.Name,
				Page:  i,
				Text:  text,
				Query: queries[fmt.Sprintf("%s:%d", f.Name, i)],
			})
		}
	}
	return out
}

// Write renders every corpus file into dir.
func (c *Corpus) Write(dir string) error {
	for _, f := range c.Files {
		if err := WriteFile(filepath.Join(dir, f.Name), f.Pages...); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile renders pages into path using the format implied by its extension.
func WriteFile(path string, pages ...string) error {
	var (
		data []byte
		err  error
	)
	switch filepath.Ext(path) {
	case ".pdf":
		data = MinimalPDF(pages...)
	case ".xlsx":
		data, err = MinimalXlsx(pages...)
	case ".pptx":
		data, err = MinimalPptx(pages...)
	default:
		if len(pages) != 1 {
			return fmt.Errorf("plain text file %s takes exactly one page", path)
		}
		data = []byte(pages[0])
	}
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

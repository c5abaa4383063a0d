package e2e

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tornshorts/RAG-Tutorial/internal/extract"
)

func TestMinimalPDF_extractsEachPage(t *testing.T) {
	data := MinimalPDF("first page body", "second page body")
	require.True(t, strings.HasPrefix(string(data), "%PDF-1.4"))

	pages, err := extract.ExtractPages(data, ".pdf")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0].Text, "first page body")
	assert.Contains(t, pages[1].Text, "second page body")
}

func TestMinimalXlsx_oneSheetPerPage(t *testing.T) {
	data, err := MinimalXlsx("alpha", "beta")
	require.NoError(t, err)

	pages, err := extract.ExtractPages(data, ".xlsx")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "alpha", pages[0].Text)
	assert.Equal(t, "beta", pages[1].Text)
}

func TestMinimalPptx_oneSlidePerPage(t *testing.T) {
	data, err := MinimalPptx("one", "two", "three")
	require.NoError(t, err)

	pages, err := extract.ExtractPages(data, ".pptx")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "three", pages[2].Text)
}

func TestBuildCorpus_everyPageHasUniqueQuery(t *testing.T) {
	pages := BuildCorpus().Pages()
	require.Len(t, pages, 8)

	seen := make(map[string]bool)
	for _, p := range pages {
		require.NotEmpty(t, p.Query, "%s page %d", p.File, p.Page)
		assert.False(t, seen[p.Query], "duplicate query %q", p.Query)
		seen[p.Query] = true
		assert.Contains(t, strings.ToLower(p.Text), p.Query)
		for _, other := range pages {
			if other.File == p.File && other.Page == p.Page {
				continue
			}
			assert.NotContains(t, strings.ToLower(other.Text), p.Query)
		}
	}
}

func TestWriteFile_plainTextTakesOnePage(t *testing.T) {
	err := WriteFile(t.TempDir()+"/x.txt", "a", "b")
	require.Error(t, err)
}

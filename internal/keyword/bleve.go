package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Tornshorts/RAG-Tutorial/internal/models"
)

// chunkDoc is the shape indexed for each chunk.
type chunkDoc struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Page    float64 `json:"page"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened as-is; remove the directory after changing the mapping.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// standard analyzer: lowercase + tokenize, no stemming
	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", content)

	source := bleve.NewTextFieldMapping()
	source.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("source", source)

	docMapping.AddFieldMappingsAt("page", bleve.NewNumericFieldMapping())

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// IndexEntries indexes entries in a single batch keyed by chunk ID.
func (b *BleveIndex) IndexEntries(ctx context.Context, entries []*models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, e := range entries {
		doc := chunkDoc{Content: e.Text, Source: e.Metadata.Source, Page: float64(e.Metadata.Page)}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", e.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search runs a match (or fuzzy) query over chunk content and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	fuzziness := 0
	source := ""
	if opts != nil {
		if opts.FuzzyEnabled {
			fuzziness = 2
			if opts.Fuzziness > 0 {
				fuzziness = opts.Fuzziness
			}
		}
		source = opts.Source
	}

	var q blevequery.Query
	if fuzziness > 0 {
		q = buildFuzzyQuery(query, fuzziness, "content")
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("content")
		q = mq
	}
	if source != "" {
		sq := bleve.NewTermQuery(source)
		sq.SetField("source")
		q = bleve.NewConjunctionQuery(q, sq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery ORs one FuzzyQuery per query term, restricted to field when set.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

package models

import "path/filepath"

// SourceRef points at the page a retrieved chunk came from. Source is a base filename.
type SourceRef struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// Answer is the result of a retrieval-augmented question.
// Partial is set when retrieval succeeded but the language model did not produce Text.
type Answer struct {
	Text    string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
	Partial bool        `json:"partial,omitempty"`
}

// SourcesOf returns one SourceRef per hit, in hit order, with directories stripped.
// Duplicates are kept.
func SourcesOf(hits []*ScoredEntry) []SourceRef {
	refs := make([]SourceRef, 0, len(hits))
	for _, h := range hits {
		if h == nil || h.Entry == nil {
			continue
		}
		refs = append(refs, SourceRef{
			Source: filepath.Base(h.Entry.Metadata.Source),
			Page:   h.Entry.Metadata.Page,
		})
	}
	return refs
}

// Package search defines the text search collaborator used by the store
// and provides a small in-memory ranked index.
package search

import (
	"context"

	"github.com/roach88/nidstore/internal/nid"
)

// Result is one ranked search hit.
type Result struct {
	// Nid is the semantic holding the matched text.
	Nid nid.Nid `json:"nid"`

	// ReferencedComponentNid is the component the semantic describes.
	ReferencedComponentNid nid.Nid `json:"rc_nid"`

	// PatternNid is the pattern of the semantic.
	PatternNid nid.Nid `json:"pattern_nid"`

	// FieldIndex is the semantic field holding the text.
	FieldIndex int `json:"field_index"`

	Score float32 `json:"score"`

	// Highlighted is the field text with matched terms wrapped in <B></B>.
	Highlighted string `json:"highlighted"`
}

// Searcher answers bounded text queries.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/nidstore/internal/nid"
)

// Document is one indexed text field.
type Document struct {
	Nid                    nid.Nid
	ReferencedComponentNid nid.Nid
	PatternNid             nid.Nid
	FieldIndex             int
	Text                   string
}

type docKey struct {
	owner nid.Nid
	field int
}

// Index is an in-memory inverted index over normalized terms.
//
// Terms are NFC-normalized and case-folded. A document scores the
// fraction of distinct query terms it contains; ties are broken by nid
// then field index so results are deterministic.
//
// Thread-safety: Index is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	docs     map[docKey]Document
	postings map[string]map[docKey]struct{}
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		docs:     make(map[docKey]Document),
		postings: make(map[string]map[docKey]struct{}),
	}
}

// Add indexes d, replacing any earlier text for the same nid and field.
func (ix *Index) Add(d Document) {
	key := docKey{owner: d.Nid, field: d.FieldIndex}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if old, ok := ix.docs[key]; ok {
		ix.unpost(key, old.Text)
	}
	ix.docs[key] = d
	for _, term := range Terms(d.Text) {
		p, ok := ix.postings[term]
		if !ok {
			p = make(map[docKey]struct{})
			ix.postings[term] = p
		}
		p[key] = struct{}{}
	}
}

// Remove drops every field of nid from the index.
func (ix *Index) Remove(n nid.Nid) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for key, d := range ix.docs {
		if key.owner == n {
			ix.unpost(key, d.Text)
			delete(ix.docs, key)
		}
	}
}

func (ix *Index) unpost(key docKey, text string) {
	for _, term := range Terms(text) {
		if p, ok := ix.postings[term]; ok {
			delete(p, key)
			if len(p) == 0 {
				delete(ix.postings, term)
			}
		}
	}
}

// Len returns the number of indexed fields.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search implements Searcher.
func (ix *Index) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		return nil, fmt.Errorf("search: maxResults must be positive, got %d", maxResults)
	}
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	ix.mu.RLock()
	hits := make(map[docKey]int)
	for _, term := range terms {
		for key := range ix.postings[term] {
			hits[key]++
		}
	}
	results := make([]Result, 0, len(hits))
	for key, n := range hits {
		if err := ctx.Err(); err != nil {
			ix.mu.RUnlock()
			return nil, err
		}
		d := ix.docs[key]
		results = append(results, Result{
			Nid:                    d.Nid,
			ReferencedComponentNid: d.ReferencedComponentNid,
			PatternNid:             d.PatternNid,
			FieldIndex:             d.FieldIndex,
			Score:                  float32(n) / float32(len(terms)),
			Highlighted:            highlight(d.Text, terms),
		})
	}
	ix.mu.RUnlock()

	slices.SortFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.Nid != b.Nid:
			if a.Nid < b.Nid {
				return -1
			}
			return 1
		}
		return a.FieldIndex - b.FieldIndex
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// Terms splits text into distinct normalized terms in first-seen order.
func Terms(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) })
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		term := normalize(f)
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// Combining marks stay inside words so decomposed text normalizes whole.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

func normalize(s string) string {
	// Casers carry state, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(s))
}

func highlight(text string, terms []string) string {
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}

	var sb strings.Builder
	start := -1
	flush := func(end int) {
		word := text[start:end]
		if _, ok := want[normalize(word)]; ok {
			sb.WriteString("<B>")
			sb.WriteString(word)
			sb.WriteString("</B>")
		} else {
			sb.WriteString(word)
		}
		start = -1
	}
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			flush(i)
		}
		sb.WriteRune(r)
	}
	if start >= 0 {
		flush(len(text))
	}
	return sb.String()
}

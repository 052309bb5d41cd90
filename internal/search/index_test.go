package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nidstore/internal/nid"
)

func newTestIndex() *Index {
	ix := NewIndex()
	ix.Add(Document{Nid: 3, ReferencedComponentNid: 30, PatternNid: 100, Text: "Chronic kidney disease"})
	ix.Add(Document{Nid: 1, ReferencedComponentNid: 10, PatternNid: 100, Text: "Acute kidney injury"})
	ix.Add(Document{Nid: 2, ReferencedComponentNid: 20, PatternNid: 100, Text: "Heart disease"})
	return ix
}

func TestSearch_RanksByMatchedTerms(t *testing.T) {
	ix := newTestIndex()

	results, err := ix.Search(context.Background(), "kidney disease", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, nid.Nid(3), results[0].Nid)
	assert.Equal(t, float32(1), results[0].Score)
	assert.Equal(t, nid.Nid(30), results[0].ReferencedComponentNid)
	assert.Equal(t, "Chronic <B>kidney</B> <B>disease</B>", results[0].Highlighted)

	// Half-matches tie on score and fall back to nid order.
	assert.Equal(t, nid.Nid(1), results[1].Nid)
	assert.Equal(t, nid.Nid(2), results[2].Nid)
	assert.Equal(t, float32(0.5), results[1].Score)
}

func TestSearch_MaxResults(t *testing.T) {
	ix := newTestIndex()

	results, err := ix.Search(context.Background(), "disease kidney", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, nid.Nid(3), results[0].Nid)

	_, err = ix.Search(context.Background(), "disease", 0)
	assert.Error(t, err)
}

func TestSearch_CaseAndNormalization(t *testing.T) {
	ix := NewIndex()
	// Decomposed e + combining acute.
	ix.Add(Document{Nid: 1, Text: "Cafe\u0301 ENTRY"})

	results, err := ix.Search(context.Background(), "caf\u00e9 entry", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(1), results[0].Score)
}

func TestSearch_NoTerms(t *testing.T) {
	ix := newTestIndex()

	results, err := ix.Search(context.Background(), "  ,, ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_AddReplacesAndRemove(t *testing.T) {
	ix := newTestIndex()
	ix.Add(Document{Nid: 2, Text: "Myocardial infarction"})
	assert.Equal(t, 3, ix.Len())

	results, err := ix.Search(context.Background(), "heart", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	ix.Remove(2)
	assert.Equal(t, 2, ix.Len())
	results, err = ix.Search(context.Background(), "infarction", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_CanceledContext(t *testing.T) {
	ix := newTestIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Search(ctx, "disease", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"heart", "attack"}, Terms("Heart-attack, HEART"))
}

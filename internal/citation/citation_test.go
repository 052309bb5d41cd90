package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		a    []int64
		b    []int64
		want []int64
	}{
		{"union", []int64{1, 3, 5}, []int64{2, 3, 7}, []int64{1, 2, 3, 5, 7}},
		{"nil first", nil, []int64{1}, []int64{1}},
		{"nil second", []int64{1}, nil, []int64{1}},
		{"both nil", nil, nil, nil},
		{"equal", []int64{4, 9}, []int64{4, 9}, []int64{4, 9}},
		{"unsorted input", []int64{9, 1}, []int64{5, 1}, []int64{1, 5, 9}},
		{"empty and values", []int64{}, []int64{2, 2}, []int64{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.a, tt.b))
		})
	}
}

func TestMerge_Commutative(t *testing.T) {
	a := []int64{10, 20, 30}
	b := []int64{5, 20, 40}
	assert.Equal(t, Merge(a, b), Merge(b, a))
}

func TestMerge_Associative(t *testing.T) {
	a := []int64{1, 4}
	b := []int64{2, 4}
	c := []int64{3, 1}
	assert.Equal(t, Merge(Merge(a, b), c), Merge(a, Merge(b, c)))
}

func TestMerge_Idempotent(t *testing.T) {
	a := []int64{1, 2, 3}
	merged := Merge(a, []int64{3, 4})
	assert.Equal(t, merged, Merge(merged, merged))
	assert.Equal(t, merged, Merge(merged, []int64{4}))
}

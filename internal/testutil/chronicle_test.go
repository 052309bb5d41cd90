package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_Layout(t *testing.T) {
	v := Version(ConceptVersion, 0x01020304, 0xAA)
	assert.Equal(t, []byte{4, 1, 2, 3, 4, 0xAA}, v)
}

func TestChronicle_Layout(t *testing.T) {
	got := Chronicle(Header(ConceptChronology, 9), Version(ConceptVersion, 1))
	want := []byte{
		0, 0, 0, 2, // entries
		0, 0, 0, 7, // header length + 4
		1, 1, 9, // header
		0, 0, 0, 1, // versions
		0, 0, 0, 5, // version length
		4, 0, 0, 0, 1,
	}
	assert.Equal(t, want, got)
}

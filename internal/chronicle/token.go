package chronicle

import "fmt"

// Token is the kind byte that leads every chronicle entry.
type Token byte

const (
	ConceptChronology  Token = 1
	PatternChronology  Token = 2
	SemanticChronology Token = 3
	ConceptVersion     Token = 4
	PatternVersion     Token = 5
	SemanticVersion    Token = 6
	StampChronology    Token = 7
	StampVersion       Token = 8
)

// FormatVersion is the encoding format version written at header byte 1.
const FormatVersion byte = 1

// IsHeader reports whether t leads a chronicle header entry.
func (t Token) IsHeader() bool {
	switch t {
	case ConceptChronology, PatternChronology, SemanticChronology, StampChronology:
		return true
	}
	return false
}

// IsVersion reports whether t leads a concept, pattern or semantic
// version. Only these are pruned when their stamp is canceled; stamp
// versions are always retained.
func (t Token) IsVersion() bool {
	switch t {
	case ConceptVersion, PatternVersion, SemanticVersion:
		return true
	}
	return false
}

func (t Token) String() string {
	switch t {
	case ConceptChronology:
		return "concept"
	case PatternChronology:
		return "pattern"
	case SemanticChronology:
		return "semantic"
	case ConceptVersion:
		return "concept-version"
	case PatternVersion:
		return "pattern-version"
	case SemanticVersion:
		return "semantic-version"
	case StampChronology:
		return "stamp"
	case StampVersion:
		return "stamp-version"
	}
	return fmt.Sprintf("token(%d)", byte(t))
}

package ident

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PublicID is the set of universal ids that name one component across
// source systems.
type PublicID []uuid.UUID

// ParsePublicID parses a comma-separated list of uuids.
func ParsePublicID(s string) (PublicID, error) {
	var out PublicID
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := uuid.Parse(field)
		if err != nil {
			return nil, fmt.Errorf("parse public id %q: %w", field, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// String renders the ids in canonical order, comma-separated.
func (p PublicID) String() string {
	ids := Canonical(p)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

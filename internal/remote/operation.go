package remote

import (
	"errors"
	"fmt"
)

// Operation is the one-byte token that selects a remote operation.
type Operation byte

const (
	NidForUUIDs Operation = 1
	GetBytes    Operation = 2
	Merge       Operation = 3
)

// ErrUnknownOperation is returned for an unrecognized operation token.
var ErrUnknownOperation = errors.New("unknown remote operation")

// ParseOperation validates an operation token.
func ParseOperation(token byte) (Operation, error) {
	switch op := Operation(token); op {
	case NidForUUIDs, GetBytes, Merge:
		return op, nil
	}
	return 0, fmt.Errorf("%w: token %d", ErrUnknownOperation, token)
}

func (o Operation) String() string {
	switch o {
	case NidForUUIDs:
		return "NID_FOR_UUIDS"
	case GetBytes:
		return "GET_BYTES"
	case Merge:
		return "MERGE"
	}
	return fmt.Sprintf("OPERATION(%d)", byte(o))
}

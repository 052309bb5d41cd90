package ident

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/nidstore/internal/nid"
)

// IdentityErrorCode categorizes identity resolution failures.
type IdentityErrorCode string

const (
	// ErrCodeEmptyIdentity indicates resolution was asked for zero ids.
	ErrCodeEmptyIdentity IdentityErrorCode = "EMPTY_IDENTITY"

	// ErrCodeIdentityConflict indicates ids already map to different nids.
	ErrCodeIdentityConflict IdentityErrorCode = "IDENTITY_CONFLICT"
)

// IdentityError reports a failed resolution.
type IdentityError struct {
	Code    IdentityErrorCode
	Message string

	// IDs are the ids being resolved, in canonical order.
	IDs []uuid.UUID

	// Nids holds the two disagreeing nids for a conflict.
	Nids []nid.Nid
}

func (e *IdentityError) Error() string {
	if len(e.Nids) > 0 {
		return fmt.Sprintf("%s: %s (ids=%v, nids=%v)", e.Code, e.Message, e.IDs, e.Nids)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsEmptyIdentity reports whether err is an EMPTY_IDENTITY error.
func IsEmptyIdentity(err error) bool {
	var ie *IdentityError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeEmptyIdentity
	}
	return false
}

// IsIdentityConflict reports whether err is an IDENTITY_CONFLICT error.
func IsIdentityConflict(err error) bool {
	var ie *IdentityError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeIdentityConflict
	}
	return false
}

func newConflictError(ids []uuid.UUID, first, second nid.Nid) *IdentityError {
	return &IdentityError{
		Code:    ErrCodeIdentityConflict,
		Message: "multiple nids for one identity",
		IDs:     ids,
		Nids:    []nid.Nid{first, second},
	}
}

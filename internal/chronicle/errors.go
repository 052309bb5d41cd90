package chronicle

import (
	"errors"
	"fmt"
)

// FormatErrorCode categorizes chronicle decoding failures.
type FormatErrorCode string

const (
	// ErrCodeDataCorruption indicates malformed counts or lengths, or
	// chronicles that cannot describe the same component.
	ErrCodeDataCorruption FormatErrorCode = "DATA_CORRUPTION"

	// ErrCodeUnsupportedEncoding indicates an unknown header token or
	// encoding format version.
	ErrCodeUnsupportedEncoding FormatErrorCode = "UNSUPPORTED_ENCODING"
)

// FormatError reports a chronicle that cannot be decoded or merged.
//
// FormatErrors are raised before any output is produced, so retrying
// after the input is fixed is always safe.
type FormatError struct {
	Code FormatErrorCode

	// Message is a human-readable description.
	Message string

	// Offset is the byte offset where decoding stopped, or -1.
	Offset int
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s (offset=%d)", e.Code, e.Message, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDataCorruption reports whether err is a DATA_CORRUPTION FormatError.
func IsDataCorruption(err error) bool {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeDataCorruption
	}
	return false
}

// IsUnsupportedEncoding reports whether err is an UNSUPPORTED_ENCODING
// FormatError.
func IsUnsupportedEncoding(err error) bool {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Code == ErrCodeUnsupportedEncoding
	}
	return false
}

func corruption(offset int, format string, args ...any) *FormatError {
	return &FormatError{
		Code:    ErrCodeDataCorruption,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}

func unsupported(offset int, format string, args ...any) *FormatError {
	return &FormatError{
		Code:    ErrCodeUnsupportedEncoding,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}

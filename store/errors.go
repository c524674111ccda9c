package store

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyVector is returned when an entry or query has no components.
	ErrEmptyVector = errors.New("vector must not be empty")

	// ErrInvalidMaxResults is returned when FindOptions.MaxResults is not positive.
	ErrInvalidMaxResults = errors.New("max results must be positive")

	// ErrRelevanceMode is returned when a cutoff written for one relevance
	// mode is passed to a backend that ranks by the other.
	ErrRelevanceMode = errors.New("cutoff relevance mode does not match backend")

	// ErrMalformedRecord is returned when a remote record cannot be decoded
	// back into an Entry.
	ErrMalformedRecord = errors.New("malformed remote record")
)

// ErrDimensionMismatch indicates that a vector's length disagrees with the
// dimension established by the store's first insertion.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrCutoffMode carries the two modes of a relevance mismatch. It matches
// ErrRelevanceMode with errors.Is.
type ErrCutoffMode struct {
	Expected RelevanceMode
	Actual   RelevanceMode
}

func (e *ErrCutoffMode) Error() string {
	return fmt.Sprintf("%s: backend ranks by %s, cutoff is a %s", ErrRelevanceMode, e.Expected, e.Actual)
}

func (e *ErrCutoffMode) Unwrap() error { return ErrRelevanceMode }

// CheckDimension validates v against an established dimension. A dim of zero
// means no dimension has been established yet.
func CheckDimension(dim int, v []float32) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	if dim != 0 && len(v) != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}
	return nil
}

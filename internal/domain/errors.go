package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is returned when CreateBatch is called with no records.
var ErrEmptyBatch = errors.New("batch must contain at least one record")

// ValidationError marks a record that is missing a required field at
// commit time. Preview is permissive; CreateBatch is not.
type ValidationError struct {
	Index  int    // position of the record in the submitted batch
	Field  string // identity, category, amount or date
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d: invalid %s: %s", e.Index, e.Field, e.Reason)
}

// NotFoundError is returned for operations on an id that no longer
// exists. It is surfaced to the caller as-is; there is nothing to retry.
type NotFoundError struct {
	Entity string // "record", "batch", "expense"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

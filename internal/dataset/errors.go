package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrDataFormat marks malformed or incomplete episode records
	ErrDataFormat = errors.New("malformed episode data")
	// ErrShapeMismatch marks samples whose dimensions disagree with expectations
	ErrShapeMismatch = errors.New("shape mismatch")
)

// DataFormatError reports a record that is missing a field or has the wrong shape
type DataFormatError struct {
	Record int
	Field  string
	Reason string
}

func (e *DataFormatError) Error() string {
	if e.Record < 0 {
		return fmt.Sprintf("malformed episode data: %s", e.Reason)
	}
	return fmt.Sprintf("malformed episode data: record %d field %q: %s", e.Record, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrDataFormat
func (e *DataFormatError) Unwrap() error {
	return ErrDataFormat
}

// ShapeMismatchError reports a dimension that does not match what was expected
type ShapeMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s is %d, want %d", e.What, e.Got, e.Want)
}

// Unwrap lets errors.Is match ErrShapeMismatch
func (e *ShapeMismatchError) Unwrap() error {
	return ErrShapeMismatch
}

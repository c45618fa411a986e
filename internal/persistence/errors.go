package persistence

import (
	"errors"
	"fmt"
)

// ErrFormatMismatch marks artifacts that cannot be loaded into the requested architecture
var ErrFormatMismatch = errors.New("artifact format mismatch")

// IOError reports a failed filesystem operation on an artifact
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes the underlying cause, e.g. fs.ErrNotExist
func (e *IOError) Unwrap() error {
	return e.Err
}

// FormatMismatchError reports an artifact whose encoding or shape disagrees
// with what the caller asked for
type FormatMismatchError struct {
	Path  string
	Field string
	Want  string
	Got   string
}

func (e *FormatMismatchError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("artifact %s: %s: %s", e.Path, e.Field, e.Got)
	}
	return fmt.Sprintf("artifact %s: %s is %s, want %s", e.Path, e.Field, e.Got, e.Want)
}

// Unwrap lets errors.Is match ErrFormatMismatch
func (e *FormatMismatchError) Unwrap() error {
	return ErrFormatMismatch
}

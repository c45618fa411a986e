package gan

import (
	"errors"
	"fmt"
)

var (
	// ErrNumericDivergence marks a non-finite loss during training
	ErrNumericDivergence = errors.New("numeric divergence")
	// ErrNoBatches is returned when a run with epochs to do has no data
	ErrNoBatches = errors.New("batch source yielded no batches")
)

// NumericDivergenceError reports the step at which a loss stopped being finite
type NumericDivergenceError struct {
	Epoch   int
	Batch   int
	Network string
	Value   float64
}

func (e *NumericDivergenceError) Error() string {
	return fmt.Sprintf("numeric divergence: %s loss is %v at epoch %d batch %d", e.Network, e.Value, e.Epoch, e.Batch)
}

// Unwrap lets errors.Is match ErrNumericDivergence
func (e *NumericDivergenceError) Unwrap() error {
	return ErrNumericDivergence
}

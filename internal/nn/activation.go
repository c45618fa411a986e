package nn

import (
	"fmt"

	"gorgonia.org/gorgonia"
)

// Activation identifies the nonlinearity applied after a dense transform
type Activation uint8

const (
	// Identity passes the pre-activation through unchanged
	Identity Activation = iota
	// ReLU is the rectified linear unit
	ReLU
	// Tanh saturates to (-1, 1)
	Tanh
	// Sigmoid saturates to (0, 1)
	Sigmoid
)

// String returns the activation name
func (a Activation) String() string {
	switch a {
	case Identity:
		return "identity"
	case ReLU:
		return "relu"
	case Tanh:
		return "tanh"
	case Sigmoid:
		return "sigmoid"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// Valid reports whether a is a known activation
func (a Activation) Valid() bool {
	return a <= Sigmoid
}

// Apply adds the activation of x to x's graph
func (a Activation) Apply(x *gorgonia.Node) (*gorgonia.Node, error) {
	switch a {
	case Identity:
		return x, nil
	case ReLU:
		return gorgonia.Rectify(x)
	case Tanh:
		return gorgonia.Tanh(x)
	case Sigmoid:
		return gorgonia.Sigmoid(x)
	default:
		return nil, fmt.Errorf("unknown activation %d", a)
	}
}

package nn

import (
	"errors"
	"fmt"

	"gorgonia.org/gorgonia"
)

// AdamConfig holds optimizer hyperparameters
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultAdamConfig returns the settings used for adversarial training
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.0002,
		Beta1:        0.5,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Validate checks hyperparameter ranges
func (c AdamConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return fmt.Errorf("beta1 must be in [0, 1)")
	}
	if c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("beta2 must be in [0, 1)")
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive")
	}
	return nil
}

// ErrForeignBinding is returned when an optimizer is stepped with another
// network's parameters
var ErrForeignBinding = errors.New("binding belongs to a different network")

// Adam keeps the moment estimates of one network across graphs. The solver
// cache is positional, so every step must pass that network's Binding.
type Adam struct {
	config AdamConfig
	net    *Network
	solver *gorgonia.AdamSolver
	steps  int
}

// NewAdam creates an optimizer for net with zeroed moment estimates
func NewAdam(net *Network, config AdamConfig) *Adam {
	return &Adam{
		config: config,
		net:    net,
		solver: gorgonia.NewAdamSolver(
			gorgonia.WithLearnRate(config.LearningRate),
			gorgonia.WithBeta1(config.Beta1),
			gorgonia.WithBeta2(config.Beta2),
			gorgonia.WithEps(config.Epsilon),
		),
	}
}

// Steps returns how many updates have been applied
func (a *Adam) Steps() int {
	return a.steps
}

// Config returns the optimizer hyperparameters
func (a *Adam) Config() AdamConfig {
	return a.config
}

// Step applies one bias-corrected Adam update from the gradients computed by
// Backprop, then writes the new values back into the network
func (a *Adam) Step(b *Binding) error {
	if b.net != a.net {
		return ErrForeignBinding
	}
	if err := a.solver.Step(gorgonia.NodesToValueGrads(b.Learnables())); err != nil {
		return fmt.Errorf("adam step: %w", err)
	}
	a.steps++
	return b.commit()
}

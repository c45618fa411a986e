package gan

import (
	"fmt"
	"slices"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/nn"
)

// Architecture is the single shape descriptor shared by training, serving and
// replay. Two networks built from equal descriptors are interchangeable.
type Architecture struct {
	PathLength          int
	NoiseDim            int
	GeneratorHidden     []int
	DiscriminatorHidden []int
	// UsePaddingMask feeds a per-step real/padding channel to the discriminator
	UsePaddingMask bool
}

// DefaultArchitecture returns the standard layout for the given path length
func DefaultArchitecture(pathLength int) Architecture {
	return Architecture{
		PathLength:          pathLength,
		NoiseDim:            16,
		GeneratorHidden:     []int{128, 256},
		DiscriminatorHidden: []int{256, 128},
	}
}

// Validate checks every dimension is usable
func (a Architecture) Validate() error {
	if a.PathLength <= 0 {
		return fmt.Errorf("path_length must be positive, got %d", a.PathLength)
	}
	if a.NoiseDim <= 0 {
		return fmt.Errorf("noise_dim must be positive, got %d", a.NoiseDim)
	}
	if len(a.GeneratorHidden) == 0 {
		return fmt.Errorf("generator needs at least one hidden layer")
	}
	if len(a.DiscriminatorHidden) == 0 {
		return fmt.Errorf("discriminator needs at least one hidden layer")
	}
	for i, w := range a.GeneratorHidden {
		if w <= 0 {
			return fmt.Errorf("generator hidden layer %d width must be positive, got %d", i, w)
		}
	}
	for i, w := range a.DiscriminatorHidden {
		if w <= 0 {
			return fmt.Errorf("discriminator hidden layer %d width must be positive, got %d", i, w)
		}
	}
	return nil
}

// Equal reports whether two descriptors produce identical shapes
func (a Architecture) Equal(b Architecture) bool {
	return a.PathLength == b.PathLength &&
		a.NoiseDim == b.NoiseDim &&
		a.UsePaddingMask == b.UsePaddingMask &&
		slices.Equal(a.GeneratorHidden, b.GeneratorHidden) &&
		slices.Equal(a.DiscriminatorHidden, b.DiscriminatorHidden)
}

// String is a compact human readable form used in logs and errors
func (a Architecture) String() string {
	return fmt.Sprintf("path_length=%d noise_dim=%d generator=%v discriminator=%v mask=%t",
		a.PathLength, a.NoiseDim, a.GeneratorHidden, a.DiscriminatorHidden, a.UsePaddingMask)
}

// SequenceWidth is the flattened width of one move sequence
func (a Architecture) SequenceWidth() int {
	return a.PathLength * 2
}

// GeneratorInputWidth is context plus noise
func (a Architecture) GeneratorInputWidth() int {
	return dataset.ContextSize + a.NoiseDim
}

// DiscriminatorInputWidth is sequence plus context, plus the mask when enabled
func (a Architecture) DiscriminatorInputWidth() int {
	w := a.SequenceWidth() + dataset.ContextSize
	if a.UsePaddingMask {
		w += a.PathLength
	}
	return w
}

// GeneratorLayers lists the generator's dense layers after the input
func (a Architecture) GeneratorLayers() []nn.LayerSpec {
	specs := make([]nn.LayerSpec, 0, len(a.GeneratorHidden)+1)
	for _, w := range a.GeneratorHidden {
		specs = append(specs, nn.LayerSpec{Out: w, Activation: nn.ReLU})
	}
	return append(specs, nn.LayerSpec{Out: a.SequenceWidth(), Activation: nn.Tanh})
}

// DiscriminatorLayers lists the discriminator's dense layers after the input.
// The last layer emits a raw logit; Classify applies the sigmoid.
func (a Architecture) DiscriminatorLayers() []nn.LayerSpec {
	specs := make([]nn.LayerSpec, 0, len(a.DiscriminatorHidden)+1)
	for _, w := range a.DiscriminatorHidden {
		specs = append(specs, nn.LayerSpec{Out: w, Activation: nn.ReLU})
	}
	return append(specs, nn.LayerSpec{Out: 1, Activation: nn.Identity})
}

// checkNetwork verifies that net has exactly the layers described by specs
func checkNetwork(net *nn.Network, in int, specs []nn.LayerSpec) error {
	if err := net.Validate(); err != nil {
		return err
	}
	if len(net.Layers) != len(specs) {
		return fmt.Errorf("network has %d layers, architecture wants %d", len(net.Layers), len(specs))
	}
	width := in
	for i, l := range net.Layers {
		if l.In != width || l.Out != specs[i].Out {
			return fmt.Errorf("layer %d is %dx%d, architecture wants %dx%d", i, l.In, l.Out, width, specs[i].Out)
		}
		if l.Activation != specs[i].Activation {
			return fmt.Errorf("layer %d activation is %s, architecture wants %s", i, l.Activation, specs[i].Activation)
		}
		width = l.Out
	}
	return nil
}

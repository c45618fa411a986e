package gan

import (
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/gorgonia"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/nn"
)

var (
	minProb = math.Nextafter(0, 1)
	maxProb = math.Nextafter(1, 0)
)

// Discriminator scores (sequence, context) pairs with the probability that
// the sequence was recorded rather than generated
type Discriminator struct {
	arch Architecture
	net  *nn.Network
}

// NewDiscriminator builds a freshly initialised discriminator
func NewDiscriminator(arch Architecture, rng *rand.Rand) (*Discriminator, error) {
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid architecture: %w", err)
	}
	net, err := nn.NewNetwork(arch.DiscriminatorInputWidth(), arch.DiscriminatorLayers(), rng)
	if err != nil {
		return nil, err
	}
	return &Discriminator{arch: arch, net: net}, nil
}

// Architecture returns the descriptor the discriminator was built from
func (d *Discriminator) Architecture() Architecture {
	return d.arch
}

// Network exposes the underlying parameters
func (d *Discriminator) Network() *nn.Network {
	return d.net
}

// Classify returns one probability in (0, 1) per row. mask is only read when
// the architecture enables the padding mask; nil means every step is real.
// Steps whose mask is 0 are zeroed before scoring, so only the unmasked
// prefix of a sequence affects the result.
func (d *Discriminator) Classify(sequence, context, mask *nn.Matrix) ([]float64, error) {
	if err := d.checkInputs(sequence, context, mask); err != nil {
		return nil, err
	}
	graph := gorgonia.NewGraph()
	params := d.net.Bind(graph, "disc")
	logits, err := d.logits(graph, params, "input", nn.Input(graph, "input.sequence", sequence), context, mask)
	if err != nil {
		return nil, err
	}
	scores, err := gorgonia.Sigmoid(logits)
	if err != nil {
		return nil, err
	}
	vm, err := nn.Run(graph)
	if err != nil {
		return nil, err
	}
	defer vm.Close()

	out, err := nn.Output(scores)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, out.Rows)
	for i := range probs {
		probs[i] = math.Min(math.Max(out.Data[i], minProb), maxProb)
	}
	return probs, nil
}

// logits adds the discriminator's scoring of seq to graph, one logit per row.
// Inputs of one call are named after name so a graph can score several
// batches with the same params. With the padding mask enabled the sequence is
// gated step by step and the mask itself is appended as a feature channel.
func (d *Discriminator) logits(graph *gorgonia.ExprGraph, params *nn.Binding, name string, seq *gorgonia.Node, context, mask *nn.Matrix) (*gorgonia.Node, error) {
	ctx := nn.Input(graph, name+".context", context)
	parts := []*gorgonia.Node{seq, ctx}
	if d.arch.UsePaddingMask {
		rows := seq.Shape()[0]
		if mask == nil {
			mask = nn.NewMatrix(rows, d.arch.PathLength)
			mask.Fill(1)
		}
		gated, err := gorgonia.HadamardProd(seq, nn.Input(graph, name+".gate", stepGate(mask)))
		if err != nil {
			return nil, err
		}
		parts = []*gorgonia.Node{gated, ctx, nn.Input(graph, name+".mask", mask)}
	}

	in, err := gorgonia.Concat(1, parts...)
	if err != nil {
		return nil, err
	}
	return params.Apply(in)
}

// stepGate widens a batch x path_length mask to cover both coordinates of
// every step
func stepGate(mask *nn.Matrix) *nn.Matrix {
	gate := nn.NewMatrix(mask.Rows, mask.Cols*2)
	for r := 0; r < mask.Rows; r++ {
		row := gate.Row(r)
		for j, v := range mask.Row(r) {
			row[2*j] = v
			row[2*j+1] = v
		}
	}
	return gate
}

func (d *Discriminator) checkInputs(sequence, context, mask *nn.Matrix) error {
	if sequence.Cols != d.arch.SequenceWidth() {
		return &dataset.ShapeMismatchError{What: "sequence width", Want: d.arch.SequenceWidth(), Got: sequence.Cols}
	}
	if context.Cols != dataset.ContextSize {
		return &dataset.ShapeMismatchError{What: "context width", Want: dataset.ContextSize, Got: context.Cols}
	}
	if context.Rows != sequence.Rows {
		return &dataset.ShapeMismatchError{What: "context rows", Want: sequence.Rows, Got: context.Rows}
	}
	if !d.arch.UsePaddingMask || mask == nil {
		return nil
	}
	if mask.Cols != d.arch.PathLength {
		return &dataset.ShapeMismatchError{What: "mask width", Want: d.arch.PathLength, Got: mask.Cols}
	}
	if mask.Rows != sequence.Rows {
		return &dataset.ShapeMismatchError{What: "mask rows", Want: sequence.Rows, Got: mask.Rows}
	}
	return nil
}

package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Dense is a fully connected layer: out = act(in·W + b).
// Weights are stored row-major as In rows of Out columns.
type Dense struct {
	In         int
	Out        int
	Weights    []float64
	Bias       []float64
	Activation Activation
}

// NewDense creates a layer initialised uniformly in ±1/sqrt(in)
func NewDense(in, out int, act Activation, rng *rand.Rand) *Dense {
	d := &Dense{
		In:         in,
		Out:        out,
		Weights:    make([]float64, in*out),
		Bias:       make([]float64, out),
		Activation: act,
	}
	bound := 1 / math.Sqrt(float64(in))
	for i := range d.Weights {
		d.Weights[i] = (rng.Float64()*2 - 1) * bound
	}
	for i := range d.Bias {
		d.Bias[i] = (rng.Float64()*2 - 1) * bound
	}
	return d
}

// LayerSpec describes one layer of a network to be built
type LayerSpec struct {
	Out        int
	Activation Activation
}

// Network is a stack of dense layers. The slices are the source of truth:
// every evaluation binds a copy onto a fresh graph, so one network can be
// evaluated from several goroutines at once.
type Network struct {
	Layers []*Dense
}

// NewNetwork builds a network that accepts inputs of width in
func NewNetwork(in int, specs []LayerSpec, rng *rand.Rand) (*Network, error) {
	if in <= 0 {
		return nil, fmt.Errorf("input width must be positive, got %d", in)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("network needs at least one layer")
	}

	n := &Network{Layers: make([]*Dense, 0, len(specs))}
	width := in
	for i, spec := range specs {
		if spec.Out <= 0 {
			return nil, fmt.Errorf("layer %d width must be positive, got %d", i, spec.Out)
		}
		n.Layers = append(n.Layers, NewDense(width, spec.Out, spec.Activation, rng))
		width = spec.Out
	}
	return n, nil
}

// Validate checks that consecutive layers connect and parameter slices are sized
func (n *Network) Validate() error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("network has no layers")
	}
	for i, l := range n.Layers {
		if len(l.Weights) != l.In*l.Out {
			return fmt.Errorf("%w: layer %d has %d weights, want %d", ErrShape, i, len(l.Weights), l.In*l.Out)
		}
		if len(l.Bias) != l.Out {
			return fmt.Errorf("%w: layer %d has %d biases, want %d", ErrShape, i, len(l.Bias), l.Out)
		}
		if !l.Activation.Valid() {
			return fmt.Errorf("layer %d has unknown activation %d", i, l.Activation)
		}
		if i > 0 && n.Layers[i-1].Out != l.In {
			return fmt.Errorf("%w: layer %d expects %d inputs, previous layer emits %d", ErrShape, i, l.In, n.Layers[i-1].Out)
		}
	}
	return nil
}

// InputSize is the width of accepted inputs
func (n *Network) InputSize() int {
	return n.Layers[0].In
}

// OutputSize is the width of produced outputs
func (n *Network) OutputSize() int {
	return n.Layers[len(n.Layers)-1].Out
}

// ParameterCount returns the number of trainable scalars
func (n *Network) ParameterCount() int {
	total := 0
	for _, l := range n.Layers {
		total += len(l.Weights) + len(l.Bias)
	}
	return total
}

// Parameters returns a flat copy of every weight and bias, layer by layer
func (n *Network) Parameters() []float64 {
	out := make([]float64, 0, n.ParameterCount())
	for _, l := range n.Layers {
		out = append(out, l.Weights...)
		out = append(out, l.Bias...)
	}
	return out
}

// Clone returns a deep copy of the network
func (n *Network) Clone() *Network {
	c := &Network{Layers: make([]*Dense, len(n.Layers))}
	for i, l := range n.Layers {
		c.Layers[i] = &Dense{
			In:         l.In,
			Out:        l.Out,
			Weights:    append([]float64(nil), l.Weights...),
			Bias:       append([]float64(nil), l.Bias...),
			Activation: l.Activation,
		}
	}
	return c
}

// Forward evaluates the network on a batch
func (n *Network) Forward(x *Matrix) (*Matrix, error) {
	g := gorgonia.NewGraph()
	out, err := n.Bind(g, "net").Apply(Input(g, "input", x))
	if err != nil {
		return nil, err
	}
	vm, err := Run(g)
	if err != nil {
		return nil, err
	}
	defer vm.Close()
	return Output(out)
}

// Binding is a network's parameters placed on one expression graph
type Binding struct {
	net     *Network
	weights gorgonia.Nodes
	biases  gorgonia.Nodes
}

// Bind adds one weight and one bias node per layer to g, named after prefix.
// Applying the binding several times shares the parameters.
func (n *Network) Bind(g *gorgonia.ExprGraph, prefix string) *Binding {
	b := &Binding{
		net:     n,
		weights: make(gorgonia.Nodes, len(n.Layers)),
		biases:  make(gorgonia.Nodes, len(n.Layers)),
	}
	for i, l := range n.Layers {
		b.weights[i] = gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(l.In, l.Out),
			gorgonia.WithName(fmt.Sprintf("%s.w%d", prefix, i)),
			gorgonia.WithValue(dense(l.In, l.Out, l.Weights)),
		)
		b.biases[i] = gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(1, l.Out),
			gorgonia.WithName(fmt.Sprintf("%s.b%d", prefix, i)),
			gorgonia.WithValue(dense(1, l.Out, l.Bias)),
		)
	}
	return b
}

// Apply adds the network's forward pass on x to the graph
func (b *Binding) Apply(x *gorgonia.Node) (*gorgonia.Node, error) {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != b.net.InputSize() {
		return nil, fmt.Errorf("%w: input has shape %v, network expects %d columns", ErrShape, shape, b.net.InputSize())
	}

	cur := x
	for i, l := range b.net.Layers {
		xw, err := gorgonia.Mul(cur, b.weights[i])
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		z, err := gorgonia.BroadcastAdd(xw, b.biases[i], nil, []byte{0})
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if cur, err = l.Activation.Apply(z); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return cur, nil
}

// Learnables lists the parameter nodes in layer order, weights before bias
func (b *Binding) Learnables() gorgonia.Nodes {
	out := make(gorgonia.Nodes, 0, 2*len(b.weights))
	for i := range b.weights {
		out = append(out, b.weights[i], b.biases[i])
	}
	return out
}

// commit copies the graph's parameter values back into the network
func (b *Binding) commit() error {
	for i, l := range b.net.Layers {
		w, err := values(b.weights[i])
		if err != nil {
			return err
		}
		bias, err := values(b.biases[i])
		if err != nil {
			return err
		}
		if len(w) != len(l.Weights) || len(bias) != len(l.Bias) {
			return fmt.Errorf("%w: layer %d changed size on the graph", ErrShape, i)
		}
		copy(l.Weights, w)
		copy(l.Bias, bias)
	}
	return nil
}

// Run evaluates every node of g. Gradients are kept for learnables, which
// must already have been differentiated with gorgonia.Grad. Values stay
// readable until the returned machine is closed.
func Run(g *gorgonia.ExprGraph, learnables ...*gorgonia.Node) (gorgonia.VM, error) {
	var opts []gorgonia.VMOpt
	if len(learnables) > 0 {
		opts = append(opts, gorgonia.BindDualValues(learnables...))
	}
	vm := gorgonia.NewTapeMachine(g, opts...)
	if err := vm.RunAll(); err != nil {
		vm.Close()
		return nil, fmt.Errorf("running graph: %w", err)
	}
	return vm, nil
}

// Backprop differentiates cost w.r.t. b's parameters only and runs the graph.
// Other bindings on the same graph are evaluated but stay frozen.
func Backprop(g *gorgonia.ExprGraph, cost *gorgonia.Node, b *Binding) (gorgonia.VM, error) {
	if !cost.IsScalar() {
		return nil, errors.New("cost must be a scalar")
	}
	learnables := b.Learnables()
	if _, err := gorgonia.Grad(cost, learnables...); err != nil {
		return nil, fmt.Errorf("differentiating cost: %w", err)
	}
	return Run(g, learnables...)
}

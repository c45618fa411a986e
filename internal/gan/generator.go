package gan

import (
	"fmt"
	"math/rand"

	"gorgonia.org/gorgonia"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/nn"
)

// Generator maps (context, noise) to a fixed-length move sequence in [-1, 1]
type Generator struct {
	arch Architecture
	net  *nn.Network
}

// NewGenerator builds a freshly initialised generator
func NewGenerator(arch Architecture, rng *rand.Rand) (*Generator, error) {
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid architecture: %w", err)
	}
	net, err := nn.NewNetwork(arch.GeneratorInputWidth(), arch.GeneratorLayers(), rng)
	if err != nil {
		return nil, err
	}
	return &Generator{arch: arch, net: net}, nil
}

// GeneratorFromNetwork wraps existing parameters, checking they fit arch
func GeneratorFromNetwork(arch Architecture, net *nn.Network) (*Generator, error) {
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid architecture: %w", err)
	}
	if err := checkNetwork(net, arch.GeneratorInputWidth(), arch.GeneratorLayers()); err != nil {
		return nil, fmt.Errorf("generator parameters do not fit architecture: %w", err)
	}
	return &Generator{arch: arch, net: net}, nil
}

// Architecture returns the descriptor the generator was built from
func (g *Generator) Architecture() Architecture {
	return g.arch
}

// Network exposes the underlying parameters
func (g *Generator) Network() *nn.Network {
	return g.net
}

// Generate produces a batch x (path_length*2) matrix of coordinates in [-1, 1]
func (g *Generator) Generate(context, noise *nn.Matrix) (*nn.Matrix, error) {
	graph := gorgonia.NewGraph()
	out, _, err := g.build(graph, context, noise)
	if err != nil {
		return nil, err
	}
	vm, err := nn.Run(graph)
	if err != nil {
		return nil, err
	}
	defer vm.Close()
	return nn.Output(out)
}

// build places the generator on graph and returns its output node together
// with the parameter binding
func (g *Generator) build(graph *gorgonia.ExprGraph, context, noise *nn.Matrix) (*gorgonia.Node, *nn.Binding, error) {
	if err := g.checkInputs(context, noise); err != nil {
		return nil, nil, err
	}
	in, err := gorgonia.Concat(1, nn.Input(graph, "gen.context", context), nn.Input(graph, "gen.noise", noise))
	if err != nil {
		return nil, nil, err
	}
	params := g.net.Bind(graph, "gen")
	out, err := params.Apply(in)
	if err != nil {
		return nil, nil, err
	}
	return out, params, nil
}

func (g *Generator) checkInputs(context, noise *nn.Matrix) error {
	if context.Cols != dataset.ContextSize {
		return &dataset.ShapeMismatchError{What: "context width", Want: dataset.ContextSize, Got: context.Cols}
	}
	if noise.Cols != g.arch.NoiseDim {
		return &dataset.ShapeMismatchError{What: "noise width", Want: g.arch.NoiseDim, Got: noise.Cols}
	}
	if noise.Rows != context.Rows {
		return &dataset.ShapeMismatchError{What: "noise rows", Want: context.Rows, Got: noise.Rows}
	}
	return nil
}

// GeneratePaths samples fresh noise and returns one path per context row
func (g *Generator) GeneratePaths(context *nn.Matrix, rng *rand.Rand) ([][]dataset.Coord, error) {
	out, err := g.Generate(context, SampleNoise(rng, context.Rows, g.arch.NoiseDim))
	if err != nil {
		return nil, err
	}
	return Paths(out), nil
}

// SampleNoise draws a rows x dim matrix of standard normal values
func SampleNoise(rng *rand.Rand, rows, dim int) *nn.Matrix {
	m := nn.NewMatrix(rows, dim)
	for i := range m.Data {
		m.Data[i] = rng.NormFloat64()
	}
	return m
}

// Paths reshapes flattened sequences into coordinate pairs
func Paths(seq *nn.Matrix) [][]dataset.Coord {
	paths := make([][]dataset.Coord, seq.Rows)
	for r := range paths {
		row := seq.Row(r)
		path := make([]dataset.Coord, len(row)/2)
		for j := range path {
			path[j] = dataset.Coord{X: row[2*j], Y: row[2*j+1]}
		}
		paths[r] = path
	}
	return paths
}

// ContextMatrix stacks start/end pairs into a batch x 4 context matrix
func ContextMatrix(starts, ends []dataset.Coord) (*nn.Matrix, error) {
	if len(starts) != len(ends) {
		return nil, &dataset.ShapeMismatchError{What: "end position count", Want: len(starts), Got: len(ends)}
	}
	m := nn.NewMatrix(len(starts), dataset.ContextSize)
	for i := range starts {
		copy(m.Row(i), []float64{starts[i].X, starts[i].Y, ends[i].X, ends[i].Y})
	}
	return m, nil
}

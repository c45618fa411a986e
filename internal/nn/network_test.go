package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
)

func newTestNetwork(t *testing.T, seed int64) *Network {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	net, err := NewNetwork(3, []LayerSpec{
		{Out: 5, Activation: ReLU},
		{Out: 4, Activation: Tanh},
		{Out: 2, Activation: Identity},
	}, rng)
	require.NoError(t, err)
	return net
}

func TestNewNetwork(t *testing.T) {
	net := newTestNetwork(t, 1)

	assert.Equal(t, 3, net.InputSize())
	assert.Equal(t, 2, net.OutputSize())
	assert.Equal(t, 3*5+5+5*4+4+4*2+2, net.ParameterCount())
	assert.NoError(t, net.Validate())

	bound := 1 / math.Sqrt(3)
	for _, w := range net.Layers[0].Weights {
		assert.LessOrEqual(t, math.Abs(w), bound)
	}
}

func TestNewNetworkRejectsBadWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := NewNetwork(0, []LayerSpec{{Out: 1}}, rng)
	assert.Error(t, err)

	_, err = NewNetwork(2, nil, rng)
	assert.Error(t, err)

	_, err = NewNetwork(2, []LayerSpec{{Out: 0}}, rng)
	assert.Error(t, err)
}

func TestForwardRejectsWrongWidth(t *testing.T) {
	net := newTestNetwork(t, 1)
	_, err := net.Forward(NewMatrix(2, 4))
	assert.ErrorIs(t, err, ErrShape)
}

func TestForwardKnownValues(t *testing.T) {
	// Weights are In rows of Out columns
	net := &Network{Layers: []*Dense{{
		In: 2, Out: 2,
		Weights:    []float64{1, 2, 3, 4},
		Bias:       []float64{0.5, -1},
		Activation: Identity,
	}}}
	x, err := FromRows([][]float64{{1, 2}, {-1, 0}})
	require.NoError(t, err)

	out, err := net.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Rows)
	assert.Equal(t, 2, out.Cols)
	assert.InDeltaSlice(t, []float64{7.5, 9, -0.5, -3}, out.Data, 1e-12)
}

func TestActivations(t *testing.T) {
	x, err := FromRows([][]float64{{-3, 0, 2, 50}})
	require.NoError(t, err)
	eye := []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}

	tests := []struct {
		act  Activation
		want []float64
	}{
		{Identity, []float64{-3, 0, 2, 50}},
		{ReLU, []float64{0, 0, 2, 50}},
		{Tanh, []float64{math.Tanh(-3), 0, math.Tanh(2), 1}},
		{Sigmoid, []float64{1 / (1 + math.Exp(3)), 0.5, 1 / (1 + math.Exp(-2)), 1}},
	}
	for _, tt := range tests {
		t.Run(tt.act.String(), func(t *testing.T) {
			net := &Network{Layers: []*Dense{{
				In: 4, Out: 4,
				Weights:    eye,
				Bias:       make([]float64, 4),
				Activation: tt.act,
			}}}
			out, err := net.Forward(x)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, out.Data, 1e-9)
		})
	}

	assert.Equal(t, "Unknown(99)", Activation(99).String())
	assert.False(t, Activation(99).Valid())
}

func TestForwardIsDeterministic(t *testing.T) {
	net := newTestNetwork(t, 7)
	x, err := FromRows([][]float64{{0.1, -0.4, 2}, {1, 1, 1}})
	require.NoError(t, err)

	a, err := net.Forward(x)
	require.NoError(t, err)
	b, err := net.Forward(x)
	require.NoError(t, err)

	assert.Equal(t, a.Data, b.Data)
	assert.Equal(t, 2, a.Rows)
	assert.Equal(t, 2, a.Cols)
}

// meanOutput is the cost used by the gradient tests
func meanOutput(t *testing.T, net *Network, x *Matrix) float64 {
	t.Helper()
	out, err := net.Forward(x)
	require.NoError(t, err)
	sum := 0.0
	for _, v := range out.Data {
		sum += v
	}
	return sum / float64(len(out.Data))
}

func TestBackpropMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net, err := NewNetwork(3, []LayerSpec{
		{Out: 4, Activation: Tanh},
		{Out: 2, Activation: Identity},
	}, rng)
	require.NoError(t, err)
	x, err := FromRows([][]float64{{0.3, -0.2, 0.9}, {-1, 0.5, 0.1}})
	require.NoError(t, err)

	g := gorgonia.NewGraph()
	params := net.Bind(g, "net")
	out, err := params.Apply(Input(g, "x", x))
	require.NoError(t, err)
	cost, err := gorgonia.Mean(out)
	require.NoError(t, err)
	vm, err := Backprop(g, cost, params)
	require.NoError(t, err)
	defer vm.Close()

	loss, err := Scalar(cost)
	require.NoError(t, err)
	assert.InDelta(t, meanOutput(t, net, x), loss, 1e-12)

	const h = 1e-6
	for i, node := range params.Learnables() {
		grad, err := node.Grad()
		require.NoError(t, err)
		analytic := grad.Data().([]float64)

		l := net.Layers[i/2]
		slot := l.Weights
		if i%2 == 1 {
			slot = l.Bias
		}
		require.Len(t, analytic, len(slot))
		for j := range slot {
			orig := slot[j]
			slot[j] = orig + h
			up := meanOutput(t, net, x)
			slot[j] = orig - h
			down := meanOutput(t, net, x)
			slot[j] = orig

			assert.InDelta(t, (up-down)/(2*h), analytic[j], 1e-6, "%s[%d]", node.Name(), j)
		}
	}
}

func TestBackpropFreezesOtherBindings(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	first, err := NewNetwork(2, []LayerSpec{{Out: 3, Activation: Tanh}}, rng)
	require.NoError(t, err)
	second, err := NewNetwork(3, []LayerSpec{{Out: 1, Activation: Identity}}, rng)
	require.NoError(t, err)
	x, err := FromRows([][]float64{{1, -1}, {0.5, 2}})
	require.NoError(t, err)

	firstBefore := first.Parameters()
	secondBefore := second.Parameters()

	g := gorgonia.NewGraph()
	a := first.Bind(g, "first")
	b := second.Bind(g, "second")
	hidden, err := a.Apply(Input(g, "x", x))
	require.NoError(t, err)
	out, err := b.Apply(hidden)
	require.NoError(t, err)
	cost, err := BCEWithLogits(out, 1)
	require.NoError(t, err)

	vm, err := Backprop(g, cost, b)
	require.NoError(t, err)
	defer vm.Close()
	require.NoError(t, NewAdam(second, DefaultAdamConfig()).Step(b))

	assert.Equal(t, firstBefore, first.Parameters())
	assert.NotEqual(t, secondBefore, second.Parameters())
}

func TestBackpropRejectsNonScalarCost(t *testing.T) {
	net := newTestNetwork(t, 1)
	g := gorgonia.NewGraph()
	params := net.Bind(g, "net")
	out, err := params.Apply(Input(g, "x", NewMatrix(2, 3)))
	require.NoError(t, err)

	_, err = Backprop(g, out, params)
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	net := newTestNetwork(t, 9)
	c := net.Clone()
	c.Layers[0].Weights[0] += 1

	assert.NotEqual(t, net.Layers[0].Weights[0], c.Layers[0].Weights[0])
	assert.Equal(t, net.ParameterCount(), c.ParameterCount())
}

func TestValidateDetectsBrokenChain(t *testing.T) {
	net := newTestNetwork(t, 2)
	net.Layers[1].In = 7
	assert.Error(t, net.Validate())

	net = newTestNetwork(t, 2)
	net.Layers[0].Bias = net.Layers[0].Bias[:1]
	assert.ErrorIs(t, net.Validate(), ErrShape)

	net = newTestNetwork(t, 2)
	net.Layers[2].Activation = Activation(42)
	assert.Error(t, net.Validate())
}

func TestMatrixHelpers(t *testing.T) {
	m, err := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, m.At(1, 0))

	m.Set(0, 1, 9)
	assert.Equal(t, []float64{1, 9}, m.Row(0))

	c := m.Clone()
	c.Fill(0)
	assert.Equal(t, []float64{1, 9, 3, 4}, m.Data)

	tt := m.Tensor()
	assert.Equal(t, []int{2, 2}, []int(tt.Shape()))
	tt.Data().([]float64)[0] = 100
	assert.Equal(t, 1.0, m.At(0, 0), "tensor holds a copy")

	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrShape)
}

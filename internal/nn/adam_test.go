package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
)

// stepMeanOutput runs one optimizer step that lowers the mean output of net on x
func stepMeanOutput(t *testing.T, net *Network, opt *Adam, x *Matrix) {
	t.Helper()
	g := gorgonia.NewGraph()
	params := net.Bind(g, "net")
	out, err := params.Apply(Input(g, "x", x))
	require.NoError(t, err)
	cost, err := gorgonia.Mean(out)
	require.NoError(t, err)
	vm, err := Backprop(g, cost, params)
	require.NoError(t, err)
	defer vm.Close()
	require.NoError(t, opt.Step(params))
}

func TestAdamFirstStepMovesByLearningRate(t *testing.T) {
	net := &Network{Layers: []*Dense{{
		In: 2, Out: 1,
		Weights: []float64{1, -1},
		Bias:    []float64{0},
	}}}
	cfg := DefaultAdamConfig()
	cfg.LearningRate = 0.1
	opt := NewAdam(net, cfg)

	x, err := FromRows([][]float64{{1, 2}})
	require.NoError(t, err)
	stepMeanOutput(t, net, opt, x)

	// Every gradient is positive and bias correction makes the first
	// step lr * sign(g)
	assert.InDelta(t, 0.9, net.Layers[0].Weights[0], 1e-6)
	assert.InDelta(t, -1.1, net.Layers[0].Weights[1], 1e-6)
	assert.InDelta(t, -0.1, net.Layers[0].Bias[0], 1e-6)
	assert.Equal(t, 1, opt.Steps())
}

func TestAdamFitsLinearRegression(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	net, err := NewNetwork(2, []LayerSpec{{Out: 1, Activation: Identity}}, rng)
	require.NoError(t, err)
	cfg := DefaultAdamConfig()
	cfg.LearningRate = 0.05
	opt := NewAdam(net, cfg)

	x := NewMatrix(16, 2)
	y := NewMatrix(16, 1)
	for i := 0; i < x.Rows; i++ {
		a, b := rng.Float64()*2-1, rng.Float64()*2-1
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		y.Set(i, 0, 2*a-b+0.5)
	}

	step := func() float64 {
		g := gorgonia.NewGraph()
		params := net.Bind(g, "net")
		out, err := params.Apply(Input(g, "x", x))
		require.NoError(t, err)
		diff, err := gorgonia.Sub(out, Input(g, "y", y))
		require.NoError(t, err)
		sq, err := gorgonia.Square(diff)
		require.NoError(t, err)
		cost, err := gorgonia.Mean(sq)
		require.NoError(t, err)

		vm, err := Backprop(g, cost, params)
		require.NoError(t, err)
		defer vm.Close()
		loss, err := Scalar(cost)
		require.NoError(t, err)
		require.NoError(t, opt.Step(params))
		return loss
	}

	first := step()
	last := first
	for i := 0; i < 400; i++ {
		last = step()
	}
	assert.Less(t, last, first/10)
	assert.Equal(t, 401, opt.Steps())
}

func TestAdamRejectsForeignBinding(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a, err := NewNetwork(2, []LayerSpec{{Out: 2}}, rng)
	require.NoError(t, err)
	b, err := NewNetwork(2, []LayerSpec{{Out: 2}}, rng)
	require.NoError(t, err)

	opt := NewAdam(a, DefaultAdamConfig())
	assert.ErrorIs(t, opt.Step(b.Bind(gorgonia.NewGraph(), "b")), ErrForeignBinding)
	assert.Equal(t, 0, opt.Steps())
}

func TestAdamConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultAdamConfig().Validate())

	bad := DefaultAdamConfig()
	bad.LearningRate = 0
	assert.Error(t, bad.Validate())

	bad = DefaultAdamConfig()
	bad.Beta2 = 1
	assert.Error(t, bad.Validate())

	bad = DefaultAdamConfig()
	bad.Epsilon = 0
	assert.Error(t, bad.Validate())
}

func evalBCE(t *testing.T, logits []float64, target float64) float64 {
	t.Helper()
	g := gorgonia.NewGraph()
	z := Input(g, "logits", &Matrix{Rows: len(logits), Cols: 1, Data: logits})
	loss, err := BCEWithLogits(z, target)
	require.NoError(t, err)
	vm, err := Run(g)
	require.NoError(t, err)
	defer vm.Close()
	v, err := Scalar(loss)
	require.NoError(t, err)
	return v
}

func TestBCEWithLogits(t *testing.T) {
	assert.InDelta(t, math.Ln2, evalBCE(t, []float64{0, 0}, 1), 1e-12)
	assert.InDelta(t, math.Ln2, evalBCE(t, []float64{0, 0}, 0), 1e-12)

	// Agrees with the probability form away from saturation
	logits := []float64{-2, 0.5, 3}
	want := 0.0
	for _, z := range logits {
		p := 1 / (1 + math.Exp(-z))
		want -= math.Log(1 - p)
	}
	assert.InDelta(t, want/3, evalBCE(t, logits, 0), 1e-9)

	// Stays finite for extreme logits
	extreme := evalBCE(t, []float64{1e6, -1e6}, 1)
	assert.True(t, IsFinite(extreme))
	assert.InDelta(t, 5e5, extreme, 1e-6)
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(1))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(-1)))
}

package nn

import (
	"math"

	"gorgonia.org/gorgonia"
)

// Softplus adds log(1+exp(x)) to the graph, evaluated as
// max(x,0) + log1p(exp(-|x|)) so it stays finite for any finite x
func Softplus(x *gorgonia.Node) (*gorgonia.Node, error) {
	pos, err := gorgonia.Rectify(x)
	if err != nil {
		return nil, err
	}
	abs, err := gorgonia.Abs(x)
	if err != nil {
		return nil, err
	}
	neg, err := gorgonia.Neg(abs)
	if err != nil {
		return nil, err
	}
	exp, err := gorgonia.Exp(neg)
	if err != nil {
		return nil, err
	}
	tail, err := gorgonia.Log1p(exp)
	if err != nil {
		return nil, err
	}
	return gorgonia.Add(pos, tail)
}

// BCEWithLogits adds the mean binary cross-entropy of sigmoid(logits)
// against a constant target. Per element this is softplus(z) - z*y, so the
// mean is mean(softplus(z)) - y*mean(z).
func BCEWithLogits(logits *gorgonia.Node, target float64) (*gorgonia.Node, error) {
	sp, err := Softplus(logits)
	if err != nil {
		return nil, err
	}
	loss, err := gorgonia.Mean(sp)
	if err != nil {
		return nil, err
	}
	if target == 0 {
		return loss, nil
	}

	meanLogit, err := gorgonia.Mean(logits)
	if err != nil {
		return nil, err
	}
	scaled, err := gorgonia.Mul(gorgonia.NewConstant(target), meanLogit)
	if err != nil {
		return nil, err
	}
	return gorgonia.Sub(loss, scaled)
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

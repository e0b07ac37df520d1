package objfn_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/minimizer/lbfgs"
	"github.com/curioloop/minimizer/objfn"
)

// f(x,y) = (1-x)² + 100(y-x²)², global minimum 0 at (1,1).
var rosenbrock = objfn.Func{
	N: 2,
	Value: func(x []float64) float64 {
		return math.Pow(1-x[0], 2) + 100*math.Pow(x[1]-x[0]*x[0], 2)
	},
	Grad: func(x []float64) []float64 {
		return []float64{
			-2*(1-x[0]) - 400*(x[1]-x[0]*x[0])*x[0],
			200 * (x[1] - x[0]*x[0]),
		}
	},
}

func TestFuncAdapter(t *testing.T) {

	assert.Equal(t, 2, rosenbrock.Dimension())
	assert.Equal(t, 0.0, rosenbrock.ValueAt([]float64{1, 1}))
	assert.Equal(t, []float64{0, 0}, rosenbrock.GradientAt([]float64{1, 1}))
}

func TestL2RegularizedValueGradient(t *testing.T) {

	base := objfn.Func{
		N:     2,
		Value: func(x []float64) float64 { return x[0] * x[1] },
		Grad:  func(x []float64) []float64 { return []float64{x[1], x[0]} },
	}

	obj, err := objfn.NewL2Regularized(base, 0.5)
	require.NoError(t, err)

	x := []float64{2, 3}
	// value = 6 + 0.25·(4+9), gradient = (3,2) + 0.5·(2,3).
	assert.InDelta(t, 6+0.25*13, obj.ValueAt(x), 1e-15)
	g := obj.GradientAt(x)
	assert.InDelta(t, 4.0, g[0], 1e-15)
	assert.InDelta(t, 3.5, g[1], 1e-15)

	// σ = 0 degenerates to the base objective.
	plain := objfn.MustL2Regularized(base, 0)
	assert.Equal(t, base.ValueAt(x), plain.ValueAt(x))
	assert.Equal(t, base.GradientAt(x), plain.GradientAt(x))
}

func TestL2RegularizedInvalidInput(t *testing.T) {

	_, err := objfn.NewL2Regularized(nil, 1)
	assert.Error(t, err)

	_, err = objfn.NewL2Regularized(rosenbrock, -1)
	assert.Error(t, err)

	_, err = objfn.NewL2Regularized(rosenbrock, math.NaN())
	assert.Error(t, err)

	assert.Panics(t, func() { objfn.MustL2Regularized(nil, 1) })
}

func TestL2RegularizedMinimize(t *testing.T) {

	// f(x) = (x-1)² + σ/2·x² with σ = 2 has its minimum at x = 0.5:
	// the penalty pulls the solution toward the origin.
	base := objfn.Func{
		N:     1,
		Value: func(x []float64) float64 { return (x[0] - 1) * (x[0] - 1) },
		Grad:  func(x []float64) []float64 { return []float64{2 * (x[0] - 1)} },
	}

	m, err := (&lbfgs.Problem{
		Objective: objfn.MustL2Regularized(base, 2),
	}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	require.Equal(t, lbfgs.Converged, r.Status)
	assert.InDelta(t, 0.5, r.X[0], 1e-6)
}

func TestApproxGradient(t *testing.T) {

	x := []float64{-1.2, 1.0}
	want := rosenbrock.GradientAt(x)
	grad := make([]float64, 2)

	err := objfn.ApproxGradient{Method: objfn.Central}.Gradient(rosenbrock.ValueAt, x, grad)
	require.NoError(t, err)
	assert.InDelta(t, want[0], grad[0], 1e-5)
	assert.InDelta(t, want[1], grad[1], 1e-5)
	// Perturbed entries must be restored.
	assert.Equal(t, []float64{-1.2, 1.0}, x)

	// Forward differences are first-order: looser tolerance.
	err = objfn.ApproxGradient{Method: objfn.Forward}.Gradient(rosenbrock.ValueAt, x, grad)
	require.NoError(t, err)
	assert.InDelta(t, want[0], grad[0], 1e-3)
	assert.InDelta(t, want[1], grad[1], 1e-3)
}

func TestApproxGradientStepOverride(t *testing.T) {

	quad := func(x []float64) float64 { return x[0] * x[0] }
	x, grad := []float64{3}, make([]float64, 1)

	err := objfn.ApproxGradient{Method: objfn.Central, AbsStep: 1e-6}.Gradient(quad, x, grad)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, grad[0], 1e-6)

	err = objfn.ApproxGradient{Method: objfn.Central, RelStep: 1e-7}.Gradient(quad, x, grad)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, grad[0], 1e-5)
}

func TestApproxGradientInvalidInput(t *testing.T) {

	f := func(x []float64) float64 { return 0 }

	err := objfn.ApproxGradient{Method: 42}.Gradient(f, []float64{1}, []float64{0})
	assert.Error(t, err)

	err = objfn.ApproxGradient{}.Gradient(f, nil, nil)
	assert.Error(t, err)

	err = objfn.ApproxGradient{}.Gradient(f, []float64{1, 2}, []float64{0})
	assert.Error(t, err)
}

// Package objfn provides objective-function helpers around the lbfgs
// core: a closure adapter, an L2-regularization wrapper used when
// fitting exponential-family models, and a finite-difference gradient
// approximation for validating analytic gradients.
package objfn

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/minimizer/lbfgs"
)

// ErrInvalidArgument indicates an argument outside its allowed range.
type ErrInvalidArgument struct {
	Name    string
	Value   any
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument %s=%v: %s", e.Name, e.Value, e.Message)
}

// Func adapts plain closures to the lbfgs.Objective capability.
type Func struct {
	N     int
	Value func(x []float64) float64
	Grad  func(x []float64) []float64
}

func (f Func) Dimension() int { return f.N }

func (f Func) ValueAt(x []float64) float64 { return f.Value(x) }

func (f Func) GradientAt(x []float64) []float64 { return f.Grad(x) }

// L2Regularized composes a base objective with a quadratic penalty:
//
//	value    = base(x) + σ/2·‖x‖²
//	gradient = ∇base(x) + σx
//
// Model trainers minimize a negative log-likelihood wrapped this way to
// keep parameter weights small.
type L2Regularized struct {
	base  lbfgs.Objective
	sigma float64
}

func NewL2Regularized(base lbfgs.Objective, sigma float64) (*L2Regularized, error) {
	if base == nil {
		return nil, errors.WithStack(&ErrInvalidArgument{
			Name:    "base",
			Value:   base,
			Message: "base objective is required",
		})
	}
	if sigma < 0 || math.IsNaN(sigma) {
		return nil, errors.WithStack(&ErrInvalidArgument{
			Name:    "sigma",
			Value:   sigma,
			Message: "outside allowed range [0, Inf)",
		})
	}
	return &L2Regularized{base: base, sigma: sigma}, nil
}

func MustL2Regularized(base lbfgs.Objective, sigma float64) *L2Regularized {
	obj, err := NewL2Regularized(base, sigma)
	if err != nil {
		panic(err)
	}
	return obj
}

func (r *L2Regularized) Dimension() int { return r.base.Dimension() }

func (r *L2Regularized) ValueAt(x []float64) float64 {
	return r.base.ValueAt(x) + 0.5*r.sigma*floats.Dot(x, x)
}

func (r *L2Regularized) GradientAt(x []float64) []float64 {
	g := r.base.GradientAt(x)
	out := make([]float64, len(g))
	floats.AddScaledTo(out, g, r.sigma, x)
	return out
}

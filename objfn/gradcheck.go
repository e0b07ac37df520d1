package objfn

import (
	"math"

	"github.com/pkg/errors"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

// ApproxGradient estimates the gradient of a scalar function by finite
// differences. It is meant for cross-checking analytic gradients of
// Objective implementations, not for driving the minimizer: a run of n
// extra evaluations per point is far too expensive for training.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
type ApproxGradient struct {
	// Finite difference method to use.
	Method Method
	// Absolute step size to use. RelStep is used when AbsStep is not provided.
	AbsStep float64
	// Relative step size used to compute the absolute step size as
	// h = RelStep * sign(x) * abs(x). When neither is provided the step
	// defaults to h = eps * sign(x) * max(1, abs(x)) with eps selected
	// for the method.
	RelStep float64
}

// Gradient approximates ∇f at x and stores the result in grad.
// The entries of x are perturbed in place and restored before return.
func (ag ApproxGradient) Gradient(f func(x []float64) float64, x, grad []float64) error {

	switch {
	case ag.Method != Forward && ag.Method != Central:
		return errors.WithStack(&ErrInvalidArgument{
			Name: "Method", Value: ag.Method, Message: "unknown method",
		})
	case len(x) == 0:
		return errors.WithStack(&ErrInvalidArgument{
			Name: "x", Value: len(x), Message: "empty point",
		})
	case len(grad) != len(x):
		return errors.WithStack(&ErrInvalidArgument{
			Name: "grad", Value: len(grad), Message: "size must equal to len(x)",
		})
	}

	if ag.Method == Forward {
		f0 := f(x)
		for i, t := range x {
			s := ag.stepAt(t, sqrtEps)
			x[i] = t + s
			grad[i] = (f(x) - f0) / s
			x[i] = t
		}
		return nil
	}

	for i, t := range x {
		s := math.Abs(ag.stepAt(t, cubeEps))
		x[i] = t - s
		f1 := f(x)
		x[i] = t + s
		f2 := f(x)
		grad[i] = (f2 - f1) / (2 * s)
		x[i] = t
	}
	return nil
}

func (ag ApproxGradient) stepAt(x, eps float64) float64 {
	s := ag.AbsStep
	if s == 0 {
		if ag.RelStep != 0 {
			s = math.Copysign(ag.RelStep, x) * math.Abs(x)
		}
		if s == 0 {
			s = math.Copysign(eps, x) * math.Max(1.0, math.Abs(x))
		}
	}
	// Round the step to a representable difference.
	if d := (x + s) - x; d != 0 {
		s = d
	}
	return s
}

// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

import (
	"math"
)

const (
	stepHalf   = 0.5
	stepGuard  = 0.66
	xtrapLower = 1.1
	xtrapUpper = 4.0
)

const (
	stageDecrease = 1
	stageCurve    = 2
)

type searchTask int

const (
	// searchStart begin a new scalar search.
	searchStart searchTask = iota
	// searchFG the caller must evaluate f and f′ at the returned step.
	searchFG
	// searchConv the returned step satisfies both Wolfe conditions.
	searchConv
	// searchWarn no further progress is possible; the current step
	// satisfies at most the sufficient-decrease condition.
	searchWarn
	// searchErr the initial slope is not a descent or the tolerances are invalid.
	searchErr
)

type searchTol struct {
	// alpha is the sufficient-decrease constant c₁.
	alpha float64
	// beta is the curvature constant c₂.
	beta float64
	// eps is the relative bracket width below which the search gives up.
	eps float64
	// lower and upper bound the step.
	lower, upper float64
}

type searchCtx struct {
	bracket    bool
	stage      int
	g0, gx, gy float64
	f0, fx, fy float64
	stx, sty   float64
	width      [2]float64
	bound      [2]float64
}

// scalarSearch finds a step λ > 0 along the 1-D restriction
// φ(λ) = f(x + λd) satisfying the strong Wolfe conditions:
//
//   - sufficient decrease: φ(λ) ≤ φ(0) + c₁λφ′(0)
//   - curvature: |φ′(λ)| ≤ c₂|φ′(0)|
//
// The caller drives the search by reverse communication: on searchFG it
// evaluates φ and φ′ at the returned step and calls again. Each call
// updates a bracket [stx, sty]; while the sufficient-decrease condition
// holds and the curvature condition is not yet met the step is expanded
// geometrically, and once a bracket is found the step is refined by
// safeguarded cubic/secant interpolation until both conditions hold.
//
// The bracket is initially chosen to contain a minimizer of the modified
// function ψ(λ) = φ(λ) - φ(0) - c₁λφ′(0); once ψ(λ) ≤ 0 and φ′(λ) ≥ 0
// for some step, it switches to containing a minimizer of φ itself.
func scalarSearch(f, g, stp float64, task searchTask, tol *searchTol, ctx *searchCtx) (float64, searchTask) {

	if task == searchStart {
		switch {
		case stp < tol.lower || stp > tol.upper:
			return stp, searchErr
		case g >= zero: // not a descent slope
			return stp, searchErr
		case tol.alpha < zero || tol.beta < zero || tol.eps < zero:
			return stp, searchErr
		case tol.lower < zero || tol.upper < tol.lower:
			return stp, searchErr
		}

		ctx.bracket = false
		ctx.stage = stageDecrease
		ctx.f0, ctx.g0 = f, g
		ctx.width[0] = tol.upper - tol.lower
		ctx.width[1] = ctx.width[0] / stepHalf

		// The best step so far and the far endpoint both start at 0.
		ctx.stx, ctx.fx, ctx.gx = zero, ctx.f0, ctx.g0
		ctx.sty, ctx.fy, ctx.gy = zero, ctx.f0, ctx.g0
		ctx.bound[0] = zero
		ctx.bound[1] = stp + xtrapUpper*stp
		return stp, searchFG
	}

	// Test for convergence or stagnation.
	gTest := tol.alpha * ctx.g0
	fTest := ctx.f0 + stp*gTest

	stpMin, stpMax := ctx.bound[0], ctx.bound[1]
	switch {
	case ctx.bracket && (stp <= stpMin || stp >= stpMax):
		// Rounding errors prevent progress.
		return stp, searchWarn
	case ctx.bracket && stpMax-stpMin <= tol.eps*stpMax:
		// The bracket is too narrow to refine further.
		return stp, searchWarn
	case stp == tol.upper && f <= fTest && g <= gTest:
		return stp, searchWarn
	case stp == tol.lower && (f > fTest || g >= gTest):
		return stp, searchWarn
	case f <= fTest && math.Abs(g) <= tol.beta*(-ctx.g0):
		return stp, searchConv
	}

	if ctx.stage == stageDecrease && f <= fTest && g >= zero {
		ctx.stage = stageCurve
	}

	if ctx.stage == stageDecrease && f <= ctx.fx && f > fTest {
		// Work on the modified function ψ until a step with ψ ≤ 0 and
		// φ′ ≥ 0 is produced, then switch back to φ.
		fm := f - stp*gTest
		fxm := ctx.fx - ctx.stx*gTest
		fym := ctx.fy - ctx.sty*gTest
		gm := g - gTest
		gxm := ctx.gx - gTest
		gym := ctx.gy - gTest
		safeguardStep(&ctx.stx, &fxm, &gxm, &ctx.sty, &fym, &gym, &stp, fm, gm, &ctx.bracket, ctx.bound)
		ctx.fx = fxm + ctx.stx*gTest
		ctx.fy = fym + ctx.sty*gTest
		ctx.gx = gxm + gTest
		ctx.gy = gym + gTest
	} else {
		safeguardStep(&ctx.stx, &ctx.fx, &ctx.gx, &ctx.sty, &ctx.fy, &ctx.gy, &stp, f, g, &ctx.bracket, ctx.bound)
	}

	// Force a bisection step if the bracket does not shrink fast enough.
	if ctx.bracket {
		if math.Abs(ctx.sty-ctx.stx) >= stepGuard*ctx.width[1] {
			stp = ctx.stx + stepHalf*(ctx.sty-ctx.stx)
		}
		ctx.width[1] = ctx.width[0]
		ctx.width[0] = math.Abs(ctx.sty - ctx.stx)

		stpMin = math.Min(ctx.stx, ctx.sty)
		stpMax = math.Max(ctx.stx, ctx.sty)
	} else {
		stpMin = stp + xtrapLower*(stp-ctx.stx)
		stpMax = stp + xtrapUpper*(stp-ctx.stx)
	}
	ctx.bound[0], ctx.bound[1] = stpMin, stpMax

	stp = math.Min(math.Max(stp, tol.lower), tol.upper)

	// When further progress is impossible retreat to the best step,
	// so the next entry reports the stagnation.
	if ctx.bracket && (stp <= stpMin || stp >= stpMax || stpMax-stpMin <= tol.eps*stpMax) {
		stp = ctx.stx
	}

	return stp, searchFG
}

// safeguardStep computes a safeguarded trial step and updates the
// interval containing a step satisfying the search conditions.
//
// stx holds the step with the least function value; once bracket is set
// a minimizer lies between stx and sty, with min(stx,sty) < stp <
// max(stx,sty), and the derivative at stx is negative in the direction
// of the step. On exit stp is the new trial step.
func safeguardStep(
	stx, fx, dx *float64,
	sty, fy, dy *float64,
	stp *float64, fp, dp float64,
	bracket *bool, bound [2]float64) {

	var gamma, p, q, r, s, sgnd, stpc, stpf, stpq, theta float64

	stpMin, stpMax := bound[0], bound[1]
	sgnd = dp * (*dx / math.Abs(*dx))

	if fp > *fx {
		// First case: a higher function value brackets the minimum.
		// Take the cubic step if closer to stx than the quadratic step,
		// otherwise their average.
		theta = three*(*fx-fp)/(*stp-*stx) + *dx + dp
		s = math.Max(math.Max(math.Abs(theta), math.Abs(*dx)), math.Abs(dp))
		gamma = s * math.Sqrt((theta/s)*(theta/s)-(*dx/s)*(dp/s))
		if *stp < *stx {
			gamma = -gamma
		}
		p = (gamma - *dx) + theta
		q = ((gamma - *dx) + gamma) + dp
		r = p / q
		stpc = *stx + r*(*stp-*stx)
		stpq = *stx + ((*dx/((*fx-fp)/(*stp-*stx)+*dx))/two)*(*stp-*stx)
		if math.Abs(stpc-*stx) < math.Abs(stpq-*stx) {
			stpf = stpc
		} else {
			stpf = stpc + (stpq-stpc)/two
		}
		*bracket = true
	} else if sgnd < zero {
		// Second case: a lower value with derivative of opposite sign
		// brackets the minimum. Take the cubic step if farther from stp
		// than the secant step, otherwise the secant step.
		theta = three*(*fx-fp)/(*stp-*stx) + *dx + dp
		s = math.Max(math.Max(math.Abs(theta), math.Abs(*dx)), math.Abs(dp))
		gamma = s * math.Sqrt((theta/s)*(theta/s)-(*dx/s)*(dp/s))
		if *stp > *stx {
			gamma = -gamma
		}
		p = (gamma - dp) + theta
		q = ((gamma - dp) + gamma) + *dx
		r = p / q
		stpc = *stp + r*(*stx-*stp)
		stpq = *stp + (dp/(dp-*dx))*(*stx-*stp)
		if math.Abs(stpc-*stp) > math.Abs(stpq-*stp) {
			stpf = stpc
		} else {
			stpf = stpq
		}
		*bracket = true
	} else if math.Abs(dp) < math.Abs(*dx) {
		// Third case: a lower value, same derivative sign, decreasing
		// magnitude. The cubic step is used only when the cubic tends to
		// infinity in the direction of the step or its minimum is beyond
		// stp, otherwise the secant step is used.
		theta = three*(*fx-fp)/(*stp-*stx) + *dx + dp
		s = math.Max(math.Max(math.Abs(theta), math.Abs(*dx)), math.Abs(dp))
		// gamma = 0 only arises when the cubic does not tend to infinity
		// in the direction of the step.
		gamma = s * math.Sqrt((theta/s)*(theta/s)-(*dx/s)*(dp/s))
		if *stp > *stx {
			gamma = -gamma
		}
		p = (gamma - dp) + theta
		q = (gamma + (*dx - dp)) + gamma
		r = p / q
		if r < zero && gamma != zero {
			stpc = *stp + r*(*stx-*stp)
		} else if *stp > *stx {
			stpc = stpMax
		} else {
			stpc = stpMin
		}
		stpq = *stp + (dp/(dp-*dx))*(*stx-*stp)
		if *bracket {
			if math.Abs(stpc-*stp) < math.Abs(stpq-*stp) {
				stpf = stpc
			} else {
				stpf = stpq
			}
			if *stp > *stx {
				stpf = math.Min(*stp+stepGuard*(*sty-*stp), stpf)
			} else {
				stpf = math.Max(*stp+stepGuard*(*sty-*stp), stpf)
			}
		} else {
			if math.Abs(stpc-*stp) > math.Abs(stpq-*stp) {
				stpf = stpc
			} else {
				stpf = stpq
			}
			stpf = math.Min(stpMax, stpf)
			stpf = math.Max(stpMin, stpf)
		}
	} else {
		// Fourth case: a lower value, same derivative sign, magnitude
		// not decreasing. Without a bracket the step runs to a bound,
		// otherwise the cubic step from the far endpoint is taken.
		if *bracket {
			theta = three*(fp-*fy)/(*sty-*stp) + *dy + dp
			s = math.Max(math.Max(math.Abs(theta), math.Abs(*dy)), math.Abs(dp))
			gamma = s * math.Sqrt((theta/s)*(theta/s)-(*dy/s)*(dp/s))
			if *stp > *sty {
				gamma = -gamma
			}
			p = (gamma - dp) + theta
			q = ((gamma - dp) + gamma) + *dy
			r = p / q
			stpc = *stp + r*(*sty-*stp)
			stpf = stpc
		} else if *stp > *stx {
			stpf = stpMax
		} else {
			stpf = stpMin
		}
	}

	// Update the interval which contains a minimizer.
	if fp > *fx {
		*sty = *stp
		*fy = fp
		*dy = dp
	} else {
		if sgnd < zero {
			*sty = *stx
			*fy = *fx
			*dy = *dx
		}
		*stx = *stp
		*fx = fp
		*dx = dp
	}

	*stp = stpf
}

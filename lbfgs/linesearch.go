// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// searchNoBnd caps the step expansion of the unconstrained search.
	searchNoBnd = 1.0e+10
	// searchEps abandons a bracket whose relative width stops shrinking.
	searchEps = 1.0e-10
)

type searchInfo int

const (
	// searchFound the iterate satisfies both Wolfe conditions.
	searchFound searchInfo = iota
	// searchExhausted the trial budget ran out or the search stagnated;
	// the previous iterate has been restored.
	searchExhausted
	// searchEvalBad a trial evaluation produced a non-finite result.
	searchEvalBad
)

// searchWolfe performs a line search along ctx.dir starting from the
// iterate saved in ctx.{xOld,gOld,fOld}. The step starts with unit
// length (first iteration: 1/‖d‖ to avoid an oversized initial move)
// and must satisfy for the accepted iterate fₖ₊₁ = f(xₖ + λₖdₖ):
//
//   - sufficient decrease: fₖ₊₁ ≤ fₖ + c₁λₖgₖᵀdₖ
//   - curvature: |gₖ₊₁ᵀdₖ| ≤ c₂|gₖᵀdₖ|
//
// Each trial costs exactly one objective evaluation, bounded by
// spec.maxTrials. On success loc holds the accepted iterate; on failure
// loc is restored to the saved one.
func (d *iterDriver) searchWolfe() searchInfo {

	spec, loc, ctx := d.spec, d.loc, d.ctx

	gd := floats.Dot(loc.g, ctx.dir)
	ctx.dNorm = floats.Norm(ctx.dir, 2)

	stp := one
	if ctx.iter == 1 {
		stp = math.Min(one/ctx.dNorm, searchNoBnd)
	}

	ctx.stol = searchTol{
		alpha: spec.c1, beta: spec.c2, eps: searchEps,
		lower: zero, upper: searchNoBnd,
	}
	ctx.sctx = searchCtx{}

	info := searchExhausted
	task := searchStart
	f, g := loc.f, gd
	for trial := 0; ; {
		stp, task = scalarSearch(f, g, stp, task, &ctx.stol, &ctx.sctx)
		if task == searchConv {
			ctx.step = stp
			info = searchFound
			break
		}
		if task != searchFG || trial >= spec.maxTrials {
			break
		}
		// Try another x = xₖ + λdₖ.
		floats.AddScaledTo(loc.x, ctx.xOld, stp, ctx.dir)
		if !d.nextLocation() {
			info = searchEvalBad
			break
		}
		trial++
		f = loc.f
		g = floats.Dot(loc.g, ctx.dir)
	}

	if info != searchFound {
		// Restore the previous iterate.
		loc.f = ctx.fOld
		copy(loc.x, ctx.xOld)
		copy(loc.g, ctx.gOld)
	}
	return info
}

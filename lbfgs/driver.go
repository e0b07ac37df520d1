// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// iterLoc is the current iterate: exactly one is live per run,
// the point and its paired value/gradient advance together.
type iterLoc struct {
	f    float64
	x, g []float64
}

// iterCtx carries the mutable state of one minimization run.
type iterCtx struct {
	mem  *corrMemory
	conv convMonitor

	dir []float64 // search direction dₖ

	// The previous iterate is retained only long enough to restore a
	// failed search and to form the next curvature pair.
	fOld       float64
	xOld, gOld []float64

	step  float64 // accepted step length λₖ
	dNorm float64 // ‖ dₖ ‖₂

	iter      int
	totalEval int
	skipped   int
	resets    int

	stol searchTol
	sctx searchCtx
}

// iterDriver orchestrates the iterate sequence: it owns the current
// point, value and gradient, and invokes the curvature memory, the line
// search and the convergence monitor in turn.
type iterDriver struct {
	spec *iterSpec
	loc  *iterLoc
	ctx  *iterCtx
}

func (m *Minimizer) newDriver() *iterDriver {
	n := m.n

	loc := &iterLoc{
		x: make([]float64, n),
		g: make([]float64, n),
	}
	if m.x0 != nil {
		copy(loc.x, m.x0)
	}

	ctx := &iterCtx{
		mem:  newCorrMemory(n, m.m),
		conv: convMonitor{stop: m.stop},
		dir:  make([]float64, n),
		xOld: make([]float64, n),
		gOld: make([]float64, n),
	}

	return &iterDriver{spec: &m.iterSpec, loc: loc, ctx: ctx}
}

// nextLocation evaluates the objective at the current point, guarding
// against panics and non-finite results. Each call costs one value and
// one gradient evaluation; that cost dominates the run.
func (d *iterDriver) nextLocation() (valid bool) {
	spec, loc := d.spec, d.loc

	defer func() {
		if r := recover(); r != nil {
			valid = false
		}
	}()

	loc.f = spec.obj.ValueAt(loc.x)
	g := spec.obj.GradientAt(loc.x)
	d.ctx.totalEval++

	if len(g) != spec.n {
		return false
	}
	copy(loc.g, g)

	if math.IsNaN(loc.f) || math.IsInf(loc.f, 0) {
		return false
	}
	for _, v := range loc.g {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// mainLoop is the main execution loop of the minimization: compute a
// direction from the curvature memory, search a Wolfe step along it,
// record the new curvature pair and query the convergence monitor.
func (d *iterDriver) mainLoop() (status Status) {

	spec, loc, ctx := d.spec, d.loc, d.ctx
	log := spec.logger

	if log.enable(LogLast) {
		log.log("RUNNING THE L-BFGS CODE\n")
		log.log("           * * *\n")
		log.log("N = %d    M = %d\n", spec.n, spec.m)
	}

	// Calculate f₀ and g₀. A failure here returns the initial point untouched.
	if !d.nextLocation() {
		status = EvalFailed
		d.printExit(status)
		return
	}

	if floats.Norm(loc.g, math.Inf(1)) <= spec.stop.GradTolerance {
		status = Converged
		d.printExit(status)
		return
	}

	if log.enable(LogEval) {
		log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n",
			ctx.iter, loc.f, floats.Norm(loc.g, math.Inf(1)))
	}

	for {
		ctx.iter++
		if ctx.iter > spec.stop.MaxIterations {
			ctx.iter = spec.stop.MaxIterations
			status = MaxIterReached
			break
		}

		if log.enable(LogTrace) {
			log.log("\n\nITERATION %5d\n", ctx.iter)
		}

		// Compute the search direction dₖ = -Hₖgₖ.
		ctx.mem.direction(loc.g, ctx.dir)
		if floats.Dot(ctx.dir, loc.g) >= zero {
			// Not a descent direction: fall back to steepest descent.
			for i, g := range loc.g {
				ctx.dir[i] = -g
			}
		}

		// Save the iterate: restored on failure, differenced on success.
		ctx.fOld = loc.f
		copy(ctx.xOld, loc.x)
		copy(ctx.gOld, loc.g)

		switch d.searchWolfe() {
		case searchFound:
			// loc now holds the accepted iterate.
		case searchEvalBad:
			status = EvalFailed
			d.printExit(status)
			return
		default:
			if ctx.mem.count > 0 {
				// Discard the curvature history and retry the iteration
				// from steepest descent.
				ctx.mem.reset()
				ctx.resets++
				if log.enable(LogLast) {
					log.log("Refreshing L-BFGS memory and restarting iteration.\n")
				}
				continue
			}
			status = SearchExhausted
			d.printExit(status)
			return
		}

		if !ctx.mem.insert(loc.x, ctx.xOld, loc.g, ctx.gOld) {
			ctx.skipped++
			if log.enable(LogTrace) {
				log.log("Skipping L-BFGS update: non-positive curvature.\n")
			}
		}

		d.printIter()

		if st, stop := ctx.conv.shouldStop(ctx.iter, ctx.fOld, loc.f, loc.g); stop {
			status = st
			break
		}
	}

	d.printExit(status)
	return
}

// printIter logs the current iteration details.
func (d *iterDriver) printIter() {
	loc, ctx := d.loc, d.ctx
	log := d.spec.logger

	if log.enable(LogTrace) {
		log.log("LINE SEARCH; step = %12.5e    norm of step = %12.5e\n", ctx.step, ctx.step*ctx.dNorm)
		log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n",
			ctx.iter, loc.f, floats.Norm(loc.g, math.Inf(1)))
	} else if log.enable(LogEval) && ctx.iter%int(log.Level) == 0 {
		log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n",
			ctx.iter, loc.f, floats.Norm(loc.g, math.Inf(1)))
	}
}

// printExit logs the final statistics and exit condition of the run.
func (d *iterDriver) printExit(status Status) {
	loc, ctx := d.loc, d.ctx
	log := d.spec.logger

	if !log.enable(LogLast) {
		return
	}

	log.log("\n           * * *\n")
	log.log("   N    Tit    Tnf   Skip   Reset        F\n")
	log.log("%5d %6d %6d %6d %7d %12.5e\n",
		d.spec.n, ctx.iter, ctx.totalEval, ctx.skipped, ctx.resets, loc.f)
	log.log("\n%s\n", status)
}

// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// convMonitor evaluates the stopping conditions after each iteration.
type convMonitor struct {
	stop Termination
	// plateau counts consecutive iterations whose relative function
	// decrease stayed below the tolerance.
	plateau int
}

// shouldStop reports whether the run is finished after the given
// iteration, and with which status. Any single condition triggers:
//
//   - ‖ gₖ ‖∞ ≤ GradTolerance
//   - |fₖ₋₁ - fₖ| / 𝚖𝚊𝚡(|fₖ₋₁|, 1) ≤ FuncTolerance for
//     PlateauIters consecutive iterations
//   - iter ≥ MaxIterations (reported as non-convergence)
func (c *convMonitor) shouldStop(iter int, fPrev, f float64, g []float64) (Status, bool) {

	if floats.Norm(g, math.Inf(1)) <= c.stop.GradTolerance {
		return Converged, true
	}

	change := math.Abs(fPrev-f) / math.Max(math.Abs(fPrev), one)
	if change <= c.stop.FuncTolerance {
		c.plateau++
	} else {
		c.plateau = 0
	}
	if c.plateau >= c.stop.PlateauIters {
		return Converged, true
	}

	if iter >= c.stop.MaxIterations {
		return MaxIterReached, true
	}

	return Converged, false
}

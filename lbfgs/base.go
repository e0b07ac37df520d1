// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

const (
	zero  = 0.0
	one   = 1.0
	two   = 2.0
	three = 3.0
)

// Status reports how a minimization run ended.
// Only Converged means the configured tolerances were satisfied;
// the other values still carry the best point found so far.
type Status int

const (
	// Converged the gradient or function-decrease tolerance was satisfied.
	Converged Status = iota
	// MaxIterReached the iteration safety bound was hit first.
	MaxIterReached
	// SearchExhausted the line search failed twice in a row,
	// even after refreshing the curvature memory.
	SearchExhausted
	// EvalFailed the objective produced a NaN/Inf value or gradient, or panicked.
	EvalFailed
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "CONVERGENCE: TOLERANCE SATISFIED"
	case MaxIterReached:
		return "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
	case SearchExhausted:
		return "ABNORMAL_TERMINATION_IN_LNSRCH"
	case EvalFailed:
		return "STOP: OBJECTIVE EVALUATION FAILED"
	default:
		return "UNKNOWN STATUS"
	}
}

// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line at the last iteration
	LogLast LogLevel = 0
	// LogEval print also f and |g| every `level` iterations for any (0 < level < 99)
	LogEval LogLevel = 1
	// LogTrace print details of every iteration
	LogTrace LogLevel = 99
)

// Logger handles logging output for the minimizer.
// Note the writer must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

// Objective is the function being minimized.
// Implementations must be deterministic and side-effect free,
// report the same dimension on every call, and must not retain
// or modify the slices passed to ValueAt/GradientAt.
type Objective interface {
	// Dimension returns the fixed problem dimension n ≥ 1.
	Dimension() int
	// ValueAt returns the function value at x (len(x) == n).
	ValueAt(x []float64) float64
	// GradientAt returns the gradient at x as an n-vector.
	GradientAt(x []float64) []float64
}

// NoMemory disables the curvature history entirely:
// every search direction degrades to steepest descent.
const NoMemory = -1

const (
	defaultMemory    = 15
	defaultC1        = 1.0e-4
	defaultC2        = 0.9
	defaultMaxTrials = 20
)

// Config holds the algorithm parameters of the minimizer.
// Zero fields are replaced with the documented defaults.
type Config struct {
	// M is the number of curvature pairs kept by the limited history.
	// Memory usage of a run is O(M·n). Defaults to 15.
	// Use NoMemory to force pure steepest descent.
	M int
	// C1 is the sufficient-decrease constant of the strong Wolfe
	// conditions. Defaults to 1e-4.
	C1 float64
	// C2 is the curvature constant of the strong Wolfe conditions.
	// Must satisfy 0 < C1 < C2 < 1. Defaults to 0.9.
	C2 float64
	// MaxTrials bounds the objective evaluations spent by one line
	// search. Defaults to 20.
	MaxTrials int
	// InitialPoint optionally overrides the all-zeros starting point.
	InitialPoint []float64
}

// Termination specifies the stopping criteria of the minimizer.
// Zero fields are replaced with the documented defaults.
// No stopping condition depends on wall-clock time.
type Termination struct {
	// The iteration stops when the gradient infinity norm satisfies:
	//   ‖ gₖ ‖∞ ≤ GradTolerance
	// Defaults to 1e-6.
	GradTolerance float64
	// The iteration stops when the relative function decrease:
	//   |fₖ₋₁ - fₖ| / 𝚖𝚊𝚡(|fₖ₋₁|, 1) ≤ FuncTolerance
	// holds for PlateauIters consecutive iterations. Defaults to 1e-9.
	FuncTolerance float64
	// PlateauIters is the number of consecutive sub-tolerance decreases
	// required before stopping, guarding against transient plateaus.
	// Defaults to 3.
	PlateauIters int
	// The iteration stops when the number of iterations exceeds the limit.
	// Reaching it is reported as MaxIterReached, not as an error.
	// Defaults to 200.
	MaxIterations int
}

// Problem specifies an unconstrained minimization problem.
type Problem struct {
	Objective Objective   // Function value and gradient
	Config    Config      // Algorithm parameters
	Stop      Termination // Stop condition
}

// iterSpec is the immutable per-run specification shared by the
// driver, the curvature memory and the line search.
type iterSpec struct {
	n, m      int
	c1, c2    float64
	maxTrials int
	stop      Termination
	obj       Objective
	x0        []float64
	logger    Logger
}

// New validates the problem and creates a minimizer for it.
func (p *Problem) New(logger *Logger) (minimizer *Minimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	obj := p.Objective
	if obj == nil {
		return nil, errors.New("objective is required")
	}
	n := obj.Dimension()

	cfg, stop := p.Config, p.Stop

	switch cfg.M {
	case 0:
		cfg.M = defaultMemory
	case NoMemory:
		cfg.M = 0
	}
	if cfg.C1 == 0 {
		cfg.C1 = defaultC1
	}
	if cfg.C2 == 0 {
		cfg.C2 = defaultC2
	}
	if cfg.MaxTrials == 0 {
		cfg.MaxTrials = defaultMaxTrials
	}
	if stop.GradTolerance == 0 {
		stop.GradTolerance = 1e-6
	}
	if stop.FuncTolerance == 0 {
		stop.FuncTolerance = 1e-9
	}
	if stop.PlateauIters == 0 {
		stop.PlateauIters = 3
	}
	if stop.MaxIterations == 0 {
		stop.MaxIterations = 200
	}

	switch {
	case n <= 0:
		err = errors.New("problem dimension must greater than 0")
	case cfg.M < 0:
		err = errors.New("memory size must not be negative")
	case !(cfg.C1 > zero && cfg.C1 < cfg.C2 && cfg.C2 < one):
		err = errors.New("wolfe constants must satisfy 0 < c1 < c2 < 1")
	case cfg.MaxTrials < 1:
		err = errors.New("line-search trial budget must greater than 0")
	case stop.GradTolerance < zero:
		err = errors.New("gradient tolerance must not be negative")
	case stop.FuncTolerance < zero:
		err = errors.New("function tolerance must not be negative")
	case stop.PlateauIters < 1:
		err = errors.New("plateau iterations must greater than 0")
	case stop.MaxIterations < 1:
		err = errors.New("max iteration must greater than 0")
	case cfg.InitialPoint != nil && len(cfg.InitialPoint) != n:
		err = errors.New("initial point size must equal to n")
	}
	if err != nil {
		return
	}

	minimizer = &Minimizer{
		iterSpec{
			n: n, m: cfg.M,
			c1: cfg.C1, c2: cfg.C2,
			maxTrials: cfg.MaxTrials,
			stop:      stop,
			obj:       obj,
			x0:        cfg.InitialPoint,
			logger:    *logger,
		},
	}
	return
}

// Minimizer implemented with the limited-memory BFGS algorithm.
type Minimizer struct {
	iterSpec
}

// Result contains the final result of a minimization run.
type Result struct {
	Status  Status    // How the run ended.
	F       float64   // Final function value.
	X, G    []float64 // Final point and gradient.
	Summary           // Run statistics.
}

// Summary contains a summary of the minimization process.
type Summary struct {
	NumIter    int // Number of iterations performed.
	NumEval    int // Number of function and gradient evaluations performed.
	NumSkipped int // Number of curvature pairs rejected for non-positive yᵀs.
	NumResets  int // Number of curvature-memory resets after a failed line search.
}

// Minimize runs one minimization from the configured initial point.
// Each call owns its iterate and curvature buffer exclusively, so
// independent minimizers may run concurrently.
func (m *Minimizer) Minimize() *Result {
	d := m.newDriver()
	status := d.mainLoop()
	return &Result{
		Status: status,
		X:      d.loc.x, F: d.loc.f, G: d.loc.g,
		Summary: Summary{
			NumIter:    d.ctx.iter,
			NumEval:    d.ctx.totalEval,
			NumSkipped: d.ctx.skipped,
			NumResets:  d.ctx.resets,
		},
	}
}

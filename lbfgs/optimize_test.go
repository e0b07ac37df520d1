// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

type testFn struct {
	n    int
	val  func(x []float64) float64
	grad func(x []float64) []float64
}

func (f testFn) Dimension() int { return f.n }

func (f testFn) ValueAt(x []float64) float64 { return f.val(x) }

func (f testFn) GradientAt(x []float64) []float64 { return f.grad(x) }

// f(x,y) = (x-1)² + (y-5)² + 10 with minimum 10 at (1,5).
var quadratic = testFn{
	n: 2,
	val: func(x []float64) float64 {
		return math.Pow(x[0]-1, 2) + math.Pow(x[1]-5, 2) + 10
	},
	grad: func(x []float64) []float64 {
		return []float64{2 * (x[0] - 1), 2 * (x[1] - 5)}
	},
}

// f(x,y) = (1-x)² + 100(y-x²)², non-convex with global minimum 0 at (1,1).
var rosenbrock = testFn{
	n: 2,
	val: func(x []float64) float64 {
		return math.Pow(1-x[0], 2) + 100*math.Pow(x[1]-x[0]*x[0], 2)
	},
	grad: func(x []float64) []float64 {
		return []float64{
			-2*(1-x[0]) - 400*(x[1]-x[0]*x[0])*x[0],
			200 * (x[1] - x[0]*x[0]),
		}
	},
}

func TestQuadraticFunction(t *testing.T) {

	m, err := (&Problem{Objective: quadratic}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	require.Equal(t, Converged, r.Status)

	assert.InDelta(t, 1.0, r.X[0], 1e-5)
	assert.InDelta(t, 5.0, r.X[1], 1e-5)
	assert.InDelta(t, 10.0, r.F, 1e-10)
}

func TestRosenbrockFunction(t *testing.T) {

	m, err := (&Problem{Objective: rosenbrock}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	require.Equal(t, Converged, r.Status)

	assert.InDelta(t, 1.0, r.X[0], 1e-5)
	assert.InDelta(t, 1.0, r.X[1], 1e-5)
	assert.InDelta(t, 0.0, r.F, 1e-10)
}

func TestInitialPointOverride(t *testing.T) {

	m, err := (&Problem{
		Objective: rosenbrock,
		Config:    Config{InitialPoint: []float64{-1.2, 1.0}},
	}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	require.Equal(t, Converged, r.Status)
	assert.InDelta(t, 1.0, r.X[0], 1e-5)
	assert.InDelta(t, 1.0, r.X[1], 1e-5)
}

func TestInvalidInput(t *testing.T) {

	tests := []struct {
		name string
		prob Problem
	}{
		{"zero dimension", Problem{Objective: testFn{n: 0}}},
		{"negative memory", Problem{Objective: quadratic, Config: Config{M: -2}}},
		{"initial point mismatch", Problem{Objective: quadratic, Config: Config{InitialPoint: []float64{1}}}},
		{"wolfe order", Problem{Objective: quadratic, Config: Config{C1: 0.9, C2: 1e-4}}},
		{"wolfe range", Problem{Objective: quadratic, Config: Config{C1: 1e-4, C2: 1.5}}},
		{"zero plateau", Problem{Objective: quadratic, Stop: Termination{PlateauIters: -1}}},
		{"negative tolerance", Problem{Objective: quadratic, Stop: Termination{GradTolerance: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.prob.New(nil)
			assert.Error(t, err)
		})
	}

	_, err := (&Problem{}).New(nil)
	assert.Error(t, err)
}

func TestEvalFailureAtStart(t *testing.T) {

	bad := testFn{
		n:   2,
		val: quadratic.val,
		grad: func(x []float64) []float64 {
			return []float64{math.NaN(), math.NaN()}
		},
	}

	m, err := (&Problem{
		Objective: bad,
		Config:    Config{InitialPoint: []float64{2, 3}},
	}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	assert.Equal(t, EvalFailed, r.Status)
	assert.Equal(t, []float64{2, 3}, r.X)
	assert.Equal(t, 0, r.NumIter)
}

func TestEvalFailureMidRun(t *testing.T) {

	// The objective turns sour once the iterate leaves the start region:
	// the run must abort with the last valid point, not a NaN one.
	bad := testFn{
		n: 2,
		val: func(x []float64) float64 {
			if x[0] > 0.5 {
				return math.NaN()
			}
			return quadratic.val(x)
		},
		grad: quadratic.grad,
	}

	m, err := (&Problem{Objective: bad}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	assert.Equal(t, EvalFailed, r.Status)
	for _, v := range r.X {
		assert.False(t, math.IsNaN(v))
	}
	assert.False(t, math.IsNaN(r.F))
	assert.LessOrEqual(t, r.F, quadratic.val(make([]float64, 2)))
}

func TestEvalPanic(t *testing.T) {

	boom := testFn{
		n:   2,
		val: func(x []float64) float64 { panic("corpus exhausted") },
		grad: func(x []float64) []float64 {
			return []float64{0, 0}
		},
	}

	m, err := (&Problem{Objective: boom}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	assert.Equal(t, EvalFailed, r.Status)
	assert.Equal(t, []float64{0, 0}, r.X)
}

func TestLineSearchExhausted(t *testing.T) {

	// A linear objective is unbounded below: every step satisfies the
	// decrease condition but the slope never flattens, so the search
	// expands to its cap and gives up. The initial point must be
	// restored and reported as the best one found.
	linear := testFn{
		n:   1,
		val: func(x []float64) float64 { return x[0] },
		grad: func(x []float64) []float64 {
			return []float64{1}
		},
	}

	m, err := (&Problem{Objective: linear}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	assert.Equal(t, SearchExhausted, r.Status)
	assert.Equal(t, []float64{0}, r.X)
	assert.Equal(t, 0.0, r.F)
}

func TestMaxIterations(t *testing.T) {

	m, err := (&Problem{
		Objective: rosenbrock,
		Config:    Config{InitialPoint: []float64{-1.2, 1.0}},
		Stop:      Termination{MaxIterations: 3},
	}).New(nil)
	require.NoError(t, err)

	r := m.Minimize()
	assert.Equal(t, MaxIterReached, r.Status)
	assert.Equal(t, 3, r.NumIter)
	// Best-effort result: still below the initial value.
	assert.Less(t, r.F, rosenbrock.val([]float64{-1.2, 1.0}))
}

func TestSteepestDescentDirection(t *testing.T) {

	// With the curvature history disabled every direction must be the
	// exact negated gradient, and the run must still converge.
	m, err := (&Problem{Objective: quadratic, Config: Config{M: NoMemory}}).New(nil)
	require.NoError(t, err)

	d := m.newDriver()
	require.True(t, d.nextLocation())

	for it := 1; it <= 50; it++ {
		d.ctx.iter = it
		d.ctx.mem.direction(d.loc.g, d.ctx.dir)
		for i, g := range d.loc.g {
			require.True(t, d.ctx.dir[i] == -g)
		}
		d.ctx.fOld = d.loc.f
		copy(d.ctx.xOld, d.loc.x)
		copy(d.ctx.gOld, d.loc.g)
		if d.searchWolfe() != searchFound {
			break
		}
		if floats.Norm(d.loc.g, math.Inf(1)) <= 1e-6 {
			break
		}
	}
	assert.InDelta(t, 1.0, d.loc.x[0], 1e-5)
	assert.InDelta(t, 5.0, d.loc.x[1], 1e-5)

	r := m.Minimize()
	assert.Equal(t, Converged, r.Status)
}

func TestMonotonicIterates(t *testing.T) {

	// Accepted iterates never move uphill: the sufficient-decrease
	// condition enforces a strict decrease on every successful search.
	m, err := (&Problem{Objective: rosenbrock}).New(nil)
	require.NoError(t, err)

	d := m.newDriver()
	require.True(t, d.nextLocation())

	prev := d.loc.f
	for it := 1; it <= 100; it++ {
		d.ctx.iter = it
		d.ctx.mem.direction(d.loc.g, d.ctx.dir)
		if floats.Dot(d.ctx.dir, d.loc.g) >= 0 {
			for i, g := range d.loc.g {
				d.ctx.dir[i] = -g
			}
		}
		d.ctx.fOld = d.loc.f
		copy(d.ctx.xOld, d.loc.x)
		copy(d.ctx.gOld, d.loc.g)
		if d.searchWolfe() != searchFound {
			break
		}
		require.LessOrEqual(t, d.loc.f, prev)
		prev = d.loc.f
		d.ctx.mem.insert(d.loc.x, d.ctx.xOld, d.loc.g, d.ctx.gOld)
		if floats.Norm(d.loc.g, math.Inf(1)) <= 1e-6 {
			break
		}
	}
	assert.InDelta(t, 1.0, d.loc.x[0], 1e-4)
}

func TestConcurrentRuns(t *testing.T) {

	// Independent runs share nothing and may proceed in parallel.
	done := make(chan *Result, 4)
	for i := 0; i < 4; i++ {
		m, err := (&Problem{Objective: quadratic}).New(nil)
		require.NoError(t, err)
		go func() { done <- m.Minimize() }()
	}
	for i := 0; i < 4; i++ {
		r := <-done
		assert.Equal(t, Converged, r.Status)
		assert.InDelta(t, 10.0, r.F, 1e-10)
	}
}

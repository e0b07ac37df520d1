// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lbfgs

import (
	"gonum.org/v1/gonum/floats"
)

// corrMemory keeps the bounded curvature history of the run:
// up to m correction pairs
//
//	sᵢ = xₖ - xₖ₋₁
//	yᵢ = gₖ - gₖ₋₁
//
// in a fixed-capacity ring, oldest pair evicted first. All storage is
// allocated once from a single arena, so iteration causes no churn.
type corrMemory struct {
	m     int // capacity, may be 0
	count int // stored pairs, ≤ m
	head  int // ring index of the oldest pair
	s     [][]float64
	y     [][]float64
	rho   []float64 // ρᵢ = 1/(yᵢᵀsᵢ)
	alpha []float64 // backward-pass coefficients of the two-loop recursion
}

func newCorrMemory(n, m int) *corrMemory {
	cm := &corrMemory{m: m}
	if m > 0 {
		arena := make([]float64, 2*m*n)
		cm.s = make([][]float64, m)
		cm.y = make([][]float64, m)
		for i := 0; i < m; i++ {
			cm.s[i] = arena[2*i*n : (2*i+1)*n : (2*i+1)*n]
			cm.y[i] = arena[(2*i+1)*n : (2*i+2)*n : (2*i+2)*n]
		}
		cm.rho = make([]float64, m)
		cm.alpha = make([]float64, m)
	}
	return cm
}

// slot returns the ring index of the k-th stored pair, oldest first.
func (cm *corrMemory) slot(k int) int {
	return (cm.head + k) % cm.m
}

// insert records the correction pair formed by two consecutive iterates,
// evicting the oldest pair when the ring is full. Pairs with yᵀs ≤ 0
// would make the inverse-Hessian approximation indefinite and are
// rejected, leaving the stored set unchanged.
func (cm *corrMemory) insert(xNew, xOld, gNew, gOld []float64) bool {
	if cm.m == 0 {
		return false
	}

	// Test the curvature before touching the ring: a rejected pair must
	// leave every stored pair intact, including the eviction candidate.
	ys := zero
	for i, xn := range xNew {
		ys += (xn - xOld[i]) * (gNew[i] - gOld[i])
	}
	if ys <= zero {
		return false
	}

	at := cm.head
	if cm.count < cm.m {
		at = cm.slot(cm.count)
	}

	floats.SubTo(cm.s[at], xNew, xOld)
	floats.SubTo(cm.y[at], gNew, gOld)
	cm.rho[at] = one / ys

	if cm.count < cm.m {
		cm.count++
	} else {
		cm.head = cm.slot(1)
	}
	return true
}

// reset discards every stored pair, restarting from steepest descent.
func (cm *corrMemory) reset() {
	cm.count = 0
	cm.head = 0
}

// direction computes dir = -Hₖgₖ with the two-loop recursion, where Hₖ is
// the inverse-Hessian approximation induced by the stored pairs:
//
//	q ← g
//	for i = newest..oldest:  ɑᵢ = ρᵢsᵢᵀq ; q ← q - ɑᵢyᵢ
//	q ← γq  with  γ = (sᵀy)/(yᵀy) of the newest pair
//	for i = oldest..newest:  β = ρᵢyᵢᵀq ; q ← q + (ɑᵢ-β)sᵢ
//
// With an empty history the result is plain steepest descent -g.
func (cm *corrMemory) direction(g, dir []float64) {
	if len(dir) != len(g) {
		panic("bound check error")
	}
	copy(dir, g)

	if cm.count > 0 {
		q := dir
		for k := cm.count - 1; k >= 0; k-- {
			i := cm.slot(k)
			cm.alpha[i] = cm.rho[i] * floats.Dot(cm.s[i], q)
			floats.AddScaled(q, -cm.alpha[i], cm.y[i])
		}

		// Initial Hessian diagonal estimate H⁰ = γI.
		last := cm.slot(cm.count - 1)
		gamma := one
		if yy := floats.Dot(cm.y[last], cm.y[last]); yy > zero {
			gamma = one / (cm.rho[last] * yy)
		}
		floats.Scale(gamma, q)

		for k := 0; k < cm.count; k++ {
			i := cm.slot(k)
			beta := cm.rho[i] * floats.Dot(cm.y[i], q)
			floats.AddScaled(q, cm.alpha[i]-beta, cm.s[i])
		}
	}

	for i, q := range dir {
		dir[i] = -q
	}
}

package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Distribution computes the outcome distribution for a set of active
// predicate ids and writes it to dist.
//
// numFeats is scratch space of the same length as dist; on return it holds
// the number of active predicates that carry a parameter for each outcome.
// Both buffers belong to the caller, so concurrent calls never share state.
//
// For outcome o with n[o] such predicates:
//
//	p(o) ∝ exp(log(1/N) + Σ w[p][o]/C + (1 − n[o]/C)·correctionParam)
func Distribution(contexts []Context, active []int, correctionConstant int, correctionParam float64, dist []float64, numFeats []int) {
	prior := math.Log(1 / float64(len(dist)))
	for o := range dist {
		dist[o] = prior
		numFeats[o] = 0
	}

	inv := 1 / float64(correctionConstant)
	for _, pid := range active {
		c := contexts[pid]
		for j, o := range c.Outcomes {
			dist[o] += c.Params[j] * inv
			numFeats[o]++
		}
	}

	for o := range dist {
		dist[o] += (1 - float64(numFeats[o])*inv) * correctionParam
	}

	// Shift by the max before exponentiating so large weights cannot overflow.
	top := floats.Max(dist)
	for o := range dist {
		dist[o] = math.Exp(dist[o] - top)
	}
	floats.Scale(1/floats.Sum(dist), dist)
}

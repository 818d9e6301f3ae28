package model

import (
	"fmt"
	"slices"
	"sort"
)

// Context holds the trained parameters of one predicate: a sparse map from
// outcome id to weight, stored as two parallel slices sorted by outcome.
type Context struct {
	Outcomes []int
	Params   []float64
}

// NewContext builds a Context from parallel outcome/param slices.
// The input is copied and sorted by outcome id.
func NewContext(outcomes []int, params []float64) (Context, error) {
	if len(outcomes) != len(params) {
		return Context{}, fmt.Errorf("context has %d outcomes but %d params", len(outcomes), len(params))
	}

	c := Context{
		Outcomes: slices.Clone(outcomes),
		Params:   slices.Clone(params),
	}
	sort.Sort(byOutcome(c))

	for i := 1; i < len(c.Outcomes); i++ {
		if c.Outcomes[i] == c.Outcomes[i-1] {
			return Context{}, fmt.Errorf("context lists outcome %d twice", c.Outcomes[i])
		}
	}
	return c, nil
}

// Len returns the number of outcomes with a parameter.
func (c Context) Len() int {
	return len(c.Outcomes)
}

// Param returns the weight for outcome, if the predicate has one.
func (c Context) Param(outcome int) (float64, bool) {
	i, ok := slices.BinarySearch(c.Outcomes, outcome)
	if !ok {
		return 0, false
	}
	return c.Params[i], true
}

func (c Context) clone() Context {
	return Context{
		Outcomes: slices.Clone(c.Outcomes),
		Params:   slices.Clone(c.Params),
	}
}

type byOutcome Context

func (b byOutcome) Len() int           { return len(b.Outcomes) }
func (b byOutcome) Less(i, j int) bool { return b.Outcomes[i] < b.Outcomes[j] }
func (b byOutcome) Swap(i, j int) {
	b.Outcomes[i], b.Outcomes[j] = b.Outcomes[j], b.Outcomes[i]
	b.Params[i], b.Params[j] = b.Params[j], b.Params[i]
}

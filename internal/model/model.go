/*
Package model holds a trained maximum entropy model and evaluates it.

A Model is immutable once built. Every evaluation allocates (or is handed)
its own buffers, so a single Model can serve any number of goroutines.
*/
package model

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidModel is wrapped by every validation failure in New.
var ErrInvalidModel = errors.New("invalid model")

// Model is a trained GIS model.
type Model struct {
	contexts           []Context
	predIndex          map[string]int
	predLabels         []string
	outcomeNames       []string
	correctionConstant int
	correctionParam    float64
}

// Prediction pairs an outcome with its probability.
type Prediction struct {
	Outcome     string  `json:"outcome"`
	Probability float64 `json:"probability"`
}

// New builds a Model from its persisted form: one Context per predicate
// (indexed like predLabels), the ordered outcome names, the correction
// constant and the correction parameter. Inputs are copied.
func New(contexts []Context, predLabels, outcomeNames []string, correctionConstant int, correctionParam float64) (*Model, error) {
	if len(outcomeNames) == 0 {
		return nil, fmt.Errorf("%w: no outcomes", ErrInvalidModel)
	}
	if correctionConstant < 1 {
		return nil, fmt.Errorf("%w: correction constant must be positive, got %d", ErrInvalidModel, correctionConstant)
	}
	if len(contexts) != len(predLabels) {
		return nil, fmt.Errorf("%w: %d contexts for %d predicates", ErrInvalidModel, len(contexts), len(predLabels))
	}

	seen := make(map[string]struct{}, len(outcomeNames))
	for _, name := range outcomeNames {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate outcome %q", ErrInvalidModel, name)
		}
		seen[name] = struct{}{}
	}

	m := &Model{
		contexts:           make([]Context, len(contexts)),
		predIndex:          make(map[string]int, len(predLabels)),
		predLabels:         slices.Clone(predLabels),
		outcomeNames:       slices.Clone(outcomeNames),
		correctionConstant: correctionConstant,
		correctionParam:    correctionParam,
	}

	for pid, label := range predLabels {
		if _, dup := m.predIndex[label]; dup {
			return nil, fmt.Errorf("%w: duplicate predicate %q", ErrInvalidModel, label)
		}
		m.predIndex[label] = pid

		c := contexts[pid]
		if len(c.Outcomes) != len(c.Params) {
			return nil, fmt.Errorf("%w: predicate %q has %d outcomes and %d params", ErrInvalidModel, label, len(c.Outcomes), len(c.Params))
		}
		for i, o := range c.Outcomes {
			if o < 0 || o >= len(outcomeNames) {
				return nil, fmt.Errorf("%w: predicate %q references outcome %d of %d", ErrInvalidModel, label, o, len(outcomeNames))
			}
			if i > 0 && o <= c.Outcomes[i-1] {
				return nil, fmt.Errorf("%w: predicate %q outcomes are not strictly increasing", ErrInvalidModel, label)
			}
		}
		m.contexts[pid] = c.clone()
	}

	return m, nil
}

// Eval returns the probability of every outcome given the active predicates.
// Predicates the model has never seen are ignored.
func (m *Model) Eval(preds []string) []float64 {
	return m.EvalInto(preds, nil)
}

// EvalInto is Eval writing into dst, which is reused when it has room for every outcome.
func (m *Model) EvalInto(preds []string, dst []float64) []float64 {
	ids := make([]int, 0, len(preds))
	for _, p := range preds {
		if pid, ok := m.predIndex[p]; ok {
			ids = append(ids, pid)
		}
	}
	return m.EvalContext(ids, dst)
}

// EvalContext evaluates a set of predicate ids.
func (m *Model) EvalContext(ids []int, dst []float64) []float64 {
	n := len(m.outcomeNames)
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	numFeats := make([]int, n)
	Distribution(m.contexts, ids, m.correctionConstant, m.correctionParam, dst, numFeats)
	return dst
}

// BestOutcome returns the name of the most probable outcome. Ties go to the lowest id.
func (m *Model) BestOutcome(dist []float64) string {
	if len(dist) == 0 {
		return ""
	}
	return m.outcomeNames[floats.MaxIdx(dist)]
}

// AllOutcomesFormatted renders a distribution as "A[0.7500] B[0.2500]" in outcome id order.
func (m *Model) AllOutcomesFormatted(dist []float64) string {
	var sb strings.Builder
	for i, p := range dist {
		if i >= len(m.outcomeNames) {
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s[%.4f]", m.outcomeNames[i], p)
	}
	return sb.String()
}

// Ranked returns the distribution as predictions sorted by descending probability.
func (m *Model) Ranked(dist []float64) []Prediction {
	out := make([]Prediction, 0, len(dist))
	for i, p := range dist {
		if i >= len(m.outcomeNames) {
			break
		}
		out = append(out, Prediction{Outcome: m.outcomeNames[i], Probability: p})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}

// Outcome returns the name of outcome i.
func (m *Model) Outcome(i int) string {
	return m.outcomeNames[i]
}

// Index returns the id of an outcome, or -1 if the model does not know it.
func (m *Model) Index(outcome string) int {
	return slices.Index(m.outcomeNames, outcome)
}

// NumOutcomes returns the number of outcomes.
func (m *Model) NumOutcomes() int {
	return len(m.outcomeNames)
}

// Outcomes returns a copy of the outcome names in id order.
func (m *Model) Outcomes() []string {
	return slices.Clone(m.outcomeNames)
}

// NumPredicates returns the size of the predicate vocabulary.
func (m *Model) NumPredicates() int {
	return len(m.predLabels)
}

// Predicates returns a copy of the predicate names in id order.
func (m *Model) Predicates() []string {
	return slices.Clone(m.predLabels)
}

// PredicateIndex returns the id of a predicate.
func (m *Model) PredicateIndex(name string) (int, bool) {
	pid, ok := m.predIndex[name]
	return pid, ok
}

// Context returns a copy of the parameters of predicate pid.
func (m *Model) Context(pid int) Context {
	return m.contexts[pid].clone()
}

// CorrectionConstant returns C, the maximum number of active predicates seen in training.
func (m *Model) CorrectionConstant() int {
	return m.correctionConstant
}

// CorrectionParam returns the weight of the correction feature.
func (m *Model) CorrectionParam() float64 {
	return m.correctionParam
}

package gis

import (
	"math"
	"slices"

	"github.com/khanglvm/maxent/internal/index"
	"github.com/khanglvm/maxent/internal/model"
)

// cfObservedFloor is the observed correction mass used when every row already
// has C active features.
const cfObservedFloor = 0.01

// parameters is the trainable state, stored flat. Predicate pid owns
// params[offsets[pid]:offsets[pid+1]]; contexts[pid] views that range so the
// trainer evaluates rows with the same code as a finished model.
type parameters struct {
	offsets  []int
	outcomes []int
	params   []float64
	observed []float64
	contexts []model.Context

	correctionConstant int
	correctionParam    float64
	cfObserved         float64
}

// newParameters decides which (predicate, outcome) pairs are tracked and
// computes their observed expectations.
func newParameters(m *index.Matrix, smoothing bool, smoothingObservation float64) *parameters {
	numPreds := m.NumPredicates()
	numOutcomes := m.NumOutcomes()

	seen := make([][]int, numPreds)
	for _, row := range m.Rows {
		for _, pid := range row.Predicates {
			seen[pid] = append(seen[pid], row.Outcome)
		}
	}

	p := &parameters{
		offsets:            make([]int, numPreds+1),
		contexts:           make([]model.Context, numPreds),
		correctionConstant: m.MaxRowLength(),
	}

	allOutcomes := make([]int, numOutcomes)
	for o := range allOutcomes {
		allOutcomes[o] = o
	}

	for pid := range seen {
		tracked := allOutcomes
		if !smoothing {
			slices.Sort(seen[pid])
			tracked = slices.Compact(seen[pid])
		}
		p.outcomes = append(p.outcomes, tracked...)
		p.offsets[pid+1] = len(p.outcomes)
	}

	p.params = make([]float64, len(p.outcomes))
	p.observed = make([]float64, len(p.outcomes))
	for pid := range p.contexts {
		lo, hi := p.offsets[pid], p.offsets[pid+1]
		p.contexts[pid] = model.Context{
			Outcomes: p.outcomes[lo:hi:hi],
			Params:   p.params[lo:hi:hi],
		}
	}

	obs := newFeatureAccumulator(len(p.params), numOutcomes)
	for _, row := range m.Rows {
		obs.observe(p, row)
	}

	for i, count := range obs.modifiers {
		if count > 0 {
			p.observed[i] = math.Log(count)
		} else {
			p.observed[i] = math.Log(smoothingObservation)
		}
	}

	if obs.correction > 0 {
		p.cfObserved = math.Log(obs.correction)
	} else {
		p.cfObserved = math.Log(cfObservedFloor)
	}

	return p
}

// update applies one GIS step from the model expectations in acc.
func (p *parameters) update(acc *featureAccumulator) {
	for i, mod := range acc.modifiers {
		if mod > 0 {
			p.params[i] += p.observed[i] - math.Log(mod)
		}
	}
	if acc.correction > 0 {
		p.correctionParam += p.cfObserved - math.Log(acc.correction)
	}
}

type snapshot struct {
	params          []float64
	correctionParam float64
}

func (p *parameters) save(s *snapshot) {
	s.params = append(s.params[:0], p.params...)
	s.correctionParam = p.correctionParam
}

func (p *parameters) restore(s *snapshot) {
	copy(p.params, s.params)
	p.correctionParam = s.correctionParam
}

// toModel copies the parameters into an immutable model.
func (p *parameters) toModel(m *index.Matrix) (*model.Model, error) {
	return model.New(p.contexts, m.PredLabels, m.OutcomeLabels, p.correctionConstant, p.correctionParam)
}

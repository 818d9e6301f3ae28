package gis

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/khanglvm/maxent/internal/index"
	"github.com/khanglvm/maxent/internal/model"
)

// featureAccumulator sums expected feature values over rows.
//
// Every tracked (predicate, outcome) pair is a feature with value 1 when the
// predicate is active. The correction feature has value C − n[o], where n[o]
// counts the tracked features of outcome o active in the row, so that every
// (row, outcome) pair sees exactly C units of feature mass. Both kinds are
// summed by accumulate.
type featureAccumulator struct {
	modifiers  []float64 // parallel to parameters.params
	correction float64
	logLik     float64
	correct    float64 // weight of rows whose best outcome is the observed one

	dist     []float64
	numFeats []int
}

func newFeatureAccumulator(numParams, numOutcomes int) *featureAccumulator {
	return &featureAccumulator{
		modifiers: make([]float64, numParams),
		dist:      make([]float64, numOutcomes),
		numFeats:  make([]int, numOutcomes),
	}
}

func (a *featureAccumulator) reset() {
	clear(a.modifiers)
	a.correction = 0
	a.logLik = 0
	a.correct = 0
}

// accumulate adds the expected value of every feature of a row under dist,
// scaled by the row weight. numFeats must describe the same row.
func (a *featureAccumulator) accumulate(p *parameters, preds []int, dist []float64, numFeats []int, weight float64) {
	for _, pid := range preds {
		off := p.offsets[pid]
		for j, o := range p.contexts[pid].Outcomes {
			a.modifiers[off+j] += dist[o] * weight
		}
	}
	c := float64(p.correctionConstant)
	for o, d := range dist {
		a.correction += d * weight * (c - float64(numFeats[o]))
	}
}

// observe adds a row's empirical feature counts: all mass on its outcome.
func (a *featureAccumulator) observe(p *parameters, row index.Row) {
	clear(a.dist)
	clear(a.numFeats)
	a.dist[row.Outcome] = 1
	for _, pid := range row.Predicates {
		for _, o := range p.contexts[pid].Outcomes {
			a.numFeats[o]++
		}
	}
	a.accumulate(p, row.Predicates, a.dist, a.numFeats, float64(row.Weight))
}

// expect adds a row's feature expectations under the current parameters.
func (a *featureAccumulator) expect(p *parameters, row index.Row) {
	model.Distribution(p.contexts, row.Predicates, p.correctionConstant, p.correctionParam, a.dist, a.numFeats)

	w := float64(row.Weight)
	a.accumulate(p, row.Predicates, a.dist, a.numFeats, w)
	a.logLik += w * math.Log(a.dist[row.Outcome])
	if floats.MaxIdx(a.dist) == row.Outcome {
		a.correct += w
	}
}

// add merges another accumulator into a.
func (a *featureAccumulator) add(b *featureAccumulator) {
	floats.Add(a.modifiers, b.modifiers)
	a.correction += b.correction
	a.logLik += b.logLik
	a.correct += b.correct
}

// shards evaluates rows across a fixed set of accumulators.
type shards struct {
	bounds []int // shard i covers rows[bounds[i]:bounds[i+1]]
	accs   []*featureAccumulator
}

func newShards(numRows, workers, numParams, numOutcomes int) *shards {
	workers = max(1, min(workers, numRows))
	s := &shards{
		bounds: make([]int, workers+1),
		accs:   make([]*featureAccumulator, workers),
	}
	for i := range s.accs {
		s.bounds[i+1] = numRows * (i + 1) / workers
		s.accs[i] = newFeatureAccumulator(numParams, numOutcomes)
	}
	return s
}

// run computes model expectations for every row and returns the reduced
// accumulator. Shards are reduced in index order so that the result depends
// only on the worker count.
func (s *shards) run(ctx context.Context, p *parameters, rows []index.Row) (*featureAccumulator, error) {
	if len(s.accs) == 1 {
		acc := s.accs[0]
		acc.reset()
		for _, row := range rows {
			acc.expect(p, row)
		}
		return acc, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, acc := range s.accs {
		acc := acc
		shardRows := rows[s.bounds[i]:s.bounds[i+1]]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			acc.reset()
			for _, row := range shardRows {
				acc.expect(p, row)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := s.accs[0]
	for _, acc := range s.accs[1:] {
		total.add(acc)
	}
	return total, nil
}

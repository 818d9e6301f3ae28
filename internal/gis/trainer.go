/*
Package gis trains maximum entropy models with Generalized Iterative Scaling.

GIS needs every (row, outcome) pair to carry the same total feature mass C.
Rows with fewer active features are topped up by a synthetic correction
feature, which is trained like any other feature and stored in the model as
its correction parameter.
*/
package gis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/index"
	"github.com/khanglvm/maxent/internal/model"
)

// convergenceThreshold is the smallest log-likelihood gain worth another iteration.
const convergenceThreshold = 1e-4

var (
	// ErrNoEvents is returned when the training stream was empty.
	ErrNoEvents = errors.New("no training events")

	// ErrNoPredicates is returned when no predicate survived the cutoff.
	ErrNoPredicates = errors.New("no predicates survived the cutoff")

	// ErrNoRows is returned when every event was dropped during indexing.
	ErrNoRows = errors.New("no trainable rows")
)

// IterationStats describes one completed iteration.
type IterationStats struct {
	Iteration     int
	LogLikelihood float64

	// Accuracy is the weighted fraction of training rows whose most probable
	// outcome is the observed one.
	Accuracy float64
	Elapsed  time.Duration
}

// ProgressFunc is called after every iteration. It runs on the training goroutine.
type ProgressFunc func(IterationStats)

// Result summarizes the last call to Train.
type Result struct {
	// Iterations is the number of parameter updates kept in the model.
	Iterations    int
	LogLikelihood float64
	Accuracy      float64

	// Converged is set when training stopped because the log-likelihood gain fell below the threshold.
	Converged bool

	// Diverged is set when the log-likelihood dropped; the previous parameters were restored.
	Diverged bool

	Elapsed time.Duration
}

// Trainer runs GIS over an indexed matrix. A Trainer must not be used by
// more than one goroutine at a time.
type Trainer struct {
	// Iterations is the maximum number of GIS rounds.
	Iterations int

	// Smoothing tracks every (predicate, outcome) pair, giving unseen pairs
	// SmoothingObservation as a fabricated count.
	Smoothing            bool
	SmoothingObservation float64

	// Workers splits row evaluation across goroutines when greater than 1.
	Workers int

	Logger   *zap.Logger
	Progress ProgressFunc

	// adjustLL, when set, replaces the log-likelihood measured at an iteration.
	adjustLL func(iteration int, ll float64) float64

	result Result
}

type stopCause int

const (
	keepTraining stopCause = iota
	stopDiverged
	stopConverged
)

// stopReason decides whether training ends after measuring ll at iteration it.
func stopReason(it int, ll, prevLL float64) stopCause {
	switch {
	case it == 1:
		return keepTraining
	case ll < prevLL:
		return stopDiverged
	case ll-prevLL < convergenceThreshold:
		return stopConverged
	}
	return keepTraining
}

// NewTrainer creates a Trainer with the default settings.
func NewTrainer(iterations int) *Trainer {
	return &Trainer{
		Iterations:           iterations,
		SmoothingObservation: DefaultSmoothingObservation,
		Workers:              1,
	}
}

// Result returns the outcome of the last Train call.
func (t *Trainer) Result() Result {
	return t.result
}

func (t *Trainer) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func (t *Trainer) validate(m *index.Matrix) error {
	if t.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", t.Iterations)
	}
	if t.Smoothing && t.SmoothingObservation <= 0 {
		return fmt.Errorf("smoothing observation must be positive, got %g", t.SmoothingObservation)
	}
	return CheckMatrix(m)
}

// CheckMatrix reports whether m can be trained at all, returning ErrNoEvents,
// ErrNoPredicates or ErrNoRows.
func CheckMatrix(m *index.Matrix) error {
	switch {
	case m.NumEvents == 0:
		return ErrNoEvents
	case m.NumPredicates() == 0:
		return ErrNoPredicates
	case m.Len() == 0:
		return ErrNoRows
	}
	return nil
}

// Train estimates a model from m. The context is checked between iterations;
// a canceled training returns no model.
func (t *Trainer) Train(ctx context.Context, m *index.Matrix) (*model.Model, error) {
	t.result = Result{}
	if err := t.validate(m); err != nil {
		return nil, err
	}

	log := t.logger()
	start := time.Now()

	p := newParameters(m, t.Smoothing, t.SmoothingObservation)
	log.Info("starting GIS training",
		zap.Int("events", m.NumEvents),
		zap.Int("rows", m.Len()),
		zap.Int("predicates", m.NumPredicates()),
		zap.Int("outcomes", m.NumOutcomes()),
		zap.Int("parameters", len(p.params)),
		zap.Int("correction_constant", p.correctionConstant),
		zap.Int("iterations", t.Iterations),
		zap.Bool("smoothing", t.Smoothing),
	)

	totalWeight := 0.0
	for _, row := range m.Rows {
		totalWeight += float64(row.Weight)
	}

	sh := newShards(m.Len(), t.Workers, len(p.params), m.NumOutcomes())
	var prev snapshot
	var prevLL float64

	for it := 1; it <= t.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training canceled after %d iterations: %w", it-1, err)
		}

		acc, err := sh.run(ctx, p, m.Rows)
		if err != nil {
			return nil, fmt.Errorf("training canceled after %d iterations: %w", it-1, err)
		}
		ll := acc.logLik
		if t.adjustLL != nil {
			ll = t.adjustLL(it, ll)
		}
		accuracy := acc.correct / totalWeight
		cause := stopReason(it, ll, prevLL)

		// ll measures the parameters produced by the previous update. If it
		// dropped, the parameters before that update were better.
		if cause == stopDiverged {
			log.Warn("log-likelihood decreased, restoring previous parameters",
				zap.Int("iteration", it),
				zap.Float64("loglikelihood", ll),
				zap.Float64("previous", prevLL),
			)
			p.restore(&prev)
			t.result.Diverged = true
			t.result.Iterations--
			break
		}

		p.save(&prev)
		p.update(acc)

		stats := IterationStats{
			Iteration:     it,
			LogLikelihood: ll,
			Accuracy:      accuracy,
			Elapsed:       time.Since(start),
		}
		t.result.Iterations = it
		t.result.LogLikelihood = ll
		t.result.Accuracy = accuracy

		log.Debug("iteration",
			zap.Int("iteration", it),
			zap.Float64("loglikelihood", ll),
			zap.Float64("accuracy", accuracy),
		)
		if t.Progress != nil {
			t.Progress(stats)
		}

		if cause == stopConverged {
			t.result.Converged = true
			break
		}
		prevLL = ll
	}

	t.result.Elapsed = time.Since(start)
	log.Info("finished GIS training",
		zap.Int("iterations", t.result.Iterations),
		zap.Float64("loglikelihood", t.result.LogLikelihood),
		zap.Bool("converged", t.result.Converged),
		zap.Bool("diverged", t.result.Diverged),
		zap.Duration("elapsed", t.result.Elapsed),
	)

	return p.toModel(m)
}

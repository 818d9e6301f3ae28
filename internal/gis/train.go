package gis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/event"
	"github.com/khanglvm/maxent/internal/index"
	"github.com/khanglvm/maxent/internal/model"
)

const (
	DefaultIterations           = 100
	DefaultCutoff               = 0
	DefaultSmoothingObservation = 0.1
)

// Options configures TrainModel.
type Options struct {
	Iterations           int
	Cutoff               int
	Smoothing            bool
	SmoothingObservation float64
	Workers              int
	Logger               *zap.Logger
	Progress             ProgressFunc
}

// DefaultOptions returns the standard training settings.
func DefaultOptions() Options {
	return Options{
		Iterations:           DefaultIterations,
		Cutoff:               DefaultCutoff,
		SmoothingObservation: DefaultSmoothingObservation,
		Workers:              1,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", o.Iterations)
	}
	if o.Cutoff < 0 {
		return fmt.Errorf("cutoff must be non-negative, got %d", o.Cutoff)
	}
	if o.Smoothing && o.SmoothingObservation <= 0 {
		return fmt.Errorf("smoothing observation must be positive, got %g", o.SmoothingObservation)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", o.Workers)
	}
	return nil
}

// Trainer builds a Trainer carrying these options.
func (o Options) Trainer() *Trainer {
	return &Trainer{
		Iterations:           o.Iterations,
		Smoothing:            o.Smoothing,
		SmoothingObservation: o.SmoothingObservation,
		Workers:              o.Workers,
		Logger:               o.Logger,
		Progress:             o.Progress,
	}
}

// TrainModel indexes stream and trains a model on it.
func TrainModel(ctx context.Context, stream event.Stream, opts Options) (*model.Model, error) {
	m, _, err := Run(ctx, stream, opts)
	return m, err
}

// Run is TrainModel that also returns the training result.
func Run(ctx context.Context, stream event.Stream, opts Options) (*model.Model, Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, Result{}, err
	}

	matrix, err := index.Index(ctx, stream, opts.Cutoff)
	if err != nil {
		return nil, Result{}, fmt.Errorf("failed to index events: %w", err)
	}

	if opts.Logger != nil && matrix.Dropped > 0 {
		opts.Logger.Info("dropped events with no surviving predicates", zap.Int("dropped", matrix.Dropped))
	}

	trainer := opts.Trainer()
	mdl, err := trainer.Train(ctx, matrix)
	if err != nil {
		return nil, trainer.Result(), err
	}
	return mdl, trainer.Result(), nil
}

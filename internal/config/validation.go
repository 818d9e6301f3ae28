package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/khanglvm/maxent/internal/event"
)

// Validate checks that every setting is in range.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if t := cfg.Training; t != nil {
		if err := ValidateTraining(t); err != nil {
			return err
		}
	}
	if s := cfg.Storage; s != nil {
		if s.CacheSize < 1 {
			return fmt.Errorf("storage.cacheSize must be at least 1, got %d", s.CacheSize)
		}
		if s.RetentionDays < 0 {
			return fmt.Errorf("storage.retentionDays must not be negative, got %d", s.RetentionDays)
		}
	}
	if l := cfg.Log; l != nil {
		if _, err := zapcore.ParseLevel(l.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
		if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
			return fmt.Errorf("log rotation settings must not be negative")
		}
	}
	return nil
}

// ValidateTraining checks the training settings alone. The CLI calls it
// after applying flag overrides.
func ValidateTraining(t *TrainingSettings) error {
	if t.Iterations < 1 {
		return fmt.Errorf("training.iterations must be at least 1, got %d", t.Iterations)
	}
	if t.Cutoff < 0 {
		return fmt.Errorf("training.cutoff must not be negative, got %d", t.Cutoff)
	}
	if t.SmoothingObservation <= 0 {
		return fmt.Errorf("training.smoothingObservation must be positive, got %g", t.SmoothingObservation)
	}
	if t.Workers < 1 {
		return fmt.Errorf("training.workers must be at least 1, got %d", t.Workers)
	}
	if _, err := event.ParseFormat(t.Format); err != nil {
		return fmt.Errorf("training.format: %w", err)
	}
	return nil
}

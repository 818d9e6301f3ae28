package storage

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// StartRun opens a training run record and returns its id.
// With storage disabled it returns 0 and no error.
func (s *SQLiteStorage) StartRun(run TrainingRun) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}

	res, err := s.db.Exec(`
		INSERT INTO training_runs (model_name, source, num_events, num_rows, num_predicates, num_outcomes, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ModelName,
		run.Source,
		run.Events,
		run.Rows,
		run.Predicates,
		run.Outcomes,
		string(run.Status),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record training run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get training run id: %w", err)
	}
	return id, nil
}

// RecordIterations appends per-iteration statistics to a run in one transaction.
func (s *SQLiteStorage) RecordIterations(runID int64, iterations []IterationRecord) error {
	if !s.Enabled() || runID == 0 || len(iterations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, it := range iterations {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO training_iterations (run_id, iteration, log_likelihood, accuracy, elapsed_ms)
			VALUES (?, ?, ?, ?, ?)
		`, runID, it.Iteration, it.LogLikelihood, it.Accuracy, it.Elapsed.Milliseconds()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record iteration %d: %w", it.Iteration, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit iterations: %w", err)
	}
	return nil
}

// FinishRun stores the final state of a run.
func (s *SQLiteStorage) FinishRun(run TrainingRun) error {
	if !s.Enabled() || run.ID == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	if _, err := s.db.Exec(`
		UPDATE training_runs
		SET num_events = ?, num_rows = ?, num_predicates = ?, num_outcomes = ?,
			iterations = ?, log_likelihood = ?, status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`,
		run.Events,
		run.Rows,
		run.Predicates,
		run.Outcomes,
		run.Iterations,
		run.LogLikelihood,
		string(run.Status),
		run.Error,
		formatTime(run.FinishedAt),
		run.ID,
	); err != nil {
		return fmt.Errorf("failed to finish training run %d: %w", run.ID, err)
	}
	return nil
}

// GetTrainingHistory returns the runs of a model, newest first.
// A limit of 0 or less returns every run.
func (s *SQLiteStorage) GetTrainingHistory(modelName string, limit int) ([]TrainingRun, error) {
	if !s.Enabled() {
		return []TrainingRun{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT id, model_name, source, num_events, num_rows, num_predicates, num_outcomes,
			iterations, log_likelihood, status, error, started_at, finished_at
		FROM training_runs
		WHERE model_name = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, modelName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training history: %w", err)
	}
	defer rows.Close()

	runs := []TrainingRun{}
	for rows.Next() {
		var run TrainingRun
		var status, startedAt, finishedAt string
		if err := rows.Scan(
			&run.ID,
			&run.ModelName,
			&run.Source,
			&run.Events,
			&run.Rows,
			&run.Predicates,
			&run.Outcomes,
			&run.Iterations,
			&run.LogLikelihood,
			&status,
			&run.Error,
			&startedAt,
			&finishedAt,
		); err != nil {
			s.logger.Warn("failed to scan training run", zap.Error(err))
			continue
		}
		run.Status = RunStatus(status)

		if run.StartedAt, err = parseTime(startedAt); err != nil {
			s.logger.Warn("failed to parse timestamp", zap.Error(err))
			continue
		}
		if run.FinishedAt, err = parseTime(finishedAt); err != nil {
			s.logger.Warn("failed to parse timestamp", zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// GetIterations returns the recorded iterations of a run in order.
func (s *SQLiteStorage) GetIterations(runID int64) ([]IterationRecord, error) {
	if !s.Enabled() {
		return []IterationRecord{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT iteration, log_likelihood, accuracy, elapsed_ms
		FROM training_iterations
		WHERE run_id = ?
		ORDER BY iteration
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	records := []IterationRecord{}
	for rows.Next() {
		var rec IterationRecord
		var elapsedMs int64
		if err := rows.Scan(&rec.Iteration, &rec.LogLikelihood, &rec.Accuracy, &elapsedMs); err != nil {
			s.logger.Warn("failed to scan iteration", zap.Error(err))
			continue
		}
		rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, nil
}

// Cleanup removes training runs older than the retention period.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-retention))

	var err error
	if _, execErr := s.db.Exec(
		"DELETE FROM training_iterations WHERE run_id IN (SELECT id FROM training_runs WHERE started_at < ?)", cutoff,
	); execErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to clean up training_iterations: %w", execErr))
	}
	if _, execErr := s.db.Exec("DELETE FROM training_runs WHERE started_at < ?", cutoff); execErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to clean up training_runs: %w", execErr))
	}
	if _, execErr := s.db.Exec("VACUUM"); execErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to vacuum database: %w", execErr))
	}
	return err
}

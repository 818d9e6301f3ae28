package storage

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// runMigrations executes database schema migrations.
func (s *SQLiteStorage) runMigrations() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "model_schema", up: s.migration001ModelSchema},
		{version: 2, name: "training_history", up: s.migration002TrainingHistory},
	}

	for _, m := range migrations {
		if version < m.version {
			s.logger.Debug("running migration", zap.Int("version", m.version), zap.String("name", m.name))
			if err := m.up(); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if err := s.setMigrationVersion(m); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *SQLiteStorage) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLiteStorage) setMigrationVersion(m migration) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name)
	return err
}

// migration001ModelSchema creates the model tables.
func (s *SQLiteStorage) migration001ModelSchema() error {
	statements := []struct {
		what  string
		query string
	}{
		{"models table", `
			CREATE TABLE IF NOT EXISTS models (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				source TEXT NOT NULL DEFAULT '',
				outcomes TEXT NOT NULL,
				correction_constant INTEGER NOT NULL,
				correction_param REAL NOT NULL,
				num_predicates INTEGER NOT NULL,
				num_parameters INTEGER NOT NULL,
				num_patterns INTEGER NOT NULL,
				iterations INTEGER NOT NULL DEFAULT 0,
				cutoff INTEGER NOT NULL DEFAULT 0,
				smoothing INTEGER NOT NULL DEFAULT 0,
				log_likelihood REAL NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)
		`},
		{"outcome_patterns table", `
			CREATE TABLE IF NOT EXISTS outcome_patterns (
				model_id INTEGER NOT NULL REFERENCES models(id) ON DELETE CASCADE,
				pattern_id INTEGER NOT NULL,
				outcomes TEXT NOT NULL,
				PRIMARY KEY (model_id, pattern_id)
			)
		`},
		{"predicates table", `
			CREATE TABLE IF NOT EXISTS predicates (
				model_id INTEGER NOT NULL REFERENCES models(id) ON DELETE CASCADE,
				predicate_id INTEGER NOT NULL,
				name TEXT NOT NULL,
				pattern_id INTEGER NOT NULL,
				params TEXT NOT NULL,
				PRIMARY KEY (model_id, predicate_id)
			)
		`},
		{"predicates name index", `
			CREATE INDEX IF NOT EXISTS idx_predicates_name
			ON predicates(model_id, name)
		`},
	}

	for _, st := range statements {
		if _, err := s.db.Exec(st.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.what, err)
		}
	}
	return nil
}

// migration002TrainingHistory creates the run and iteration tables.
func (s *SQLiteStorage) migration002TrainingHistory() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS training_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			model_name TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			num_events INTEGER NOT NULL DEFAULT 0,
			num_rows INTEGER NOT NULL DEFAULT 0,
			num_predicates INTEGER NOT NULL DEFAULT 0,
			num_outcomes INTEGER NOT NULL DEFAULT 0,
			iterations INTEGER NOT NULL DEFAULT 0,
			log_likelihood REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("failed to create training_runs table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_training_runs_model
		ON training_runs(model_name, started_at DESC)
	`); err != nil {
		return fmt.Errorf("failed to create training_runs model index: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS training_iterations (
			run_id INTEGER NOT NULL REFERENCES training_runs(id) ON DELETE CASCADE,
			iteration INTEGER NOT NULL,
			log_likelihood REAL NOT NULL,
			accuracy REAL NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, iteration)
		)
	`); err != nil {
		return fmt.Errorf("failed to create training_iterations table: %w", err)
	}

	return nil
}

// toJSON encodes a slice for a TEXT column.
func toJSON[T any](values []T) (string, error) {
	if values == nil {
		values = []T{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// fromJSON decodes a TEXT column written by toJSON.
func fromJSON[T any](text string) ([]T, error) {
	var values []T
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return nil, err
	}
	return values, nil
}

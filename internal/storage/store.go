package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/model"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// SaveModel stores a model under info.Name, replacing any previous version.
// Size fields of info are filled in from the model.
func (s *SQLiteStorage) SaveModel(m *model.Model, info ModelInfo) (err error) {
	if info.Name == "" {
		return errors.New("model name is required")
	}
	if !s.Enabled() {
		return ErrDisabled
	}
	if math.IsNaN(m.CorrectionParam()) || math.IsInf(m.CorrectionParam(), 0) {
		return fmt.Errorf("model %q has a non-finite correction parameter", info.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	patterns := buildPatterns(m)
	outcomesJSON, err := toJSON(m.Outcomes())
	if err != nil {
		return fmt.Errorf("failed to encode outcomes: %w", err)
	}

	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}

	numParams := 0
	for pid := 0; pid < m.NumPredicates(); pid++ {
		numParams += m.Context(pid).Len()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { err = rollbackOnError(tx, err) }()

	if _, err = deleteModelTx(tx, info.Name); err != nil {
		return err
	}

	res, err := tx.Exec(`
		INSERT INTO models (name, description, source, outcomes, correction_constant, correction_param,
			num_predicates, num_parameters, num_patterns, iterations, cutoff, smoothing, log_likelihood, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		info.Name,
		info.Description,
		info.Source,
		outcomesJSON,
		m.CorrectionConstant(),
		m.CorrectionParam(),
		m.NumPredicates(),
		numParams,
		len(patterns.patterns),
		info.Iterations,
		info.Cutoff,
		boolToInt(info.Smoothing),
		info.LogLikelihood,
		formatTime(info.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert model: %w", err)
	}
	modelID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get model id: %w", err)
	}

	if err = insertPatterns(tx, modelID, patterns); err != nil {
		return err
	}
	if err = insertPredicates(tx, modelID, m, patterns); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit model: %w", err)
	}

	s.logger.Debug("saved model",
		zap.String("name", info.Name),
		zap.Int("predicates", m.NumPredicates()),
		zap.Int("patterns", len(patterns.patterns)),
	)
	return nil
}

func insertPatterns(tx *sql.Tx, modelID int64, patterns outcomePatterns) (err error) {
	stmt, err := tx.Prepare("INSERT INTO outcome_patterns (model_id, pattern_id, outcomes) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare pattern insert: %w", err)
	}
	defer func() { err = multierr.Append(err, stmt.Close()) }()

	for id, outcomes := range patterns.patterns {
		text, err := toJSON(outcomes)
		if err != nil {
			return fmt.Errorf("failed to encode pattern %d: %w", id, err)
		}
		if _, err := stmt.Exec(modelID, id, text); err != nil {
			return fmt.Errorf("failed to insert pattern %d: %w", id, err)
		}
	}
	return nil
}

func insertPredicates(tx *sql.Tx, modelID int64, m *model.Model, patterns outcomePatterns) (err error) {
	stmt, err := tx.Prepare("INSERT INTO predicates (model_id, predicate_id, name, pattern_id, params) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare predicate insert: %w", err)
	}
	defer func() { err = multierr.Append(err, stmt.Close()) }()

	for pid, name := range m.Predicates() {
		params := m.Context(pid).Params
		for _, p := range params {
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return fmt.Errorf("predicate %q has a non-finite parameter", name)
			}
		}
		text, err := toJSON(params)
		if err != nil {
			return fmt.Errorf("failed to encode parameters of %q: %w", name, err)
		}
		if _, err := stmt.Exec(modelID, pid, name, patterns.byPredicate[pid], text); err != nil {
			return fmt.Errorf("failed to insert predicate %q: %w", name, err)
		}
	}
	return nil
}

// deleteModelTx removes a model and its predicates and patterns.
func deleteModelTx(tx *sql.Tx, name string) (bool, error) {
	var modelID int64
	err := tx.QueryRow("SELECT id FROM models WHERE name = ?", name).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up model: %w", err)
	}

	for _, table := range []string{"predicates", "outcome_patterns"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE model_id = ?", modelID); err != nil {
			return false, fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM models WHERE id = ?", modelID); err != nil {
		return false, fmt.Errorf("failed to delete model: %w", err)
	}
	return true, nil
}

// LoadModel rebuilds a stored model.
func (s *SQLiteStorage) LoadModel(name string) (*model.Model, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		modelID      int64
		outcomesJSON string
		constant     int
		correction   float64
	)
	err := s.db.QueryRow(
		"SELECT id, outcomes, correction_constant, correction_param FROM models WHERE name = ?", name,
	).Scan(&modelID, &outcomesJSON, &constant, &correction)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model: %w", err)
	}

	outcomes, err := fromJSON[string](outcomesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode outcomes: %w", err)
	}

	patterns, err := s.loadPatterns(modelID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT predicate_id, name, pattern_id, params FROM predicates WHERE model_id = ? ORDER BY predicate_id", modelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query predicates: %w", err)
	}
	defer rows.Close()

	var labels []string
	var contexts []model.Context
	for rows.Next() {
		var pid, patternID int
		var label, paramsJSON string
		if err := rows.Scan(&pid, &label, &patternID, &paramsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan predicate: %w", err)
		}
		if pid != len(labels) {
			return nil, fmt.Errorf("predicate ids of model %q are not contiguous at %d", name, pid)
		}
		pattern, ok := patterns[patternID]
		if !ok {
			return nil, fmt.Errorf("predicate %q references missing pattern %d", label, patternID)
		}
		params, err := fromJSON[float64](paramsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode parameters of %q: %w", label, err)
		}

		labels = append(labels, label)
		contexts = append(contexts, model.Context{Outcomes: pattern, Params: params})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read predicates: %w", err)
	}

	m, err := model.New(contexts, labels, outcomes, constant, correction)
	if err != nil {
		return nil, fmt.Errorf("stored model %q is corrupt: %w", name, err)
	}
	return m, nil
}

func (s *SQLiteStorage) loadPatterns(modelID int64) (map[int][]int, error) {
	rows, err := s.db.Query("SELECT pattern_id, outcomes FROM outcome_patterns WHERE model_id = ?", modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome patterns: %w", err)
	}
	defer rows.Close()

	patterns := make(map[int][]int)
	for rows.Next() {
		var id int
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("failed to scan outcome pattern: %w", err)
		}
		outcomes, err := fromJSON[int](text)
		if err != nil {
			return nil, fmt.Errorf("failed to decode outcome pattern %d: %w", id, err)
		}
		patterns[id] = outcomes
	}
	return patterns, rows.Err()
}

const modelInfoColumns = `name, description, source, outcomes, correction_constant, correction_param,
	num_predicates, num_parameters, num_patterns, iterations, cutoff, smoothing, log_likelihood, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModelInfo(row rowScanner) (ModelInfo, error) {
	var info ModelInfo
	var outcomesJSON, createdAt string
	var smoothing int
	if err := row.Scan(
		&info.Name,
		&info.Description,
		&info.Source,
		&outcomesJSON,
		&info.CorrectionConstant,
		&info.CorrectionParam,
		&info.NumPredicates,
		&info.NumParameters,
		&info.NumPatterns,
		&info.Iterations,
		&info.Cutoff,
		&smoothing,
		&info.LogLikelihood,
		&createdAt,
	); err != nil {
		return ModelInfo{}, err
	}

	outcomes, err := fromJSON[string](outcomesJSON)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to decode outcomes: %w", err)
	}
	info.NumOutcomes = len(outcomes)
	info.Smoothing = smoothing != 0

	info.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return info, nil
}

// GetModelInfo returns the metadata of a stored model.
func (s *SQLiteStorage) GetModelInfo(name string) (ModelInfo, error) {
	if !s.Enabled() {
		return ModelInfo{}, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := scanModelInfo(s.db.QueryRow("SELECT "+modelInfoColumns+" FROM models WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return ModelInfo{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to query model: %w", err)
	}
	return info, nil
}

// ListModels returns the metadata of every stored model, newest first.
func (s *SQLiteStorage) ListModels() ([]ModelInfo, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT " + modelInfoColumns + " FROM models ORDER BY created_at DESC, name")
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var infos []ModelInfo
	for rows.Next() {
		info, err := scanModelInfo(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable model row", zap.Error(err))
			continue
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteModel removes a model and its training history.
func (s *SQLiteStorage) DeleteModel(name string) (err error) {
	if !s.Enabled() {
		return ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { err = rollbackOnError(tx, err) }()

	found, err := deleteModelTx(tx, name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}

	if _, err = tx.Exec(
		"DELETE FROM training_iterations WHERE run_id IN (SELECT id FROM training_runs WHERE model_name = ?)", name,
	); err != nil {
		return fmt.Errorf("failed to delete training iterations: %w", err)
	}
	if _, err = tx.Exec("DELETE FROM training_runs WHERE model_name = ?", name); err != nil {
		return fmt.Errorf("failed to delete training runs: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// rollbackOnError rolls tx back when err is set and adds any rollback failure
// to err. A transaction already ended by Commit is not reported twice.
func rollbackOnError(tx *sql.Tx, err error) error {
	if err == nil {
		return nil
	}
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		return multierr.Append(err, rbErr)
	}
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

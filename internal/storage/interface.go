/*
Package storage persists trained models and their training history.

Models are stored in SQLite (modernc.org/sqlite, a pure Go, CGo-free
implementation) at ~/.maxent/models.db by default. A model is saved in its
reconstructable form: the correction constant and parameter, the ordered
outcome names, and for each predicate its name and sparse (outcome, weight)
list. Predicates sharing the same outcome set reference one stored outcome
pattern.

Training history is best-effort: if the database is unavailable, recording
iterations degrades to a no-op instead of failing the training run.
*/
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/khanglvm/maxent/internal/model"
)

var (
	// ErrModelNotFound is returned when no model has the requested name.
	ErrModelNotFound = errors.New("model not found")

	// ErrDisabled is returned by model operations when the database could not be opened.
	ErrDisabled = errors.New("model storage is disabled")
)

// Storage defines the interface for persistent storage operations.
type Storage interface {
	// Init opens the database and runs migrations.
	Init() error

	// SaveModel stores a model under info.Name, replacing any previous version.
	SaveModel(m *model.Model, info ModelInfo) error

	// LoadModel rebuilds a stored model.
	LoadModel(name string) (*model.Model, error)

	// GetModelInfo returns the metadata of a stored model.
	GetModelInfo(name string) (ModelInfo, error)

	// ListModels returns the metadata of every stored model, newest first.
	ListModels() ([]ModelInfo, error)

	// DeleteModel removes a model and its training history.
	DeleteModel(name string) error

	// StartRun opens a training run record and returns its id.
	StartRun(run TrainingRun) (int64, error)

	// RecordIterations appends per-iteration statistics to a run.
	RecordIterations(runID int64, iterations []IterationRecord) error

	// FinishRun stores the final state of a run.
	FinishRun(run TrainingRun) error

	// GetTrainingHistory returns the runs of a model, newest first.
	GetTrainingHistory(modelName string, limit int) ([]TrainingRun, error)

	// GetIterations returns the recorded iterations of a run in order.
	GetIterations(runID int64) ([]IterationRecord, error)

	// Cleanup removes training runs older than the retention period.
	Cleanup(retention time.Duration) error

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
	logger   *zap.Logger
}

// DefaultPath returns ~/.maxent/models.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".maxent", "models.db"), nil
}

// NewStorage creates a storage instance for the database at dbPath.
// An empty path selects DefaultPath. The database is opened by Init.
func NewStorage(dbPath string, logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dbPath == "" {
		p, err := DefaultPath()
		if err != nil {
			logger.Warn("model storage disabled", zap.Error(err))
			return &SQLiteStorage{enabled: false, logger: logger}
		}
		dbPath = p
	}

	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: true,
		logger:  logger,
	}
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Enabled reports whether the database is usable.
func (s *SQLiteStorage) Enabled() bool {
	return s.enabled && s.db != nil
}

// Init initializes the database and runs migrations.
//
// If initialization fails, storage is disabled: model operations return
// ErrDisabled and history operations become no-ops.
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			s.logger.Warn("model storage disabled", zap.Error(initErr))
			return
		}
		// SQLite allows a single writer; serialize through one connection.
		db.SetMaxOpenConns(1)
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.enabled = false
			s.logger.Warn("model storage disabled", zap.Error(initErr))
			return
		}

		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			initErr = fmt.Errorf("failed to enable foreign keys: %w", err)
			s.enabled = false
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.enabled = false
			s.logger.Warn("model storage disabled", zap.Error(initErr))
			return
		}
	})

	return initErr
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

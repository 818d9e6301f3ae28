/*
Package config handles loading and saving maxent configuration.

Configuration is stored in ~/.maxent.json. Files ending in .yaml or .yml are
read and written as YAML instead; both use the same camelCase keys.

Schema:
  {
    "training": {
      "iterations": 100,
      "cutoff": 0,
      "smoothing": false,
      "smoothingObservation": 0.1,
      "workers": 1,
      "format": "plain",
      "encoding": "utf-8"
    },
    "storage": {
      "path": "~/.maxent/models.db",
      "cacheSize": 8,
      "retentionDays": 30
    },
    "log": {
      "level": "info",
      "file": "",
      "maxSizeMB": 10,
      "maxBackups": 3,
      "maxAgeDays": 28
    }
  }
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents the root configuration structure.
type Config struct {
	// Training holds the defaults for `maxent train`.
	Training *TrainingSettings `json:"training,omitempty" yaml:"training,omitempty"`

	// Storage configures the model database.
	Storage *StorageSettings `json:"storage,omitempty" yaml:"storage,omitempty"`

	// Log configures the process logger.
	Log *LogSettings `json:"log,omitempty" yaml:"log,omitempty"`
}

// TrainingSettings are the GIS training defaults.
type TrainingSettings struct {
	// Iterations is the maximum number of GIS iterations.
	Iterations int `json:"iterations" yaml:"iterations"`

	// Cutoff drops predicates seen fewer times than this.
	Cutoff int `json:"cutoff" yaml:"cutoff"`

	// Smoothing enables simple smoothing of unseen (predicate, outcome) pairs.
	Smoothing bool `json:"smoothing" yaml:"smoothing"`

	// SmoothingObservation is the pseudo-count used when Smoothing is on.
	SmoothingObservation float64 `json:"smoothingObservation" yaml:"smoothingObservation"`

	// Workers is the number of goroutines sharing each iteration.
	Workers int `json:"workers" yaml:"workers"`

	// Format is the event file layout: "plain" or "comma".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Encoding is the character set of event files.
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`

	// RealValues parses pred=value tokens.
	RealValues bool `json:"realValues,omitempty" yaml:"realValues,omitempty"`
}

// StorageSettings configures the SQLite model store.
type StorageSettings struct {
	// Path is the database file. Empty means ~/.maxent/models.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// CacheSize is how many loaded models the server keeps in memory.
	CacheSize int `json:"cacheSize" yaml:"cacheSize"`

	// RetentionDays bounds how long training history is kept. Zero keeps it forever.
	RetentionDays int `json:"retentionDays" yaml:"retentionDays"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMB,omitempty" yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty" yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty" yaml:"maxAgeDays,omitempty"`
	JSON       bool   `json:"json,omitempty" yaml:"json,omitempty"`
}

// NewConfig creates a configuration holding the defaults.
func NewConfig() *Config {
	return &Config{
		Training: defaultTraining(),
		Storage:  defaultStorage(),
		Log:      defaultLog(),
	}
}

func defaultTraining() *TrainingSettings {
	return &TrainingSettings{
		Iterations:           100,
		Cutoff:               0,
		SmoothingObservation: 0.1,
		Workers:              1,
		Format:               "plain",
		Encoding:             "utf-8",
	}
}

func defaultStorage() *StorageSettings {
	return &StorageSettings{
		CacheSize:     8,
		RetentionDays: 30,
	}
}

func defaultLog() *LogSettings {
	return &LogSettings{
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// fillDefaults replaces sections missing from a loaded file.
func (c *Config) fillDefaults() {
	if c.Training == nil {
		c.Training = defaultTraining()
	}
	if c.Storage == nil {
		c.Storage = defaultStorage()
	}
	if c.Log == nil {
		c.Log = defaultLog()
	}
}

// GetDefaultConfigPath returns the path to ~/.maxent.json
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".maxent.json"), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadOrDefault reads path, or the default path when path is empty. A
// missing file yields the defaults; any other failure is returned.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		p, err := GetDefaultConfigPath()
		if err != nil {
			return NewConfig(), nil
		}
		path = p
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		var notFound *ConfigNotFoundError
		if errors.As(err, &notFound) {
			return NewConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// isYAML reports whether path should be read and written as YAML.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

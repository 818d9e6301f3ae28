package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Training == nil || cfg.Storage == nil || cfg.Log == nil {
		t.Fatalf("NewConfig should populate every section: %+v", cfg)
	}

	want := TrainingSettings{
		Iterations:           100,
		Cutoff:               0,
		SmoothingObservation: 0.1,
		Workers:              1,
		Format:               "plain",
		Encoding:             "utf-8",
	}
	if diff := cmp.Diff(want, *cfg.Training); diff != "" {
		t.Errorf("training defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level should be info, got %q", cfg.Log.Level)
	}
	if cfg.Storage.CacheSize != 8 {
		t.Errorf("default cache size should be 8, got %d", cfg.Storage.CacheSize)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"maxent.json", "maxent.yaml", "maxent.yml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), name)

			cfg := NewConfig()
			cfg.Training.Iterations = 250
			cfg.Training.Smoothing = true
			cfg.Training.Workers = 4
			cfg.Training.Format = "comma"
			cfg.Storage.Path = "/var/lib/maxent/models.db"
			cfg.Log.Level = "debug"
			cfg.Log.File = "/var/log/maxent.log"

			if err := Save(cfg, configPath); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := LoadFrom(configPath)
			if err != nil {
				t.Fatalf("LoadFrom failed: %v", err)
			}
			if diff := cmp.Diff(cfg, loaded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestYAMLIsWrittenAsYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "maxent.yaml")
	if err := Save(NewConfig(), configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if len(data) > 0 && data[0] == '{' {
		t.Errorf("expected YAML output, got JSON: %s", data)
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "none.json"))
		if err != nil {
			t.Fatalf("LoadOrDefault failed: %v", err)
		}
		if diff := cmp.Diff(NewConfig(), cfg); diff != "" {
			t.Errorf("expected defaults (-want +got):\n%s", diff)
		}
	})

	t.Run("broken file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		os.WriteFile(path, []byte("{"), 0644)
		if _, err := LoadOrDefault(path); err == nil {
			t.Error("LoadOrDefault should report a broken file")
		}
	})
}

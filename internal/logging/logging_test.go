package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/config"
)

func TestConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := NewWithWriter(&config.LogSettings{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}

	logger.Info("quiet")
	logger.Warn("loud", zap.Int("iteration", 3))
	closeFn()

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info entry should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "loud") || !strings.Contains(out, `"iteration": 3`) {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "maxent.log")
	var console bytes.Buffer
	logger, closeFn, err := NewWithWriter(&config.LogSettings{Level: "debug", File: path, MaxSizeMB: 1}, &console)
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}

	logger.Debug("training started", zap.String("model", "weather"))
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("file entry is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "training started" || entry["model"] != "weather" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if !strings.Contains(console.String(), "training started") {
		t.Error("console should also receive the entry")
	}
}

func TestJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := NewWithWriter(&config.LogSettings{Level: "info", JSON: true}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}
	logger.Info("hello")
	closeFn()

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, _, err := NewWithWriter(&config.LogSettings{Level: "chatty"}, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNilSettings(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := NewWithWriter(nil, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter failed: %v", err)
	}
	defer closeFn()
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected info default, got %q", buf.String())
	}
}

/*
Package logging builds the process logger.

Log lines go to stderr through zap's console encoder, so stdout stays free
for command output and the JSON-RPC stream. When a file is configured, the
same entries are also written as JSON to a rotating file managed by
lumberjack.
*/
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/khanglvm/maxent/internal/config"
)

// New builds a logger from settings. The returned close function flushes
// the logger and releases the log file.
func New(settings *config.LogSettings) (*zap.Logger, func() error, error) {
	return NewWithWriter(settings, os.Stderr)
}

// NewWithWriter is New with the console output sent to w.
func NewWithWriter(settings *config.LogSettings, w io.Writer) (*zap.Logger, func() error, error) {
	if settings == nil {
		settings = config.NewConfig().Log
	}

	level, err := zapcore.ParseLevel(settings.Level)
	if err != nil {
		return nil, nil, err
	}

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig())
	if settings.JSON {
		consoleEncoder = zapcore.NewJSONEncoder(encoderConfig())
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(w)), level),
	}

	var file *lumberjack.Logger
	if settings.File != "" {
		file = &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    settings.MaxSizeMB,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(file), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closeFn := func() error {
		// Sync on a terminal stderr returns EINVAL on some platforms.
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, closeFn, nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap so packages can take one concrete logging type.
type Logger struct {
	*zap.Logger
}

// New builds a Logger. Debug level switches to zap's development preset.
// A configuration zap rejects falls back to a production logger on stdout.
func New(cfg Config) *Logger {
	level := cfg.zapLevel()

	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Encoding = "json"
	if cfg.console() {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.OutputPaths = cfg.outputs()
	zc.ErrorOutputPaths = []string{"stderr"}
	if file := zc.OutputPaths[0]; len(zc.OutputPaths) > 1 {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v, logging to stdout only\n", err)
			zc.OutputPaths = []string{"stdout"}
		}
	}

	zl, err := zc.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v, using production defaults\n", err)
		zl, _ = zap.NewProduction()
	}
	return &Logger{Logger: zl}
}

// NewNop returns a Logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named adds a new path segment to the logger's name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// With adds structured context to the logger.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

package logger

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config holds logger settings, usually filled from the application config.
type Config struct {
	// Level is debug, info, warn or error. Unknown values mean info.
	Level string
	// Format is json, or console/text for human-readable output.
	Format string
	// OutputFile is a path, stdout or stderr. Files also echo to stdout.
	OutputFile string
}

func (c Config) zapLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(c.Level))
	if err != nil || c.Level == "" {
		return zapcore.InfoLevel
	}
	return lvl
}

func (c Config) console() bool {
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "console", "text":
		return true
	}
	return false
}

func (c Config) outputs() []string {
	switch out := strings.TrimSpace(c.OutputFile); out {
	case "", "stdout":
		return []string{"stdout"}
	case "stderr":
		return []string{"stderr"}
	default:
		return []string{out, "stdout"}
	}
}

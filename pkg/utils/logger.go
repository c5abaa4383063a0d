package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerName is attached to every logger built here.
const LoggerName = "ragtutorial"

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	return build(debug, zapcore.InfoLevel)
}

// NewCommandLogger is NewLogger for one-shot commands whose stdout is the result:
// outside debug mode only warnings and errors are logged.
func NewCommandLogger(debug bool) (*zap.Logger, error) {
	return build(debug, zapcore.WarnLevel)
}

func build(debug bool, level zapcore.Level) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named(LoggerName), nil
}

package common

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the *zap.Logger every book, gate and mirror component
// takes as a constructor argument. Production builds get JSON output at
// info level; tests and local runs can ask for the human-readable console
// encoder instead.
func NewLogger(component string, development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named(component), nil
}

// NewNopLogger returns a logger that discards everything, for tests that
// exercise error paths without asserting on log output.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}

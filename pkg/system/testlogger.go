package system

import (
	"go.uber.org/zap"
)

// NewTestLogger returns a sugared logger for tests: the development config
// without automatic stacktraces, so test output stays readable.
func NewTestLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	logger, _ := cfg.Build()
	return logger.Sugar()
}

// Package logging builds the zap logger used throughout the commit-log
// core, switching between a human-readable development encoder and a
// production JSON encoder the way cmd/qlogd's predecessor selected
// zap.NewDevelopment/zap.NewProduction.
package logging

import (
	"go.uber.org/zap"
)

// Environment names one of the two logger profiles.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// New builds the root logger for the given environment. An empty or
// unrecognized env defaults to Development.
func New(env Environment) (*zap.Logger, error) {
	switch env {
	case Production:
		return zap.NewProduction()
	default:
		return zap.NewDevelopment()
	}
}

// Must builds a logger, falling back to a no-op logger if construction
// fails (zap itself only fails this on a broken sink, which never
// happens for the default stdout/stderr sinks these profiles use).
func Must(env Environment) *zap.Logger {
	logger, err := New(env)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

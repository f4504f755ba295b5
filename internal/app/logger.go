package app

import (
	"log/slog"

	"birthdaybot/internal/types"
)

// slogAdapter wraps *slog.Logger to implement types.Logger. slog.Logger has
// Info, Warn and Error already, but its With returns *slog.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

// NewTypesLogger adapts logger for packages that log through types.Logger.
func NewTypesLogger(logger *slog.Logger) types.Logger {
	return &slogAdapter{logger: logger}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the context logger, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}

// WithJob adds the job name to the context logger.
func WithJob(ctx context.Context, job string) context.Context {
	logger := FromContext(ctx).With().Str("job", job).Logger()
	return WithLogger(ctx, &logger)
}

// WithRunID adds the run id to the context logger.
func WithRunID(ctx context.Context, runID string) context.Context {
	logger := FromContext(ctx).With().Str("run_id", runID).Logger()
	return WithLogger(ctx, &logger)
}

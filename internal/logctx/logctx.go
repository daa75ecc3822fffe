// Package logctx provides context-based logger injection and extraction.
//
// Callers attach an enriched logger (unit name, step, target size) to a
// context and everything below picks it up:
//
//	ctx := logctx.WithLogger(ctx, base)
//	ctx = logctx.WithUnit(ctx, "t12", 12)
//	log := logctx.FromContext(ctx)
//	log.Debug().Msg("rendering")
package logctx

import (
	"context"

	"github.com/eunmann/bvbench/pkg/logging"
	"github.com/rs/zerolog"
)

// loggerKey is the private key type for storing loggers in context.
type loggerKey struct{}

// WithLogger returns a new context with the given logger attached.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context, falling back to the
// process-wide logger from pkg/logging.
//
// This function never returns a zero-value logger or panics.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
			return logger
		}
	}
	return *logging.L()
}

// WithStr returns a new context whose logger carries the string field.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithUint64 returns a new context whose logger carries the uint64 field.
func WithUint64(ctx context.Context, key string, value uint64) context.Context {
	logger := FromContext(ctx).With().Uint64(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithUnit tags the context logger with a benchmark unit's name and ID.
func WithUnit(ctx context.Context, name string, id uint64) context.Context {
	logger := FromContext(ctx).With().Str("unit", name).Uint64("unit_id", id).Logger()
	return WithLogger(ctx, logger)
}

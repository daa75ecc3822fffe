// Package logging provides structured logging for bvbench using zerolog.
//
// Logs always go to stderr. Benchmark units reserve stdout for their
// tab-separated report, so nothing in this package ever writes there.
package logging

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Environment variables read by InitFromEnv.
const (
	EnvDebug     = "BVBENCH_DEBUG"
	EnvHumanLogs = "BVBENCH_HUMAN_LOGS"
)

var (
	logger     *zerolog.Logger
	prettyMode atomic.Bool
)

func init() {
	// Default to JSON logging at info level
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger = &l
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init configures the global logger.
// If debug is true, sets log level to Debug.
// If human is true, uses a human-friendly console writer.
func Init(debug bool, human bool) {
	InitWriter(os.Stderr, debug, human)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, debug bool, human bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	prettyMode.Store(human)

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: w}
	}

	l := zerolog.New(output).With().Timestamp().Logger()
	logger = &l
}

// InitFromEnv configures the global logger from BVBENCH_DEBUG and
// BVBENCH_HUMAN_LOGS. Generated benchmark units take only positional
// arguments, so this is how their logging is tuned.
func InitFromEnv() {
	Init(os.Getenv(EnvDebug) == "1", os.Getenv(EnvHumanLogs) == "1")
}

// SetPrettyMode toggles human-readable companion fields without replacing
// the logger.
func SetPrettyMode(on bool) {
	prettyMode.Store(on)
}

// IsPrettyMode reports whether the console writer is active. Completion
// events add human-readable companion fields in this mode.
func IsPrettyMode() bool {
	return prettyMode.Load()
}

// L returns the base logger.
func L() *zerolog.Logger {
	return logger
}

// WithPhase returns a logger with the phase field set.
func WithPhase(phase string) zerolog.Logger {
	return logger.With().Str("phase", phase).Logger()
}

// SetLogger allows overriding the global logger (useful for testing).
func SetLogger(l zerolog.Logger) {
	logger = &l
}

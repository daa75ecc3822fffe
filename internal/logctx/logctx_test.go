package logctx

import (
	"bytes"
	"context"
	"testing"

	"github.com/eunmann/bvbench/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// captureGlobal points the process-wide logger at a buffer for one test.
func captureGlobal(t *testing.T, l func(*bytes.Buffer) zerolog.Logger) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetLogger(l(&buf))
	t.Cleanup(func() { logging.Init(false, false) })
	return &buf
}

func TestFromContext_NilContext(t *testing.T) {
	buf := captureGlobal(t, func(b *bytes.Buffer) zerolog.Logger { return zerolog.New(b) })

	logger := FromContext(nil)
	logger.Info().Msg("generate")

	require.NotZero(t, buf.Len(), "fallback logger produced no output")
}

func TestFromContext_ContextWithoutLogger(t *testing.T) {
	buf := captureGlobal(t, func(b *bytes.Buffer) zerolog.Logger {
		return zerolog.New(b).With().Str("global", "yes").Logger()
	})

	logger := FromContext(context.Background())
	logger.Info().Msg("collect")

	require.Contains(t, buf.String(), `"global":"yes"`)
}

func TestWithLogger_AndFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf).With().Str("phase", "publish").Logger())

	logger := FromContext(ctx)
	logger.Info().Msg("uploaded")

	require.Contains(t, buf.String(), `"phase":"publish"`)
}

func TestWithLogger_NilContext(t *testing.T) {
	var buf bytes.Buffer

	ctx := WithLogger(nil, zerolog.New(&buf))
	require.NotNil(t, ctx)

	logger := FromContext(ctx)
	logger.Info().Msg("emit")
	require.NotZero(t, buf.Len())
}

func TestChainedContexts(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))
	ctx = WithStr(ctx, "phase", "generate")
	ctx = WithUnit(ctx, "t5", 5)
	ctx = WithUint64(ctx, "target", 1000)

	logger := FromContext(ctx)
	logger.Info().Msg("unit written")

	for _, want := range []string{
		`"phase":"generate"`,
		`"unit":"t5"`,
		`"unit_id":5`,
		`"target":1000`,
	} {
		require.Contains(t, buf.String(), want)
	}
}

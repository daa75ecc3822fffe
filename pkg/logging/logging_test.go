package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestInit_Modes(t *testing.T) {
	defer Init(false, false)
	tests := []struct {
		debug, human bool
		wantLevel    zerolog.Level
	}{
		{false, false, zerolog.InfoLevel},
		{true, false, zerolog.DebugLevel},
		{false, true, zerolog.InfoLevel},
		{true, true, zerolog.DebugLevel},
	}
	for _, tt := range tests {
		Init(tt.debug, tt.human)
		L().Info().Bool("human", tt.human).Msg("init")
		require.Equal(t, tt.wantLevel, zerolog.GlobalLevel())
		require.Equal(t, tt.human, IsPrettyMode())
	}
}

func TestInitWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, false, false)
	defer Init(false, false)

	L().Info().Str("unit", "t3").Msg("hello")
	L().Debug().Msg("hidden")

	require.Contains(t, buf.String(), `"unit":"t3"`)
	require.NotContains(t, buf.String(), "hidden", "debug line should be filtered at info level")
}

func TestInitWriter_Human(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, true, true)
	defer Init(false, false)

	L().Debug().Str("unit", "t9").Msg("emitted")

	require.Contains(t, buf.String(), "emitted")
	require.NotContains(t, buf.String(), `{"level"`, "console writer should not emit JSON")
}

func TestInitFromEnv(t *testing.T) {
	t.Setenv(EnvDebug, "1")
	t.Setenv(EnvHumanLogs, "")
	InitFromEnv()
	defer Init(false, false)

	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	require.False(t, IsPrettyMode(), "JSON mode when BVBENCH_HUMAN_LOGS is unset")
}

func TestWithPhase(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer Init(false, false)

	log := WithPhase("collect")
	log.Info().Msg("reports parsed")

	require.Contains(t, buf.String(), `"phase":"collect"`)
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).With().Uint64("seed", 42).Logger())
	defer Init(false, false)

	L().Info().Msg("run")

	require.Contains(t, buf.String(), `"seed":42`)
}

package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// debugLevel lowers the global level for the duration of a test.
func debugLevel(t *testing.T) {
	t.Helper()
	old := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(old) })
}

// withPrettyMode sets pretty mode for the duration of a test.
func withPrettyMode(t *testing.T, on bool) {
	t.Helper()
	old := IsPrettyMode()
	SetPrettyMode(on)
	t.Cleanup(func() { SetPrettyMode(old) })
}

func TestProgressTracker_Counts(t *testing.T) {
	tests := []struct {
		name          string
		total         int64
		done, skipped int
		wantPct       float64
		wantRemaining int64
	}{
		{"empty sweep", 0, 0, 0, 100, 0},
		{"untouched", 27, 0, 0, 0, 27},
		{"reports with one blank", 10, 2, 1, 30, 7},
		{"all units emitted", 4, 4, 0, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := NewProgressTracker("collect", tt.total, zerolog.Nop())
			for range tt.done {
				pt.RecordCompletion(time.Millisecond)
			}
			for range tt.skipped {
				pt.RecordSkip()
			}

			completed, skipped, total := pt.Progress()
			require.Equal(t, int64(tt.done), completed)
			require.Equal(t, int64(tt.skipped), skipped)
			require.Equal(t, tt.total, total)
			require.Equal(t, tt.total, pt.Total())
			require.InDelta(t, tt.wantPct, pt.ProgressPct(), 1e-9)
			require.Equal(t, tt.wantRemaining, pt.Remaining())
		})
	}
}

func TestProgressTracker_ETA(t *testing.T) {
	pt := NewProgressTracker("publish", 6, zerolog.Nop())
	require.Zero(t, pt.ETA(), "ETA before any upload")

	pt.RecordCompletion(200 * time.Millisecond)
	pt.RecordCompletion(400 * time.Millisecond)
	// Mean 300ms, 4 uploads left.
	require.Equal(t, 1200*time.Millisecond, pt.ETA())

	for range 4 {
		pt.RecordCompletion(time.Millisecond)
	}
	require.Zero(t, pt.ETA(), "ETA after last upload")
}

func TestProgressTracker_ETAWindow(t *testing.T) {
	pt := NewProgressTracker("collect", 100, zerolog.Nop())
	for range etaWindow {
		pt.RecordCompletion(time.Second)
	}
	for range etaWindow {
		pt.RecordCompletion(10 * time.Millisecond)
	}

	// Only the last etaWindow durations count: 68 remaining at 10ms.
	require.Equal(t, 680*time.Millisecond, pt.ETA())
}

func TestProgressTracker_LogsEveryTenth(t *testing.T) {
	debugLevel(t)
	var buf bytes.Buffer

	pt := NewProgressTracker("generate", 20, zerolog.New(&buf))
	for range 20 {
		pt.RecordCompletion(time.Millisecond)
	}

	out := buf.String()
	require.Equal(t, 10, strings.Count(out, `"event":"progress"`), out)
	require.Contains(t, out, `"completed":20`)
}

func TestCompletionEvent_BasicFields(t *testing.T) {
	withPrettyMode(t, false)
	var buf bytes.Buffer

	NewCompletionEvent(zerolog.New(&buf), "unit_written", "generate", 500*time.Millisecond).
		Str("unit", "t7").
		Int("files", 2).
		Uint64("target", 630).
		Float64("rank_us", 0.25).
		Log("unit written")

	for _, want := range []string{
		`"event":"unit_written"`,
		`"phase":"generate"`,
		`"duration_ms":500`,
		`"unit":"t7"`,
		`"files":2`,
		`"target":630`,
		`"rank_us":0.25`,
	} {
		require.Contains(t, buf.String(), want)
	}
	require.NotContains(t, buf.String(), "duration_h", "human fields only in pretty mode")
}

func TestCompletionEvent_HumanCompanions(t *testing.T) {
	withPrettyMode(t, true)
	var buf bytes.Buffer

	NewCompletionEvent(zerolog.New(&buf), "file_created", "collect", time.Second).
		Bytes("bytes", 3<<29).
		Count("rows", 12_288).
		CountUint64("units", 4096).
		Log("parquet archive written")

	for _, want := range []string{
		`"bytes":1610612736`,
		`"bytes_h":"1.50 GiB"`,
		`"rows":12288`,
		`"rows_h":"12.29K"`,
		`"units_h":"4.10K"`,
		`"duration_h":"1.00s"`,
	} {
		require.Contains(t, buf.String(), want)
	}
}

func TestCompletionEvent_ProgressFromTracker(t *testing.T) {
	withPrettyMode(t, false)
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	pt := NewProgressTracker("collect", 100, log)
	pt.RecordCompletion(100 * time.Millisecond)
	pt.RecordCompletion(100 * time.Millisecond)
	pt.RecordSkip()

	NewCompletionEvent(log, "progress", "collect", time.Second).
		ProgressFromTracker(pt).
		Log("reports parsed")

	for _, want := range []string{`"completed":2`, `"skipped":1`, `"total":100`, `"progress_pct":3`, `"eta_ms":9700`} {
		require.Contains(t, buf.String(), want)
	}
}

func TestHelperFunctions(t *testing.T) {
	withPrettyMode(t, false)
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	tests := []struct {
		name  string
		event *CompletionEvent
		want  []string
	}{
		{"phase", PhaseComplete(log, "publish", time.Second), []string{`"event":"phase_completed"`, `"phase":"publish"`}},
		{"step", StepComplete(log, time.Second), []string{`"event":"step_completed"`, `"phase":"benchmark"`}},
		{"file", FileCreated(log, "generate", time.Second), []string{`"event":"file_created"`, `"phase":"generate"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.event.Log("done")
			for _, want := range tt.want {
				require.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestCompletionEvent_LogDebug(t *testing.T) {
	withPrettyMode(t, false)
	debugLevel(t)
	var buf bytes.Buffer

	StepComplete(zerolog.New(&buf), time.Second).LogDebug("step complete")
	require.Contains(t, buf.String(), `"level":"debug"`)

	buf.Reset()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	StepComplete(zerolog.New(&buf), time.Second).LogDebug("step complete")
	require.Zero(t, buf.Len(), "debug event written at info level")
}

func TestCompletionEvent_FieldOrder(t *testing.T) {
	withPrettyMode(t, false)
	var buf bytes.Buffer

	StepComplete(zerolog.New(&buf), time.Millisecond).
		Uint64("step", 3).
		Uint64("target", 630).
		Str("rank", "1.2µs").
		Log("step complete")

	out := buf.String()
	prev := -1
	for _, key := range []string{`"event"`, `"phase"`, `"duration_ms"`, `"step"`, `"target"`, `"rank"`} {
		i := strings.Index(out, key)
		require.Greater(t, i, prev, "field %s out of order in %s", key, out)
		prev = i
	}
}

package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eunmann/bvbench/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// etaWindow is the number of recent item durations the ETA averages.
const etaWindow = 16

// ProgressTracker tracks progress over a known number of items (emitted
// units, collected reports, uploaded files) with ETA calculation.
// It is safe for concurrent use.
type ProgressTracker struct {
	total     int64
	completed atomic.Int64
	skipped   atomic.Int64
	startTime time.Time
	log       zerolog.Logger
	phase     string

	// Ring of the last etaWindow item durations.
	mu     sync.Mutex
	recent [etaWindow]time.Duration
	next   int
	filled int

	// Progress is logged once per logEvery completions.
	logEvery int64
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(phase string, total int64, log zerolog.Logger) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
		log:       log,
		phase:     phase,
		logEvery:  max(total/10, 1),
	}
}

// RecordCompletion records that an item completed with the given duration
// and logs a progress line every tenth of the total.
func (pt *ProgressTracker) RecordCompletion(d time.Duration) {
	done := pt.completed.Add(1)

	pt.mu.Lock()
	pt.recent[pt.next] = d
	pt.next = (pt.next + 1) % etaWindow
	pt.filled = min(pt.filled+1, etaWindow)
	pt.mu.Unlock()

	if done%pt.logEvery == 0 || pt.Remaining() == 0 {
		NewCompletionEvent(pt.log, "progress", pt.phase, pt.Elapsed()).
			ProgressFromTracker(pt).
			LogDebug("progress")
	}
}

// RecordSkip records that an item was skipped.
func (pt *ProgressTracker) RecordSkip() {
	pt.skipped.Add(1)
}

// Progress returns current progress stats.
func (pt *ProgressTracker) Progress() (completed, skipped, total int64) {
	return pt.completed.Load(), pt.skipped.Load(), pt.total
}

// ProgressPct returns the progress percentage (0-100).
func (pt *ProgressTracker) ProgressPct() float64 {
	if pt.total == 0 {
		return 100.0
	}
	done := pt.completed.Load() + pt.skipped.Load()
	return float64(done) * 100.0 / float64(pt.total)
}

// ETA estimates the time remaining from the mean of the recent item
// durations. It is zero before the first completion and after the last.
func (pt *ProgressTracker) ETA() time.Duration {
	remaining := pt.Remaining()
	if pt.completed.Load() == 0 || remaining <= 0 {
		return 0
	}

	pt.mu.Lock()
	var sum time.Duration
	for _, d := range pt.recent[:pt.filled] {
		sum += d
	}
	n := pt.filled
	pt.mu.Unlock()

	return sum / time.Duration(n) * time.Duration(remaining)
}

// Elapsed returns time since tracking started.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}

// Remaining returns how many items are remaining.
func (pt *ProgressTracker) Remaining() int64 {
	return pt.total - pt.completed.Load() - pt.skipped.Load()
}

// Total returns the total count.
func (pt *ProgressTracker) Total() int64 {
	return pt.total
}

// CompletionEvent builds a completion log event. Fields are written in
// the order they were added, after event, phase and duration.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  []func(*zerolog.Event)
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
	}
}

func (ce *CompletionEvent) add(f func(*zerolog.Event)) *CompletionEvent {
	ce.fields = append(ce.fields, f)
	return ce
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	return ce.add(func(e *zerolog.Event) { e.Str(key, val) })
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	return ce.add(func(e *zerolog.Event) { e.Int(key, val) })
}

// Uint64 adds a uint64 field.
func (ce *CompletionEvent) Uint64(key string, val uint64) *CompletionEvent {
	return ce.add(func(e *zerolog.Event) { e.Uint64(key, val) })
}

// Float64 adds a float64 field.
func (ce *CompletionEvent) Float64(key string, val float64) *CompletionEvent {
	return ce.add(func(e *zerolog.Event) { e.Float64(key, val) })
}

// Bytes adds a byte count, plus a "<key>_h" companion in pretty mode.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	return ce.withHuman(key, bytes, humanfmt.Bytes)
}

// Count adds a count, plus a "<key>_h" companion in pretty mode.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	return ce.withHuman(key, n, humanfmt.Count)
}

// CountUint64 adds a uint64 count field.
func (ce *CompletionEvent) CountUint64(key string, n uint64) *CompletionEvent {
	return ce.Count(key, int64(n))
}

func (ce *CompletionEvent) withHuman(key string, n int64, format func(int64) string) *CompletionEvent {
	ce.add(func(e *zerolog.Event) { e.Int64(key, n) })
	if IsPrettyMode() {
		human := format(n)
		ce.add(func(e *zerolog.Event) { e.Str(key+"_h", human) })
	}
	return ce
}

// ProgressFromTracker adds progress fields from a ProgressTracker.
func (ce *CompletionEvent) ProgressFromTracker(pt *ProgressTracker) *CompletionEvent {
	completed, skipped, total := pt.Progress()
	ce.add(func(e *zerolog.Event) {
		e.Int64("completed", completed).Int64("skipped", skipped).Int64("total", total)
	})
	if total > 0 {
		ce.Float64("progress_pct", float64(completed+skipped)*100.0/float64(total))
	}
	if eta := pt.ETA(); eta > 0 {
		ce.add(func(e *zerolog.Event) { e.Int64("eta_ms", eta.Milliseconds()) })
		if IsPrettyMode() {
			ce.Str("eta_h", humanfmt.Duration(eta))
		}
	}
	return ce
}

// Log emits the completion event at info level.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the completion event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	if e == nil {
		return
	}
	e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())
	if IsPrettyMode() {
		e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}
	for _, f := range ce.fields {
		f(e)
	}
	e.Msg(msg)
}

// PhaseComplete logs a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// StepComplete logs the end of one growth step of a benchmark run.
func StepComplete(log zerolog.Logger, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "step_completed", "benchmark", elapsed)
}

// FileCreated logs a file creation completion event.
func FileCreated(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_created", phase, elapsed)
}

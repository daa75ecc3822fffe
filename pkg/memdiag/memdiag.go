// Package memdiag provides heap diagnostics for benchmark units.
//
// Enable debug logging with BVBENCH_MEM_DEBUG=1
// Enable the pprof server with BVBENCH_MEM_PPROF=1 (listens on BVBENCH_MEM_PPROF_ADDR,
// default localhost:6060)
package memdiag

import (
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	// Registers pprof handlers on DefaultServeMux for the pprof HTTP server.
	_ "net/http/pprof"

	"github.com/eunmann/bvbench/pkg/humanfmt"
	"github.com/eunmann/bvbench/pkg/logging"
	"github.com/eunmann/bvbench/pkg/sysmem"
	"github.com/rs/zerolog"
)

// Environment variables read by DefaultConfig.
const (
	EnvDebug     = "BVBENCH_MEM_DEBUG"
	EnvPprof     = "BVBENCH_MEM_PPROF"
	EnvPprofAddr = "BVBENCH_MEM_PPROF_ADDR"
)

const defaultPprofAddr = "localhost:6060"

// Config holds configuration for memory diagnostics.
type Config struct {
	// Enabled controls whether memory diagnostics are active.
	Enabled bool

	// PprofEnabled controls whether the pprof server is started.
	PprofEnabled bool

	// PprofAddr is the listen address of the pprof server.
	PprofAddr string

	// LogInterval is the interval for periodic memory logging. Zero
	// disables the periodic loop; LogNow still works.
	LogInterval time.Duration
}

// DefaultConfig returns the default configuration, reading from environment.
func DefaultConfig() Config {
	addr := os.Getenv(EnvPprofAddr)
	if addr == "" {
		addr = defaultPprofAddr
	}
	return Config{
		Enabled:      os.Getenv(EnvDebug) == "1",
		PprofEnabled: os.Getenv(EnvPprof) == "1",
		PprofAddr:    addr,
		LogInterval:  5 * time.Second,
	}
}

// Stats holds runtime heap statistics next to the process peak RSS that
// the report's resident set column is derived from.
type Stats struct {
	HeapAlloc    uint64
	HeapSys      uint64
	HeapInuse    uint64
	HeapReleased uint64
	Sys          uint64
	NumGC        uint32
	// PeakRSS is in bytes, -1 when the platform cannot report it.
	PeakRSS int64
}

// Read reads current memory statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	peak := int64(-1)
	if rss, err := sysmem.PeakRSS(); err == nil {
		peak = int64(rss)
	}
	return Stats{
		HeapAlloc:    m.HeapAlloc,
		HeapSys:      m.HeapSys,
		HeapInuse:    m.HeapInuse,
		HeapReleased: m.HeapReleased,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		PeakRSS:      peak,
	}
}

// Tracker logs heap usage at protocol steps and, optionally, periodically.
type Tracker struct {
	config   Config
	log      zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	mu       sync.Mutex
	phase    string
	peakHeap uint64
}

// NewTracker creates a new memory tracker logging to log.
func NewTracker(config Config, log zerolog.Logger) *Tracker {
	return &Tracker{
		config: config,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		phase:  "init",
	}
}

// Enabled reports whether the tracker logs anything.
func (t *Tracker) Enabled() bool {
	return t.config.Enabled
}

// Start begins periodic memory logging if enabled.
func (t *Tracker) Start() {
	if !t.config.Enabled {
		return
	}
	if !t.started.CompareAndSwap(false, true) {
		return
	}

	t.log.Info().Msg("memory diagnostics enabled")

	if t.config.PprofEnabled {
		go func() {
			t.log.Info().Str("addr", t.config.PprofAddr).Msg("starting pprof server")
			if err := http.ListenAndServe(t.config.PprofAddr, nil); err != nil {
				t.log.Error().Err(err).Msg("pprof server failed")
			}
		}()
	}

	if t.config.LogInterval > 0 {
		go t.logLoop()
	} else {
		close(t.doneCh)
	}
}

// Stop stops the tracker. A stopped tracker is not restarted by Start.
func (t *Tracker) Stop() {
	if !t.started.Load() {
		return
	}
	t.stopOnce.Do(func() {
		close(t.stopCh)
		<-t.doneCh
	})
}

// SetPhase sets the current phase for logging context.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()

	t.LogNow("phase_change")
}

// LogNow logs current memory stats immediately.
func (t *Tracker) LogNow(reason string) {
	if !t.config.Enabled {
		return
	}

	stats := Read()

	t.mu.Lock()
	phase := t.phase
	if stats.HeapAlloc > t.peakHeap {
		t.peakHeap = stats.HeapAlloc
	}
	peakHeap := t.peakHeap
	t.mu.Unlock()

	t.log.Debug().
		Str("reason", reason).
		Str("phase", phase).
		Str("heap_alloc", humanfmt.Bytes(int64(stats.HeapAlloc))).
		Str("heap_sys", humanfmt.Bytes(int64(stats.HeapSys))).
		Str("heap_inuse", humanfmt.Bytes(int64(stats.HeapInuse))).
		Str("heap_released", humanfmt.Bytes(int64(stats.HeapReleased))).
		Str("sys_total", humanfmt.Bytes(int64(stats.Sys))).
		Str("peak_heap", humanfmt.Bytes(int64(peakHeap))).
		Str("peak_rss", humanfmt.Bits(stats.PeakRSS*8)).
		Uint32("num_gc", stats.NumGC).
		Msg("memory stats")
}

// PeakHeap returns the peak heap allocation seen.
func (t *Tracker) PeakHeap() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peakHeap
}

func (t *Tracker) logLoop() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.config.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.LogNow("shutdown")
			return
		case <-ticker.C:
			t.LogNow("periodic")
		}
	}
}

var (
	globalTracker *Tracker
	globalOnce    sync.Once
)

// Global returns the process-wide tracker, configured from the environment.
func Global() *Tracker {
	globalOnce.Do(func() {
		globalTracker = NewTracker(DefaultConfig(), logging.WithPhase("memdiag"))
	})
	return globalTracker
}

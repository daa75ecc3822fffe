package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/eunmann/bvbench/pkg/benchutil"
	"github.com/eunmann/bvbench/pkg/bitvector"
	"github.com/eunmann/bvbench/pkg/confspace"
	"github.com/eunmann/bvbench/pkg/logging"
	"github.com/eunmann/bvbench/pkg/membudget"
	"github.com/eunmann/bvbench/pkg/memdiag"
	"github.com/eunmann/bvbench/pkg/sysmem"
)

// Exit statuses of Main.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Main is the entry point of a generated benchmark unit. It parses
// "<size> <steps>", runs the protocol once on a Tree built from cfg and
// writes the report to stdout. It returns the process exit status.
func Main(args []string, cfg confspace.Configuration) int {
	logging.InitFromEnv()
	return mainWith(filepath.Base(os.Args[0]), args, cfg, os.Stdout, os.Stderr, memdiag.Global())
}

func mainWith(prog string, args []string, cfg confspace.Configuration, stdout, stderr io.Writer, mem *memdiag.Tracker) int {
	log := logging.L().With().
		Str("unit", prog).
		Uint64("buffer_size", cfg.BufferSize).
		Uint64("leaf_capacity", cfg.LeafCapacity).
		Uint64("branching_factor", cfg.BranchingFactor).
		Logger()

	p, err := ParseArgs(args)
	if err == nil {
		err = p.Validate(DefaultWarmup)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\nusage: %s <size> <steps>\n", err, prog)
		return ExitUsage
	}

	seed, pinned, err := benchutil.SeedFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitUsage
	}

	budget, err := membudget.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitUsage
	}
	if err := budget.Check(membudget.EstimateRun(p.Size)); err != nil {
		log.Warn().Err(err).Msg("run may not fit in memory")
	}

	mem.Start()
	defer mem.Stop()

	sys := sysmem.Total()
	log.Info().
		Uint64("size", p.Size).
		Uint64("steps", p.Steps).
		Uint64("seed", seed).
		Bool("seed_pinned", pinned).
		Uint64("system_memory", sys.TotalBytes).
		Bool("system_memory_reliable", sys.Reliable).
		Msg("benchmark starting")

	start := time.Now()
	rw := NewReportWriter(stdout)
	opts := Options{
		Rand: benchutil.NewRand(seed),
		Log:  log,
		Mem:  mem,
	}
	err = rw.WriteHeader()
	if err == nil {
		err = Run(bitvector.NewTree(cfg.Params()), cfg, p, opts, rw.Write)
	}
	if err != nil {
		log.Error().Err(err).Msg("benchmark failed")
		if errors.Is(err, ErrUsage) {
			return ExitUsage
		}
		return ExitError
	}

	done := logging.PhaseComplete(log, "benchmark", time.Since(start)).
		Uint64("steps", p.Steps)
	if mem.Enabled() {
		done.Bytes("peak_heap", int64(mem.PeakHeap()))
	}
	done.Log("benchmark finished")
	return ExitOK
}

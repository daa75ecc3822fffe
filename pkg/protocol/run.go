package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/eunmann/bvbench/pkg/benchutil"
	"github.com/eunmann/bvbench/pkg/bitvector"
	"github.com/eunmann/bvbench/pkg/confspace"
	"github.com/eunmann/bvbench/pkg/humanfmt"
	"github.com/eunmann/bvbench/pkg/logging"
	"github.com/eunmann/bvbench/pkg/memdiag"
	"github.com/eunmann/bvbench/pkg/sysmem"
	"github.com/rs/zerolog"
)

// Options tune a run. The zero value runs the standard protocol except
// for Rand, which must be set.
type Options struct {
	// Warmup overrides DefaultWarmup when non-zero.
	Warmup uint64
	// Ops overrides DefaultOps when non-zero.
	Ops uint64
	// Rand draws positions and bits.
	Rand benchutil.Rand
	// RSS samples peak resident memory in bits; defaults to sysmem.PeakRSSBits.
	RSS func() int64
	// Log receives one debug event per step. The zero logger discards.
	Log zerolog.Logger
	// Mem, when set, logs heap statistics at each step.
	Mem *memdiag.Tracker
}

func (o Options) withDefaults() Options {
	if o.Warmup == 0 {
		o.Warmup = DefaultWarmup
	}
	if o.Ops == 0 {
		o.Ops = DefaultOps
	}
	if o.RSS == nil {
		o.RSS = sysmem.PeakRSSBits
	}
	return o
}

// Run executes the protocol on an empty vector v and hands each row to
// emit as soon as its step completes. cfg only labels the rows.
func Run(v bitvector.Dynamic, cfg confspace.Configuration, p Params, opts Options, emit func(Row) error) error {
	opts = opts.withDefaults()
	if opts.Rand == nil {
		return errors.New("protocol: Options.Rand is nil")
	}
	if err := p.Validate(opts.Warmup); err != nil {
		return err
	}

	r := &runner{v: v, rng: opts.Rand, opts: opts}
	r.warmup()

	for step := uint64(1); step <= p.Steps; step++ {
		if opts.Mem != nil {
			opts.Mem.SetPhase(fmt.Sprintf("step_%d", step))
		}
		began := time.Now()
		row := r.step(Target(opts.Warmup, p.Size, p.Steps, step))
		row.BufferSize = cfg.BufferSize
		row.LeafCapacity = cfg.LeafCapacity
		row.BranchingFactor = cfg.BranchingFactor

		if err := emit(row); err != nil {
			return err
		}

		logging.StepComplete(opts.Log, time.Since(began)).
			Uint64("step", step).
			Uint64("target", row.Target).
			Uint64("size", row.Size).
			Uint64("bit_size", v.BitSize()).
			Str("peak_rss", humanfmt.Bits(row.ResidentSet)).
			Str("insert", humanfmt.Latency(row.Insert)).
			Str("remove", humanfmt.Latency(row.Remove)).
			Str("rank", humanfmt.Latency(row.Rank)).
			Str("select", humanfmt.Latency(row.Select)).
			LogDebug("step complete")
		if opts.Mem != nil {
			opts.Mem.LogNow("step")
		}
	}
	return nil
}

type runner struct {
	v    bitvector.Dynamic
	rng  benchutil.Rand
	opts Options
}

func (r *runner) warmup() {
	for i := range r.opts.Warmup {
		r.v.Insert(r.rng.Uint64N(i+1), benchutil.Bit(r.rng))
	}
}

// grow inserts random bits until the vector holds target bits.
func (r *runner) grow(start, target uint64) time.Duration {
	t := time.Now()
	for i := start; i < target; i++ {
		r.v.Insert(r.rng.Uint64N(i+1), benchutil.Bit(r.rng))
	}
	return time.Since(t)
}

// shrink removes random bits until the vector holds start bits.
func (r *runner) shrink(start, target uint64) time.Duration {
	t := time.Now()
	for i := target; i > start; i-- {
		r.v.Remove(r.rng.Uint64N(i))
	}
	return time.Since(t)
}

func (r *runner) step(target uint64) Row {
	row := Row{Target: target}
	start := r.v.Size()

	var firstInsert time.Duration
	churn := target > start
	if churn {
		firstInsert = r.grow(start, target)
	}

	row.Size = r.v.Size()
	row.ResidentSet = r.opts.RSS()

	if churn {
		n := target - start
		row.Remove = perOp(r.shrink(start, target), n)
		secondInsert := r.grow(start, target)
		row.Insert = (perOp(firstInsert, n) + perOp(secondInsert, n)) / 2
	}

	bound := min(target, r.v.Size())
	if bound == 0 {
		return row
	}

	var checksum uint64
	ops := r.opts.Ops

	t := time.Now()
	for range ops {
		if r.v.At(r.rng.Uint64N(bound)) {
			checksum++
		}
	}
	row.Access = perOp(time.Since(t), ops)

	t = time.Now()
	for range ops {
		checksum += r.v.Rank(r.rng.Uint64N(bound))
	}
	row.Rank = perOp(time.Since(t), ops)

	if limit := r.v.Rank(bound - 1); limit > 0 {
		t = time.Now()
		for range ops {
			checksum += r.v.Select(r.rng.Uint64N(limit))
		}
		row.Select = perOp(time.Since(t), ops)
	}

	row.Checksum = checksum
	return row
}

// perOp returns mean microseconds per operation.
func perOp(d time.Duration, n uint64) float64 {
	if n == 0 {
		return 0
	}
	return float64(d) / float64(time.Microsecond) / float64(n)
}

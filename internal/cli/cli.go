// Package cli implements the command-line interface for bvbench.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/eunmann/bvbench/internal/logctx"
	"github.com/eunmann/bvbench/pkg/benchutil"
	"github.com/eunmann/bvbench/pkg/bitvector"
	"github.com/eunmann/bvbench/pkg/confspace"
	"github.com/eunmann/bvbench/pkg/emit"
	"github.com/eunmann/bvbench/pkg/logging"
	"github.com/eunmann/bvbench/pkg/manifest"
	"github.com/eunmann/bvbench/pkg/membudget"
	"github.com/eunmann/bvbench/pkg/memdiag"
	"github.com/eunmann/bvbench/pkg/protocol"
	"github.com/eunmann/bvbench/pkg/report"
	"github.com/eunmann/bvbench/pkg/s3publish"
)

const usage = `usage: bvbench <command> [options]
commands: generate, run, collect, publish`

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	return run(context.Background(), args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "generate":
		return runGenerate(ctx, args[1:])
	case "run":
		return runProtocol(ctx, args[1:], stdout)
	case "collect":
		return runCollect(ctx, args[1:])
	case "publish":
		return runPublish(ctx, args[1:], nil)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

type logFlags struct {
	debug *bool
	human *bool
}

func addLogFlags(fs *flag.FlagSet) logFlags {
	return logFlags{
		debug: fs.Bool("debug", false, "enable debug logging"),
		human: fs.Bool("human", false, "human-readable console logs"),
	}
}

func (lf logFlags) init() {
	logging.Init(*lf.debug || os.Getenv(logging.EnvDebug) == "1", *lf.human || os.Getenv(logging.EnvHumanLogs) == "1")
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	outDir := fs.String("out", "", "output directory for unit programs; must be inside a module that is or requires --module")
	modulePath := fs.String("module", emit.DefaultModulePath, "import path of the bvbench module")
	sweepFile := fs.String("sweep", "", "YAML sweep file")
	buffers := fs.String("buffers", "", "buffer sizes, e.g. 0:32:2")
	leafs := fs.String("leafs", "", "leaf capacities, e.g. 0,1024,2048")
	branches := fs.String("branches", "", "branching factors, e.g. 4:68:4")
	lf := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outDir == "" {
		return errors.New("--out is required")
	}
	lf.init()

	sweep := confspace.DefaultSweep()
	if *sweepFile != "" {
		var err error
		if sweep, err = confspace.LoadSweep(*sweepFile); err != nil {
			return err
		}
	}
	overrides := []struct {
		flag string
		val  string
		dst  *confspace.List
	}{
		{"--buffers", *buffers, &sweep.Buffers},
		{"--leafs", *leafs, &sweep.Leafs},
		{"--branches", *branches, &sweep.Branches},
	}
	for _, o := range overrides {
		if o.val == "" {
			continue
		}
		vals, err := confspace.ParseList(o.val)
		if err != nil {
			return fmt.Errorf("%s: %w", o.flag, err)
		}
		*o.dst = vals
	}
	if err := emit.CheckOutDir(*outDir, *modulePath); err != nil {
		return err
	}

	log := logging.WithPhase("generate")
	ctx = logctx.WithLogger(ctx, log)
	log.Info().
		Str("buffers", confspace.FormatList(sweep.Buffers)).
		Str("leafs", confspace.FormatList(sweep.Leafs)).
		Str("branches", confspace.FormatList(sweep.Branches)).
		Uint64("units", sweep.Count()).
		Msg("generating benchmark units")

	e := emit.Emitter{OutDir: *outDir, ModulePath: *modulePath}
	artifacts, err := e.Emit(ctx, sweep.Units())
	if err != nil {
		return err
	}
	start := time.Now()
	m, err := manifest.Write(*outDir, *modulePath, artifacts)
	if err != nil {
		return err
	}
	logging.FileCreated(log, "generate", time.Since(start)).
		Int("targets", len(m.Targets)).
		Str("path", filepath.Join(*outDir, emit.ManifestFile)).
		Log("manifest written")
	return nil
}

func runProtocol(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	buffer := fs.Uint64("buffer", 0, "buffer size")
	leaf := fs.Uint64("leaf", 0, "leaf capacity")
	branch := fs.Uint64("branch", 0, "branching factor")
	size := fs.Uint64("size", 0, "final target size in bits")
	steps := fs.Uint64("steps", 0, "number of growth steps")
	seed := fs.Uint64("seed", 0, "random seed (0 draws from runtime entropy)")
	naive := fs.Bool("naive", false, "run on the uncompressed reference vector")
	memBudget := fs.String("mem-budget", "", "memory budget, e.g. 4GiB (default: BVBENCH_MEM_BUDGET or 50% of RAM)")
	lf := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	p := protocol.Params{Size: *size, Steps: *steps}
	if err := p.Validate(protocol.DefaultWarmup); err != nil {
		return err
	}
	budget, err := membudget.Resolve(*memBudget)
	if err != nil {
		return fmt.Errorf("--mem-budget: %w", err)
	}
	if err := budget.Check(membudget.EstimateRun(p.Size)); err != nil {
		return err
	}
	lf.init()
	if *seed == 0 {
		*seed = benchutil.EntropySeed()
	}

	cfg := confspace.Configuration{BufferSize: *buffer, LeafCapacity: *leaf, BranchingFactor: *branch}
	var v bitvector.Dynamic = bitvector.NewTree(cfg.Params())
	if *naive {
		v = bitvector.NewNaive()
	}

	ctx = logctx.WithStr(ctx, "phase", "benchmark")
	ctx = logctx.WithUint64(ctx, "seed", *seed)
	log := logctx.FromContext(ctx).With().
		Str("params", cfg.Params().String()).
		Bool("naive", *naive).
		Logger()
	mem := memdiag.Global()
	mem.Start()
	defer mem.Stop()

	rw := protocol.NewReportWriter(stdout)
	if err := rw.WriteHeader(); err != nil {
		return err
	}
	opts := protocol.Options{Rand: benchutil.NewRand(*seed), Log: log, Mem: mem}
	return protocol.Run(v, cfg, p, opts, rw.Write)
}

func runCollect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	out := fs.String("out", "", "output Parquet file")
	dir := fs.String("dir", "", "directory of *.tsv and *.tsv.zst reports, in addition to positional files")
	lf := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("--out is required")
	}

	paths := fs.Args()
	if *dir != "" {
		var matches []string
		for _, pattern := range []string{"*.tsv", "*.tsv" + report.ZstdExt} {
			m, err := filepath.Glob(filepath.Join(*dir, pattern))
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}
			matches = append(matches, m...)
		}
		sort.Slice(matches, func(i, j int) bool {
			return unitLess(report.UnitName(matches[i]), report.UnitName(matches[j]))
		})
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return errors.New("at least one report file is required")
	}
	lf.init()

	log := logging.WithPhase("collect")
	records, err := report.Collect(logctx.WithLogger(ctx, log), paths)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := report.WriteParquet(*out, records); err != nil {
		return err
	}
	info, err := os.Stat(*out)
	if err != nil {
		return fmt.Errorf("stat %s: %w", *out, err)
	}
	logging.FileCreated(log, "collect", time.Since(start)).
		Int("rows", len(records)).
		Bytes("bytes", info.Size()).
		Str("path", *out).
		Log("parquet archive written")
	return nil
}

// unitLess orders "t2" before "t10".
func unitLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// publisher is satisfied by *s3publish.Publisher.
type publisher interface {
	Publish(ctx context.Context, dest string, paths []string) ([]string, error)
}

func runPublish(ctx context.Context, args []string, pub publisher) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	dest := fs.String("dest", "", "destination URI (s3://bucket/prefix)")
	lf := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dest == "" {
		return errors.New("--dest is required")
	}
	if _, _, err := s3publish.ParseS3URI(*dest); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return errors.New("at least one file to publish is required")
	}
	lf.init()

	if pub == nil {
		p, err := s3publish.New(ctx)
		if err != nil {
			return err
		}
		pub = p
	}

	log := logging.WithPhase("publish")
	uris, err := pub.Publish(logctx.WithLogger(ctx, log), *dest, paths)
	if err != nil {
		return err
	}
	for _, uri := range uris {
		log.Debug().Str("uri", uri).Msg("published")
	}
	return nil
}

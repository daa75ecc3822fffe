package benchutil

import (
	"os"
	"testing"
)

// BenchmarkSeed is the default seed for reproducible benchmark data generation.
const BenchmarkSeed = 42

// BenchmarkSizes are bit vector sizes for quick benchmark runs.
var BenchmarkSizes = []int{1_000, 10_000, 100_000}

// ScalingSizes are larger sizes used with BVBENCH_LONG_BENCH=1.
var ScalingSizes = []int{100_000, 1_000_000, 4_000_000}

// SkipIfNoLongBench skips the benchmark if BVBENCH_LONG_BENCH is not set.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("BVBENCH_LONG_BENCH") == "" {
		b.Skip("set BVBENCH_LONG_BENCH=1 to run scaling benchmark")
	}
}

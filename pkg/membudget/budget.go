// Package membudget bounds the memory a benchmark run may plan to use.
//
// A run grows one bit vector to its final size. Before starting, callers
// compare an estimate of the run's peak footprint against the budget so an
// oversized request fails fast instead of swapping or being OOM-killed
// halfway through the schedule.
package membudget

import (
	"errors"
	"fmt"
	"os"

	"github.com/eunmann/bvbench/pkg/humanfmt"
	"github.com/eunmann/bvbench/pkg/sysmem"
)

// EnvBudget overrides the budget, e.g. "4GiB".
const EnvBudget = "BVBENCH_MEM_BUDGET"

// DefaultBudgetBytes is the fallback memory budget when system RAM cannot be detected.
const DefaultBudgetBytes uint64 = 8 * 1024 * 1024 * 1024

// ErrOverBudget is returned by Check when an estimate exceeds the budget.
var ErrOverBudget = errors.New("estimated memory exceeds budget")

// BudgetSource indicates how the memory budget was determined.
type BudgetSource string

const (
	// BudgetSourceAuto50Pct indicates the budget was set to 50% of detected RAM.
	BudgetSourceAuto50Pct BudgetSource = "auto-50pct"
	// BudgetSourceDefault indicates the budget used the fallback default.
	BudgetSourceDefault BudgetSource = "default"
	// BudgetSourceCLI indicates the budget was set via CLI flag.
	BudgetSourceCLI BudgetSource = "cli"
	// BudgetSourceEnv indicates the budget was set via environment variable.
	BudgetSourceEnv BudgetSource = "env"
)

// Bytes per stored bit a run may peak at: the bitset words, a transient
// copy while a leaf or the reference vector is rebuilt, and tree nodes.
const overheadFactor = 3

// baseBytes covers the runtime and the warm-up vector.
const baseBytes = 32 * 1024 * 1024

// Budget is a fixed memory allowance.
type Budget struct {
	total  uint64
	source BudgetSource
}

// New creates a Budget of total bytes.
func New(total uint64, source BudgetSource) Budget {
	return Budget{total: total, source: source}
}

// NewFromSystemRAM creates a Budget set to 50% of system RAM.
// If RAM cannot be detected, uses DefaultBudgetBytes.
func NewFromSystemRAM() Budget {
	result := sysmem.Total()
	if result.Reliable {
		return New(result.TotalBytes/2, BudgetSourceAuto50Pct)
	}
	return New(DefaultBudgetBytes, BudgetSourceDefault)
}

// FromEnv reads BVBENCH_MEM_BUDGET, falling back to NewFromSystemRAM
// when it is unset.
func FromEnv() (Budget, error) {
	s := os.Getenv(EnvBudget)
	if s == "" {
		return NewFromSystemRAM(), nil
	}
	n, err := ParseHumanSize(s)
	if err != nil {
		return Budget{}, fmt.Errorf("%s: %w", EnvBudget, err)
	}
	return New(n, BudgetSourceEnv), nil
}

// Resolve picks the budget for a command: a non-empty flag value wins
// over the environment and the system default.
func Resolve(flagValue string) (Budget, error) {
	if flagValue == "" {
		return FromEnv()
	}
	n, err := ParseHumanSize(flagValue)
	if err != nil {
		return Budget{}, err
	}
	return New(n, BudgetSourceCLI), nil
}

// Total returns the total budget in bytes.
func (b Budget) Total() uint64 {
	return b.total
}

// Source returns how the budget was determined.
func (b Budget) Source() BudgetSource {
	return b.source
}

// EstimateRun returns the planned peak bytes of a run growing a vector to
// size bits.
func EstimateRun(size uint64) uint64 {
	return baseBytes + (size+7)/8*overheadFactor
}

// Check returns ErrOverBudget when estimate does not fit. A zero budget
// disables the check.
func (b Budget) Check(estimate uint64) error {
	if b.total == 0 || estimate <= b.total {
		return nil
	}
	return fmt.Errorf("%w: need %s, budget %s (%s)", ErrOverBudget,
		humanfmt.Bytes(int64(estimate)), humanfmt.Bytes(int64(b.total)), b.source)
}

// ParseHumanSize parses a human-readable size string (e.g., "4GiB", "512MB").
// Supported suffixes: B, KB, KiB, MB, MiB, GB, GiB, TB, TiB.
func ParseHumanSize(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("empty size string")
	}

	numEnd := 0
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' {
			numEnd = i
			break
		}
		numEnd = i + 1
	}

	numStr := s[:numEnd]
	suffix := s[numEnd:]

	var num float64
	if _, err := fmt.Sscanf(numStr, "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid number: %s", numStr)
	}

	var multiplier float64
	switch suffix {
	case "", "B":
		multiplier = 1.0
	case "KB":
		multiplier = 1000
	case "KiB", "K":
		multiplier = 1024
	case "MB":
		multiplier = 1000 * 1000
	case "MiB", "M":
		multiplier = 1024 * 1024
	case "GB":
		multiplier = 1000 * 1000 * 1000
	case "GiB", "G":
		multiplier = 1024 * 1024 * 1024
	case "TB":
		multiplier = 1000 * 1000 * 1000 * 1000
	case "TiB", "T":
		multiplier = 1024 * 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}

	return uint64(num * multiplier), nil
}

// Package protocol runs the fixed benchmark workload against a bit vector:
// log-scale growth, timed updates and queries, peak RSS sampling, and a
// tab-separated report row per growth step.
package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Protocol constants.
const (
	// DefaultWarmup is the number of untimed inserts before the first step.
	DefaultWarmup uint64 = 100
	// DefaultOps is the number of operations in each timed query phase.
	DefaultOps uint64 = 100000
)

var (
	// ErrUsage is returned for malformed command-line arguments.
	ErrUsage = errors.New("usage")
	// ErrNoSteps is returned when the step count is zero.
	ErrNoSteps = errors.New("step count must be positive")
	// ErrSizeTooSmall is returned when the final size does not exceed the warm-up size.
	ErrSizeTooSmall = errors.New("size must exceed the warm-up size")
)

// Params are the run-time inputs of a benchmark unit.
type Params struct {
	// Size is the final number of bits, N.
	Size uint64
	// Steps is the number of growth steps, S.
	Steps uint64
}

// ParseArgs parses the two positional arguments "<size> <steps>".
func ParseArgs(args []string) (Params, error) {
	if len(args) != 2 {
		return Params{}, fmt.Errorf("%w: want 2 arguments <size> <steps>, got %d", ErrUsage, len(args))
	}
	size, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return Params{}, fmt.Errorf("%w: size %q is not a non-negative integer", ErrUsage, args[0])
	}
	steps, err := strconv.ParseUint(strings.TrimSpace(args[1]), 10, 64)
	if err != nil {
		return Params{}, fmt.Errorf("%w: steps %q is not a non-negative integer", ErrUsage, args[1])
	}
	return Params{Size: size, Steps: steps}, nil
}

// Validate rejects parameters the growth schedule cannot serve.
func (p Params) Validate(warmup uint64) error {
	if p.Steps == 0 {
		return ErrNoSteps
	}
	if p.Size <= warmup {
		return fmt.Errorf("%w: size %d, warm-up %d", ErrSizeTooSmall, p.Size, warmup)
	}
	return nil
}

// Target returns the size the vector grows to at step (1-based):
// floor(2^(log2 w + step*(log2 n - log2 w)/steps)).
func Target(w, n, steps, step uint64) uint64 {
	start := math.Log2(float64(w))
	delta := (math.Log2(float64(n)) - start) / float64(steps)
	return uint64(math.Pow(2, start+delta*float64(step)))
}

// Schedule returns the targets of steps 1..steps.
func Schedule(w, n, steps uint64) []uint64 {
	out := make([]uint64, 0, steps)
	for step := uint64(1); step <= steps; step++ {
		out = append(out, Target(w, n, steps, step))
	}
	return out
}

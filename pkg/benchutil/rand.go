// Package benchutil provides the random source of the benchmark protocol
// and synthetic workloads for bit vector tests and benchmarks.
package benchutil

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
)

// EnvSeed pins the seed of a benchmark unit when set.
const EnvSeed = "BVBENCH_SEED"

// Rand is the random source the protocol draws positions and bits from.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Uint64() uint64
	// Uint64N returns a value in [0, n). It panics if n == 0.
	Uint64N(n uint64) uint64
}

// NewRand returns a PCG generator seeded deterministically from seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// EntropySeed returns a seed drawn from the runtime's entropy-seeded source.
func EntropySeed() uint64 {
	return rand.Uint64()
}

// SeedFromEnv returns the seed in BVBENCH_SEED, or an entropy seed when the
// variable is unset. pinned reports whether the environment supplied it.
func SeedFromEnv() (seed uint64, pinned bool, err error) {
	v := os.Getenv(EnvSeed)
	if v == "" {
		return EntropySeed(), false, nil
	}
	seed, err = strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s=%q: %w", EnvSeed, v, err)
	}
	return seed, true, nil
}

// Bit draws a uniformly random bit.
func Bit(rng Rand) bool {
	return rng.Uint64()&1 == 1
}

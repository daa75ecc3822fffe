// Package confspace enumerates the benchmark configuration space: the
// cartesian product of buffer sizes, leaf capacities and branching factors.
package confspace

import (
	"strconv"

	"github.com/eunmann/bvbench/pkg/bitvector"
)

// Configuration is one point of the parameter space.
type Configuration struct {
	BufferSize      uint64 `json:"buffer_size" yaml:"buffer_size"`
	LeafCapacity    uint64 `json:"leaf_capacity" yaml:"leaf_capacity"`
	BranchingFactor uint64 `json:"branching_factor" yaml:"branching_factor"`
}

// Params converts c to bit vector parameters. The values are passed as
// requested; bitvector.NewTree normalizes them.
func (c Configuration) Params() bitvector.Params {
	return bitvector.Params{
		BufferSize:   c.BufferSize,
		LeafCapacity: c.LeafCapacity,
		Branching:    c.BranchingFactor,
	}
}

// Unit is a configuration with its dense identifier.
type Unit struct {
	ID     uint64
	Config Configuration
}

// Name returns the artifact name of the unit, "t<ID>".
func (u Unit) Name() string {
	return UnitName(u.ID)
}

// UnitName returns "t<id>".
func UnitName(id uint64) string {
	return "t" + strconv.FormatUint(id, 10)
}

// Count returns the number of units Enumerate yields for the sequences.
func Count(buffers, leafs, branches []uint64) uint64 {
	return uint64(len(buffers)) * uint64(len(leafs)) * uint64(len(branches))
}

// Enumerate expands the cartesian product. Buffers vary slowest and
// branches fastest; IDs are assigned densely from 0 in that order. Any
// empty sequence yields no units.
func Enumerate(buffers, leafs, branches []uint64) []Unit {
	units := make([]Unit, 0, Count(buffers, leafs, branches))
	var id uint64
	for _, buf := range buffers {
		for _, leaf := range leafs {
			for _, branch := range branches {
				units = append(units, Unit{
					ID: id,
					Config: Configuration{
						BufferSize:      buf,
						LeafCapacity:    leaf,
						BranchingFactor: branch,
					},
				})
				id++
			}
		}
	}
	return units
}

// Package bitvector provides dynamic bit vectors with rank and select.
//
// Tree is a B-tree of bounded leaves, each leaf carrying a small buffer of
// pending updates. Naive is a flat reference implementation used to check
// Tree and to run the benchmark protocol in tests.
//
// Conventions shared by every implementation:
//
//	Rank(i)   number of ones in [0, i), valid for i <= Size()
//	Select(k) position of the k-th one (0-based); Size() when k >= Rank(Size())
//
// Positions out of range panic, like slice indexing.
package bitvector

import "fmt"

// Dynamic is a bit vector supporting positional insertion and removal.
type Dynamic interface {
	// Insert places bit at pos, shifting later bits up. pos <= Size().
	Insert(pos uint64, bit bool)
	// Remove deletes the bit at pos and returns it. pos < Size().
	Remove(pos uint64) bool
	At(i uint64) bool
	Rank(i uint64) uint64
	Select(k uint64) uint64
	// Size is the number of stored bits.
	Size() uint64
	// BitSize estimates the memory held by the structure, in bits.
	BitSize() uint64
}

// Limits applied by Params.Normalize.
const (
	MinLeafCapacity = 64
	MinBranching    = 4
	MaxBufferSize   = 63
)

// Params configures a Tree.
type Params struct {
	// BufferSize is the number of pending updates a leaf holds before
	// applying them to its bits. Zero applies updates immediately.
	BufferSize uint64
	// LeafCapacity is the maximum number of bits in a leaf.
	LeafCapacity uint64
	// Branching is the maximum number of children of an internal node.
	Branching uint64
}

// Normalize clamps p into the supported range. Benchmark sweeps include
// zero leaf sizes and large buffers; those run with the nearest valid shape.
func (p Params) Normalize() Params {
	if p.LeafCapacity < MinLeafCapacity {
		p.LeafCapacity = MinLeafCapacity
	}
	if p.Branching < MinBranching {
		p.Branching = MinBranching
	}
	if p.BufferSize > MaxBufferSize {
		p.BufferSize = MaxBufferSize
	}
	return p
}

func (p Params) String() string {
	return fmt.Sprintf("buffer=%d leaf=%d branch=%d", p.BufferSize, p.LeafCapacity, p.Branching)
}

func checkIndex(op string, i, limit uint64) {
	if i >= limit {
		panic(fmt.Sprintf("bitvector: %s index %d out of range [0, %d)", op, i, limit))
	}
}

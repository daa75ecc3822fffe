package bitvector

import (
	"fmt"
	"testing"

	"github.com/eunmann/bvbench/pkg/benchutil"
	"github.com/hillbig/rsdic"
	"github.com/stretchr/testify/require"
)

var testParams = []Params{
	{BufferSize: 0, LeafCapacity: 64, Branching: 4},
	{BufferSize: 1, LeafCapacity: 64, Branching: 4},
	{BufferSize: 8, LeafCapacity: 128, Branching: 5},
	{BufferSize: 63, LeafCapacity: 256, Branching: 8},
	{BufferSize: 16, LeafCapacity: 1024, Branching: 16},
}

func implementations(p Params) map[string]Dynamic {
	return map[string]Dynamic{
		"naive": NewNaive(),
		"tree":  NewTree(p),
	}
}

func apply(v Dynamic, ops []benchutil.Op) {
	for _, op := range ops {
		if op.Kind == benchutil.OpInsert {
			v.Insert(op.Pos, op.Bit)
		} else {
			v.Remove(op.Pos)
		}
	}
}

// oracle builds a static rank/select dictionary with the same contents as v.
func oracle(v Dynamic) *rsdic.RSDic {
	rs := rsdic.New()
	for i := range v.Size() {
		rs.PushBack(v.At(i))
	}
	return rs
}

func requireMatchesOracle(t *testing.T, v Dynamic) {
	t.Helper()
	rs := oracle(v)
	require.Equal(t, rs.Num(), v.Size())

	for i := uint64(0); i < v.Size(); i++ {
		require.Equal(t, rs.Rank(i, true), v.Rank(i), "rank(%d)", i)
	}
	var ones uint64
	for i := range rs.Num() {
		if rs.Bit(i) {
			ones++
		}
	}
	require.Equal(t, ones, v.Rank(v.Size()))
	for k := range ones {
		require.Equal(t, rs.Select(k, true), v.Select(k), "select(%d)", k)
	}
	require.Equal(t, v.Size(), v.Select(ones))
}

func TestParamsNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want Params
	}{
		{Params{}, Params{BufferSize: 0, LeafCapacity: MinLeafCapacity, Branching: MinBranching}},
		{Params{BufferSize: 64, LeafCapacity: 2048, Branching: 64}, Params{BufferSize: MaxBufferSize, LeafCapacity: 2048, Branching: 64}},
		{Params{BufferSize: 30, LeafCapacity: 1024, Branching: 3}, Params{BufferSize: 30, LeafCapacity: 1024, Branching: MinBranching}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.in.Normalize(), "Normalize(%v)", tt.in)
	}
}

func TestEmpty(t *testing.T) {
	t.Parallel()
	for name, v := range implementations(testParams[0]) {
		t.Run(name, func(t *testing.T) {
			require.Zero(t, v.Size())
			require.Zero(t, v.Rank(0))
			require.Zero(t, v.Select(0))
			require.Positive(t, v.BitSize())
		})
	}
}

func TestInsertRemoveSmall(t *testing.T) {
	t.Parallel()
	for name, v := range implementations(Params{BufferSize: 2}) {
		t.Run(name, func(t *testing.T) {
			// Build 1 0 1 1 by inserting out of order.
			v.Insert(0, true)  // 1
			v.Insert(1, true)  // 1 1
			v.Insert(1, false) // 1 0 1
			v.Insert(3, true)  // 1 0 1 1

			require.Equal(t, uint64(4), v.Size())
			want := []bool{true, false, true, true}
			for i, b := range want {
				require.Equal(t, b, v.At(uint64(i)), "at(%d)", i)
			}
			require.Equal(t, uint64(0), v.Rank(0))
			require.Equal(t, uint64(1), v.Rank(1))
			require.Equal(t, uint64(1), v.Rank(2))
			require.Equal(t, uint64(3), v.Rank(4))
			require.Equal(t, uint64(0), v.Select(0))
			require.Equal(t, uint64(2), v.Select(1))
			require.Equal(t, uint64(3), v.Select(2))
			require.Equal(t, uint64(4), v.Select(3))

			require.False(t, v.Remove(1))
			require.True(t, v.Remove(0))
			require.Equal(t, uint64(2), v.Size())
			require.Equal(t, uint64(2), v.Rank(2))
		})
	}
}

func TestRandomOpsMatchReference(t *testing.T) {
	t.Parallel()
	for _, p := range testParams {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()
			rng := benchutil.NewRand(benchutil.BenchmarkSeed)
			tree := NewTree(p)
			ref := NewNaive()

			for round := range 6 {
				ops := benchutil.RandomOps(rng, 1500, ref.Size(), 2)
				apply(tree, ops)
				apply(ref, ops)

				require.Equal(t, ref.Size(), tree.Size(), "round %d", round)
				for i := range ref.Size() {
					require.Equal(t, ref.At(i), tree.At(i), "round %d at(%d)", round, i)
				}
				requireMatchesOracle(t, tree)
			}
		})
	}
}

func TestGrowAndShrinkToEmpty(t *testing.T) {
	t.Parallel()
	rng := benchutil.NewRand(7)
	tree := NewTree(Params{BufferSize: 4, LeafCapacity: 64, Branching: 4})

	const n = 20000
	var ones uint64
	for i := range uint64(n) {
		bit := benchutil.Bit(rng)
		if bit {
			ones++
		}
		tree.Insert(rng.Uint64N(i+1), bit)
	}
	require.Equal(t, uint64(n), tree.Size())
	require.Equal(t, ones, tree.Rank(n))
	require.Greater(t, tree.Depth(), 3)

	for i := uint64(n); i > 0; i-- {
		if tree.Remove(rng.Uint64N(i)) {
			ones--
		}
	}
	require.Zero(t, ones)
	require.Zero(t, tree.Size())
	require.Equal(t, 1, tree.Depth())

	tree.Insert(0, true)
	require.Equal(t, uint64(0), tree.Select(0))
}

func TestRemoveReturnsStoredBit(t *testing.T) {
	t.Parallel()
	for name, v := range implementations(Params{BufferSize: 8, LeafCapacity: 64, Branching: 4}) {
		t.Run(name, func(t *testing.T) {
			for i := range uint64(500) {
				v.Insert(i, i%3 == 0)
			}
			for i := uint64(500); i > 0; i-- {
				pos := i - 1
				require.Equal(t, pos%3 == 0, v.Remove(pos), "remove(%d)", pos)
			}
		})
	}
}

func TestRankSelectInverse(t *testing.T) {
	t.Parallel()
	rng := benchutil.NewRand(99)
	for name, v := range implementations(Params{BufferSize: 16, LeafCapacity: 128, Branching: 6}) {
		t.Run(name, func(t *testing.T) {
			apply(v, benchutil.RandomOps(rng, 5000, 0, 3))
			ones := v.Rank(v.Size())
			for k := range ones {
				pos := v.Select(k)
				require.True(t, v.At(pos), "at(select(%d))", k)
				require.Equal(t, k, v.Rank(pos), "rank(select(%d))", k)
			}
		})
	}
}

func TestOutOfRangePanics(t *testing.T) {
	t.Parallel()
	for name, v := range implementations(testParams[1]) {
		t.Run(name, func(t *testing.T) {
			v.Insert(0, true)
			require.Panics(t, func() { v.Insert(2, true) })
			require.Panics(t, func() { v.Remove(1) })
			require.Panics(t, func() { v.At(1) })
			require.Panics(t, func() { v.Rank(2) })
		})
	}
}

func TestBitSizeGrows(t *testing.T) {
	t.Parallel()
	tree := NewTree(Params{BufferSize: 4, LeafCapacity: 256, Branching: 8})
	empty := tree.BitSize()
	for i := range uint64(10000) {
		tree.Insert(i, i%2 == 0)
	}
	require.Greater(t, tree.BitSize(), empty+10000)
}

func benchmarkFilled(b *testing.B, size int) *Tree {
	b.Helper()
	rng := benchutil.NewRand(benchutil.BenchmarkSeed)
	tree := NewTree(Params{BufferSize: 16, LeafCapacity: 4096, Branching: 16})
	for i := range uint64(size) {
		tree.Insert(rng.Uint64N(i+1), benchutil.Bit(rng))
	}
	return tree
}

func BenchmarkTree_Insert(b *testing.B) {
	for _, size := range benchutil.BenchmarkSizes {
		b.Run(fmt.Sprintf("n=%d", size), func(b *testing.B) {
			tree := benchmarkFilled(b, size)
			rng := benchutil.NewRand(1)
			b.ResetTimer()
			for range b.N {
				tree.Insert(rng.Uint64N(tree.Size()+1), benchutil.Bit(rng))
			}
		})
	}
}

func BenchmarkTree_Rank(b *testing.B) {
	for _, size := range benchutil.BenchmarkSizes {
		b.Run(fmt.Sprintf("n=%d", size), func(b *testing.B) {
			tree := benchmarkFilled(b, size)
			rng := benchutil.NewRand(1)
			b.ResetTimer()
			for range b.N {
				tree.Rank(rng.Uint64N(uint64(size)))
			}
		})
	}
}

func BenchmarkTree_Select(b *testing.B) {
	for _, size := range benchutil.BenchmarkSizes {
		b.Run(fmt.Sprintf("n=%d", size), func(b *testing.B) {
			tree := benchmarkFilled(b, size)
			rng := benchutil.NewRand(1)
			ones := tree.Rank(tree.Size())
			b.ResetTimer()
			for range b.N {
				tree.Select(rng.Uint64N(ones))
			}
		})
	}
}

func BenchmarkTree_Scaling(b *testing.B) {
	benchutil.SkipIfNoLongBench(b)
	for _, size := range benchutil.ScalingSizes {
		b.Run(fmt.Sprintf("n=%d", size), func(b *testing.B) {
			tree := benchmarkFilled(b, size)
			rng := benchutil.NewRand(1)
			b.ResetTimer()
			for range b.N {
				pos := rng.Uint64N(tree.Size())
				tree.Remove(pos)
				tree.Insert(pos, benchutil.Bit(rng))
			}
		})
	}
}

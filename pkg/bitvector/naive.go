package bitvector

import "github.com/bits-and-blooms/bitset"

// Naive is a flat bit vector: every update shifts the tail of one bitset.
type Naive struct {
	bits *bitset.BitSet
}

var _ Dynamic = (*Naive)(nil)

// NewNaive returns an empty Naive vector.
func NewNaive() *Naive {
	return &Naive{bits: bitset.New(0)}
}

func (n *Naive) Insert(pos uint64, bit bool) {
	checkIndex("insert", pos, n.Size()+1)
	n.bits.InsertAt(uint(pos))
	if bit {
		n.bits.Set(uint(pos))
	}
}

func (n *Naive) Remove(pos uint64) bool {
	checkIndex("remove", pos, n.Size())
	bit := n.bits.Test(uint(pos))
	n.bits.DeleteAt(uint(pos))
	n.bits = compact(n.bits)
	return bit
}

func (n *Naive) At(i uint64) bool {
	checkIndex("access", i, n.Size())
	return n.bits.Test(uint(i))
}

func (n *Naive) Rank(i uint64) uint64 {
	checkIndex("rank", i, n.Size()+1)
	return rankBits(n.bits, i)
}

func (n *Naive) Select(k uint64) uint64 {
	if k >= uint64(n.bits.Count()) {
		return n.Size()
	}
	return uint64(n.bits.Select(uint(k)))
}

func (n *Naive) Size() uint64 {
	return uint64(n.bits.Len())
}

func (n *Naive) BitSize() uint64 {
	return wordBits(n.bits) + 64
}

// rankBits counts ones in [0, i) of b. bitset's Rank is inclusive.
func rankBits(b *bitset.BitSet, i uint64) uint64 {
	if i == 0 {
		return 0
	}
	return uint64(b.Rank(uint(i - 1)))
}

func wordBits(b *bitset.BitSet) uint64 {
	return uint64(len(b.Words())) * 64
}

// compact drops backing words left behind by DeleteAt. InsertAt grows the
// backing slice whenever the length crosses a word boundary, so churn
// around a boundary would otherwise grow it without bound.
func compact(b *bitset.BitSet) *bitset.BitSet {
	need := (b.Len() + 63) / 64
	if uint(len(b.Words())) <= need+1 {
		return b
	}
	if b.Len() == 0 {
		return bitset.New(0)
	}
	return b.Shrink(b.Len() - 1)
}

// copyRange returns a new bitset holding b[from, to).
func copyRange(b *bitset.BitSet, from, to uint64) *bitset.BitSet {
	dst := bitset.New(uint(to - from))
	for i, ok := b.NextSet(uint(from)); ok && uint64(i) < to; i, ok = b.NextSet(i + 1) {
		dst.Set(i - uint(from))
	}
	return dst
}

// concat returns a new bitset holding a followed by b, where a holds
// exactly aLen bits.
func concat(a *bitset.BitSet, aLen uint64, b *bitset.BitSet, bLen uint64) *bitset.BitSet {
	dst := bitset.New(uint(aLen + bLen))
	for i, ok := a.NextSet(0); ok && uint64(i) < aLen; i, ok = a.NextSet(i + 1) {
		dst.Set(i)
	}
	for i, ok := b.NextSet(0); ok && uint64(i) < bLen; i, ok = b.NextSet(i + 1) {
		dst.Set(uint(aLen) + i)
	}
	return dst
}

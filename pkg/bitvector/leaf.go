package bitvector

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// pending is one buffered update, recorded in application order.
// For removals value holds the removed bit.
type pending struct {
	pos    uint64
	insert bool
	value  bool
}

const pendingBits = 128

// leaf is a bitset plus a log of updates not yet applied to it. Queries
// translate their index backwards through the log until it addresses the
// bitset or hits a buffered insertion.
type leaf struct {
	bits   *bitset.BitSet
	size   uint64 // logical size, log included
	ones   uint64 // logical popcount, log included
	buf    []pending
	bufCap int
}

func newLeaf(bufCap uint64) *leaf {
	return &leaf{
		bits:   bitset.New(0),
		buf:    make([]pending, 0, bufCap+1),
		bufCap: int(bufCap),
	}
}

func (l *leaf) insert(pos uint64, bit bool) {
	l.buf = append(l.buf, pending{pos: pos, insert: true, value: bit})
	l.size++
	if bit {
		l.ones++
	}
	l.maybeCommit()
}

func (l *leaf) remove(pos uint64) bool {
	bit := l.at(pos)
	l.buf = append(l.buf, pending{pos: pos, value: bit})
	l.size--
	if bit {
		l.ones--
	}
	l.maybeCommit()
	return bit
}

func (l *leaf) maybeCommit() {
	if len(l.buf) > l.bufCap {
		l.commit()
	}
}

// commit replays the log into the bitset.
func (l *leaf) commit() {
	if len(l.buf) == 0 {
		return
	}
	var removed bool
	for _, p := range l.buf {
		if p.insert {
			l.bits.InsertAt(uint(p.pos))
			if p.value {
				l.bits.Set(uint(p.pos))
			}
			continue
		}
		l.bits.DeleteAt(uint(p.pos))
		removed = true
	}
	l.buf = l.buf[:0]
	if removed {
		l.bits = compact(l.bits)
	}
}

func (l *leaf) at(i uint64) bool {
	for j := len(l.buf) - 1; j >= 0; j-- {
		p := l.buf[j]
		if p.insert {
			if i == p.pos {
				return p.value
			}
			if i > p.pos {
				i--
			}
		} else if i >= p.pos {
			i++
		}
	}
	return l.bits.Test(uint(i))
}

// rank counts ones in [0, i).
func (l *leaf) rank(i uint64) uint64 {
	if i >= l.size {
		return l.ones
	}
	var delta int64
	for j := len(l.buf) - 1; j >= 0; j-- {
		p := l.buf[j]
		if i <= p.pos {
			continue
		}
		if p.insert {
			i--
			if p.value {
				delta++
			}
		} else {
			i++
			if p.value {
				delta--
			}
		}
	}
	return uint64(int64(rankBits(l.bits, i)) + delta)
}

// selectOne returns the position of the k-th one, k < l.ones.
func (l *leaf) selectOne(k uint64) uint64 {
	if len(l.buf) == 0 {
		return uint64(l.bits.Select(uint(k)))
	}
	return uint64(sort.Search(int(l.size), func(p int) bool {
		return l.rank(uint64(p)+1) > k
	}))
}

// splitOff moves bits [at, size) into a new leaf.
func (l *leaf) splitOff(at uint64) *leaf {
	l.commit()
	right := newLeaf(uint64(l.bufCap))
	right.bits = copyRange(l.bits, at, l.size)
	right.size = l.size - at
	right.ones = uint64(right.bits.Count())

	l.bits = copyRange(l.bits, 0, at)
	l.size = at
	l.ones -= right.ones
	return right
}

// absorb appends the contents of r to l.
func (l *leaf) absorb(r *leaf) {
	l.commit()
	r.commit()
	l.bits = concat(l.bits, l.size, r.bits, r.size)
	l.size += r.size
	l.ones += r.ones
}

func (l *leaf) bitSize() uint64 {
	return wordBits(l.bits) + uint64(cap(l.buf))*pendingBits + 4*64
}

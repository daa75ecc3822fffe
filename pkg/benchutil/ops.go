package benchutil

// OpKind is the kind of a synthetic bit vector update.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpRemove
)

// Op is one synthetic update against a bit vector of known size.
type Op struct {
	Kind OpKind
	Pos  uint64
	Bit  bool
}

// RandomOps generates n updates that are valid against a vector starting at
// size start: insert positions lie in [0, size], remove positions in
// [0, size). Roughly one op in insertWeight+1 is a removal, and removals are
// never generated against an empty vector.
func RandomOps(rng Rand, n int, start uint64, insertWeight uint64) []Op {
	ops := make([]Op, 0, n)
	size := start
	for range n {
		if size > 0 && rng.Uint64N(insertWeight+1) == 0 {
			ops = append(ops, Op{Kind: OpRemove, Pos: rng.Uint64N(size)})
			size--
			continue
		}
		ops = append(ops, Op{Kind: OpInsert, Pos: rng.Uint64N(size + 1), Bit: Bit(rng)})
		size++
	}
	return ops
}

// FinalSize returns the size a vector of size start has after ops.
func FinalSize(start uint64, ops []Op) uint64 {
	size := start
	for _, op := range ops {
		if op.Kind == OpInsert {
			size++
		} else {
			size--
		}
	}
	return size
}

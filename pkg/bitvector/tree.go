package bitvector

// Tree is a dynamic bit vector stored as a B-tree. Internal nodes keep the
// size and popcount of their subtrees; leaves hold up to LeafCapacity bits
// and buffer up to BufferSize updates.
type Tree struct {
	root   *node
	params Params
}

var _ Dynamic = (*Tree)(nil)

type node struct {
	leaf     *leaf // nil for internal nodes
	children []*node
	size     uint64
	ones     uint64
}

func (n *node) isLeaf() bool { return n.leaf != nil }

// NewTree returns an empty Tree. p is normalized first.
func NewTree(p Params) *Tree {
	p = p.Normalize()
	t := &Tree{params: p}
	t.root = t.newLeafNode()
	return t
}

// Params returns the normalized parameters of t.
func (t *Tree) Params() Params { return t.params }

func (t *Tree) newLeafNode() *node {
	return &node{leaf: newLeaf(t.params.BufferSize)}
}

func (t *Tree) Size() uint64 { return t.root.size }

func (t *Tree) Insert(pos uint64, bit bool) {
	checkIndex("insert", pos, t.Size()+1)
	if right := t.insert(t.root, pos, bit); right != nil {
		left := t.root
		t.root = &node{
			children: []*node{left, right},
			size:     left.size + right.size,
			ones:     left.ones + right.ones,
		}
	}
}

// insert returns a new right sibling when n had to split.
func (t *Tree) insert(n *node, pos uint64, bit bool) *node {
	n.size++
	if bit {
		n.ones++
	}

	if n.isLeaf() {
		n.leaf.insert(pos, bit)
		if n.leaf.size <= t.params.LeafCapacity {
			return nil
		}
		right := n.leaf.splitOff(n.leaf.size / 2)
		n.size, n.ones = n.leaf.size, n.leaf.ones
		return &node{leaf: right, size: right.size, ones: right.ones}
	}

	i, off := childForInsert(n, pos)
	split := t.insert(n.children[i], pos-off, bit)
	if split == nil {
		return nil
	}
	n.children = append(n.children, nil)
	copy(n.children[i+2:], n.children[i+1:])
	n.children[i+1] = split

	if uint64(len(n.children)) <= t.params.Branching {
		return nil
	}
	half := len(n.children) / 2
	right := &node{children: append([]*node(nil), n.children[half:]...)}
	n.children = n.children[:half:half]
	right.recount()
	n.recount()
	return right
}

func (n *node) recount() {
	n.size, n.ones = 0, 0
	for _, c := range n.children {
		n.size += c.size
		n.ones += c.ones
	}
}

// childForInsert picks the child that receives position pos; a position
// at a boundary goes to the end of the left child.
func childForInsert(n *node, pos uint64) (int, uint64) {
	var off uint64
	last := len(n.children) - 1
	for i, c := range n.children {
		if i == last || pos <= off+c.size {
			return i, off
		}
		off += c.size
	}
	return last, off
}

// childAt picks the child holding position pos < n.size.
func childAt(n *node, pos uint64) (int, uint64) {
	var off uint64
	last := len(n.children) - 1
	for i, c := range n.children {
		if i == last || pos < off+c.size {
			return i, off
		}
		off += c.size
	}
	return last, off
}

func (t *Tree) Remove(pos uint64) bool {
	checkIndex("remove", pos, t.Size())
	bit := t.remove(t.root, pos)
	for !t.root.isLeaf() && len(t.root.children) == 1 {
		t.root = t.root.children[0]
	}
	if !t.root.isLeaf() && len(t.root.children) == 0 {
		t.root = t.newLeafNode()
	}
	return bit
}

func (t *Tree) remove(n *node, pos uint64) bool {
	var bit bool
	if n.isLeaf() {
		bit = n.leaf.remove(pos)
	} else {
		i, off := childAt(n, pos)
		bit = t.remove(n.children[i], pos-off)
		t.rebalance(n, i)
	}
	n.size--
	if bit {
		n.ones--
	}
	return bit
}

// rebalance drops child i when it is empty and merges it with a neighbour
// when it is less than half full and the two fit in one node.
func (t *Tree) rebalance(n *node, i int) {
	c := n.children[i]
	if c.size == 0 {
		n.children = append(n.children[:i], n.children[i+1:]...)
		return
	}
	if !t.underfull(c) {
		return
	}
	for _, j := range [2]int{i - 1, i + 1} {
		if j < 0 || j >= len(n.children) {
			continue
		}
		l, r := i, j
		if j < i {
			l, r = j, i
		}
		if t.merge(n.children[l], n.children[r]) {
			n.children = append(n.children[:r], n.children[r+1:]...)
			return
		}
	}
}

func (t *Tree) underfull(n *node) bool {
	if n.isLeaf() {
		return n.size < t.params.LeafCapacity/2
	}
	return uint64(len(n.children)) < t.params.Branching/2
}

// merge moves r into l when they fit in one node.
func (t *Tree) merge(l, r *node) bool {
	if l.isLeaf() != r.isLeaf() {
		return false
	}
	if l.isLeaf() {
		if l.size+r.size > t.params.LeafCapacity {
			return false
		}
		l.leaf.absorb(r.leaf)
	} else {
		if uint64(len(l.children)+len(r.children)) > t.params.Branching {
			return false
		}
		l.children = append(l.children, r.children...)
	}
	l.size += r.size
	l.ones += r.ones
	return true
}

func (t *Tree) At(i uint64) bool {
	checkIndex("access", i, t.Size())
	n := t.root
	for !n.isLeaf() {
		j, off := childAt(n, i)
		n, i = n.children[j], i-off
	}
	return n.leaf.at(i)
}

func (t *Tree) Rank(i uint64) uint64 {
	checkIndex("rank", i, t.Size()+1)
	var acc uint64
	n := t.root
	for !n.isLeaf() {
		if i >= n.size {
			return acc + n.ones
		}
		for _, c := range n.children {
			if i < c.size {
				n = c
				break
			}
			i -= c.size
			acc += c.ones
		}
	}
	return acc + n.leaf.rank(i)
}

func (t *Tree) Select(k uint64) uint64 {
	if k >= t.root.ones {
		return t.Size()
	}
	var pos uint64
	n := t.root
	for !n.isLeaf() {
		for _, c := range n.children {
			if k < c.ones {
				n = c
				break
			}
			k -= c.ones
			pos += c.size
		}
	}
	return pos + n.leaf.selectOne(k)
}

func (t *Tree) BitSize() uint64 {
	return t.root.bitSize()
}

func (n *node) bitSize() uint64 {
	if n.isLeaf() {
		return n.leaf.bitSize() + 4*64
	}
	total := uint64(4*64) + uint64(cap(n.children))*64
	for _, c := range n.children {
		total += c.bitSize()
	}
	return total
}

// Depth returns the number of levels, 1 for a single leaf.
func (t *Tree) Depth() int {
	d := 1
	for n := t.root; !n.isLeaf(); n = n.children[0] {
		d++
	}
	return d
}

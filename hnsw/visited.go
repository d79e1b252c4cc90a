package hnsw

// visitedSet tracks visited node ids using a bitset plus a dirty list for
// cheap reset between traversals. Ids are allocated sequentially, so dense
// word indexing stays compact.
type visitedSet struct {
	bits  []uint64
	dirty []uint64
}

func newVisitedSet(capacity int) *visitedSet {
	return &visitedSet{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint64, 0, 128),
	}
}

// visit marks a node as visited.
func (v *visitedSet) visit(id uint64) {
	word := int(id >> 6)
	mask := uint64(1) << (id & 63)

	if word >= len(v.bits) {
		v.grow(word + 1)
	}

	if v.bits[word]&mask == 0 {
		v.bits[word] |= mask
		v.dirty = append(v.dirty, id)
	}
}

// visited reports whether the node has been visited.
func (v *visitedSet) visited(id uint64) bool {
	word := int(id >> 6)
	if word >= len(v.bits) {
		return false
	}
	return v.bits[word]&(uint64(1)<<(id&63)) != 0
}

// reset clears only the bits touched since the last reset.
func (v *visitedSet) reset() {
	for _, id := range v.dirty {
		v.bits[id>>6] &^= uint64(1) << (id & 63)
	}
	v.dirty = v.dirty[:0]
}

func (v *visitedSet) grow(newLen int) {
	newCap := max(len(v.bits)*2, newLen)
	newBits := make([]uint64, newCap)
	copy(newBits, v.bits)
	v.bits = newBits
}

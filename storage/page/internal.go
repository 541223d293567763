package page

import (
	"encoding/binary"

	"helindb/storage"
)

// pidSize is the encoded width of a child page id.
const pidSize = 4

// InternalPage is a typed view over a page holding an ordered array of
// (key, child page id) pairs. The key at index 0 is a sentinel: Lookup
// never compares against it, treating it as -infinity. It is still
// physically present so that splitting or merging an internal page can
// move raw entries the same way a leaf does, without special-casing index
// 0 in the move helpers; callers that need the real separator value after
// a move read it back out via KeyAt(0) on whichever side now owns it.
type InternalPage[K any] struct {
	data     []byte
	keyCodec Codec[K]
	cmp      CompareFunc[K]
}

func NewInternalPage[K any](data []byte, keyCodec Codec[K], cmp CompareFunc[K]) *InternalPage[K] {
	return &InternalPage[K]{data: data, keyCodec: keyCodec, cmp: cmp}
}

func (n *InternalPage[K]) entrySize() int { return n.keyCodec.Size() + pidSize }

// Init formats the page as a fresh, empty internal node with the given
// fan-out. It holds no children until InitWithChild or InsertAt is called.
func (n *InternalPage[K]) Init(maxSize int) {
	writeHeader(n.data, header{Type: TypeInternal, Size: 0, MaxSize: int16(maxSize)})
}

// InitWithChild formats the page as a fresh internal node holding a single
// child pointer at index 0; used when a split propagates past the old root
// and a new root must be created with the old root as its sole child.
func (n *InternalPage[K]) InitWithChild(maxSize int, child storage.PageID) {
	n.Init(maxSize)
	n.setChildAt(0, child)
	n.setSize(1)
}

func (n *InternalPage[K]) Size() int    { return int(readHeader(n.data).Size) }
func (n *InternalPage[K]) MaxSize() int { return int(readHeader(n.data).MaxSize) }

// MinSize is the fewest children a non-root internal node may hold before
// it underflows: ceil(MaxSize/2).
func (n *InternalPage[K]) MinSize() int { return (n.MaxSize() + 1) / 2 }

func (n *InternalPage[K]) setSize(s int) {
	h := readHeader(n.data)
	h.Size = int16(s)
	writeHeader(n.data, h)
}

func (n *InternalPage[K]) offset(i int) int { return headerSize + i*n.entrySize() }

func (n *InternalPage[K]) KeyAt(i int) K {
	off := n.offset(i)
	return n.keyCodec.Decode(n.data[off : off+n.keyCodec.Size()])
}

func (n *InternalPage[K]) SetKeyAt(i int, k K) {
	off := n.offset(i)
	n.keyCodec.Encode(k, n.data[off:off+n.keyCodec.Size()])
}

func (n *InternalPage[K]) ChildAt(i int) storage.PageID {
	off := n.offset(i) + n.keyCodec.Size()
	return storage.PageID(int32(binary.BigEndian.Uint32(n.data[off : off+pidSize])))
}

func (n *InternalPage[K]) setChildAt(i int, pid storage.PageID) {
	off := n.offset(i) + n.keyCodec.Size()
	binary.BigEndian.PutUint32(n.data[off:off+pidSize], uint32(int32(pid)))
}

func (n *InternalPage[K]) copyEntry(src, dst int) {
	srcOff, dstOff := n.offset(src), n.offset(dst)
	copy(n.data[dstOff:dstOff+n.entrySize()], n.data[srcOff:srcOff+n.entrySize()])
}

func (n *InternalPage[K]) shiftRightFrom(i int) {
	for j := n.Size(); j > i; j-- {
		n.copyEntry(j-1, j)
	}
}

func (n *InternalPage[K]) shiftLeftFrom(i int) {
	sz := n.Size()
	for j := i; j < sz-1; j++ {
		n.copyEntry(j+1, j)
	}
}

// Lookup returns the child to descend into for probe: the child at the
// greatest index i such that KeyAt(i) <= probe, treating KeyAt(0) as
// -infinity, along with that index.
func (n *InternalPage[K]) Lookup(probe K) (child storage.PageID, index int) {
	sz := n.Size()
	lo, hi := 1, sz
	for lo < hi {
		mid := (lo + hi) / 2
		if n.cmp(n.KeyAt(mid), probe) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	idx := lo - 1
	return n.ChildAt(idx), idx
}

// InsertAt inserts (k, child) at index i, shifting entries at and after i
// one slot to the right. Callers must ensure the page isn't full.
func (n *InternalPage[K]) InsertAt(i int, k K, child storage.PageID) {
	n.shiftRightFrom(i)
	n.SetKeyAt(i, k)
	n.setChildAt(i, child)
	n.setSize(n.Size() + 1)
}

// RemoveAt deletes the entry at index i, shifting later entries left.
func (n *InternalPage[K]) RemoveAt(i int) {
	n.shiftLeftFrom(i)
	n.setSize(n.Size() - 1)
}

func (n *InternalPage[K]) IsFull() bool         { return n.Size() == n.MaxSize() }
func (n *InternalPage[K]) IsSafeForSplit() bool { return n.Size() < n.MaxSize() }
func (n *InternalPage[K]) IsUnderflow() bool    { return n.Size() < n.MinSize() }
func (n *InternalPage[K]) IsSafeForMerge() bool { return n.Size() > n.MinSize() }

// MoveHalfTo moves this node's upper half of entries into other, which
// must be a freshly initialized empty internal node. For an odd size, the
// extra entry stays behind: this moves floor(n/2) entries and keeps
// ceil(n/2), matching b_plus_tree_internal_page.cpp's MoveHalfTo (n =
// GetSize()/2, moving the last n entries).
func (n *InternalPage[K]) MoveHalfTo(other *InternalPage[K]) {
	sz := n.Size()
	moveCount := sz / 2
	start := sz - moveCount
	for i := start; i < sz; i++ {
		other.InsertAt(other.Size(), n.KeyAt(i), n.ChildAt(i))
	}
	n.setSize(start)
}

// MoveAllTo appends all of this node's entries onto other and empties this
// node; used when merging two underflowing siblings.
func (n *InternalPage[K]) MoveAllTo(other *InternalPage[K]) {
	sz := n.Size()
	for i := 0; i < sz; i++ {
		other.InsertAt(other.Size(), n.KeyAt(i), n.ChildAt(i))
	}
	n.setSize(0)
}

// MoveFrontToBackOf moves this node's first entry onto the back of other.
func (n *InternalPage[K]) MoveFrontToBackOf(other *InternalPage[K]) {
	k, c := n.KeyAt(0), n.ChildAt(0)
	n.RemoveAt(0)
	other.InsertAt(other.Size(), k, c)
}

// MoveBackToFrontOf moves this node's last entry onto the front of other.
func (n *InternalPage[K]) MoveBackToFrontOf(other *InternalPage[K]) {
	last := n.Size() - 1
	k, c := n.KeyAt(last), n.ChildAt(last)
	n.RemoveAt(last)
	other.InsertAt(0, k, c)
}

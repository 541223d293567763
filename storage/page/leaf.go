package page

import "helindb/storage"

// LeafPage is a typed view over a page holding an ordered array of (key,
// value) pairs plus a link to the next leaf in key order. It does not own
// the byte slice it wraps; construct a fresh view any time the underlying
// guard's Data() might have changed.
type LeafPage[K any, V any] struct {
	data     []byte
	keyCodec Codec[K]
	valCodec Codec[V]
	cmp      CompareFunc[K]
}

func NewLeafPage[K, V any](data []byte, keyCodec Codec[K], valCodec Codec[V], cmp CompareFunc[K]) *LeafPage[K, V] {
	return &LeafPage[K, V]{data: data, keyCodec: keyCodec, valCodec: valCodec, cmp: cmp}
}

func (l *LeafPage[K, V]) entrySize() int { return l.keyCodec.Size() + l.valCodec.Size() }

// Init formats the page as a fresh, empty leaf with the given fan-out.
func (l *LeafPage[K, V]) Init(maxSize int) {
	writeHeader(l.data, header{Type: TypeLeaf, Size: 0, MaxSize: int16(maxSize), NextPageID: storage.InvalidPageID})
}

func (l *LeafPage[K, V]) Size() int    { return int(readHeader(l.data).Size) }
func (l *LeafPage[K, V]) MaxSize() int { return int(readHeader(l.data).MaxSize) }

// MinSize is the fewest entries a non-root leaf may hold before it
// underflows: ceil(MaxSize/2).
func (l *LeafPage[K, V]) MinSize() int { return (l.MaxSize() + 1) / 2 }

func (l *LeafPage[K, V]) NextPageID() storage.PageID { return readHeader(l.data).NextPageID }

func (l *LeafPage[K, V]) SetNextPageID(pid storage.PageID) {
	h := readHeader(l.data)
	h.NextPageID = pid
	writeHeader(l.data, h)
}

func (l *LeafPage[K, V]) setSize(n int) {
	h := readHeader(l.data)
	h.Size = int16(n)
	writeHeader(l.data, h)
}

func (l *LeafPage[K, V]) offset(i int) int { return headerSize + i*l.entrySize() }

func (l *LeafPage[K, V]) KeyAt(i int) K {
	off := l.offset(i)
	return l.keyCodec.Decode(l.data[off : off+l.keyCodec.Size()])
}

func (l *LeafPage[K, V]) ValueAt(i int) V {
	off := l.offset(i) + l.keyCodec.Size()
	return l.valCodec.Decode(l.data[off : off+l.valCodec.Size()])
}

func (l *LeafPage[K, V]) setKeyAt(i int, k K) {
	off := l.offset(i)
	l.keyCodec.Encode(k, l.data[off:off+l.keyCodec.Size()])
}

func (l *LeafPage[K, V]) setValueAt(i int, v V) {
	off := l.offset(i) + l.keyCodec.Size()
	l.valCodec.Encode(v, l.data[off:off+l.valCodec.Size()])
}

// Search returns the index of the first entry whose key is not less than
// probe, and whether that entry's key equals probe exactly.
func (l *LeafPage[K, V]) Search(probe K) (index int, found bool) {
	n := l.Size()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if l.cmp(l.KeyAt(mid), probe) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n && l.cmp(l.KeyAt(lo), probe) == 0 {
		return lo, true
	}
	return lo, false
}

func (l *LeafPage[K, V]) copyEntry(src, dst int) {
	srcOff, dstOff := l.offset(src), l.offset(dst)
	copy(l.data[dstOff:dstOff+l.entrySize()], l.data[srcOff:srcOff+l.entrySize()])
}

func (l *LeafPage[K, V]) shiftRightFrom(i int) {
	for j := l.Size(); j > i; j-- {
		l.copyEntry(j-1, j)
	}
}

func (l *LeafPage[K, V]) shiftLeftFrom(i int) {
	n := l.Size()
	for j := i; j < n-1; j++ {
		l.copyEntry(j+1, j)
	}
}

// InsertAt inserts (k, v) at index i, shifting entries at and after i one
// slot to the right. Callers must ensure the page isn't full.
func (l *LeafPage[K, V]) InsertAt(i int, k K, v V) {
	l.shiftRightFrom(i)
	l.setKeyAt(i, k)
	l.setValueAt(i, v)
	l.setSize(l.Size() + 1)
}

// RemoveAt deletes the entry at index i, shifting later entries left.
func (l *LeafPage[K, V]) RemoveAt(i int) {
	l.shiftLeftFrom(i)
	l.setSize(l.Size() - 1)
}

func (l *LeafPage[K, V]) IsFull() bool         { return l.Size() == l.MaxSize() }
func (l *LeafPage[K, V]) IsSafeForSplit() bool { return l.Size() < l.MaxSize() }
func (l *LeafPage[K, V]) IsUnderflow() bool    { return l.Size() < l.MinSize() }
func (l *LeafPage[K, V]) IsSafeForMerge() bool { return l.Size() > l.MinSize() }

// MoveHalfTo moves this leaf's upper half of entries into other, which must
// be a freshly initialized empty leaf. For an odd size, the extra entry
// stays behind: this moves floor(n/2) entries and keeps ceil(n/2).
func (l *LeafPage[K, V]) MoveHalfTo(other *LeafPage[K, V]) {
	n := l.Size()
	moveCount := n / 2
	start := n - moveCount
	for i := start; i < n; i++ {
		other.InsertAt(other.Size(), l.KeyAt(i), l.ValueAt(i))
	}
	l.setSize(start)
}

// MoveAllTo appends all of this leaf's entries onto other and empties this
// leaf; used when merging two underflowing siblings.
func (l *LeafPage[K, V]) MoveAllTo(other *LeafPage[K, V]) {
	n := l.Size()
	for i := 0; i < n; i++ {
		other.InsertAt(other.Size(), l.KeyAt(i), l.ValueAt(i))
	}
	l.setSize(0)
}

// MoveFrontToBackOf moves this leaf's first entry onto the back of other;
// used to borrow from a right sibling.
func (l *LeafPage[K, V]) MoveFrontToBackOf(other *LeafPage[K, V]) {
	k, v := l.KeyAt(0), l.ValueAt(0)
	l.RemoveAt(0)
	other.InsertAt(other.Size(), k, v)
}

// MoveBackToFrontOf moves this leaf's last entry onto the front of other;
// used to borrow from a left sibling.
func (l *LeafPage[K, V]) MoveBackToFrontOf(other *LeafPage[K, V]) {
	last := l.Size() - 1
	k, v := l.KeyAt(last), l.ValueAt(last)
	l.RemoveAt(last)
	other.InsertAt(0, k, v)
}

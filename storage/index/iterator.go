package index

import (
	"github.com/pkg/errors"

	"helindb/buffer"
	"helindb/storage"
	"helindb/storage/page"
)

// Iterator walks a tree's leaves in key order, holding a shared latch on
// one leaf at a time between calls (Next briefly holds two while it
// crosses into the next leaf). A zero-value Iterator (as returned once
// iteration is exhausted) is a valid, already-ended iterator.
type Iterator[K any, V any] struct {
	tree  *BTree[K, V]
	guard *buffer.ReadPageGuard
	idx   int
}

func (t *BTree[K, V]) leftmostLeafGuard() *buffer.ReadPageGuard {
	hg, err := t.pool.FetchPageRead(t.headerPageID)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching header page"))
	}
	root := readRootID(hg.Data())
	hg.Drop()
	if root == storage.InvalidPageID {
		return nil
	}

	cur, err := t.pool.FetchPageRead(root)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching root page"))
	}
	for page.PageType(cur.Data()) == page.TypeInternal {
		in := page.NewInternalPage[K](cur.Data(), t.keyCodec, t.cmp)
		next, err := t.pool.FetchPageRead(in.ChildAt(0))
		if err != nil {
			panic(errors.Wrap(err, "index: fetching child page"))
		}
		cur.Drop()
		cur = next
	}
	return cur
}

// Begin returns an iterator positioned at the smallest key in the tree.
func (t *BTree[K, V]) Begin() *Iterator[K, V] {
	g := t.leftmostLeafGuard()
	if g == nil {
		return &Iterator[K, V]{tree: t}
	}
	return &Iterator[K, V]{tree: t, guard: g, idx: 0}
}

// BeginAt returns an iterator positioned at the smallest key >= key.
func (t *BTree[K, V]) BeginAt(key K) *Iterator[K, V] {
	hg, err := t.pool.FetchPageRead(t.headerPageID)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching header page"))
	}
	root := readRootID(hg.Data())
	hg.Drop()
	if root == storage.InvalidPageID {
		return &Iterator[K, V]{tree: t}
	}

	cur, err := t.pool.FetchPageRead(root)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching root page"))
	}
	for page.PageType(cur.Data()) == page.TypeInternal {
		in := page.NewInternalPage[K](cur.Data(), t.keyCodec, t.cmp)
		child, _ := in.Lookup(key)
		next, err := t.pool.FetchPageRead(child)
		if err != nil {
			panic(errors.Wrap(err, "index: fetching child page"))
		}
		cur.Drop()
		cur = next
	}

	leaf := page.NewLeafPage[K, V](cur.Data(), t.keyCodec, t.valCodec, t.cmp)
	idx, _ := leaf.Search(key)
	if idx < leaf.Size() {
		return &Iterator[K, V]{tree: t, guard: cur, idx: idx}
	}

	next := leaf.NextPageID()
	cur.Drop()
	if next == storage.InvalidPageID {
		return &Iterator[K, V]{tree: t}
	}
	ng, err := t.pool.FetchPageRead(next)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching next leaf"))
	}
	return &Iterator[K, V]{tree: t, guard: ng, idx: 0}
}

// End returns an already-exhausted iterator, matching the End() sentinel
// callers compare against when they build their own scan loop instead of
// calling IsEnd.
func (t *BTree[K, V]) End() *Iterator[K, V] { return &Iterator[K, V]{tree: t} }

// IsEnd reports whether the iterator has been exhausted.
func (it *Iterator[K, V]) IsEnd() bool { return it.guard == nil }

// Key returns the key at the iterator's current position. It panics if the
// iterator is at end.
func (it *Iterator[K, V]) Key() K {
	leaf := page.NewLeafPage[K, V](it.guard.Data(), it.tree.keyCodec, it.tree.valCodec, it.tree.cmp)
	return leaf.KeyAt(it.idx)
}

// Value returns the value at the iterator's current position. It panics if
// the iterator is at end.
func (it *Iterator[K, V]) Value() V {
	leaf := page.NewLeafPage[K, V](it.guard.Data(), it.tree.keyCodec, it.tree.valCodec, it.tree.cmp)
	return leaf.ValueAt(it.idx)
}

// Next advances the iterator by one entry. Crossing into the next leaf
// pins and latches it before releasing the current leaf, so the scan never
// observes a window with no leaf latched.
func (it *Iterator[K, V]) Next() {
	if it.guard == nil {
		return
	}
	leaf := page.NewLeafPage[K, V](it.guard.Data(), it.tree.keyCodec, it.tree.valCodec, it.tree.cmp)
	if it.idx+1 < leaf.Size() {
		it.idx++
		return
	}

	next := leaf.NextPageID()
	old := it.guard
	if next == storage.InvalidPageID {
		it.guard = nil
		old.Drop()
		return
	}
	ng, err := it.tree.pool.FetchPageRead(next)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching next leaf"))
	}
	old.Drop()
	it.guard = ng
	it.idx = 0
}

// Close releases the iterator's held latch, if any. Callers that iterate
// to exhaustion don't need to call it, but anyone abandoning a scan early
// must.
func (it *Iterator[K, V]) Close() {
	if it.guard != nil {
		it.guard.Drop()
		it.guard = nil
	}
}

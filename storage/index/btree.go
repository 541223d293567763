// Package index implements a concurrent, disk-backed B+ tree keyed by a
// generic, injected comparator. Descent for both Insert and Remove uses
// latch crabbing: write latches on ancestors are held only until a "safe"
// node is reached, at which point every ancestor above it (and the header
// page) is released.
package index

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"helindb/buffer"
	"helindb/storage"
	"helindb/storage/page"
)

func readRootID(data []byte) storage.PageID {
	return storage.PageID(int32(binary.BigEndian.Uint32(data[0:4])))
}

func writeRootID(data []byte, pid storage.PageID) {
	binary.BigEndian.PutUint32(data[0:4], uint32(int32(pid)))
}

// BTree is a B+ tree index over a fixed header page that stores the
// current root's page id. Key and value types are generic; ordering comes
// entirely from the injected comparator, never from the types themselves.
type BTree[K any, V any] struct {
	headerPageID storage.PageID
	pool         *buffer.Pool

	keyCodec page.Codec[K]
	valCodec page.Codec[V]
	cmp      page.CompareFunc[K]

	leafMax     int
	internalMax int

	log *logrus.Logger
}

// New creates an empty tree rooted at headerPageID, which must already be
// allocated (e.g. via pool.NewPage) and not otherwise in use.
func New[K, V any](
	headerPageID storage.PageID,
	pool *buffer.Pool,
	keyCodec page.Codec[K],
	valCodec page.Codec[V],
	cmp page.CompareFunc[K],
	leafMax, internalMax int,
) (*BTree[K, V], error) {
	if leafMax < 2 || internalMax < 3 {
		panic("index: leafMax must be >= 2 and internalMax must be >= 3")
	}
	g, err := pool.FetchPageWrite(headerPageID)
	if err != nil {
		return nil, errors.Wrap(err, "index: fetching header page")
	}
	writeRootID(g.Data(), storage.InvalidPageID)
	g.MarkDirty()
	g.Drop()

	return &BTree[K, V]{
		headerPageID: headerPageID,
		pool:         pool,
		keyCodec:     keyCodec,
		valCodec:     valCodec,
		cmp:          cmp,
		leafMax:      leafMax,
		internalMax:  internalMax,
		log:          logrus.StandardLogger(),
	}, nil
}

// GetRootPageID returns the id of the tree's current root page, or
// storage.InvalidPageID if the tree is empty.
func (t *BTree[K, V]) GetRootPageID() storage.PageID {
	hg, err := t.pool.FetchPageRead(t.headerPageID)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching header page"))
	}
	defer hg.Drop()
	return readRootID(hg.Data())
}

func (t *BTree[K, V]) newLeaf() (storage.PageID, *buffer.BasicPageGuard) {
	pid, g, err := t.pool.NewPageGuarded()
	if err != nil {
		panic(errors.Wrap(err, "index: allocating leaf page"))
	}
	leaf := page.NewLeafPage[K, V](g.Data(), t.keyCodec, t.valCodec, t.cmp)
	leaf.Init(t.leafMax)
	leaf.SetNextPageID(storage.InvalidPageID)
	g.MarkDirty()
	return pid, g
}

func (t *BTree[K, V]) newInternal() (storage.PageID, *buffer.BasicPageGuard) {
	pid, g, err := t.pool.NewPageGuarded()
	if err != nil {
		panic(errors.Wrap(err, "index: allocating internal page"))
	}
	in := page.NewInternalPage[K](g.Data(), t.keyCodec, t.cmp)
	in.Init(t.internalMax)
	g.MarkDirty()
	return pid, g
}

// GetValue looks up key, following the tree with shared, hand-over-hand
// latching: each child is latched before its parent is released.
func (t *BTree[K, V]) GetValue(key K) (V, bool) {
	var zero V

	hg, err := t.pool.FetchPageRead(t.headerPageID)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching header page"))
	}
	root := readRootID(hg.Data())
	hg.Drop()
	if root == storage.InvalidPageID {
		return zero, false
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
	idx, found := leaf.Search(key)
	var val V
	if found {
		val = leaf.ValueAt(idx)
	}
	cur.Drop()
	return val, found
}

// ancestor is one write-latched page held on the way down to a leaf during
// Insert or Remove, plus the index of the child pointer chosen at it.
type ancestor[K any] struct {
	guard    *buffer.WritePageGuard
	childIdx int
}

func (t *BTree[K, V]) releaseStack(stack *[]ancestor[K]) {
	for _, a := range *stack {
		a.guard.Drop()
	}
	*stack = nil
}

// Insert adds (key, value) to the tree, returning false without modifying
// the tree if key is already present.
func (t *BTree[K, V]) Insert(key K, value V) bool {
	headerGuard, err := t.pool.FetchPageWrite(t.headerPageID)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching header page"))
	}
	root := readRootID(headerGuard.Data())

	if root == storage.InvalidPageID {
		pid, leafGuard := t.newLeaf()
		leaf := page.NewLeafPage[K, V](leafGuard.Data(), t.keyCodec, t.valCodec, t.cmp)
		leaf.InsertAt(0, key, value)
		leafGuard.MarkDirty()
		leafGuard.Drop()

		writeRootID(headerGuard.Data(), pid)
		headerGuard.MarkDirty()
		headerGuard.Drop()
		return true
	}

	var stack []ancestor[K]
	defer t.releaseStack(&stack)

	headerHeld := true
	releaseHeader := func() {
		if headerHeld {
			headerGuard.Drop()
			headerHeld = false
		}
	}
	defer releaseHeader()

	pid := root
	for {
		g, err := t.pool.FetchPageWrite(pid)
		if err != nil {
			panic(errors.Wrap(err, "index: fetching page during insert descent"))
		}
		if page.PageType(g.Data()) == page.TypeLeaf {
			if page.NewLeafPage[K, V](g.Data(), t.keyCodec, t.valCodec, t.cmp).IsSafeForSplit() {
				releaseHeader()
				t.releaseStack(&stack)
			}
			stack = append(stack, ancestor[K]{guard: g})
			break
		}
		in := page.NewInternalPage[K](g.Data(), t.keyCodec, t.cmp)
		if in.IsSafeForSplit() {
			releaseHeader()
			t.releaseStack(&stack)
		}
		child, idx := in.Lookup(key)
		stack = append(stack, ancestor[K]{guard: g, childIdx: idx})
		pid = child
	}

	leafEntry := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	leaf := page.NewLeafPage[K, V](leafEntry.guard.Data(), t.keyCodec, t.valCodec, t.cmp)

	idx, found := leaf.Search(key)
	if found {
		leafEntry.guard.Drop()
		return false
	}
	if !leaf.IsFull() {
		leaf.InsertAt(idx, key, value)
		leafEntry.guard.MarkDirty()
		leafEntry.guard.Drop()
		return true
	}

	newPID, newGuard := t.newLeaf()
	newLeaf := page.NewLeafPage[K, V](newGuard.Data(), t.keyCodec, t.valCodec, t.cmp)
	leaf.MoveHalfTo(newLeaf)
	newLeaf.SetNextPageID(leaf.NextPageID())
	leaf.SetNextPageID(newPID)
	if idx <= leaf.Size() {
		leaf.InsertAt(idx, key, value)
	} else {
		newLeaf.InsertAt(idx-leaf.Size(), key, value)
	}
	leafEntry.guard.MarkDirty()
	newGuard.MarkDirty()

	splitKey := newLeaf.KeyAt(0)
	splitChild := newPID
	leafPID := leafEntry.guard.PageID()
	newGuard.Drop()
	leafEntry.guard.Drop()

	t.log.WithFields(logrus.Fields{"leaf": leafPID, "new_leaf": newPID}).Debug("split leaf")

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		in := page.NewInternalPage[K](top.guard.Data(), t.keyCodec, t.cmp)

		if !in.IsFull() {
			in.InsertAt(top.childIdx+1, splitKey, splitChild)
			top.guard.MarkDirty()
			top.guard.Drop()
			return true
		}

		newIPID, newIGuard := t.newInternal()
		newIn := page.NewInternalPage[K](newIGuard.Data(), t.keyCodec, t.cmp)
		in.MoveHalfTo(newIn)
		if top.childIdx+1 <= in.Size() {
			in.InsertAt(top.childIdx+1, splitKey, splitChild)
		} else {
			newIn.InsertAt(top.childIdx+1-in.Size(), splitKey, splitChild)
		}
		if newIn.Size() < newIn.MinSize() {
			in.MoveBackToFrontOf(newIn)
		}
		top.guard.MarkDirty()
		newIGuard.MarkDirty()

		splitKey = newIn.KeyAt(0)
		splitChild = newIPID
		nodePID := top.guard.PageID()
		newIGuard.Drop()
		top.guard.Drop()

		t.log.WithFields(logrus.Fields{"node": nodePID, "new_node": newIPID}).Debug("split internal node")
	}

	newRootPID, newRootGuard := t.newInternal()
	newRootIn := page.NewInternalPage[K](newRootGuard.Data(), t.keyCodec, t.cmp)
	newRootIn.InitWithChild(t.internalMax, root)
	newRootIn.InsertAt(1, splitKey, splitChild)
	newRootGuard.MarkDirty()
	newRootGuard.Drop()

	writeRootID(headerGuard.Data(), newRootPID)
	headerGuard.MarkDirty()
	t.log.WithField("new_root", newRootPID).Debug("grew tree height")
	return true
}

// resolveLeafUnderflow attempts to fix an underflowing leaf by borrowing
// from an adjacent sibling; failing that it merges with one, preferring
// the left sibling. It reports whether a merge happened (true) so the
// caller knows to keep cascading the underflow check upward.
func (t *BTree[K, V]) resolveLeafUnderflow(
	parent *page.InternalPage[K], parentGuard *buffer.WritePageGuard, childIdx int,
	leaf *page.LeafPage[K, V], leafGuard *buffer.WritePageGuard,
) bool {
	var leftGuard, rightGuard *buffer.WritePageGuard
	if childIdx > 0 {
		g, err := t.pool.FetchPageWrite(parent.ChildAt(childIdx - 1))
		if err != nil {
			panic(errors.Wrap(err, "index: fetching left sibling"))
		}
		leftGuard = g
	}
	if childIdx+1 < parent.Size() {
		g, err := t.pool.FetchPageWrite(parent.ChildAt(childIdx + 1))
		if err != nil {
			panic(errors.Wrap(err, "index: fetching right sibling"))
		}
		rightGuard = g
	}

	if leftGuard != nil {
		left := page.NewLeafPage[K, V](leftGuard.Data(), t.keyCodec, t.valCodec, t.cmp)
		if left.IsSafeForMerge() {
			left.MoveBackToFrontOf(leaf)
			parent.SetKeyAt(childIdx, leaf.KeyAt(0))
			leftGuard.MarkDirty()
			leafGuard.MarkDirty()
			parentGuard.MarkDirty()
			leftGuard.Drop()
			if rightGuard != nil {
				rightGuard.Drop()
			}
			leafGuard.Drop()
			return false
		}
	}
	if rightGuard != nil {
		right := page.NewLeafPage[K, V](rightGuard.Data(), t.keyCodec, t.valCodec, t.cmp)
		if right.IsSafeForMerge() {
			right.MoveFrontToBackOf(leaf)
			parent.SetKeyAt(childIdx+1, right.KeyAt(0))
			rightGuard.MarkDirty()
			leafGuard.MarkDirty()
			parentGuard.MarkDirty()
			rightGuard.Drop()
			if leftGuard != nil {
				leftGuard.Drop()
			}
			leafGuard.Drop()
			return false
		}
	}

	if leftGuard != nil {
		left := page.NewLeafPage[K, V](leftGuard.Data(), t.keyCodec, t.valCodec, t.cmp)
		leaf.MoveAllTo(left)
		left.SetNextPageID(leaf.NextPageID())
		leftGuard.MarkDirty()
		parent.RemoveAt(childIdx)
		parentGuard.MarkDirty()
		if rightGuard != nil {
			rightGuard.Drop()
		}
		leftGuard.Drop()
		leafGuard.Drop()
		return true
	}

	right := page.NewLeafPage[K, V](rightGuard.Data(), t.keyCodec, t.valCodec, t.cmp)
	right.MoveAllTo(leaf)
	leaf.SetNextPageID(right.NextPageID())
	leafGuard.MarkDirty()
	parent.RemoveAt(childIdx + 1)
	parentGuard.MarkDirty()
	rightGuard.Drop()
	leafGuard.Drop()
	return true
}

// resolveInternalUnderflow is resolveLeafUnderflow's counterpart for an
// underflowing internal node. Before a merge, the side being absorbed has
// the parent's separator key written into its otherwise-unused slot 0, so
// that key becomes a real dividing key once its entries land in the
// surviving node.
func (t *BTree[K, V]) resolveInternalUnderflow(
	parent *page.InternalPage[K], parentGuard *buffer.WritePageGuard, childIdx int,
	child *page.InternalPage[K], childGuard *buffer.WritePageGuard,
) bool {
	var leftGuard, rightGuard *buffer.WritePageGuard
	if childIdx > 0 {
		g, err := t.pool.FetchPageWrite(parent.ChildAt(childIdx - 1))
		if err != nil {
			panic(errors.Wrap(err, "index: fetching left sibling"))
		}
		leftGuard = g
	}
	if childIdx+1 < parent.Size() {
		g, err := t.pool.FetchPageWrite(parent.ChildAt(childIdx + 1))
		if err != nil {
			panic(errors.Wrap(err, "index: fetching right sibling"))
		}
		rightGuard = g
	}

	if leftGuard != nil {
		left := page.NewInternalPage[K](leftGuard.Data(), t.keyCodec, t.cmp)
		if left.IsSafeForMerge() {
			left.MoveBackToFrontOf(child)
			parent.SetKeyAt(childIdx, child.KeyAt(0))
			leftGuard.MarkDirty()
			childGuard.MarkDirty()
			parentGuard.MarkDirty()
			leftGuard.Drop()
			if rightGuard != nil {
				rightGuard.Drop()
			}
			childGuard.Drop()
			return false
		}
	}
	if rightGuard != nil {
		right := page.NewInternalPage[K](rightGuard.Data(), t.keyCodec, t.cmp)
		if right.IsSafeForMerge() {
			right.MoveFrontToBackOf(child)
			parent.SetKeyAt(childIdx+1, right.KeyAt(0))
			rightGuard.MarkDirty()
			childGuard.MarkDirty()
			parentGuard.MarkDirty()
			rightGuard.Drop()
			if leftGuard != nil {
				leftGuard.Drop()
			}
			childGuard.Drop()
			return false
		}
	}

	if leftGuard != nil {
		left := page.NewInternalPage[K](leftGuard.Data(), t.keyCodec, t.cmp)
		child.SetKeyAt(0, parent.KeyAt(childIdx))
		child.MoveAllTo(left)
		leftGuard.MarkDirty()
		parent.RemoveAt(childIdx)
		parentGuard.MarkDirty()
		if rightGuard != nil {
			rightGuard.Drop()
		}
		leftGuard.Drop()
		childGuard.Drop()
		return true
	}

	right := page.NewInternalPage[K](rightGuard.Data(), t.keyCodec, t.cmp)
	right.SetKeyAt(0, parent.KeyAt(childIdx+1))
	right.MoveAllTo(child)
	childGuard.MarkDirty()
	parent.RemoveAt(childIdx + 1)
	parentGuard.MarkDirty()
	rightGuard.Drop()
	childGuard.Drop()
	return true
}

// Remove deletes key from the tree, if present. It's a no-op otherwise.
func (t *BTree[K, V]) Remove(key K) {
	headerGuard, err := t.pool.FetchPageWrite(t.headerPageID)
	if err != nil {
		panic(errors.Wrap(err, "index: fetching header page"))
	}
	root := readRootID(headerGuard.Data())
	if root == storage.InvalidPageID {
		headerGuard.Drop()
		return
	}

	var stack []ancestor[K]
	defer t.releaseStack(&stack)

	headerHeld := true
	releaseHeader := func() {
		if headerHeld {
			headerGuard.Drop()
			headerHeld = false
		}
	}
	defer releaseHeader()

	pid := root
	for {
		g, err := t.pool.FetchPageWrite(pid)
		if err != nil {
			panic(errors.Wrap(err, "index: fetching page during remove descent"))
		}
		if page.PageType(g.Data()) == page.TypeLeaf {
			if page.NewLeafPage[K, V](g.Data(), t.keyCodec, t.valCodec, t.cmp).IsSafeForMerge() {
				releaseHeader()
				t.releaseStack(&stack)
			}
			stack = append(stack, ancestor[K]{guard: g})
			break
		}
		in := page.NewInternalPage[K](g.Data(), t.keyCodec, t.cmp)
		if in.IsSafeForMerge() {
			releaseHeader()
			t.releaseStack(&stack)
		}
		child, idx := in.Lookup(key)
		stack = append(stack, ancestor[K]{guard: g, childIdx: idx})
		pid = child
	}

	leafEntry := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	leaf := page.NewLeafPage[K, V](leafEntry.guard.Data(), t.keyCodec, t.valCodec, t.cmp)

	idx, found := leaf.Search(key)
	if !found {
		leafEntry.guard.Drop()
		return
	}
	leaf.RemoveAt(idx)
	leafEntry.guard.MarkDirty()

	if !leaf.IsUnderflow() {
		leafEntry.guard.Drop()
		return
	}

	if len(stack) == 0 {
		if leaf.Size() == 0 {
			writeRootID(headerGuard.Data(), storage.InvalidPageID)
			headerGuard.MarkDirty()
		}
		leafEntry.guard.Drop()
		return
	}

	parentEntry := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	parentIn := page.NewInternalPage[K](parentEntry.guard.Data(), t.keyCodec, t.cmp)
	merged := t.resolveLeafUnderflow(parentIn, parentEntry.guard, parentEntry.childIdx, leaf, leafEntry.guard)
	if !merged {
		parentEntry.guard.Drop()
		return
	}

	child, childGuard := parentIn, parentEntry.guard
	for len(stack) > 0 {
		if !child.IsUnderflow() {
			childGuard.Drop()
			return
		}
		gpEntry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		gpIn := page.NewInternalPage[K](gpEntry.guard.Data(), t.keyCodec, t.cmp)
		merged2 := t.resolveInternalUnderflow(gpIn, gpEntry.guard, gpEntry.childIdx, child, childGuard)
		if !merged2 {
			gpEntry.guard.Drop()
			return
		}
		child, childGuard = gpIn, gpEntry.guard
	}

	if child.Size() == 1 {
		writeRootID(headerGuard.Data(), child.ChildAt(0))
		headerGuard.MarkDirty()
		t.log.WithField("new_root", child.ChildAt(0)).Debug("collapsed root after merge")
	}
	childGuard.Drop()
}

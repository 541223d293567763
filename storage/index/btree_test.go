package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helindb/buffer"
	"helindb/storage"
	"helindb/storage/page"
)

type memDisk struct {
	pages map[storage.PageID][]byte
	next  storage.PageID
}

func newMemDisk() *memDisk { return &memDisk{pages: make(map[storage.PageID][]byte)} }

func (d *memDisk) ReadPage(id storage.PageID, dst []byte) error {
	if src, ok := d.pages[id]; ok {
		copy(dst, src)
	}
	return nil
}

func (d *memDisk) WritePage(id storage.PageID, src []byte) error {
	buf := make([]byte, len(src))
	copy(buf, src)
	d.pages[id] = buf
	return nil
}

func (d *memDisk) AllocatePage() storage.PageID {
	id := d.next
	d.next++
	return id
}

func newTestTree(t *testing.T, poolSize, leafMax, internalMax int) *BTree[int64, int64] {
	pool := buffer.NewPool(poolSize, 2, newMemDisk())
	headerPID, g, err := pool.NewPageGuarded()
	require.NoError(t, err)
	g.Drop()

	tree, err := New[int64, int64](headerPID, pool, page.Int64Codec{}, page.Int64Codec{}, page.CompareInt64, leafMax, internalMax)
	require.NoError(t, err)
	return tree
}

func collect[K, V any](t *testing.T, it *Iterator[K, V]) []K {
	var keys []K
	for !it.IsEnd() {
		keys = append(keys, it.Key())
		it.Next()
	}
	return keys
}

func TestBTree_InsertAndGetValue(t *testing.T) {
	tree := newTestTree(t, 16, 2, 3)

	for _, k := range []int64{1, 2, 3, 4, 5} {
		assert.True(t, tree.Insert(k, k*10))
	}
	assert.False(t, tree.Insert(3, 999), "re-inserting an existing key must fail")

	for _, k := range []int64{1, 2, 3, 4, 5} {
		v, ok := tree.GetValue(k)
		require.True(t, ok)
		assert.Equal(t, k*10, v)
	}
	_, ok := tree.GetValue(6)
	assert.False(t, ok)
}

func TestBTree_InsertGrowsHeightAndKeepsOrder(t *testing.T) {
	tree := newTestTree(t, 32, 2, 3)

	for _, k := range []int64{1, 2, 3, 4, 5} {
		require.True(t, tree.Insert(k, k))
	}

	assert.NotEqual(t, storage.InvalidPageID, tree.GetRootPageID())
	it := tree.Begin()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, collect[int64, int64](t, it))
}

func TestBTree_Remove_TriggersUnderflowHandling(t *testing.T) {
	tree := newTestTree(t, 32, 2, 3)
	for _, k := range []int64{1, 2, 3, 4, 5} {
		require.True(t, tree.Insert(k, k))
	}

	tree.Remove(3)
	_, ok := tree.GetValue(3)
	assert.False(t, ok)

	it := tree.Begin()
	assert.Equal(t, []int64{1, 2, 4, 5}, collect[int64, int64](t, it))
}

func TestBTree_Remove_EmptiesTreeAndResetsRoot(t *testing.T) {
	tree := newTestTree(t, 16, 2, 3)
	require.True(t, tree.Insert(1, 1))
	tree.Remove(1)

	assert.Equal(t, storage.InvalidPageID, tree.GetRootPageID())
	_, ok := tree.GetValue(1)
	assert.False(t, ok)
}

func TestBTree_Remove_UnknownKeyIsNoOp(t *testing.T) {
	tree := newTestTree(t, 16, 2, 3)
	require.True(t, tree.Insert(1, 1))
	tree.Remove(42)
	v, ok := tree.GetValue(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), v)
}

func TestBTree_ManyInsertsAndRemovesStayConsistent(t *testing.T) {
	tree := newTestTree(t, 64, 4, 4)
	const n = 200

	for i := int64(0); i < n; i++ {
		require.True(t, tree.Insert(i, i*2))
	}
	for i := int64(0); i < n; i += 3 {
		tree.Remove(i)
	}

	var want []int64
	for i := int64(0); i < n; i++ {
		if i%3 != 0 {
			want = append(want, i)
		}
	}
	assert.Equal(t, want, collect[int64, int64](t, tree.Begin()))
}

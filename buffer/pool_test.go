package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helindb/storage"
)

// memDisk is an in-memory stand-in for storage.DiskManager, good enough to
// exercise the pool's fetch/flush/evict paths without touching a real file.
type memDisk struct {
	pages map[storage.PageID][]byte
	next  storage.PageID
	reads int
}

func newMemDisk() *memDisk {
	return &memDisk{pages: make(map[storage.PageID][]byte)}
}

func (d *memDisk) ReadPage(id storage.PageID, dst []byte) error {
	d.reads++
	src, ok := d.pages[id]
	if !ok {
		return nil
	}
	copy(dst, src)
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

func TestPool_NewPage_EvictsAndFlushesWhenFull(t *testing.T) {
	disk := newMemDisk()
	pool := NewPool(3, 2, disk)

	var pids []storage.PageID
	for i := 0; i < 3; i++ {
		pid, frame, err := pool.NewPage()
		require.NoError(t, err)
		frame.data[0] = byte(i + 1)
		frame.dirty = true
		pids = append(pids, pid)
	}
	// every page is still pinned; the pool has no free frames and nothing
	// evictable, so a fourth NewPage must fail.
	_, _, err := pool.NewPage()
	assert.ErrorIs(t, err, ErrNoFrameAvailable)

	// unpinning the first page makes it evictable.
	require.True(t, pool.UnpinPage(pids[0], true, storage.AccessUnknown))

	pid3, frame3, err := pool.NewPage()
	require.NoError(t, err)
	assert.NotEqual(t, pids[0], pid3)

	// the evicted page's dirty contents must have been flushed to disk.
	flushed, ok := disk.pages[pids[0]]
	require.True(t, ok)
	assert.Equal(t, byte(1), flushed[0])

	require.True(t, pool.UnpinPage(pid3, false, storage.AccessUnknown))
	_ = frame3
}

func TestPool_FetchPage_ReadsBackFlushedContent(t *testing.T) {
	disk := newMemDisk()
	pool := NewPool(2, 2, disk)

	pid, frame, err := pool.NewPage()
	require.NoError(t, err)
	frame.data[0] = 42
	require.True(t, pool.FlushPage(pid))
	require.True(t, pool.UnpinPage(pid, false, storage.AccessUnknown))

	// evict it out of the pool by filling the remaining frame and one more.
	other, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(other, false, storage.AccessUnknown))
	_, _, err = pool.NewPage()
	require.NoError(t, err)

	fetched, err := pool.FetchPage(pid, storage.AccessLookup)
	require.NoError(t, err)
	assert.Equal(t, byte(42), fetched.data[0])
}

func TestPool_UnpinPage_FailsForUnknownOrUnpinnedPage(t *testing.T) {
	disk := newMemDisk()
	pool := NewPool(2, 2, disk)

	assert.False(t, pool.UnpinPage(99, false, storage.AccessUnknown))

	pid, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(pid, false, storage.AccessUnknown))
	assert.False(t, pool.UnpinPage(pid, false, storage.AccessUnknown))
}

func TestPool_DeletePage_RefusesPinnedPage(t *testing.T) {
	disk := newMemDisk()
	pool := NewPool(2, 2, disk)

	pid, _, err := pool.NewPage()
	require.NoError(t, err)
	assert.False(t, pool.DeletePage(pid))

	require.True(t, pool.UnpinPage(pid, false, storage.AccessUnknown))
	assert.True(t, pool.DeletePage(pid))
}

func TestPool_FlushAllPages_FlushesEveryResidentPage(t *testing.T) {
	disk := newMemDisk()
	pool := NewPool(3, 2, disk)

	var pids []storage.PageID
	for i := 0; i < 3; i++ {
		pid, frame, err := pool.NewPage()
		require.NoError(t, err)
		frame.data[0] = byte(10 + i)
		frame.dirty = true
		pids = append(pids, pid)
	}
	pool.FlushAllPages()
	for i, pid := range pids {
		assert.Equal(t, byte(10+i), disk.pages[pid][0])
	}
}

func TestPool_Guards_ReleaseLatchBeforeUnpin(t *testing.T) {
	disk := newMemDisk()
	pool := NewPool(2, 2, disk)

	pid, basic, err := pool.NewPageGuarded()
	require.NoError(t, err)
	basic.Data()[0] = 7
	basic.MarkDirty()
	basic.Drop()
	basic.Drop() // idempotent

	wg, err := pool.FetchPageWrite(pid)
	require.NoError(t, err)
	assert.Equal(t, byte(7), wg.Data()[0])
	wg.Drop()

	rg, err := pool.FetchPageRead(pid)
	require.NoError(t, err)
	assert.Equal(t, byte(7), rg.Data()[0])
	rg.Drop()
}

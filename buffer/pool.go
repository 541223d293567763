// Package buffer implements the fixed-size buffer pool that mediates every
// access to on-disk pages: a page table, a free list, an LRU-K replacer for
// choosing eviction victims, and the RAII-style page guards built on top.
package buffer

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"helindb/storage"
)

// ErrNoFrameAvailable is returned when every frame is either occupied by a
// pinned page or, in the case of NewPage/FetchPage on a full pool, when the
// replacer has nothing evictable to offer up.
var ErrNoFrameAvailable = errors.New("buffer pool: no free or evictable frame")

// Pool is a fixed-size buffer pool manager. All bookkeeping (the page table,
// free list, replacer state and pin counts) is protected by a single mutex;
// per-frame reader-writer latches, acquired by page guards, protect the
// page contents and are taken only after the pool has pinned the frame and
// released its mutex, so the mutex is never held while waiting on a latch.
type Pool struct {
	mu sync.Mutex

	frames    []*Frame
	pageTable map[storage.PageID]int
	freeList  []int
	replacer  *LRUKReplacer

	disk       storage.DiskManager
	nextPageID storage.PageID
	reclaimed  []storage.PageID

	Stats Stats
	log   *logrus.Logger
}

// NewPool builds a pool of poolSize frames backed by disk, evicting via
// LRU-K with the given k.
func NewPool(poolSize, replacerK int, disk storage.DiskManager) *Pool {
	if poolSize <= 0 {
		panic("buffer: pool size must be positive")
	}
	frames := make([]*Frame, poolSize)
	free := make([]int, poolSize)
	for i := range frames {
		frames[i] = newFrame()
		free[i] = i
	}
	return &Pool{
		frames:    frames,
		pageTable: make(map[storage.PageID]int),
		freeList:  free,
		replacer:  NewLRUKReplacer(poolSize, replacerK),
		disk:      disk,
		log:       logrus.StandardLogger(),
	}
}

// SetLogger overrides the pool's logger; the default is logrus's standard
// logger.
func (p *Pool) SetLogger(log *logrus.Logger) { p.log = log }

// PoolSize returns the number of frames managed by the pool.
func (p *Pool) PoolSize() int { return len(p.frames) }

// acquireFrame returns a frame ready to receive a page, taking one from the
// free list first and falling back to evicting a victim via the replacer.
// Callers must hold p.mu.
func (p *Pool) acquireFrame() (int, error) {
	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return fid, nil
	}

	fid, ok := p.replacer.Evict()
	if !ok {
		return 0, errors.WithStack(ErrNoFrameAvailable)
	}
	victim := p.frames[fid]
	if victim.PinCount() != 0 {
		panic(fmt.Sprintf("buffer pool: replacer evicted pinned frame %d", fid))
	}
	if victim.IsDirty() {
		if err := p.disk.WritePage(victim.pageID, victim.data); err != nil {
			panic(errors.Wrapf(err, "buffer pool: flushing victim page %d", victim.pageID))
		}
		p.log.WithFields(logrus.Fields{"page_id": victim.pageID, "frame_id": fid}).
			Debug("flushed dirty victim before eviction")
	}
	delete(p.pageTable, victim.pageID)
	p.Stats.evictions.Add(1)
	return fid, nil
}

func (p *Pool) allocatePageID() storage.PageID {
	if n := len(p.reclaimed); n > 0 {
		id := p.reclaimed[n-1]
		p.reclaimed = p.reclaimed[:n-1]
		return id
	}
	return p.disk.AllocatePage()
}

// NewPage allocates a fresh page, pins it in a frame and returns it. The
// caller owns exactly one pin on the returned frame and must Unpin it.
func (p *Pool) NewPage() (storage.PageID, *Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, err := p.acquireFrame()
	if err != nil {
		return storage.InvalidPageID, nil, err
	}

	pid := p.allocatePageID()
	frame := p.frames[fid]
	frame.reset(pid)
	frame.pinCount = 1
	p.pageTable[pid] = fid

	p.replacer.RecordAccess(fid, storage.AccessUnknown)
	p.replacer.SetEvictable(fid, false)

	p.Stats.newPages.Add(1)
	p.log.WithFields(logrus.Fields{"page_id": pid, "frame_id": fid}).Trace("allocated new page")
	return pid, frame, nil
}

// FetchPage pins the page identified by pid, reading it from disk into a
// free or evicted frame if it isn't already resident.
func (p *Pool) FetchPage(pid storage.PageID, accessType storage.AccessType) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fid, ok := p.pageTable[pid]; ok {
		frame := p.frames[fid]
		frame.pinCount++
		p.replacer.RecordAccess(fid, accessType)
		p.replacer.SetEvictable(fid, false)
		p.Stats.hits.Add(1)
		return frame, nil
	}

	p.Stats.misses.Add(1)
	fid, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}
	frame := p.frames[fid]
	frame.reset(pid)
	if err := p.disk.ReadPage(pid, frame.data); err != nil {
		p.freeList = append(p.freeList, fid)
		return nil, errors.Wrapf(err, "buffer pool: reading page %d", pid)
	}
	frame.pinCount = 1
	p.pageTable[pid] = fid

	p.replacer.RecordAccess(fid, accessType)
	p.replacer.SetEvictable(fid, false)
	p.log.WithFields(logrus.Fields{"page_id": pid, "frame_id": fid, "access_type": accessType}).
		Trace("fetched page from disk")
	return frame, nil
}

// UnpinPage releases one pin held on pid. isDirty marks the page as
// modified since it was pinned; it never clears an already-dirty page. It
// returns false if pid isn't resident or has no outstanding pins.
func (p *Pool) UnpinPage(pid storage.PageID, isDirty bool, accessType storage.AccessType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[pid]
	if !ok {
		return false
	}
	frame := p.frames[fid]
	if frame.pinCount <= 0 {
		return false
	}
	if isDirty {
		frame.dirty = true
	}
	frame.pinCount--
	if frame.pinCount == 0 {
		p.replacer.SetEvictable(fid, true)
	}
	return true
}

// FlushPage writes pid's current contents to disk regardless of pin state,
// clearing its dirty bit. It returns false if pid isn't resident.
func (p *Pool) FlushPage(pid storage.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(pid)
}

func (p *Pool) flushLocked(pid storage.PageID) bool {
	fid, ok := p.pageTable[pid]
	if !ok {
		return false
	}
	frame := p.frames[fid]
	if err := p.disk.WritePage(pid, frame.data); err != nil {
		panic(errors.Wrapf(err, "buffer pool: flushing page %d", pid))
	}
	frame.dirty = false
	return true
}

// FlushAllPages writes every resident page to disk, regardless of pin or
// dirty state.
func (p *Pool) FlushAllPages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for pid := range p.pageTable {
		p.flushLocked(pid)
	}
}

// DeletePage removes pid from the pool, returning its frame to the free
// list. It refuses (returning false) if the page is currently pinned. A
// page that isn't resident is trivially deleted and reports success, and
// its id is not recycled. The id of a resident page deleted here is
// recycled by a later NewPage call; this specification does not attempt
// to free the corresponding on-disk slot.
func (p *Pool) DeletePage(pid storage.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[pid]
	if !ok {
		return true
	}
	frame := p.frames[fid]
	if frame.pinCount > 0 {
		return false
	}
	p.replacer.Remove(fid)
	delete(p.pageTable, pid)
	p.reclaimed = append(p.reclaimed, pid)
	p.freeList = append(p.freeList, fid)
	return true
}

package buffer

import "helindb/storage"

// BasicPageGuard pins a page in the pool and unpins it exactly once when
// dropped. It does not take a latch of its own; it's meant for callers that
// already hold whatever synchronization they need (freshly allocated pages
// not yet visible to other goroutines, for instance). A guard must not be
// copied; pass it by pointer and call Drop exactly once, explicitly or via
// defer — Drop is idempotent so an early explicit call plus a deferred
// safety-net call is safe.
type BasicPageGuard struct {
	pool  *Pool
	frame *Frame
	dirty bool
	valid bool
}

func newBasicGuard(pool *Pool, frame *Frame) *BasicPageGuard {
	return &BasicPageGuard{pool: pool, frame: frame, valid: true}
}

// PageID returns the id of the guarded page.
func (g *BasicPageGuard) PageID() storage.PageID { return g.frame.PageID() }

// Data returns the guarded page's backing bytes.
func (g *BasicPageGuard) Data() []byte { return g.frame.Data() }

// MarkDirty records that the page was modified, so it gets written back on
// eviction or flush.
func (g *BasicPageGuard) MarkDirty() { g.dirty = true }

// Drop releases the pin this guard holds. Calling Drop more than once is a
// no-op after the first call.
func (g *BasicPageGuard) Drop() {
	if !g.valid {
		return
	}
	g.pool.UnpinPage(g.frame.PageID(), g.dirty, storage.AccessUnknown)
	g.valid = false
}

// ReadPageGuard holds a page's pin plus its shared latch, guaranteeing the
// page's contents won't change while the guard is alive.
type ReadPageGuard struct {
	BasicPageGuard
}

func newReadGuard(pool *Pool, frame *Frame) *ReadPageGuard {
	frame.RLatch()
	return &ReadPageGuard{BasicPageGuard{pool: pool, frame: frame, valid: true}}
}

// Drop releases the shared latch before unpinning the page.
func (g *ReadPageGuard) Drop() {
	if !g.valid {
		return
	}
	g.frame.RUnlatch()
	g.BasicPageGuard.Drop()
}

// WritePageGuard holds a page's pin plus its exclusive latch.
type WritePageGuard struct {
	BasicPageGuard
}

func newWriteGuard(pool *Pool, frame *Frame) *WritePageGuard {
	frame.WLatch()
	return &WritePageGuard{BasicPageGuard{pool: pool, frame: frame, valid: true}}
}

// Drop releases the exclusive latch before unpinning the page.
func (g *WritePageGuard) Drop() {
	if !g.valid {
		return
	}
	g.frame.WUnlatch()
	g.BasicPageGuard.Drop()
}

// NewPageGuarded allocates a fresh page and wraps it in a basic guard.
func (p *Pool) NewPageGuarded() (storage.PageID, *BasicPageGuard, error) {
	pid, frame, err := p.NewPage()
	if err != nil {
		return storage.InvalidPageID, nil, err
	}
	return pid, newBasicGuard(p, frame), nil
}

// FetchPageBasic fetches pid and wraps it in a basic guard, taking no
// latch of its own.
func (p *Pool) FetchPageBasic(pid storage.PageID) (*BasicPageGuard, error) {
	frame, err := p.FetchPage(pid, storage.AccessUnknown)
	if err != nil {
		return nil, err
	}
	return newBasicGuard(p, frame), nil
}

// FetchPageRead fetches pid and wraps it in a guard holding the frame's
// shared latch.
func (p *Pool) FetchPageRead(pid storage.PageID) (*ReadPageGuard, error) {
	frame, err := p.FetchPage(pid, storage.AccessUnknown)
	if err != nil {
		return nil, err
	}
	return newReadGuard(p, frame), nil
}

// FetchPageWrite fetches pid and wraps it in a guard holding the frame's
// exclusive latch. Unlike the buffer pool manager this was ported from,
// the returned guard always wraps the frame that was actually pinned: a
// failed fetch returns a nil guard and a non-nil error, never a guard
// around a page nobody holds a pin on.
func (p *Pool) FetchPageWrite(pid storage.PageID) (*WritePageGuard, error) {
	frame, err := p.FetchPage(pid, storage.AccessUnknown)
	if err != nil {
		return nil, err
	}
	return newWriteGuard(p, frame), nil
}

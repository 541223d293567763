package buffer

import "sync/atomic"

// Stats holds running counters for a Pool's cache behavior. All fields are
// updated with atomics so callers can read them concurrently with normal
// pool traffic without taking the bookkeeping mutex.
type Stats struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	newPages  atomic.Uint64
}

func (s *Stats) Hits() uint64      { return s.hits.Load() }
func (s *Stats) Misses() uint64    { return s.misses.Load() }
func (s *Stats) Evictions() uint64 { return s.evictions.Load() }
func (s *Stats) NewPages() uint64  { return s.newPages.Load() }

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helindb/storage"
)

func TestLRUKReplacer_EvictsEarliestHistory_BeforeAnyFrameReachesK(t *testing.T) {
	r := NewLRUKReplacer(7, 2)

	for _, fid := range []int{1, 2, 3, 4, 5, 6} {
		r.RecordAccess(fid, storage.AccessUnknown)
	}
	for _, fid := range []int{1, 2, 3, 4, 5, 6} {
		r.SetEvictable(fid, true)
	}

	fid, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, 1, fid, "frame 1 has the earliest single access and none have reached k=2 yet")
}

func TestLRUKReplacer_PrefersLargestBackwardKDistance(t *testing.T) {
	r := NewLRUKReplacer(7, 2)

	order := []int{1, 2, 3, 4, 5, 6, 1, 2, 3, 4, 5, 6}
	for _, fid := range order {
		r.RecordAccess(fid, storage.AccessUnknown)
	}
	for _, fid := range []int{1, 2, 3, 4, 5, 6} {
		r.SetEvictable(fid, true)
	}

	// all frames now have exactly k=2 accesses; re-touch 1..5 so frame 6's
	// k-distance is the largest (its 2nd access is the oldest of the bunch).
	for _, fid := range []int{1, 2, 3, 4, 5} {
		r.RecordAccess(fid, storage.AccessUnknown)
	}

	var got []int
	for i := 0; i < 6; i++ {
		fid, ok := r.Evict()
		require.True(t, ok)
		got = append(got, fid)
	}
	assert.Equal(t, []int{6, 1, 2, 3, 4, 5}, got)
}

func TestLRUKReplacer_Evict_ReturnsFalse_WhenNothingIsEvictable(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.RecordAccess(0, storage.AccessUnknown)
	r.RecordAccess(1, storage.AccessUnknown)

	fid, ok := r.Evict()
	assert.False(t, ok)
	assert.Zero(t, fid)
}

func TestLRUKReplacer_SetEvictable_IsIdempotentAndTogglesSize(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.RecordAccess(0, storage.AccessUnknown)

	assert.Equal(t, 0, r.Size())
	r.SetEvictable(0, true)
	r.SetEvictable(0, true)
	assert.Equal(t, 1, r.Size())
	r.SetEvictable(0, false)
	assert.Equal(t, 0, r.Size())
}

func TestLRUKReplacer_Remove_PanicsOnNonEvictableFrame(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.RecordAccess(0, storage.AccessUnknown)

	assert.Panics(t, func() { r.Remove(0) })
}

func TestLRUKReplacer_Remove_IsNoOpForUntrackedFrame(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	assert.NotPanics(t, func() { r.Remove(3) })
}

func TestLRUKReplacer_RecordAccess_PanicsOutOfRange(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	assert.Panics(t, func() { r.RecordAccess(4, storage.AccessUnknown) })
	assert.Panics(t, func() { r.RecordAccess(-1, storage.AccessUnknown) })
}

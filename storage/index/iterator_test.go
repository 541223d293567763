package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterator_BeginAt_LandsOnFirstKeyGreaterOrEqual(t *testing.T) {
	tree := newTestTree(t, 32, 2, 3)
	for _, k := range []int64{10, 20, 30, 40, 50} {
		require.True(t, tree.Insert(k, k))
	}

	it := tree.BeginAt(25)
	require.False(t, it.IsEnd())
	assert.Equal(t, int64(30), it.Key())

	var got []int64
	for !it.IsEnd() {
		got = append(got, it.Key())
		it.Next()
	}
	assert.Equal(t, []int64{30, 40, 50}, got)
}

func TestIterator_BeginAt_PastLastKeyIsImmediatelyEnd(t *testing.T) {
	tree := newTestTree(t, 32, 2, 3)
	require.True(t, tree.Insert(1, 1))

	it := tree.BeginAt(100)
	assert.True(t, it.IsEnd())
}

func TestIterator_EmptyTree_BeginIsEnd(t *testing.T) {
	tree := newTestTree(t, 8, 2, 3)
	assert.True(t, tree.Begin().IsEnd())
	assert.True(t, tree.End().IsEnd())
}

func TestIterator_CrossesLeafBoundaries(t *testing.T) {
	tree := newTestTree(t, 32, 2, 3)
	for i := int64(1); i <= 9; i++ {
		require.True(t, tree.Insert(i, i))
	}

	it := tree.Begin()
	var got []int64
	for !it.IsEnd() {
		got = append(got, it.Key())
		it.Next()
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestIterator_Close_ReleasesLatchEarly(t *testing.T) {
	tree := newTestTree(t, 8, 2, 3)
	require.True(t, tree.Insert(1, 1))

	it := tree.Begin()
	it.Close()
	assert.True(t, it.IsEnd())

	// the tree must still be usable: closing an iterator must not leave a
	// latch held.
	require.True(t, tree.Insert(2, 2))
	_, ok := tree.GetValue(2)
	assert.True(t, ok)
}

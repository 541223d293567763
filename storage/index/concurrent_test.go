package index

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBTree_ConcurrentInserts(t *testing.T) {
	tree := newTestTree(t, 128, 4, 4)

	const n = 2000
	const workers = 8
	perm := rand.New(rand.NewSource(42)).Perm(n)

	var wg sync.WaitGroup
	chunk := n / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if w == workers-1 {
			hi = n
		}
		wg.Add(1)
		go func(keys []int) {
			defer wg.Done()
			for _, k := range keys {
				require.True(t, tree.Insert(int64(k), int64(k*2)))
			}
		}(perm[lo:hi])
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		v, ok := tree.GetValue(int64(i))
		require.True(t, ok)
		assert.Equal(t, int64(i*2), v)
	}

	got := collect[int64, int64](t, tree.Begin())
	require.Len(t, got, n)
	for i, k := range got {
		assert.Equal(t, int64(i), k)
	}
}

func TestBTree_ConcurrentInsertsAndRemoves(t *testing.T) {
	tree := newTestTree(t, 128, 4, 4)

	const n = 1000
	for i := 0; i < n; i++ {
		require.True(t, tree.Insert(int64(i), int64(i)))
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; i < n; i += 4 {
				tree.Remove(int64(i))
			}
		}(w)
	}
	wg.Wait()

	got := collect[int64, int64](t, tree.Begin())
	assert.Empty(t, got)
}

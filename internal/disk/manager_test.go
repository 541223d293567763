package disk

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helindb/storage"
)

func TestManager_WriteThenReadRoundTrips(t *testing.T) {
	path := uuid.New().String() + ".db"
	defer os.Remove(path)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	page := make([]byte, storage.PageSize)
	for i := range page {
		page[i] = byte(i % 251)
	}

	pid := m.AllocatePage()
	require.NoError(t, m.WritePage(pid, page))

	got := make([]byte, storage.PageSize)
	require.NoError(t, m.ReadPage(pid, got))
	assert.Equal(t, page, got)
}

func TestManager_UnwrittenPageReadsAsZero(t *testing.T) {
	path := uuid.New().String() + ".db"
	defer os.Remove(path)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	pid := m.AllocatePage()
	got := make([]byte, storage.PageSize)
	for i := range got {
		got[i] = 0xff
	}
	require.NoError(t, m.ReadPage(pid, got))

	for _, b := range got {
		require.Zero(t, b)
	}
}

func TestManager_AllocatePage_IsSequential(t *testing.T) {
	path := uuid.New().String() + ".db"
	defer os.Remove(path)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	a := m.AllocatePage()
	b := m.AllocatePage()
	assert.Equal(t, a+1, b)
}

// Package disk provides the concrete storage.DiskManager backing the
// buffer pool in the command-line harness: a single file addressed by
// fixed-size slots, with each page's bytes snappy-compressed before being
// written into its slot.
package disk

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"helindb/storage"
)

// slotSize reserves enough room for a length prefix plus the worst-case
// snappy expansion of a page, which never exceeds roughly page size plus a
// small fixed overhead; doubling the page size leaves a wide margin
// without needing a separate slot directory.
const slotSize = storage.PageSize * 2

var _ storage.DiskManager = (*Manager)(nil)

// Manager is a storage.DiskManager backed by a single *os.File.
type Manager struct {
	mu   sync.Mutex
	file *os.File
	next storage.PageID
	log  *logrus.Logger
}

// Open creates or opens the database file at path.
func Open(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "disk: opening database file %s", path)
	}
	return &Manager{file: f, log: logrus.StandardLogger()}, nil
}

func slotOffset(id storage.PageID) int64 { return int64(id) * slotSize }

// WritePage compresses src with snappy and writes it into pid's slot.
func (m *Manager) WritePage(pid storage.PageID, src []byte) error {
	if len(src) != storage.PageSize {
		return errors.Errorf("disk: page %d has wrong size %d", pid, len(src))
	}
	compressed := snappy.Encode(nil, src)
	if len(compressed)+4 > slotSize {
		return errors.Errorf("disk: compressed page %d (%d bytes) does not fit its slot", pid, len(compressed))
	}

	buf := make([]byte, slotSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(compressed)))
	copy(buf[4:], compressed)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.file.WriteAt(buf, slotOffset(pid)); err != nil {
		return errors.Wrapf(err, "disk: writing page %d", pid)
	}
	m.log.WithFields(logrus.Fields{"page_id": pid, "bytes": len(compressed)}).Trace("wrote page")
	return nil
}

// ReadPage reads pid's slot and decompresses it into dst, which must be
// exactly storage.PageSize bytes. A page that was never written reads back
// as all zeros.
func (m *Manager) ReadPage(pid storage.PageID, dst []byte) error {
	if len(dst) != storage.PageSize {
		return errors.Errorf("disk: destination buffer has wrong size %d", len(dst))
	}

	buf := make([]byte, slotSize)
	m.mu.Lock()
	_, err := m.file.ReadAt(buf, slotOffset(pid))
	m.mu.Unlock()
	if err != nil {
		// a slot past the current file length reads as zero rather than an
		// error, matching how a page that was allocated but never flushed
		// behaves.
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}

	n := binary.BigEndian.Uint32(buf[0:4])
	if n == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	decoded, err := snappy.Decode(nil, buf[4:4+n])
	if err != nil {
		return errors.Wrapf(err, "disk: decompressing page %d", pid)
	}
	copy(dst, decoded)
	return nil
}

// AllocatePage hands out the next sequential page id.
func (m *Manager) AllocatePage() storage.PageID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	return id
}

// Close closes the underlying file.
func (m *Manager) Close() error { return m.file.Close() }

package page

import (
	"encoding/binary"

	"helindb/storage"
)

// Type tags a page as holding a leaf or internal node, stored in the first
// byte of every B+ tree page so a fetched page can be dispatched to the
// right typed view without consulting anything outside the page itself.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeLeaf
	TypeInternal
)

// headerSize is the fixed number of bytes reserved at the front of every
// B+ tree page for Type, Size, MaxSize and NextPageID (leaf only).
const headerSize = 16

type header struct {
	Type       Type
	Size       int16
	MaxSize    int16
	NextPageID storage.PageID
}

func readHeader(data []byte) header {
	return header{
		Type:       Type(data[0]),
		Size:       int16(binary.BigEndian.Uint16(data[2:4])),
		MaxSize:    int16(binary.BigEndian.Uint16(data[4:6])),
		NextPageID: storage.PageID(int32(binary.BigEndian.Uint32(data[8:12]))),
	}
}

func writeHeader(data []byte, h header) {
	data[0] = byte(h.Type)
	binary.BigEndian.PutUint16(data[2:4], uint16(h.Size))
	binary.BigEndian.PutUint16(data[4:6], uint16(h.MaxSize))
	binary.BigEndian.PutUint32(data[8:12], uint32(int32(h.NextPageID)))
}

// PageType reads the type tag out of a page's raw bytes, so a caller
// holding only a guard's Data() can decide which typed view to construct.
func PageType(data []byte) Type { return Type(data[0]) }

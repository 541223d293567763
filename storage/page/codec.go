// Package page implements the fixed-layout B+ tree node formats: typed
// views over a page's raw byte buffer, dispatched on a one-byte header tag
// rather than through an interface hierarchy, since every node variant
// needs its own split/merge/redistribute logic anyway.
package page

// Codec encodes and decodes a fixed-size value of type T to and from a
// byte slice. Every key and value type stored in a node must have one; the
// node formats never store variable-length fields.
type Codec[T any] interface {
	// Size is the fixed number of bytes this codec occupies in a slot.
	Size() int
	Encode(v T, dst []byte)
	Decode(src []byte) T
}

// CompareFunc orders two keys, returning a negative number if a < b, zero
// if they're equal, and a positive number if a > b.
type CompareFunc[K any] func(a, b K) int

// Int64Codec encodes an int64 as 8 bytes, big-endian. It is used both as a
// key codec and, for pages whose values are themselves page ids or record
// ids narrow enough to fit, a value codec.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }

func (Int64Codec) Encode(v int64, dst []byte) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		dst[7-i] = byte(u)
		u >>= 8
	}
}

func (Int64Codec) Decode(src []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u = u<<8 | uint64(src[i])
	}
	return int64(u)
}

// FixedStringCodec encodes a string into exactly n bytes: truncated if
// longer, zero-padded if shorter. It's meant for short fixed-width keys;
// it is not a general-purpose variable-length string encoding.
type FixedStringCodec struct{ N int }

func (c FixedStringCodec) Size() int { return c.N }

func (c FixedStringCodec) Encode(v string, dst []byte) {
	n := copy(dst, v)
	for i := n; i < c.N; i++ {
		dst[i] = 0
	}
}

func (c FixedStringCodec) Decode(src []byte) string {
	end := len(src)
	for end > 0 && src[end-1] == 0 {
		end--
	}
	return string(src[:end])
}

// CompareInt64 is the natural CompareFunc for int64 keys.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareString is the natural CompareFunc for string keys.
func CompareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

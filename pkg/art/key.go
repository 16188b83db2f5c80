// Package art implements an Adaptive Radix Tree secondary index and the
// ordered range-scan iterator over it.
package art

import "encoding/binary"

// RowID is the 64-bit row identifier the index resolves keys to.
type RowID = int64

// rowIDWidth is the fixed serialized width of a row id inside a gate.
const rowIDWidth = 8

// ARTKey is a logical key: an unsigned byte string. Comparison is
// unsigned lexicographic over Data[:Len].
type ARTKey struct {
	Data []byte
}

// Len returns the number of bytes in the key.
func (k ARTKey) Len() int {
	return len(k.Data)
}

// Empty reports whether the key carries no bytes (used to mean "no bound").
func (k ARTKey) Empty() bool {
	return len(k.Data) == 0
}

// At returns the byte at depth i.
func (k ARTKey) At(i int) byte {
	return k.Data[i]
}

// NewARTKey wraps a byte slice as a logical key. The caller retains
// ownership; the key does not copy.
func NewARTKey(data []byte) ARTKey {
	return ARTKey{Data: data}
}

// rowIDKey reinterprets an 8-byte big-endian buffer as an ARTKey whose
// decoded row id is retrieved with GetRowID.
func rowIDKey(buf []byte) ARTKey {
	return ARTKey{Data: buf[:rowIDWidth]}
}

// GetRowID decodes the key as a big-endian 64-bit row id. Valid only for
// keys of exactly rowIDWidth bytes, i.e. those produced inside a gate.
func (k ARTKey) GetRowID() RowID {
	return int64(binary.BigEndian.Uint64(k.Data))
}

// IteratorKey is the mutable byte buffer tracking the logical key path
// from the tree root to the iterator's current position.
type IteratorKey struct {
	bytes []byte
}

// Push appends a byte to the current key.
func (k *IteratorKey) Push(b byte) {
	k.bytes = append(k.bytes, b)
}

// Pop drops the last n bytes. Precondition: Size() >= n.
func (k *IteratorKey) Pop(n int) {
	k.bytes = k.bytes[:len(k.bytes)-n]
}

// Size returns the current length of the buffer.
func (k *IteratorKey) Size() int {
	return len(k.bytes)
}

// Bytes returns the buffer's current contents. The slice is only valid
// until the next Push/Pop.
func (k *IteratorKey) Bytes() []byte {
	return k.bytes
}

// Contains reports whether the buffer's first key.Len() bytes match key
// exactly, i.e. whether the current position is a prolongation of key.
func (k *IteratorKey) Contains(key ARTKey) bool {
	if k.Size() < key.Len() {
		return false
	}
	for i := 0; i < key.Len(); i++ {
		if k.bytes[i] != key.Data[i] {
			return false
		}
	}
	return true
}

// GreaterThan performs an unsigned lexicographic comparison of the buffer
// against key. If the compared prefixes differ, the natural result holds.
// If one is a prefix of the other, the longer one is greater.
//
// When equal is true, an exact match returns false (so callers testing
// "past the upper bound" stop strictly above it — the bound is included).
// When equal is false, an exact match returns true (so callers stop at or
// above it — the bound is excluded).
func (k *IteratorKey) GreaterThan(key ARTKey, equal bool) bool {
	n := k.Size()
	if key.Len() < n {
		n = key.Len()
	}
	for i := 0; i < n; i++ {
		if k.bytes[i] > key.Data[i] {
			return true
		} else if k.bytes[i] < key.Data[i] {
			return false
		}
	}
	if equal {
		return k.Size() > key.Len()
	}
	return k.Size() >= key.Len()
}

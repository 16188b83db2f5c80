// ABOUTME: Order-preserving encoding for the catalog's descriptor keys and the heap's row records
// ABOUTME: Every column of an index descriptor or row is tagged with its field kind to prevent collisions

package storage

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Field kinds. A composite key or record is a sequence of tagged
// fields; the tag prevents a bytes field's escaped content from being
// mistaken for the next field's tag.
const (
	FieldKindBytes  = 1
	FieldKindInt64  = 2
	FieldKindUint64 = 3
	FieldKindTime   = 4 // Stored as int64 Unix timestamp
)

// Field is one column of an encoded catalog key/record or heap row —
// an index descriptor's name, a row's payload bytes, a timestamp, and
// so on, tagged with the Go type it holds.
type Field struct {
	Kind uint8
	Str  []byte
	I64  int64
	U64  uint64
	Time time.Time
}

// NewBytesField wraps a byte slice field, e.g. an index name or a
// heap row's payload.
func NewBytesField(data []byte) Field {
	return Field{Kind: FieldKindBytes, Str: data}
}

// NewInt64Field wraps a signed integer field, e.g. a row id.
func NewInt64Field(i int64) Field {
	return Field{Kind: FieldKindInt64, I64: i}
}

// NewUint64Field wraps an unsigned integer field.
func NewUint64Field(u uint64) Field {
	return Field{Kind: FieldKindUint64, U64: u}
}

// NewTimeField wraps a timestamp field, e.g. an index descriptor's
// BuiltAt/CreatedAt/UpdatedAt or a row's CreatedAt/UpdatedAt.
func NewTimeField(t time.Time) Field {
	return Field{Kind: FieldKindTime, Time: t}
}

// EncodeFields encodes fields in order-preserving format: concatenating
// the encodings of fields[0], fields[1], ... byte-for-byte preserves
// lexicographic order over (fields[0], fields[1], ...) tuples, which is
// what lets pkg/catalog range-scan by column prefix and pkg/heap scan
// rows in id order directly over Pager.Scan.
func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0, 256)
	for _, f := range fields {
		out = append(out, byte(f.Kind)) // Kind tag (doesn't start with 0xFF)

		switch f.Kind {
		case FieldKindInt64:
			// Flip sign bit for proper ordering
			var buf [8]byte
			u := uint64(f.I64) + (1 << 63)
			binary.BigEndian.PutUint64(buf[:], u)
			out = append(out, buf[:]...)

		case FieldKindUint64:
			// Direct big-endian encoding
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], f.U64)
			out = append(out, buf[:]...)

		case FieldKindTime:
			// Encode as Unix timestamp (int64)
			var buf [8]byte
			u := uint64(f.Time.Unix()) + (1 << 63)
			binary.BigEndian.PutUint64(buf[:], u)
			out = append(out, buf[:]...)

		case FieldKindBytes:
			// Escape and null-terminate
			out = append(out, escapeBytes(f.Str)...)
			out = append(out, 0)

		default:
			panic(fmt.Sprintf("unknown field kind: %d", f.Kind))
		}
	}
	return out
}

// escapeBytes escapes 0x00 as 0x01 0x01 and 0x01 as 0x01 0x02, so the
// result holds no 0x00 (the field terminator) and sorts like the input.
func escapeBytes(s []byte) []byte {
	// Count escapes needed
	escapes := 0
	for _, b := range s {
		if b <= 0x01 {
			escapes++
		}
	}

	if escapes == 0 {
		return s
	}

	// Allocate with room for escapes
	out := make([]byte, 0, len(s)+escapes)
	for _, b := range s {
		if b <= 0x01 {
			out = append(out, 0x01, b+1) // 0x00 -> 0x01 0x01, 0x01 -> 0x01 0x02
		} else {
			out = append(out, b)
		}
	}
	return out
}

// unescapeBytes reverses escapeBytes
func unescapeBytes(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x01 && i+1 < len(s) {
			// Unescape sequence
			out = append(out, s[i+1]-1)
			i++ // Skip next byte
		} else {
			out = append(out, s[i])
		}
	}
	return out
}

// DecodeFields decodes fields from encoded format
func DecodeFields(data []byte) ([]Field, error) {
	fields := make([]Field, 0, 4)
	pos := 0

	for pos < len(data) {
		if pos >= len(data) {
			break
		}

		kind := data[pos]
		pos++

		switch kind {
		case FieldKindInt64:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("incomplete int64 at pos %d", pos)
			}
			u := binary.BigEndian.Uint64(data[pos : pos+8])
			i := int64(u - (1 << 63))
			fields = append(fields, NewInt64Field(i))
			pos += 8

		case FieldKindUint64:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("incomplete uint64 at pos %d", pos)
			}
			u := binary.BigEndian.Uint64(data[pos : pos+8])
			fields = append(fields, NewUint64Field(u))
			pos += 8

		case FieldKindTime:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("incomplete time at pos %d", pos)
			}
			u := binary.BigEndian.Uint64(data[pos : pos+8])
			i := int64(u - (1 << 63))
			fields = append(fields, NewTimeField(time.Unix(i, 0)))
			pos += 8

		case FieldKindBytes:
			// Find null terminator
			end := pos
			for end < len(data) && data[end] != 0 {
				end++
			}
			if end >= len(data) {
				return nil, fmt.Errorf("unterminated string at pos %d", pos)
			}
			str := unescapeBytes(data[pos:end])
			fields = append(fields, NewBytesField(str))
			pos = end + 1 // Skip null terminator

		default:
			return nil, fmt.Errorf("unknown field kind: %d at pos %d", kind, pos-1)
		}
	}

	return fields, nil
}

// EncodeKey encodes a prefixed composite key: a 4-byte page-store
// prefix (see pkg/catalog's PREFIX_INDEX/PREFIX_INDEX_COLUMN and
// pkg/heap's PREFIX_ROW) followed by the order-preserving field
// encoding.
func EncodeKey(prefix uint32, fields []Field) []byte {
	// 4-byte prefix
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], prefix)
	out := append([]byte{}, buf[:]...)

	// Order-preserving encoded fields
	out = append(out, EncodeFields(fields)...)
	return out
}

// EncodeKeyPartial encodes a partial key for range queries
// Missing columns are encoded as +/- infinity based on comparison
func EncodeKeyPartial(prefix uint32, fields []Field, cmp int) []byte {
	out := EncodeKey(prefix, fields)

	// CmpGT (>) and CmpLE (<=) need +infinity for missing columns
	// CmpLT (<) and CmpGE (>=) use -infinity (empty string)
	if cmp == CmpGT || cmp == CmpLE {
		out = append(out, 0xFF) // Unreachable +infinity
	}
	// else: -infinity is just the empty suffix

	return out
}

// Comparison operators, for EncodeKeyPartial's missing-column padding.
const (
	CmpGE = 1 // >=
	CmpGT = 2 // >
	CmpLT = 3 // <
	CmpLE = 4 // <=
)

// ExtractPrefix extracts the page-store prefix from an encoded key.
func ExtractPrefix(key []byte) uint32 {
	if len(key) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(key[:4])
}

// ExtractFields extracts and decodes the fields from an encoded key,
// skipping its 4-byte prefix.
func ExtractFields(key []byte) ([]Field, error) {
	if len(key) < 4 {
		return nil, fmt.Errorf("key too short")
	}
	return DecodeFields(key[4:])
}

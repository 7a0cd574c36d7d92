package codec

import "encoding/binary"

// Kind identifies the element type of a field.
type Kind uint8

const (
	// KindUint8 is an unsigned 8-bit integer.
	KindUint8 Kind = 0
	// KindInt8 is a signed 8-bit integer.
	KindInt8 Kind = 1
	// KindUint16 is an unsigned 16-bit integer.
	KindUint16 Kind = 2
	// KindInt16 is a signed 16-bit integer.
	KindInt16 Kind = 3
	// KindUint32 is an unsigned 32-bit integer.
	KindUint32 Kind = 4
	// KindInt32 is a signed 32-bit integer.
	KindInt32 Kind = 5
	// KindBytes is a fixed-length byte string of Field.Len bytes.
	KindBytes Kind = 6
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "u8"
	case KindInt8:
		return "i8"
	case KindUint16:
		return "u16"
	case KindInt16:
		return "i16"
	case KindUint32:
		return "u32"
	case KindInt32:
		return "i32"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// size returns the element width in bytes, or 0 for an invalid kind.
// KindBytes has no intrinsic width; the field's Len decides.
func (k Kind) size() int {
	switch k {
	case KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32:
		return 4
	default:
		return 0
	}
}

// Endian selects the byte order of a multi-byte field.
// The zero value is big-endian.
type Endian uint8

const (
	// EndianBig is network byte order.
	EndianBig Endian = 0
	// EndianLittle is little-endian byte order.
	EndianLittle Endian = 1
	// EndianNative is the host byte order.
	EndianNative Endian = 2
)

// String returns the endianness name.
func (e Endian) String() string {
	switch e {
	case EndianBig:
		return "be"
	case EndianLittle:
		return "le"
	case EndianNative:
		return "native"
	default:
		return "unknown"
	}
}

func (e Endian) order() binary.ByteOrder {
	switch e {
	case EndianLittle:
		return binary.LittleEndian
	case EndianNative:
		return binary.NativeEndian
	default:
		return binary.BigEndian
	}
}

// FromWireFunc converts a field's raw bytes into a semantic value during
// decoding. It receives the field's entire byte extent (all repeats) and
// must not perform I/O.
type FromWireFunc func(data []byte) (any, error)

// ToWireFunc converts a semantic value back into the field's raw bytes
// during encoding. The returned slice must match the field's wire width
// unless the field is greedy.
type ToWireFunc func(value any) ([]byte, error)

// ChecksumFunc computes a checksum over already-assembled report bytes.
// The result is packed into the checksum field's element kind.
type ChecksumFunc func(data []byte) uint64

// Range designates the byte range a checksum covers. End of 0 means
// "up to the checksum field's own offset".
type Range struct {
	Start int
	End   int
}

// Field describes one logical value in a binary report.
//
// Repeat greater than 1 decodes to an ordered slice of elements. Greedy
// fields ignore Repeat and consume every remaining byte; the effective
// element count is the remaining length divided by the element width, with
// any remainder left unconsumed.
type Field struct {
	// Name keys the decoded value in the Record. "_" marks padding and
	// "?" marks unexplored bytes; both are skipped on decode and written
	// as zeros on encode.
	Name string

	// Kind is the element type.
	Kind Kind

	// Len is the byte-string length for KindBytes fields.
	Len int

	// Endian is the byte order for multi-byte elements.
	Endian Endian

	// Repeat is the element count; 0 and 1 both mean a single element.
	Repeat int

	// Greedy makes this field consume all remaining bytes. A greedy
	// field must be the last in its schema.
	Greedy bool

	// FromWire, when set, replaces the built-in interpretation of the
	// field's bytes on decode.
	FromWire FromWireFunc

	// ToWire, when set, replaces the built-in packing of the field's
	// value on encode.
	ToWire ToWireFunc

	// Checksum, when set, is evaluated against the assembled buffer
	// after all fields are written and overwrites this field's bytes.
	// The covered range defaults to everything before the field.
	Checksum ChecksumFunc

	// ChecksumRange narrows the bytes covered by Checksum.
	ChecksumRange *Range
}

// pad reports whether the field is a padding or unexplored-bytes field.
func (f *Field) pad() bool {
	return f.Name == "_" || f.Name == "?"
}

// elemSize returns the width in bytes of one element of the field.
func (f *Field) elemSize() int {
	if f.Kind == KindBytes {
		return f.Len
	}
	return f.Kind.size()
}

// count returns the declared element count of a non-greedy field.
func (f *Field) count() int {
	if f.Repeat > 1 {
		return f.Repeat
	}
	return 1
}

// width returns the total wire width of a non-greedy field.
func (f *Field) width() int {
	return f.elemSize() * f.count()
}

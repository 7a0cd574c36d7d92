package codec

import (
	"errors"
	"fmt"
)

// ErrInvalidValue indicates a record value that does not fit its field's
// declared kind: wrong type, out of range, or missing entirely.
var ErrInvalidValue = errors.New("invalid value")

// Encode assembles the record into bytes in schema order. After all fields
// are written, checksum fields are evaluated over their covered range of
// the assembled buffer and overwritten in place; any checksum value held
// by the record is ignored. The result is zero-padded to the schema's
// Padded length, if one was set.
//
// Greedy fields encode however many elements their record value holds.
func (s *Schema) Encode(rec *Record) ([]byte, error) {
	buf := make([]byte, 0, s.minSize)

	type sumSlot struct {
		field  *Field
		offset int
	}
	var sums []sumSlot

	for i := range s.fields {
		f := &s.fields[i]

		if f.pad() {
			if !f.Greedy {
				buf = append(buf, make([]byte, f.width())...)
			}
			continue
		}
		if f.Checksum != nil {
			sums = append(sums, sumSlot{field: f, offset: len(buf)})
			buf = append(buf, make([]byte, f.width())...)
			continue
		}

		val, ok := rec.Get(f.Name)
		if !ok {
			return nil, fmt.Errorf("encoding field %q: %w: missing from record", f.Name, ErrInvalidValue)
		}

		if f.ToWire != nil {
			b, err := f.ToWire(val)
			if err != nil {
				return nil, fmt.Errorf("encoding field %q: %w: %v", f.Name, ErrInvalidValue, err)
			}
			if !f.Greedy && len(b) != f.width() {
				return nil, fmt.Errorf("encoding field %q: %w: converter returned %d bytes, want %d",
					f.Name, ErrInvalidValue, len(b), f.width())
			}
			buf = append(buf, b...)
			continue
		}

		b, err := packField(f, val)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}

	for _, slot := range sums {
		f := slot.field
		from, to := 0, slot.offset
		if r := f.ChecksumRange; r != nil {
			from = r.Start
			if r.End != 0 {
				to = r.End
			}
		}
		if from > len(buf) || to > len(buf) || from > to {
			return nil, fmt.Errorf("encoding field %q: %w: checksum range [%d:%d] outside %d assembled bytes",
				f.Name, ErrInvalidValue, from, to, len(buf))
		}
		packInto(buf[slot.offset:], f.Kind, f.Endian, f.Checksum(buf[from:to]))
	}

	if s.padTo > len(buf) {
		buf = append(buf, make([]byte, s.padTo-len(buf))...)
	}
	return buf, nil
}

func packField(f *Field, val any) ([]byte, error) {
	if f.Greedy || f.count() > 1 {
		elems, ok := toSlice(val)
		if !ok {
			return nil, fmt.Errorf("encoding field %q: %w: want a slice, got %T", f.Name, ErrInvalidValue, val)
		}
		if !f.Greedy && len(elems) != f.count() {
			return nil, fmt.Errorf("encoding field %q: %w: %d elements, want %d",
				f.Name, ErrInvalidValue, len(elems), f.count())
		}
		out := make([]byte, 0, len(elems)*f.elemSize())
		for i, e := range elems {
			b, err := packScalar(f, e)
			if err != nil {
				return nil, fmt.Errorf("encoding field %q element %d: %w", f.Name, i, err)
			}
			out = append(out, b...)
		}
		return out, nil
	}
	b, err := packScalar(f, val)
	if err != nil {
		return nil, fmt.Errorf("encoding field %q: %w", f.Name, err)
	}
	return b, nil
}

func packScalar(f *Field, val any) ([]byte, error) {
	if f.Kind == KindBytes {
		var src []byte
		switch v := val.(type) {
		case []byte:
			src = v
		case string:
			src = []byte(v)
		default:
			return nil, fmt.Errorf("%w: want bytes, got %T", ErrInvalidValue, val)
		}
		if len(src) > f.Len {
			return nil, fmt.Errorf("%w: %d bytes exceed field length %d", ErrInvalidValue, len(src), f.Len)
		}
		b := make([]byte, f.Len)
		copy(b, src)
		return b, nil
	}

	b := make([]byte, f.Kind.size())
	switch f.Kind {
	case KindInt8, KindInt16, KindInt32:
		n, ok := toInt64(val)
		if !ok {
			return nil, fmt.Errorf("%w: want an integer, got %T", ErrInvalidValue, val)
		}
		min, max := signedRange(f.Kind)
		if n < min || n > max {
			return nil, fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidValue, n, min, max)
		}
		packInto(b, f.Kind, f.Endian, uint64(n))
	default:
		n, ok := toUint64(val)
		if !ok {
			return nil, fmt.Errorf("%w: want an unsigned integer, got %T (%v)", ErrInvalidValue, val, val)
		}
		if max := unsignedMax(f.Kind); n > max {
			return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidValue, n, max)
		}
		packInto(b, f.Kind, f.Endian, n)
	}
	return b, nil
}

// packInto writes the low bytes of v into b according to the kind's width.
// Checksum results wider than the field are truncated, matching the usual
// masked-sum convention of vendor protocols.
func packInto(b []byte, k Kind, e Endian, v uint64) {
	order := e.order()
	switch k {
	case KindUint8, KindInt8:
		b[0] = byte(v)
	case KindUint16, KindInt16:
		order.PutUint16(b, uint16(v))
	case KindUint32, KindInt32:
		order.PutUint32(b, uint32(v))
	}
}

func signedRange(k Kind) (int64, int64) {
	switch k {
	case KindInt8:
		return -1 << 7, 1<<7 - 1
	case KindInt16:
		return -1 << 15, 1<<15 - 1
	default:
		return -1 << 31, 1<<31 - 1
	}
}

func unsignedMax(k Kind) uint64 {
	switch k {
	case KindUint8:
		return 1<<8 - 1
	case KindUint16:
		return 1<<16 - 1
	default:
		return 1<<32 - 1
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		return int64(n), true
	case uint64:
		if n > 1<<63-1 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int8:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int16:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int32:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []uint8:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []uint16:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []uint32:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []uint64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int8:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int16:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int32:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case [][]byte:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData indicates the buffer ended before a field's
	// declared width was satisfied.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidFieldValue indicates a converter rejected the field's
	// bytes, e.g. an invalid enumerant.
	ErrInvalidFieldValue = errors.New("invalid field value")
)

// Decode applies each field in order to data and returns the decoded
// record. On error no record is returned; decoding never yields a
// partially-populated result.
//
// A greedy field consumes as many whole elements as the remaining bytes
// allow; a trailing remainder smaller than one element stays unconsumed
// and is not reflected in Record.Size.
func (s *Schema) Decode(data []byte) (*Record, error) {
	rec := newRecord(len(s.fields))
	offset := 0
	for i := range s.fields {
		f := &s.fields[i]
		elem := f.elemSize()
		count := f.count()
		if f.Greedy {
			count = (len(data) - offset) / elem
		}
		extent := elem * count
		if offset+extent > len(data) {
			return nil, fmt.Errorf("decoding field %q at offset %d: %w: need %d more bytes",
				f.Name, offset, ErrInsufficientData, offset+extent-len(data))
		}
		raw := data[offset : offset+extent]
		offset += extent

		if f.pad() {
			continue
		}

		var val any
		if f.FromWire != nil {
			v, err := f.FromWire(raw)
			if err != nil {
				return nil, fmt.Errorf("decoding field %q: %w: %v", f.Name, ErrInvalidFieldValue, err)
			}
			val = v
		} else if count == 1 && !f.Greedy {
			val = decodeScalar(f, raw)
		} else {
			val = decodeSlice(f, raw, count)
		}
		rec.put(f.Name, val)
	}
	rec.size = offset
	return rec, nil
}

func decodeScalar(f *Field, raw []byte) any {
	order := f.Endian.order()
	switch f.Kind {
	case KindUint8:
		return raw[0]
	case KindInt8:
		return int8(raw[0])
	case KindUint16:
		return order.Uint16(raw)
	case KindInt16:
		return int16(order.Uint16(raw))
	case KindUint32:
		return order.Uint32(raw)
	case KindInt32:
		return int32(order.Uint32(raw))
	default:
		b := make([]byte, len(raw))
		copy(b, raw)
		return b
	}
}

// decodeSlice interprets raw as count consecutive elements. Greedy fields
// and fields with Repeat > 1 always decode to a slice, even for a single
// element, so consumers see a stable type.
func decodeSlice(f *Field, raw []byte, count int) any {
	elem := f.elemSize()
	order := f.Endian.order()
	switch f.Kind {
	case KindUint8:
		out := make([]uint8, count)
		copy(out, raw)
		return out
	case KindInt8:
		out := make([]int8, count)
		for i := range out {
			out[i] = int8(raw[i])
		}
		return out
	case KindUint16:
		out := make([]uint16, count)
		for i := range out {
			out[i] = order.Uint16(raw[i*elem:])
		}
		return out
	case KindInt16:
		out := make([]int16, count)
		for i := range out {
			out[i] = int16(order.Uint16(raw[i*elem:]))
		}
		return out
	case KindUint32:
		out := make([]uint32, count)
		for i := range out {
			out[i] = order.Uint32(raw[i*elem:])
		}
		return out
	case KindInt32:
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(order.Uint32(raw[i*elem:]))
		}
		return out
	default:
		out := make([][]byte, count)
		for i := range out {
			b := make([]byte, elem)
			copy(b, raw[i*elem:])
			out[i] = b
		}
		return out
	}
}

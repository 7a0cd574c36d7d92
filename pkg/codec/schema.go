package codec

import (
	"errors"
	"fmt"
)

// ErrSchemaViolation indicates a schema that cannot describe any valid
// report: misplaced greedy fields, invalid kinds or checksum placement.
var ErrSchemaViolation = errors.New("schema violation")

// Schema is an ordered list of field descriptors describing one binary
// report layout. A Schema is immutable after construction and safe for
// concurrent use.
type Schema struct {
	fields  []Field
	minSize int
	padTo   int
}

// NewSchema validates the fields and returns a Schema. The returned error
// wraps ErrSchemaViolation and names the offending field.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{fields: make([]Field, len(fields))}
	copy(s.fields, fields)

	seen := make(map[string]struct{}, len(fields))
	for i := range s.fields {
		f := &s.fields[i]
		if err := validateField(f); err != nil {
			return nil, err
		}
		if f.Greedy && i != len(s.fields)-1 {
			return nil, fmt.Errorf("field %q: %w: greedy field must be last", f.Name, ErrSchemaViolation)
		}
		if !f.pad() {
			if _, dup := seen[f.Name]; dup {
				return nil, fmt.Errorf("field %q: %w: duplicate name", f.Name, ErrSchemaViolation)
			}
			seen[f.Name] = struct{}{}
		}
		if !f.Greedy {
			s.minSize += f.width()
		}
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is intended for
// package-scope schema definitions in driver code.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(fmt.Sprintf("codec: invalid schema: %v", err))
	}
	return s
}

func validateField(f *Field) error {
	if f.Name == "" {
		return fmt.Errorf("%w: field with empty name", ErrSchemaViolation)
	}
	if f.Kind == KindBytes {
		if f.Len <= 0 {
			return fmt.Errorf("field %q: %w: byte-string field needs a positive Len", f.Name, ErrSchemaViolation)
		}
	} else {
		if f.Kind.size() == 0 {
			return fmt.Errorf("field %q: %w: unknown kind %d", f.Name, ErrSchemaViolation, f.Kind)
		}
		if f.Len != 0 {
			return fmt.Errorf("field %q: %w: Len is only valid for byte-string fields", f.Name, ErrSchemaViolation)
		}
	}
	if f.Repeat < 0 {
		return fmt.Errorf("field %q: %w: negative repeat", f.Name, ErrSchemaViolation)
	}
	if f.Greedy && f.Repeat > 1 {
		return fmt.Errorf("field %q: %w: greedy and repeat are mutually exclusive", f.Name, ErrSchemaViolation)
	}
	if f.Checksum != nil {
		if f.Greedy || f.Repeat > 1 {
			return fmt.Errorf("field %q: %w: checksum field must be a single element", f.Name, ErrSchemaViolation)
		}
		if f.Kind == KindBytes {
			return fmt.Errorf("field %q: %w: checksum field must be an integer kind", f.Name, ErrSchemaViolation)
		}
		if f.ToWire != nil {
			return fmt.Errorf("field %q: %w: checksum and ToWire are mutually exclusive", f.Name, ErrSchemaViolation)
		}
		if r := f.ChecksumRange; r != nil && (r.Start < 0 || (r.End != 0 && r.End < r.Start)) {
			return fmt.Errorf("field %q: %w: invalid checksum range", f.Name, ErrSchemaViolation)
		}
	}
	return nil
}

// Padded returns a copy of the schema whose encoded output is zero-padded
// to at least n bytes. Decoding is unaffected.
func (s *Schema) Padded(n int) *Schema {
	c := *s
	c.padTo = n
	return &c
}

// MinSize returns the fixed minimum byte width of the schema, excluding
// any greedy field.
func (s *Schema) MinSize() int {
	return s.minSize
}

// Len returns the number of fields in the schema.
func (s *Schema) Len() int {
	return len(s.fields)
}

package codec

// Record is an ordered mapping from field name to decoded value, plus the
// total byte count a decode consumed. Records are also the input to
// Schema.Encode; drivers build them with NewRecord and Set.
type Record struct {
	names  []string
	values map[string]any
	size   int
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return newRecord(8)
}

func newRecord(capacity int) *Record {
	return &Record{
		names:  make([]string, 0, capacity),
		values: make(map[string]any, capacity),
	}
}

func (r *Record) put(name string, v any) {
	if _, exists := r.values[name]; !exists {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// Set stores a value under name, preserving first-insertion order.
func (r *Record) Set(name string, v any) {
	r.put(name, v)
}

// Get returns the raw value stored under name.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Uint returns the value under name widened to uint64. It reports false
// for missing names and non-integer or negative values.
func (r *Record) Uint(name string) (uint64, bool) {
	v, ok := r.values[name]
	if !ok {
		return 0, false
	}
	return toUint64(v)
}

// Int returns the value under name widened to int64.
func (r *Record) Int(name string) (int64, bool) {
	v, ok := r.values[name]
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

// Bytes returns the byte-string value under name.
func (r *Record) Bytes(name string) ([]byte, bool) {
	v, ok := r.values[name]
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// Uints returns the repeated value under name with every element widened
// to uint64.
func (r *Record) Uints(name string) ([]uint64, bool) {
	v, ok := r.values[name]
	if !ok {
		return nil, false
	}
	elems, ok := toSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]uint64, len(elems))
	for i, e := range elems {
		n, ok := toUint64(e)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// Ints returns the repeated value under name with every element widened
// to int64.
func (r *Record) Ints(name string) ([]int64, bool) {
	v, ok := r.values[name]
	if !ok {
		return nil, false
	}
	elems, ok := toSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]int64, len(elems))
	for i, e := range elems {
		n, ok := toInt64(e)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// Names returns the field names in insertion order.
func (r *Record) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Size returns the number of bytes consumed to produce this record.
// For hand-built records it is zero.
func (r *Record) Size() int {
	return r.size
}

package diag

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// recordingVersion is the format version Recorder writes and
// ParseRecording accepts.
const recordingVersion = 1

// Recording is a parsed device recording. The attribute header carries
// the device identity; Data holds the traffic in capture order.
type Recording struct {
	Logger     string               `yaml:"logger"`
	Version    int                  `yaml:"version"`
	Attributes []RecordingAttribute `yaml:"attributes"`
	Data       []RecordingEntry     `yaml:"data"`
}

// RecordingAttribute is one typed entry of the attribute header.
type RecordingAttribute struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// RecordingEntry is one traffic entry: a report crossing the device
// node (type "fd") or a named ioctl exchange (type "ioctl"). An ioctl
// entry without Rx is a request that produced no reply.
type RecordingEntry struct {
	Type string
	Name string
	Tx   []byte
	Rx   []byte
}

// UnmarshalYAML decodes an entry, converting the decimal byte lists.
func (e *RecordingEntry) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Type string `yaml:"type"`
		Name string `yaml:"name"`
		Tx   []int  `yaml:"tx"`
		Rx   []int  `yaml:"rx"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	tx, err := intsToBytes(raw.Tx)
	if err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	rx, err := intsToBytes(raw.Rx)
	if err != nil {
		return fmt.Errorf("rx: %w", err)
	}
	*e = RecordingEntry{Type: raw.Type, Name: raw.Name, Tx: tx, Rx: rx}
	return nil
}

func intsToBytes(values []int) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	buf := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 0xff {
			return nil, fmt.Errorf("value %d at index %d is not a byte", v, i)
		}
		buf[i] = byte(v)
	}
	return buf, nil
}

// StringAttr returns the named str attribute.
func (r *Recording) StringAttr(name string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Name != name || a.Type != "str" {
			continue
		}
		if s, ok := a.Value.(string); ok {
			return s, true
		}
		return fmt.Sprint(a.Value), true
	}
	return "", false
}

// IntAttr returns the named int attribute.
func (r *Recording) IntAttr(name string) (int, bool) {
	for _, a := range r.Attributes {
		if a.Name == name && a.Type == "int" {
			if n, ok := a.Value.(int); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// BytesAttr returns the named bytes attribute.
func (r *Recording) BytesAttr(name string) ([]byte, bool) {
	for _, a := range r.Attributes {
		if a.Name != name || a.Type != "bytes" {
			continue
		}
		list, ok := a.Value.([]any)
		if !ok {
			return nil, false
		}
		buf := make([]byte, len(list))
		for i, v := range list {
			n, ok := v.(int)
			if !ok || n < 0 || n > 0xff {
				return nil, false
			}
			buf[i] = byte(n)
		}
		return buf, true
	}
	return nil, false
}

// ParseRecording parses the YAML format Recorder writes.
func ParseRecording(data []byte) (*Recording, error) {
	var rec Recording
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing recording: %w", err)
	}
	if rec.Version != recordingVersion {
		return nil, fmt.Errorf("unsupported recording version %d", rec.Version)
	}
	return &rec, nil
}

// LoadRecording reads and parses a recording file.
func LoadRecording(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec, err := ParseRecording(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

package dump

import (
	"bytes"
	"encoding/json"
)

// Outcome holds the key/value lines of an unwinding_result record,
// preserving dump order for rendering.
type Outcome struct {
	keys   []string
	values map[string]string
}

func NewOutcome() *Outcome {
	return &Outcome{
		values: make(map[string]string),
	}
}

func (o *Outcome) Set(key, value string) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *Outcome) Get(key string) (string, bool) {
	value, ok := o.values[key]

	return value, ok
}

// Keys returns the keys in dump order.
func (o *Outcome) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)

	return keys
}

// MarshalJSON encodes the outcome as an object with keys in dump order.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(o.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Entry is a single key/value pair of an Ordered mapping.
type Entry[V any] struct {
	Key   string
	Value V
}

// Ordered is a mapping that remembers the order its keys arrived in.
// "First" always means first in the source payload.
type Ordered[V any] []Entry[V]

// Get returns the value stored under key.
func (o Ordered[V]) Get(key string) (V, bool) {
	for _, e := range o {
		if e.Key == key {
			return e.Value, true
		}
	}
	var zero V
	return zero, false
}

// Set stores value under key. A key that is already present keeps its
// position and takes the new value, matching how JSON objects with
// duplicate keys are usually read.
func (o *Ordered[V]) Set(key string, value V) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Entry[V]{Key: key, Value: value})
}

// Has reports whether key is present.
func (o Ordered[V]) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// First returns the first entry, if any.
func (o Ordered[V]) First() (Entry[V], bool) {
	if len(o) == 0 {
		return Entry[V]{}, false
	}
	return o[0], true
}

// Keys returns the keys in stored order.
func (o Ordered[V]) Keys() []string {
	keys := make([]string, 0, len(o))
	for _, e := range o {
		keys = append(keys, e.Key)
	}
	return keys
}

// Len returns the number of entries.
func (o Ordered[V]) Len() int {
	return len(o)
}

// MarshalJSON writes the mapping as a JSON object, keys in stored order.
func (o Ordered[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal key %q", e.Key)
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal value for %q", e.Key)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Object is a branch value in the tree: an ordered collection of child
// key/value pairs. Key order is insertion order, which for pushed children
// means arrival order. Child values are either scalars or nested *Object
// branches.
type Object struct {
	keys []string
	vals map[string]any
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{vals: make(map[string]any)}
}

// Set inserts or replaces a child value. A replaced key keeps its position.
func (o *Object) Set(key string, v any) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Delete removes a child value. Missing keys are a no-op.
func (o *Object) Delete(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Get returns the child value for key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Keys returns the child keys in insertion order. The returned slice is a copy.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of children.
func (o *Object) Len() int {
	return len(o.keys)
}

// Clone returns a deep copy of the Object.
func (o *Object) Clone() *Object {
	c := NewObject()
	for _, k := range o.keys {
		if child, ok := o.vals[k].(*Object); ok {
			c.Set(k, child.Clone())
		} else {
			c.Set(k, o.vals[k])
		}
	}
	return c
}

// MarshalJSON encodes the Object as a JSON object in key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Normalize converts an arbitrary Go value (struct, map, scalar) into the
// tree's value model: scalars stay scalars, everything object-shaped becomes
// an *Object. Field order inside a document is not meaningful, so map keys
// are normalized in sorted order for determinism.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *Object:
		return t.Clone(), nil
	case string, bool, float64, int, int64:
		return t, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported tree value %T: %w", v, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return fromDecoded(decoded), nil
}

func fromDecoded(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := NewObject()
	for _, k := range keys {
		obj.Set(k, fromDecoded(m[k]))
	}
	return obj
}

// Decode unmarshals a snapshot value into out via its JSON representation.
// It is the bridge between the untyped tree and typed domain records.
func Decode(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

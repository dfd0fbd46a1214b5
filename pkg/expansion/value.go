package expansion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind discriminates the three node shapes of a configuration tree.
type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// Value is one node of a configuration tree: a scalar leaf (string, number,
// bool or null), an ordered sequence, or a mapping whose key order is the
// order the keys first appeared in the input. Classification of varying
// versus static leaves is done by matching on Kind, never by reflecting on
// raw interface values.
type Value struct {
	kind   Kind
	scalar interface{}
	seq    []Value
	keys   []string
	fields map[string]Value
}

func Scalar(v interface{}) Value {
	return Value{kind: KindScalar, scalar: v}
}

func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, seq: items}
}

func NewMapping() Value {
	return Value{kind: KindMapping, fields: map[string]Value{}}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) ScalarValue() interface{} { return v.scalar }

func (v Value) Items() []Value { return v.seq }

// Keys returns the mapping keys in insertion order.
func (v Value) Keys() []string { return v.keys }

func (v Value) Get(key string) (Value, bool) {
	child, ok := v.fields[key]
	return child, ok
}

// Set inserts or replaces a mapping entry, preserving the position of an
// existing key.
func (v *Value) Set(key string, child Value) {
	if v.fields == nil {
		v.fields = map[string]Value{}
	}
	if _, exists := v.fields[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.fields[key] = child
}

// Delete removes a mapping entry and returns whether it was present.
func (v *Value) Delete(key string) bool {
	if _, ok := v.fields[key]; !ok {
		return false
	}
	delete(v.fields, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		items := make([]Value, len(v.seq))
		for i, item := range v.seq {
			items[i] = item.Clone()
		}
		return Value{kind: KindSequence, seq: items}
	case KindMapping:
		out := NewMapping()
		for _, k := range v.keys {
			out.Set(k, v.fields[k].Clone())
		}
		return out
	default:
		return v
	}
}

// Interface converts the tree back to plain Go values suitable for JSON
// encoding or storage as a JSONB column.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindSequence:
		items := make([]interface{}, len(v.seq))
		for i, item := range v.seq {
			items[i] = item.Interface()
		}
		return items
	case KindMapping:
		out := make(map[string]interface{}, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.fields[k].Interface()
		}
		return out
	default:
		return v.scalar
	}
}

// Map is shorthand for Interface on a mapping root.
func (v Value) Map() map[string]interface{} {
	m, _ := v.Interface().(map[string]interface{})
	return m
}

// DecodeConfig parses a JSON object into a Value, preserving the order of
// object keys. Numbers come back as int64 when integral, float64 otherwise.
func DecodeConfig(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if v.kind != KindMapping {
		return Value{}, fmt.Errorf("configuration root must be an object")
	}
	if dec.More() {
		return Value{}, fmt.Errorf("trailing data after configuration object")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewMapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				child, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, child)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return obj, nil
		case '[':
			var items []Value
			for dec.More() {
				child, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, child)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Value{kind: KindSequence, seq: items}, nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Scalar(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q", t.String())
		}
		return Scalar(f), nil
	case string, bool, nil:
		return Scalar(t), nil
	default:
		return Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

package types

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Node.
type Kind int

// Node variants.
const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindSequence
	KindMapping
	KindFunc
)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindNumber:   "number",
	KindBool:     "boolean",
	KindSequence: "sequence",
	KindMapping:  "mapping",
	KindFunc:     "function",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ListSeparator joins the parts of a list value in authoring formats.
const ListSeparator = "||"

// Node is the common value produced by every parser and stored in the
// registry. The set of implementations is closed: String, Number, Bool,
// Sequence, *Mapping and Func.
type Node interface {
	Kind() Kind
	String() string
	isNode()
}

// String is a text scalar.
type String string

// Number is a numeric scalar.
type Number float64

// Bool is a boolean scalar.
type Bool bool

// Sequence is an ordered list of nodes.
type Sequence []Node

// Function is a callable contributed by a module.
type Function func(ctx context.Context, args ...Node) (Node, error)

// Func wraps a Function so it can live inside a tree.
type Func struct {
	Name string
	Fn   Function
}

func (String) Kind() Kind   { return KindString }
func (Number) Kind() Kind   { return KindNumber }
func (Bool) Kind() Kind     { return KindBool }
func (Sequence) Kind() Kind { return KindSequence }
func (*Mapping) Kind() Kind { return KindMapping }
func (Func) Kind() Kind     { return KindFunc }

func (String) isNode()   {}
func (Number) isNode()   {}
func (Bool) isNode()     {}
func (Sequence) isNode() {}
func (*Mapping) isNode() {}
func (Func) isNode()     {}

func (s String) String() string { return string(s) }

// String renders integral values without an exponent or fraction so that
// the rendered text coerces back to the same number.
func (n Number) String() string {
	f := float64(n)
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// String joins the elements with ListSeparator, the way list values are
// written in the authoring formats.
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, n := range s {
		if n == nil {
			continue
		}
		parts[i] = n.String()
	}
	return strings.Join(parts, ListSeparator)
}

func (f Func) String() string {
	if f.Name == "" {
		return "func"
	}
	return "func " + f.Name
}

// Call invokes the wrapped function. A nil function returns ErrInvalidData.
func (f Func) Call(ctx context.Context, args ...Node) (Node, error) {
	if f.Fn == nil {
		return nil, fmt.Errorf("call %s: %w", f, ErrInvalidData)
	}
	return f.Fn(ctx, args...)
}

// Mapping is an insertion-ordered string-keyed map of nodes. Keys are unique.
// The zero value is not usable; call NewMapping.
type Mapping struct {
	keys   []string
	values map[string]Node
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]Node)}
}

// MappingOf builds a mapping from alternating key/value pairs. It panics on
// an odd argument count or a non-string key; it is meant for literals.
func MappingOf(kv ...any) *Mapping {
	if len(kv)%2 != 0 {
		panic("types.MappingOf: odd number of arguments")
	}
	m := NewMapping()
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("types.MappingOf: key %v is not a string", kv[i]))
		}
		m.Set(k, MustFromAny(kv[i+1]))
	}
	return m
}

func (m *Mapping) String() string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (Node, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value under key. A new key is appended to the key order; an
// existing key keeps its position.
func (m *Mapping) Set(key string, value Node) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key if present.
func (m *Mapping) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in key order until fn returns false.
func (m *Mapping) Range(fn func(key string, value Node) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// MarshalJSON writes the mapping as a JSON object in key order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalNode(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	n, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	src, ok := n.(*Mapping)
	if !ok {
		return fmt.Errorf("decode mapping: got %s: %w", n.Kind(), ErrTypeMismatch)
	}
	*m = *src
	return nil
}

// MarshalJSON writes the sequence as a JSON array.
func (s Sequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, n := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalNode(n)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON writes functions as their display name; they do not round-trip.
func (f Func) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// MarshalNode encodes any node as JSON. A nil node encodes as null.
func MarshalNode(n Node) ([]byte, error) {
	switch v := n.(type) {
	case nil:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(v))
	case Number:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("marshal number %v: %w", f, ErrInvalidData)
		}
		return []byte(v.String()), nil
	case Bool:
		return json.Marshal(bool(v))
	case Sequence:
		return v.MarshalJSON()
	case *Mapping:
		return v.MarshalJSON()
	case Func:
		return v.MarshalJSON()
	default:
		return nil, fmt.Errorf("marshal %T: %w", n, ErrInvalidData)
	}
}

// DecodeJSON parses JSON text into a node, preserving object key order.
func DecodeJSON(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return n, nil
}

func decodeValue(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewMapping()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v: %w", kt, ErrInvalidData)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				m.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			seq := Sequence{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				seq = append(seq, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return seq, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v: %w", t, ErrInvalidData)
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case bool:
		return Bool(t), nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected token %v: %w", tok, ErrInvalidData)
}

// FromAny converts plain Go values (as produced by encoding/json or
// yaml.v3 decoding) into nodes. Unordered map keys are sorted.
func FromAny(v any) (Node, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Node:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case uint64:
		return Number(t), nil
	case float32:
		return Number(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("convert number %q: %w", t, ErrInvalidData)
		}
		return Number(f), nil
	case Function:
		return Func{Fn: t}, nil
	case []any:
		seq := make(Sequence, 0, len(t))
		for _, e := range t {
			n, err := FromAny(e)
			if err != nil {
				return nil, err
			}
			seq = append(seq, n)
		}
		return seq, nil
	case []string:
		seq := make(Sequence, 0, len(t))
		for _, e := range t {
			seq = append(seq, String(e))
		}
		return seq, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMapping()
		for _, k := range keys {
			n, err := FromAny(t[k])
			if err != nil {
				return nil, err
			}
			m.Set(k, n)
		}
		return m, nil
	}
	return nil, fmt.Errorf("convert %T: %w", v, ErrInvalidData)
}

// MustFromAny is FromAny for literals known to be convertible.
func MustFromAny(v any) Node {
	n, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return n
}

// ToAny converts a node into plain Go values: map[string]any, []any,
// string, float64, bool or Function.
func ToAny(n Node) any {
	switch v := n.(type) {
	case String:
		return string(v)
	case Number:
		return float64(v)
	case Bool:
		return bool(v)
	case Sequence:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = ToAny(e)
		}
		return out
	case *Mapping:
		out := make(map[string]any, v.Len())
		v.Range(func(k string, e Node) bool {
			out[k] = ToAny(e)
			return true
		})
		return out
	case Func:
		return v.Fn
	}
	return nil
}

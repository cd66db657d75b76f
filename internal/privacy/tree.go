package privacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// MaxDepth bounds nesting. Deeper inputs, including Go maps that contain themselves,
// are rejected with ErrTooDeep.
const MaxDepth = 64

// ErrTooDeep is returned when a structure exceeds MaxDepth
var ErrTooDeep = errors.New("structure exceeds maximum nesting depth")

// Node is a closed recursive variant: String | Scalar | Mapping | Sequence.
type Node interface {
	isNode()
}

// String is a text leaf, the only leaf kind that text redaction touches.
type String string

// Scalar is any non-text leaf (number, bool, null). It passes through unchanged.
type Scalar struct {
	Value any
}

// Mapping is an object with string keys.
type Mapping map[string]Node

// Sequence is an ordered list.
type Sequence []Node

func (String) isNode()   {}
func (Scalar) isNode()   {}
func (Mapping) isNode()  {}
func (Sequence) isNode() {}

// FromJSON decodes a JSON document into a tree. Numbers keep their original text.
func FromJSON(data []byte) (Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Mapping{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return FromValue(v)
}

// FromValue converts decoded JSON-like Go values into a tree
func FromValue(v any) (Node, error) {
	return fromValue(v, 0)
}

func fromValue(v any, depth int) (Node, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}

	switch t := v.(type) {
	case Node:
		return t, nil
	case string:
		return String(t), nil
	case map[string]any:
		m := make(Mapping, len(t))
		for k, child := range t {
			n, err := fromValue(child, depth+1)
			if err != nil {
				return nil, err
			}
			m[k] = n
		}
		return m, nil
	case map[string]string:
		m := make(Mapping, len(t))
		for k, s := range t {
			m[k] = String(s)
		}
		return m, nil
	case []any:
		seq := make(Sequence, len(t))
		for i, child := range t {
			n, err := fromValue(child, depth+1)
			if err != nil {
				return nil, err
			}
			seq[i] = n
		}
		return seq, nil
	case []map[string]any:
		seq := make(Sequence, len(t))
		for i, child := range t {
			n, err := fromValue(child, depth+1)
			if err != nil {
				return nil, err
			}
			seq[i] = n
		}
		return seq, nil
	case []string:
		seq := make(Sequence, len(t))
		for i, s := range t {
			seq[i] = String(s)
		}
		return seq, nil
	default:
		return Scalar{Value: v}, nil
	}
}

// ToValue converts a tree back into plain Go values suitable for encoding/json
func ToValue(n Node) any {
	switch t := n.(type) {
	case String:
		return string(t)
	case Scalar:
		return t.Value
	case Mapping:
		m := make(map[string]any, len(t))
		for k, child := range t {
			m[k] = ToValue(child)
		}
		return m
	case Sequence:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = ToValue(child)
		}
		return out
	default:
		return nil
	}
}

// MarshalNode encodes a tree as JSON
func MarshalNode(n Node) ([]byte, error) {
	return json.Marshal(ToValue(n))
}

// Keys returns the keys of a mapping in sorted order
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Rewriter customises a depth-first rewrite of a tree.
type Rewriter interface {
	// Entry is offered every mapping entry before descending into it. When handled is
	// true the replacement is used as-is and the value is not visited.
	Entry(key string, value Node) (replacement Node, handled bool)

	// Leaf rewrites String and Scalar nodes.
	Leaf(value Node) Node
}

// Rewrite returns a new tree; the input is not modified.
func Rewrite(n Node, r Rewriter) Node {
	switch t := n.(type) {
	case Mapping:
		out := make(Mapping, len(t))
		for k, child := range t {
			if replacement, handled := r.Entry(k, child); handled {
				out[k] = replacement
				continue
			}
			out[k] = Rewrite(child, r)
		}
		return out
	case Sequence:
		out := make(Sequence, len(t))
		for i, child := range t {
			out[i] = Rewrite(child, r)
		}
		return out
	case nil:
		return nil
	default:
		return r.Leaf(t)
	}
}

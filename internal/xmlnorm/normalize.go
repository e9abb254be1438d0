package xmlnorm

import (
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/era/internal/scalar"
	"github.com/mesh-intelligence/era/pkg/types"
)

// RootLabel is the semantic label used at the top of the tree.
const RootLabel = "root"

// Normalize converts a raw element tree into the registry shape. Keys are
// rewritten in this order of precedence:
//
//  1. {li: [...]} becomes the converted sequence.
//  2. {li: {...}} becomes a one-element sequence holding the converted
//     mapping; a text-only li keeps its value under the enclosing label.
//  3. #comment entries are dropped.
//  4. sequences are converted element-wise; a bare li key is renamed to the
//     enclosing label.
//  5. {#text: "v"} with no siblings becomes the coerced scalar.
//  6. #text with siblings is stored under the enclosing label.
//  7. other mappings are converted recursively.
//  8. other scalars are coerced.
func Normalize(tree *types.Mapping) *types.Mapping {
	return convertMapping(tree, RootLabel)
}

// Load parses and normalizes an XML document.
func Load(r io.Reader, arrayTags ...string) (*types.Mapping, error) {
	raw, err := Parse(r, arrayTags...)
	if err != nil {
		return nil, err
	}
	return Normalize(raw), nil
}

// LoadString is Load over a string.
func LoadString(text string, arrayTags ...string) (*types.Mapping, error) {
	m, err := Load(strings.NewReader(text), arrayTags...)
	if err != nil {
		return nil, fmt.Errorf("load xml: %w", err)
	}
	return m, nil
}

func convertMapping(obj *types.Mapping, label string) *types.Mapping {
	out := types.NewMapping()
	obj.Range(func(key string, v types.Node) bool {
		if li, ok := onlyItem(v); ok {
			if seq, isSeq := li.(types.Sequence); isSeq {
				out.Set(key, convertSequence(seq, key))
			} else if m, isMap := li.(*types.Mapping); isMap {
				out.Set(key, types.Sequence{convertMapping(m, key)})
			} else {
				out.Set(key, types.Sequence{convertItem(li, key)})
			}
			return true
		}
		if key == CommentKey {
			return true
		}
		if seq, ok := v.(types.Sequence); ok {
			target := key
			if key == ItemKey {
				target = label
			}
			out.Set(target, convertSequence(seq, target))
			return true
		}
		if text, ok := onlyText(v); ok {
			out.Set(key, scalar.Coerce(text))
			return true
		}
		if key == TextKey {
			out.Set(label, coerce(v))
			return true
		}
		if m, ok := v.(*types.Mapping); ok {
			out.Set(key, convertMapping(m, key))
			return true
		}
		out.Set(key, coerce(v))
		return true
	})
	return out
}

func convertSequence(seq types.Sequence, label string) types.Sequence {
	out := make(types.Sequence, 0, len(seq))
	for _, item := range seq {
		out = append(out, convertItem(item, label))
	}
	return out
}

func convertItem(item types.Node, label string) types.Node {
	if text, ok := onlyText(item); ok {
		return scalar.Coerce(text)
	}
	switch v := item.(type) {
	case types.Sequence:
		return convertSequence(v, label)
	case *types.Mapping:
		return convertMapping(v, label)
	}
	return coerce(item)
}

// onlyItem reports whether v is a mapping whose single key is li.
func onlyItem(v types.Node) (types.Node, bool) {
	m, ok := v.(*types.Mapping)
	if !ok || m.Len() != 1 {
		return nil, false
	}
	li, ok := m.Get(ItemKey)
	if !ok || li == nil {
		return nil, false
	}
	if s, isStr := li.(types.String); isStr && s == "" {
		return nil, false
	}
	return li, true
}

// onlyText reports whether v is a mapping whose single key is a non-empty #text.
func onlyText(v types.Node) (string, bool) {
	m, ok := v.(*types.Mapping)
	if !ok || m.Len() != 1 {
		return "", false
	}
	t, ok := m.Get(TextKey)
	if !ok {
		return "", false
	}
	s, ok := t.(types.String)
	if !ok || s == "" {
		return "", false
	}
	return string(s), true
}

func coerce(v types.Node) types.Node {
	if s, ok := v.(types.String); ok {
		return scalar.Coerce(string(s))
	}
	return v
}

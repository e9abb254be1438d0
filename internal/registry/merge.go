package registry

import (
	"fmt"

	"github.com/mesh-intelligence/era/pkg/types"
)

// MergeOutcome reports what Merge did with a pair of values.
type MergeOutcome int

// Merge outcomes.
const (
	// Adopted: nothing existed; the incoming value was stored.
	Adopted MergeOutcome = iota
	// Concatenated: two sequences were joined and de-duplicated.
	Concatenated
	// Merged: two mappings were merged field by field.
	Merged
	// Overwritten: a scalar or function replaced one of the same kind.
	Overwritten
	// Skipped: the values could not be merged; the existing value stays.
	Skipped
)

func (o MergeOutcome) String() string {
	switch o {
	case Adopted:
		return "adopted"
	case Concatenated:
		return "concatenated"
	case Merged:
		return "merged"
	case Overwritten:
		return "overwritten"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Merge combines an existing registry value with an incoming one:
//
//   - nothing existing: incoming is adopted (containers are copied).
//   - sequence + sequence: concatenated, duplicates dropped, first seen wins.
//   - mapping + mapping: incoming fields are set on existing, in place.
//   - string, number or function of the same kind: incoming replaces existing.
//   - anything else: ErrMergeTypeMismatch; existing is returned unchanged.
//
// A nil incoming value leaves existing untouched.
func Merge(existing, incoming types.Node) (types.Node, MergeOutcome, error) {
	if incoming == nil {
		return existing, Skipped, nil
	}
	if existing == nil {
		return copyContainer(incoming), Adopted, nil
	}

	switch e := existing.(type) {
	case types.Sequence:
		if in, ok := incoming.(types.Sequence); ok {
			return concatUnique(e, in), Concatenated, nil
		}
	case *types.Mapping:
		if in, ok := incoming.(*types.Mapping); ok {
			in.Range(func(k string, v types.Node) bool {
				e.Set(k, v)
				return true
			})
			return e, Merged, nil
		}
	case types.String, types.Number, types.Func:
		if e.Kind() == incoming.Kind() {
			return incoming, Overwritten, nil
		}
	}
	return existing, Skipped, fmt.Errorf("cannot merge %s into %s: %w", incoming.Kind(), existing.Kind(), types.ErrMergeTypeMismatch)
}

// concatUnique joins a and b into a new sequence. Scalars are compared by
// value and mappings by identity; nested sequences and functions are never
// considered duplicates.
func concatUnique(a, b types.Sequence) types.Sequence {
	out := make(types.Sequence, 0, len(a)+len(b))
	seen := make(map[any]bool, len(a)+len(b))
	for _, n := range append(append(types.Sequence{}, a...), b...) {
		key, comparable := identity(n)
		if comparable {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, n)
	}
	return out
}

func identity(n types.Node) (any, bool) {
	switch v := n.(type) {
	case nil, types.String, types.Number, types.Bool:
		return v, true
	case *types.Mapping:
		return v, true
	}
	return nil, false
}

// copyContainer returns a shallow copy of mappings and sequences so later
// in-place merges do not write through to a module's descriptor.
func copyContainer(n types.Node) types.Node {
	switch v := n.(type) {
	case *types.Mapping:
		m := types.NewMapping()
		v.Range(func(k string, e types.Node) bool {
			m.Set(k, e)
			return true
		})
		return m
	case types.Sequence:
		return append(types.Sequence{}, v...)
	}
	return n
}

// cloneTree returns a deep copy of the containers under n. Scalars and
// functions are shared.
func cloneTree(n types.Node) types.Node {
	switch v := n.(type) {
	case *types.Mapping:
		m := types.NewMapping()
		v.Range(func(k string, e types.Node) bool {
			m.Set(k, cloneTree(e))
			return true
		})
		return m
	case types.Sequence:
		out := make(types.Sequence, len(v))
		for i, e := range v {
			out[i] = cloneTree(e)
		}
		return out
	}
	return n
}

// Package treepath reads and writes nodes addressed by dotted paths such as
// "items.sword.damage". Numeric segments index into sequences.
package treepath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/era/pkg/types"
)

// Split validates path and returns its segments.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path: %w", types.ErrInvalidPath)
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("path %q has an empty segment: %w", path, types.ErrInvalidPath)
		}
	}
	return segs, nil
}

// Get returns the node at path under root.
func Get(root types.Node, path string) (types.Node, error) {
	segs, err := Split(path)
	if err != nil {
		return nil, err
	}
	cur := root
	for i, seg := range segs {
		next, ok := child(cur, seg)
		if !ok {
			return nil, fmt.Errorf("%s (missing %q): %w", path, strings.Join(segs[:i+1], "."), types.ErrPathNotFound)
		}
		cur = next
	}
	return cur, nil
}

// Set stores value at path, creating intermediate mappings as needed. A nil
// root is replaced by a new mapping; the (possibly new) root is returned.
// An intermediate value that is neither a mapping nor an indexable sequence
// is replaced by an empty mapping.
func Set(root *types.Mapping, path string, value types.Node) (*types.Mapping, error) {
	segs, err := Split(path)
	if err != nil {
		return root, err
	}
	if root == nil {
		root = types.NewMapping()
	}
	parent, err := walkCreate(root, segs[:len(segs)-1])
	if err != nil {
		return root, fmt.Errorf("set %s: %w", path, err)
	}
	if !assign(parent, segs[len(segs)-1], value) {
		return root, fmt.Errorf("set %s: index out of range: %w", path, types.ErrInvalidPath)
	}
	return root, nil
}

// Append adds value to the sequence at path. A missing or non-sequence value
// at path is replaced by a new sequence first.
func Append(root *types.Mapping, path string, value types.Node) (*types.Mapping, error) {
	segs, err := Split(path)
	if err != nil {
		return root, err
	}
	if root == nil {
		root = types.NewMapping()
	}
	parent, err := walkCreate(root, segs[:len(segs)-1])
	if err != nil {
		return root, fmt.Errorf("append %s: %w", path, err)
	}
	last := segs[len(segs)-1]
	existing, _ := child(parent, last)
	seq, _ := existing.(types.Sequence)
	if !assign(parent, last, append(seq, value)) {
		return root, fmt.Errorf("append %s: index out of range: %w", path, types.ErrInvalidPath)
	}
	return root, nil
}

// walkCreate descends through segs from root, creating mappings on the way,
// and returns the container that will hold the final segment.
func walkCreate(root *types.Mapping, segs []string) (types.Node, error) {
	var cur types.Node = root
	for _, seg := range segs {
		next, ok := child(cur, seg)
		if ok && isContainer(next) {
			cur = next
			continue
		}
		m := types.NewMapping()
		if !assign(cur, seg, m) {
			return nil, fmt.Errorf("segment %q is not an index of the sequence: %w", seg, types.ErrInvalidPath)
		}
		cur = m
	}
	return cur, nil
}

func isContainer(n types.Node) bool {
	switch n.(type) {
	case *types.Mapping, types.Sequence:
		return true
	}
	return false
}

func child(n types.Node, seg string) (types.Node, bool) {
	switch c := n.(type) {
	case *types.Mapping:
		return c.Get(seg)
	case types.Sequence:
		i, ok := index(seg, len(c))
		if !ok {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}

// assign writes into a mapping or an in-range sequence slot. Sequences share
// their backing array with the parent, so slot writes are visible.
func assign(container types.Node, seg string, value types.Node) bool {
	switch c := container.(type) {
	case *types.Mapping:
		c.Set(seg, value)
		return true
	case types.Sequence:
		if i, ok := index(seg, len(c)); ok {
			c[i] = value
			return true
		}
	}
	return false
}

func index(seg string, n int) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

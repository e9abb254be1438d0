// Package template resolves text templates by dotted path and fills their
// positional {0}, {1}, ... placeholders.
package template

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/era/internal/content"
	"github.com/mesh-intelligence/era/internal/treepath"
	"github.com/mesh-intelligence/era/pkg/types"
)

// BlockPrefix names content blocks that override library templates.
const BlockPrefix = "Template_"

// Library stores templates in a tree. Content blocks named BlockPrefix+path
// take precedence over tree entries.
type Library struct {
	blocks content.Store
	tree   *types.Mapping
}

// NewLibrary returns an empty library. blocks may be nil.
func NewLibrary(blocks content.Store) *Library {
	return &Library{blocks: blocks, tree: types.NewMapping()}
}

// Add stores the lines, joined by newlines, at path.
func (l *Library) Add(path string, lines ...string) error {
	root, err := treepath.Set(l.tree, path, types.String(strings.Join(lines, "\n")))
	if err != nil {
		return fmt.Errorf("add template: %w", err)
	}
	l.tree = root
	return nil
}

// Lookup returns the template text for path. It tries the content block
// Template_<path>, then a top-level key equal to path, then the dotted path.
func (l *Library) Lookup(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("lookup template: %w", types.ErrInvalidPath)
	}
	if l.blocks != nil {
		txt, err := l.blocks.Text(BlockPrefix + path)
		if err == nil {
			return txt, nil
		}
		if !errors.Is(err, content.ErrBlockNotFound) {
			return "", fmt.Errorf("lookup template %s: %w", path, err)
		}
	}
	if n, ok := l.tree.Get(path); ok {
		return text(path, n)
	}
	n, err := treepath.Get(l.tree, path)
	if err != nil {
		return "", fmt.Errorf("lookup template: %w", err)
	}
	return text(path, n)
}

func text(path string, n types.Node) (string, error) {
	switch v := n.(type) {
	case types.String:
		return string(v), nil
	case types.Sequence:
		lines := make([]string, len(v))
		for i, e := range v {
			lines[i] = e.String()
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("template %s is a %s: %w", path, n.Kind(), types.ErrTypeMismatch)
}

// Render replaces each {i} in text with args[i]. Replacement is literal;
// an argument containing "{n}" may be substituted again by a later index.
func Render(text string, args ...string) string {
	for i, a := range args {
		text = strings.ReplaceAll(text, "{"+strconv.Itoa(i)+"}", a)
	}
	return text
}

// Output renders ref. A ref starting with "@" names a template to look up;
// anything else is used as the template text itself.
func (l *Library) Output(ref string, args ...string) (string, error) {
	txt := ref
	if strings.HasPrefix(ref, "@") {
		var err error
		if txt, err = l.Lookup(ref[1:]); err != nil {
			return "", err
		}
	}
	return Render(txt, args...), nil
}

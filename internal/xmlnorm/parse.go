// Package xmlnorm turns XML documents into Node trees.
//
// Parse builds a raw element tree: attributes become string entries,
// repeated child tags collapse into sequences, and trimmed character data is
// kept under the reserved "#text" key. Normalize then rewrites that tree into
// the shape the registry expects (li lists unwrapped, text-only elements
// collapsed to coerced scalars).
package xmlnorm

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/era/pkg/types"
)

// Reserved keys in the raw element tree.
const (
	TextKey    = "#text"
	CommentKey = "#comment"
	ItemKey    = "li"
)

type frame struct {
	name string
	node *types.Mapping
	text strings.Builder
}

// Parse reads an XML document into a raw element tree rooted at a mapping
// holding the document element. Elements named in arrayTags are always
// stored as sequences, even when they occur once.
func Parse(r io.Reader, arrayTags ...string) (*types.Mapping, error) {
	forced := make(map[string]bool, len(arrayTags))
	for _, t := range arrayTags {
		forced[t] = true
	}

	root := types.NewMapping()
	stack := []*frame{{node: root}}
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, types.ErrMalformedXML)
		}

		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 1 && root.Len() > 0 {
				return nil, fmt.Errorf("multiple document elements: %w", types.ErrMalformedXML)
			}
			flushText(top)
			name := qualified(t.Name)
			el := types.NewMapping()
			for _, a := range t.Attr {
				el.Set(qualified(a.Name), types.String(a.Value))
			}
			attach(top.node, name, el, forced)
			stack = append(stack, &frame{name: name, node: el})
		case xml.EndElement:
			name := qualified(t.Name)
			if len(stack) == 1 || top.name != name {
				return nil, fmt.Errorf("unexpected end element </%s>: %w", name, types.ErrMalformedXML)
			}
			flushText(top)
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 1 {
				top.text.Write(t)
			}
		case xml.Comment, xml.ProcInst, xml.Directive:
			flushText(top)
		}
	}

	if len(stack) != 1 {
		return nil, fmt.Errorf("unclosed element <%s>: %w", stack[len(stack)-1].name, types.ErrMalformedXML)
	}
	if root.Len() == 0 {
		return nil, fmt.Errorf("no document element: %w", types.ErrMalformedXML)
	}
	return root, nil
}

// attach stores el under name, promoting an existing value into a sequence.
func attach(parent *types.Mapping, name string, el *types.Mapping, forced map[string]bool) {
	existing, ok := parent.Get(name)
	switch {
	case !ok && forced[name]:
		parent.Set(name, types.Sequence{el})
	case !ok:
		parent.Set(name, el)
	default:
		if seq, isSeq := existing.(types.Sequence); isSeq {
			parent.Set(name, append(seq, el))
		} else {
			parent.Set(name, types.Sequence{existing, el})
		}
	}
}

// flushText stores the pending character data of f, if any is non-blank.
// A later text run replaces an earlier one.
func flushText(f *frame) {
	s := strings.TrimSpace(f.text.String())
	f.text.Reset()
	if s == "" || f.name == "" {
		return
	}
	f.node.Set(TextKey, types.String(s))
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

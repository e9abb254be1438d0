// Package tablefmt parses the line-oriented table notation:
//
//	@Weapons        ; optional table name
//	#id,dmg         ; header: column names for following rows
//	1,10
//	2,20
//
// Each header starts a table. It takes the pending @name if one was given,
// otherwise an id of the form "table<N>", where N counts headers seen so far.
package tablefmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/era/internal/csvload"
	"github.com/mesh-intelligence/era/internal/scalar"
	"github.com/mesh-intelligence/era/pkg/types"
)

// TypeField is set on every row to the id of its table.
const TypeField = "type"

// parser holds the state machine between lines.
type parser struct {
	pending string   // name from the last @ line, not yet consumed
	count   int      // headers seen
	id      string   // active table id
	header  []string // active column names; nil before the first header
	out     *types.Mapping
	issues  []types.Issue
}

// Parse reads text and returns a mapping from table id to its sequence of
// rows, in the order tables first received a row. Unusable rows are skipped
// and reported.
func Parse(text string) (*types.Mapping, []types.Issue) {
	p := &parser{out: types.NewMapping()}
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || csvload.IsComment(line) {
			continue
		}
		switch line[0] {
		case '@':
			p.name(line)
		case '#':
			p.startTable(line)
		default:
			p.row(i+1, line)
		}
	}
	return p.out, p.issues
}

// name records a pending table name. A trailing ";comment" and trailing
// separators are removed.
func (p *parser) name(line string) {
	name := line[1:]
	if i := strings.Index(name, ";"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ",")
	p.pending = strings.TrimSpace(name)
}

func (p *parser) startTable(line string) {
	keys := csvload.SplitLine(line)
	keys[0] = strings.TrimSpace(strings.TrimPrefix(keys[0], "#"))
	for i, k := range keys {
		if k == "" {
			keys[i] = strconv.Itoa(i)
		}
	}

	if p.pending != "" {
		p.id = p.pending
	} else {
		p.id = "table" + strconv.Itoa(p.count)
	}
	p.count++
	p.pending = ""
	p.header = keys
}

func (p *parser) row(lineNo int, line string) {
	if p.header == nil {
		p.issues = append(p.issues, types.Issue{
			Line: lineNo,
			Text: line,
			Err:  fmt.Errorf("row before any header: %w", types.ErrMalformedTable),
		})
		return
	}
	values := csvload.SplitLine(line)
	if len(values) > len(p.header) {
		p.issues = append(p.issues, types.Issue{
			Line: lineNo,
			Text: line,
			Err:  fmt.Errorf("row has %d fields, header %q has %d: %w", len(values), p.id, len(p.header), types.ErrMalformedTable),
		})
		return
	}

	row := types.NewMapping()
	for i, key := range p.header {
		if i >= len(values) {
			break
		}
		row.Set(key, scalar.Coerce(values[i]))
	}
	row.Set(TypeField, types.String(p.id))

	existing, _ := p.out.Get(p.id)
	rows, _ := existing.(types.Sequence)
	p.out.Set(p.id, append(rows, row))
}

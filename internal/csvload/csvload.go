// Package csvload reads the comma-separated authoring dialect. A file is
// either tabular (a header naming an Id, No or Name column followed by rows)
// or path-keyed ("items.sword.dmg,10" lines addressing a nested tree).
//
// Fields are split on bare commas; there is no quoting.
package csvload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/era/internal/scalar"
	"github.com/mesh-intelligence/era/internal/treepath"
	"github.com/mesh-intelligence/era/pkg/types"
)

// Dialect is the shape of a CSV file.
type Dialect int

// Recognized dialects.
const (
	PathKeyed Dialect = iota
	Tabular
)

func (d Dialect) String() string {
	if d == Tabular {
		return "tabular"
	}
	return "path-keyed"
}

// keyColumns are the header names that mark a tabular file.
var keyColumns = []string{"id", "no", "name"}

// IsComment reports whether a line is a block or semicolon comment.
func IsComment(line string) bool {
	s := strings.TrimSpace(line)
	return strings.HasPrefix(s, "/*") || strings.HasPrefix(s, ";")
}

// SplitLine splits a line on commas and cleans the fields: a field that
// starts a comment ends the line, and remaining fields are trimmed.
func SplitLine(line string) []string {
	raw := strings.Split(line, ",")
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if IsComment(f) {
			break
		}
		out = append(out, strings.TrimSpace(f))
	}
	return out
}

// Detect classifies a header line. Only the header is consulted, so a
// two-column path-keyed file whose first path is literally id, no or name
// reads as a table.
func Detect(header string) Dialect {
	fields := SplitLine(header)
	if len(fields) < 2 {
		return PathKeyed
	}
	for _, f := range fields {
		for _, k := range keyColumns {
			if strings.EqualFold(f, k) {
				return Tabular
			}
		}
	}
	return PathKeyed
}

type line struct {
	no   int
	text string
}

// Load parses text. Tabular files yield a Sequence of row mappings with
// string values; path-keyed files yield a *Mapping. Lines that cannot be
// used are skipped and returned as issues.
func Load(text string) (types.Node, []types.Issue) {
	lines := contentLines(text)
	if len(lines) == 0 {
		return types.NewMapping(), nil
	}
	if Detect(lines[0].text) == Tabular {
		return loadTabular(lines)
	}
	return loadPathKeyed(lines)
}

// contentLines drops blank and comment lines and strips carriage returns.
func contentLines(text string) []line {
	var out []line
	for i, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" || IsComment(l) {
			continue
		}
		out = append(out, line{no: i + 1, text: l})
	}
	return out
}

func loadTabular(lines []line) (types.Node, []types.Issue) {
	header := SplitLine(lines[0].text)
	rows := types.Sequence{}
	var issues []types.Issue

	for _, l := range lines[1:] {
		fields := SplitLine(l.text)
		if len(fields) > len(header) {
			issues = append(issues, types.Issue{
				Line: l.no,
				Text: strings.TrimSpace(l.text),
				Err:  fmt.Errorf("row has %d fields, header has %d: %w", len(fields), len(header), types.ErrMalformedCSV),
			})
			continue
		}
		row := types.NewMapping()
		for j, h := range header {
			if j >= len(fields) {
				break
			}
			key := h
			if key == "" {
				key = strconv.Itoa(j)
			}
			row.Set(key, types.String(fields[j]))
		}
		rows = append(rows, row)
	}
	return rows, issues
}

type assignment struct {
	line
	path   string
	values []string
}

func loadPathKeyed(lines []line) (types.Node, []types.Issue) {
	var (
		entries []assignment
		issues  []types.Issue
	)
	count := make(map[string]int)

	for _, l := range lines {
		fields := SplitLine(l.text)
		if len(fields) < 2 {
			issues = append(issues, types.Issue{
				Line: l.no,
				Text: strings.TrimSpace(l.text),
				Err:  fmt.Errorf("path without value: %w", types.ErrMalformedCSV),
			})
			continue
		}
		entries = append(entries, assignment{line: l, path: fields[0], values: fields[1:]})
		count[fields[0]]++
	}

	root := types.NewMapping()
	for _, e := range entries {
		var value types.Node
		if len(e.values) == 1 {
			value = scalar.Coerce(e.values[0])
		} else {
			value = types.Sequence(scalar.Values(e.values))
		}

		var err error
		if count[e.path] > 1 {
			root, err = treepath.Append(root, e.path, value)
		} else {
			root, err = treepath.Set(root, e.path, value)
		}
		if err != nil {
			issues = append(issues, types.Issue{Line: e.no, Text: strings.TrimSpace(e.text), Err: err})
		}
	}
	return root, issues
}

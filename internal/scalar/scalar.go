// Package scalar converts raw text tokens from the authoring formats into
// typed scalars. Coerce is the one heuristic shared by the XML, CSV and
// table loaders.
package scalar

import (
	"math"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/era/pkg/types"
)

// Coerce converts text to a Number, a Sequence of scalars (for
// "a||b" lists), a Bool, or returns it unchanged as a String. It never fails.
func Coerce(text string) types.Node {
	if n, ok := parseNumber(text); ok {
		return n
	}
	if strings.Contains(text, types.ListSeparator) {
		parts := strings.Split(text, types.ListSeparator)
		seq := make(types.Sequence, len(parts))
		for i, p := range parts {
			seq[i] = coerceScalar(p)
		}
		return seq
	}
	return coerceScalar(text)
}

// coerceScalar applies the number and boolean rules without list splitting.
func coerceScalar(text string) types.Node {
	if n, ok := parseNumber(text); ok {
		return n
	}
	switch text {
	case "true":
		return types.Bool(true)
	case "false":
		return types.Bool(false)
	}
	return types.String(text)
}

// parseNumber accepts finite decimal literals surrounded by optional
// whitespace. Blank text is not a number.
func parseNumber(text string) (types.Number, bool) {
	s := strings.TrimSpace(text)
	if s == "" || strings.ContainsAny(s, "_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return types.Number(f), true
}

// Values coerces every field of a row.
func Values(fields []string) []types.Node {
	out := make([]types.Node, len(fields))
	for i, f := range fields {
		out[i] = Coerce(f)
	}
	return out
}

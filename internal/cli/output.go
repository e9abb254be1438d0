package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mesh-intelligence/era/pkg/types"
)

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printNode writes n as indented JSON. In text mode scalars are printed
// bare.
func printNode(w io.Writer, n types.Node, jsonMode bool) error {
	if !jsonMode {
		switch n.(type) {
		case types.String, types.Number, types.Bool:
			_, err := fmt.Fprintln(w, n.String())
			return err
		}
	}
	raw, err := types.MarshalNode(n)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("indent node: %w", err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}

func printModules(w io.Writer, mods []types.ModuleInfo, jsonMode bool) error {
	if jsonMode {
		if mods == nil {
			mods = []types.ModuleInfo{}
		}
		return printJSON(w, mods)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tVERSION\tDESCRIPTION")
	for _, m := range mods {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.Position, m.Name, m.Version, m.Description)
	}
	return tw.Flush()
}

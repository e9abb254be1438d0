package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/era/pkg/types"
)

func newModulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the modules of the current snapshot in load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := a.attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			mods, err := store.Modules()
			if err != nil {
				return sysError(fmt.Errorf("list modules: %w", err))
			}
			return printModules(cmd.OutOrStdout(), mods, a.jsonMode)
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <category> [path]",
		Short: "Print a category tree or the value at a dotted path",
		Long: `Get reads from the current snapshot. Categories are data, setup, language
and database. Paths are dotted; numeric segments index sequences.

Example:
  era get data
  era get data npc.names.0
  era get language en-US.menu.start`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := a.attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			var n types.Node
			if len(args) == 1 {
				n, err = store.Tree(args[0])
			} else {
				n, err = store.Lookup(args[0], args[1])
			}
			if err != nil {
				return queryError(err)
			}
			return printNode(cmd.OutOrStdout(), n, a.jsonMode)
		},
	}
}

// queryError classifies store query failures.
func queryError(err error) error {
	switch {
	case errors.Is(err, types.ErrPathNotFound),
		errors.Is(err, types.ErrInvalidPath),
		errors.Is(err, types.ErrNoSnapshot):
		return userError(err)
	}
	return sysError(err)
}

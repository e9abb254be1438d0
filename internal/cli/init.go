package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/era/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize era configuration and storage",
		Long:  "Create the configuration and data directories, write a default config.yaml,\nthen initialize the snapshot store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(a.configDir, 0o755); err != nil {
				return sysError(fmt.Errorf("create config directory: %w", err))
			}
			written, err := writeConfigIfMissing(a.configDir, configFile{
				Backend:  types.BackendSQLite,
				DataDir:  a.dataDir,
				HTTPAddr: defaultHTTPAddr,
			})
			if err != nil {
				return sysError(fmt.Errorf("write config: %w", err))
			}

			store, cfg, err := a.attachStore()
			if err != nil {
				return err
			}
			if err := store.Detach(); err != nil {
				return sysError(fmt.Errorf("finalize storage: %w", err))
			}

			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"config_dir":     a.configDir,
					"data_dir":       cfg.DataDir,
					"config_written": written,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "era initialized (config %s, data %s)\n", a.configDir, cfg.DataDir)
			return nil
		},
	}
}

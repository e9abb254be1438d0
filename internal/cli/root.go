// Package cli implements the era command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/era/internal/logging"
	"github.com/mesh-intelligence/era/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// userError marks err as caused by bad input: arguments, content or config.
func userError(err error) error { return &exitError{code: exitUserError, err: err} }

// sysError marks err as an environment failure: storage, network, filesystem.
func sysError(err error) error { return &exitError{code: exitSysError, err: err} }

// app holds global flag values and state shared by subcommands.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	cfg    *viper.Viper
	logger zerolog.Logger
}

// NewRootCmd creates the top-level "era" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}
	root := &cobra.Command{
		Use:   "era",
		Short: "Load content packages into a merged module registry",
		Long: "era reads content packages (CSV, XML and table files plus a module.yaml),\n" +
			"merges them into one registry, and keeps a queryable snapshot on disk.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/era)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/.era)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newLoadCmd(a))
	root.AddCommand(newModulesCmd(a))
	root.AddCommand(newGetCmd(a))
	root.AddCommand(newParseCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// setup builds the logger and reads config.yaml.
func (a *app) setup(cmd *cobra.Command) error {
	settings, err := logging.ParseEnv()
	if err != nil {
		return userError(err)
	}
	if a.logger, err = logging.New(settings, cmd.ErrOrStderr()); err != nil {
		return userError(err)
	}

	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = configDir

	if a.cfg, err = loadConfig(configDir); err != nil {
		return userError(err)
	}
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "era:", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

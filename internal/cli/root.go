// Package cli implements the playerdb command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/playerdb/internal/logging"
	"github.com/mesh-intelligence/playerdb/internal/paths"
	"github.com/mesh-intelligence/playerdb/internal/sqlite"
	"github.com/mesh-intelligence/playerdb/pkg/types"
)

// errUsage marks malformed command arguments.
var errUsage = errors.New("usage error")

// Exit codes.
const (
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backupDir string
	logLevel  string
	strict    bool
}

// app carries per-invocation state so that every root command built by
// NewRootCmd is independent.
type app struct {
	flags    rootFlags
	settings settings
	logger   *zap.Logger
	closeLog func() error
}

// NewRootCmd creates the top-level "playerdb" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop(), closeLog: func() error { return nil }}

	root := &cobra.Command{
		Use:   "playerdb",
		Short: "Player entity store for community bots",
		Long:  "playerdb manages the embedded SQLite store holding player attributes,\nholdings, guilds, relationships and quarantines.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLog()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (env "+paths.EnvDataDir+")")
	root.PersistentFlags().StringVar(&a.flags.backupDir, "backup-dir", "", "backup directory (default: <data-dir>/backups)")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.flags.strict, "strict", false, "reject attribute keys that look like typos")

	root.AddCommand(newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newGetCmd())
	root.AddCommand(a.newSetCmd())
	root.AddCommand(a.newTopCmd())
	root.AddCommand(a.newBackupCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newImportCmd())
	root.AddCommand(a.newQuarantineCmd())
	root.AddCommand(a.newMaintainCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors caused by the caller's input to exitUserError and
// everything else to exitSysError.
func exitCode(err error) int {
	for _, user := range []error{
		types.ErrInvalidID,
		types.ErrNotFound,
		types.ErrUnknownAttribute,
		types.ErrReadOnlyAttribute,
		types.ErrUnknownField,
		types.ErrInvalidValue,
		types.ErrInvalidName,
		errUsage,
	} {
		if errors.Is(err, user) {
			return exitUserError
		}
	}
	return exitSysError
}

// setup loads configuration and builds the logger. version needs neither.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	s, err := resolveSettings(a.flags, configDir, v)
	if err != nil {
		return err
	}
	a.settings = s

	logger, closeLog, err := logging.New(s.Log)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

// withBackend attaches a backend for the duration of fn.
func (a *app) withBackend(ctx context.Context, fn func(b *sqlite.Backend) error) error {
	b := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := b.Attach(ctx, a.settings.Store); err != nil {
		return fmt.Errorf("attach store: %w", err)
	}
	err := fn(b)
	if derr := b.Detach(); derr != nil && err == nil {
		err = derr
	}
	return err
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

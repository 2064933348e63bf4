package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/playerdb/internal/sqlite"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize playerdb storage",
		Long: `Create the configuration, data and backup directories, then open the
store once so the schema is reconciled. Tables whose layout is incompatible
are renamed aside and listed in the output.`,
		Args: cobra.NoArgs,
		RunE: a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(a.settings.Store.BackupDir, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
		report := b.MigrationReport()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "playerdb initialized at %s\n", b.Config().DBPath())
		for _, r := range report.Renamed {
			fmt.Fprintf(out, "renamed incompatible table %s to %s\n", r.Table, r.Legacy)
		}
		return nil
	})
}

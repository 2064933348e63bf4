package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/playerdb/internal/sqlite"
)

func (a *app) newBackupCmd() *cobra.Command {
	var dest string
	var keep int
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent copy of the database",
		Long: `Backup copies the live database with VACUUM INTO and prunes the oldest
backups beyond --keep. --keep 0 keeps every backup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = a.settings.Store.BackupKeep
			}
			return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
				path, err := b.Backup(cmd.Context(), dest, keep)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (default: backup dir)")
	cmd.Flags().IntVar(&keep, "keep", 0, "number of backups to keep (default: backup_keep)")
	return cmd
}

func (a *app) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl>",
		Short: "Export every player view as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
				n, err := b.ExportJSONL(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d players to %s\n", n, args[0])
				return nil
			})
		},
	}
}

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Import player views written by export",
		Long: `Import applies every record of a JSON lines export in one transaction.
Records without a usable player_id are skipped; derived keys such as
net_worth are recomputed. Memberships of guilds missing from this store
are dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
				n, err := b.ImportJSONL(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d players from %s\n", n, args[0])
				return nil
			})
		},
	}
}

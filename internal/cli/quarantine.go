package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/playerdb/internal/sqlite"
)

func (a *app) newQuarantineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect quarantine holds",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list <community-id>",
		Short: "List quarantine holds in a community",
		Long: `List prints the quarantine records of a community as JSON, newest first.
Only active holds are shown unless --all is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parsePlayer(args[0])
			if err != nil {
				return err
			}
			return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
				recs, err := b.ListQuarantines(cmd.Context(), scope, !all)
				if err != nil {
					return err
				}
				return printJSON(cmd, recs)
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include released holds")

	cmd.AddCommand(list)
	return cmd
}

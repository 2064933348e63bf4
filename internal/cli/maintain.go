package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/playerdb/internal/sqlite"
	"github.com/mesh-intelligence/playerdb/internal/sweep"
)

func (a *app) newMaintainCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run periodic maintenance",
		Long: `Maintain runs the scheduled maintenance jobs until interrupted. The CLI
has no connection to a chat platform, so only the backup job runs here;
quarantine expiry is swept by the bot process that owns the role
directory. With --once every job runs a single time and the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd.Context(), func(b *sqlite.Backend) error {
				jobs := sweep.DefaultJobs(b, nil, a.settings.Store)
				s := sweep.New(a.logger, jobs...)
				if once {
					if err := s.RunOnce(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "maintenance complete")
					return nil
				}

				enabled := false
				for _, j := range jobs {
					enabled = enabled || j.Interval > 0
				}
				if !enabled {
					return fmt.Errorf("%w: no job has an interval; set backup_interval or use --once", errUsage)
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				fmt.Fprintf(cmd.OutOrStdout(), "running %v until interrupted\n", s.Jobs())
				return s.Run(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run every job once and exit")
	return cmd
}

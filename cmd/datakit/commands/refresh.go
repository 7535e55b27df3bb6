package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.pactly.app/datakit/internal/core/domain"
)

func (c *CLI) newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh [resources...]",
		Short: "Bring cached resources up to date",
		Long: "Revalidates cached snapshots against the backend, fetching only " +
			"resources whose freshness tier requires it. With --force every " +
			"resource is refetched unconditionally. Without arguments every " +
			"resource is targeted.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, cancel := c.app.Events(16)
			defer cancel()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range events {
					switch e := ev.(type) {
					case domain.RefreshSucceeded:
						fmt.Fprintf(cmd.OutOrStdout(), "refreshed %s\n", e.Key)
					case domain.RefreshFailed:
						fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", e.Key, e.Err)
					}
				}
			}()

			force, _ := cmd.Flags().GetBool("force")
			var err error
			if force {
				err = c.app.Refresh(cmd.Context(), args...)
			} else {
				err = c.app.Revalidate(cmd.Context(), args...)
			}
			cancel()
			<-done
			return err
		},
	}
	cmd.Flags().Bool("force", false, "Refetch every resource even when it is fresh")
	return cmd
}

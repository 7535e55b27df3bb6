package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the freshness tier of each cached resource",
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses := c.app.Statuses(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RESOURCE\tTIER\tFETCHED AT")
			for _, st := range statuses {
				fetched := "-"
				if st.HasEntry {
					fetched = st.FetchedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", st.Key, st.Tier, fetched)
			}
			return w.Flush()
		},
	}
}

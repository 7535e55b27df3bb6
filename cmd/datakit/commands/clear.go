package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached snapshot (privacy clear)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.PrivacyClear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}

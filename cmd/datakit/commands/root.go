// Package commands implements the CLI commands for the datakit data agent.
package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.pactly.app/datakit/internal/app"
)

// CLI represents the command line interface for datakit.
type CLI struct {
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.App) *CLI {
	rootCmd := &cobra.Command{
		Use:           "datakit",
		Short:         "Local snapshot cache for the Pactly habit app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("token", "", "Bearer token (defaults to $DATAKIT_TOKEN)")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	// Commands that hit the backend pick up the session before running.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = os.Getenv("DATAKIT_TOKEN")
		}
		if token != "" {
			c.app.Login(token)
		}
	}

	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newRefreshCmd())
	rootCmd.AddCommand(c.newClearCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(w io.Writer) {
	c.rootCmd.SetOut(w)
	c.rootCmd.SetErr(w)
}

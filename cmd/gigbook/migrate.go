package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gigbook/internal/persistence/postgres"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	run := func(cmd *cobra.Command, args []string) error {
		dir, err := postgres.ParseDirection(cmd.Name())
		if err != nil {
			return err
		}
		if err := postgres.Migrate(c.cfg.Storage.DatabaseURL, dir); err != nil {
			return err
		}
		c.logger.Info(fmt.Sprintf("migrations %s complete", cmd.Name()))
		return nil
	}
	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", Args: cobra.NoArgs, RunE: run},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				version, dirty, err := postgres.Version(c.cfg.Storage.DatabaseURL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

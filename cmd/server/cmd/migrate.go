package cmd

import (
	"fmt"

	"github.com/eventreg/server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back database migrations.

Migrations are compiled into the binary; --migrations points at a directory
of .sql files to use instead.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if err := postgres.MigrateUp(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL, cfg.Database.MigrationsPath)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if err := postgres.MigrateDown(cfg.Database.URL, cfg.Database.MigrationsPath, steps); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.URL, cfg.Database.MigrationsPath)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return printVersion(cmd, cfg.Database.URL, cfg.Database.MigrationsPath)
		},
	})
	return cmd
}

func printVersion(cmd *cobra.Command, databaseURL, migrationsPath string) error {
	version, dirty, err := postgres.MigrationVersion(databaseURL, migrationsPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if version == 0 {
		fmt.Fprintln(out, "Schema version: none")
		return nil
	}
	fmt.Fprintf(out, "Schema version: %d", version)
	if dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	return nil
}

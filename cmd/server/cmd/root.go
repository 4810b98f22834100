package cmd

import (
	"fmt"
	"os"

	"github.com/eventreg/server/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every subcommand. Empty
// values leave the loaded configuration untouched.
type globalOptions struct {
	configPath     string
	logLevel       string
	logFormat      string
	migrationsPath string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	serve := newServeCommand(opts)

	root := &cobra.Command{
		Use:   "server",
		Short: "Event registration server",
		Long: `Event registration server exposes a JSON API for creating events and users
and registering users for events without ever exceeding event capacity.

Configuration comes from environment variables (and a .env file if present),
optionally overlaid by a YAML file passed with --config.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve.RunE(cmd, args)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (optional, uses env vars by default)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")
	root.PersistentFlags().StringVar(&opts.migrationsPath, "migrations", "", "directory of migration files (default: embedded)")

	// Serve flags are also accepted on the root so `server --port 8080` works.
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	root.AddCommand(newLoadtestCommand())
	return root
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies the global flag overrides.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	if opts.migrationsPath != "" {
		cfg.Database.MigrationsPath = opts.migrationsPath
	}
	return cfg, nil
}

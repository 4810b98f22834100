package cmd

import (
	"fmt"
	"time"

	"github.com/eventreg/server/internal/loadtest"
	"github.com/spf13/cobra"
)

func newLoadtestCommand() *cobra.Command {
	var (
		baseURL string
		cfg     loadtest.Config
	)

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Race concurrent registrations against a running server",
		Long: `Creates an event and a set of users on the target server, then registers
every user at once. Fails if more registrations succeed than the event holds.

Each run makes one write request per user, so start the target server with
RATE_LIMIT_WRITE=0 or setup will be rejected with 429.

Example:
  server loadtest --url http://localhost:3000 --capacity 5 --users 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := loadtest.NewTester(baseURL, nil).Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), stats.Report())
			if stats.Overbooked() {
				return fmt.Errorf("event %d overbooked: %d registrations for capacity %d", stats.EventID, stats.Registered, stats.Capacity)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:3000", "base URL of the server to test")
	cmd.Flags().IntVar(&cfg.Capacity, "capacity", 5, "event capacity")
	cmd.Flags().IntVar(&cfg.Users, "users", 20, "number of users racing for a seat")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 0, "maximum requests in flight (default: all users)")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}

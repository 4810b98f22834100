package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// HealthResponse is the subset of the /health body the check reads.
type HealthResponse struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks,omitempty"`
}

func newHealthcheckCommand() *cobra.Command {
	var (
		timeout time.Duration
		url     string
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by a container HEALTHCHECK. It exits with code 0 when
the server reports "healthy" and non-zero otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = defaultHealthURL()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := checkHealth(ctx, http.DefaultClient, url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server status: %s\n", status)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().StringVar(&url, "url", "", "health check URL (default: http://localhost:{PORT}/health)")
	return cmd
}

func defaultHealthURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = os.Getenv("SERVER_PORT")
	}
	if port == "" {
		port = "3000"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// checkHealth returns the reported status, or an error unless the server
// answered 200 with status "healthy".
func checkHealth(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unhealthy: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("parse health response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return body.Status, fmt.Errorf("unhealthy: status %d (%s)", resp.StatusCode, body.Status)
	}
	if body.Status != "healthy" {
		return body.Status, fmt.Errorf("unhealthy: status=%s", body.Status)
	}
	return body.Status, nil
}

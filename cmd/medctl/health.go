package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var healthServerURL string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check medchatd server health",
	Long: `Check the health status of a running medchatd server.

Examples:
  # Check health
  medctl health

  # Check health on a different server
  medctl health --server http://localhost:9000`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().StringVar(&healthServerURL, "server", "http://localhost:8000", "medchatd server URL")
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthServerURL + "/health")
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", healthServerURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d: %s", resp.StatusCode, body)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server at %s is %s\n", healthServerURL, health.Status)
	return nil
}

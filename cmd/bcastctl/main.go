// Command bcastctl talks to a broadcastevent server: it sends broadcasts,
// manages receivers and streams event channels.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "bcastctl",
	Short:         "Control a broadcastevent server",
	Long:          "Send broadcasts, register and unregister receivers, and listen to event channels on a broadcastevent server.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultURL := os.Getenv("BROADCASTEVENT_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "broadcastevent server base URL (env BROADCASTEVENT_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout (not applied to listen)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newClient() *apiClient {
	return newAPIClient(serverURL, timeout)
}

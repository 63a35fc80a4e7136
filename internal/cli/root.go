// Package cli implements the imagehost command line client: login, upload,
// gallery and rm against a running API server.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "imagehost",
	Short: "Command line client for the ImageHost API",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[error] %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (defaults to $BASE_URL, then http://127.0.0.1:8080)")
}

// baseURL resolves the server address: flag, then environment, then default.
func baseURL(cmd *cobra.Command) string {
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		return strings.TrimRight(v, "/")
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:8080"
}

// Package main implements the medctl CLI for operating medchatd: ingesting
// the medicines corpus and checking a running server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "medctl",
	Short: "CLI for medchatd operations",
	Long: `medctl is a command-line interface for operating the medchatd server.
It provides commands for ingesting the NHS medicines corpus into the vector
store and checking server health.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(healthCmd)
}

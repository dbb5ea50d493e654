// Package main provides the entry point for the storyshare pipeline service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "storyshare",
	Short: "Broadcast story sharing pipeline",
	Long: "Storyshare watches station video uploads, gates them against the ENPS newsroom,\n" +
		"submits eligible packages for video analysis, and distributes the resulting\n" +
		"story documents to interested affiliate stations.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "Path to the JSON config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

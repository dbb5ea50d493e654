package main

import (
	"github.com/spf13/cobra"

	"github.com/hearstlab/storyshare/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pipeline HTTP server",
	Long:  "Start the HTTP server that receives object-arrival events and analysis-service callbacks.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Port
	if servePort != 0 {
		port = servePort
	}

	srv := server.New(port, a.pipeline, a.enps, a.log)
	return srv.Start()
}

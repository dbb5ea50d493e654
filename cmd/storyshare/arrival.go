package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearstlab/storyshare/internal/pipeline"
)

var (
	arrivalName string
	arrivalURI  string
)

var arrivalCmd = &cobra.Command{
	Use:   "arrival",
	Short: "Simulate an object-arrival event",
	Long:  "Run the arrival half of the pipeline for a video as if station storage had emitted the event.",
	RunE:  runArrival,
}

func init() {
	arrivalCmd.Flags().StringVar(&arrivalName, "name", "", "Video object name (e.g. Storm-PKG.mp4)")
	arrivalCmd.Flags().StringVar(&arrivalURI, "uri", "", "Full object URI on the station proxy server")
	_ = arrivalCmd.MarkFlagRequired("name")
	_ = arrivalCmd.MarkFlagRequired("uri")
	rootCmd.AddCommand(arrivalCmd)
}

func runArrival(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	event := pipeline.ArrivalEvent{
		Name:      arrivalName,
		URI:       arrivalURI,
		CreatedAt: time.Now(),
	}

	if err := a.pipeline.HandleArrival(cmd.Context(), event); err != nil {
		return fmt.Errorf("arrival handling failed: %w", err)
	}
	return nil
}

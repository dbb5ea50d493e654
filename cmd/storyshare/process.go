package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearstlab/storyshare/internal/indexer"
)

var (
	processVideoID string
	processState   string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Manually drive the callback half of the pipeline",
	Long: "Replay an analysis-service callback for a submitted video. Useful when a\n" +
		"callback was lost: the provisional story record is still addressable by its\n" +
		"analysis-assigned video id.",
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processVideoID, "video-id", "", "Analysis-service video id")
	processCmd.Flags().StringVar(&processState, "state", string(indexer.StateProcessed), "Callback state to replay")
	_ = processCmd.MarkFlagRequired("video-id")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cb := indexer.Callback{
		VideoID: processVideoID,
		State:   indexer.ProcessingState(processState),
	}

	if err := a.pipeline.HandleCallback(cmd.Context(), cb); err != nil {
		return fmt.Errorf("callback handling failed: %w", err)
	}
	return nil
}

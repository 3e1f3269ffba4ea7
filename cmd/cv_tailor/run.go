package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/cv-tailor/internal/config"
	"github.com/jonathan/cv-tailor/internal/pipeline"
)

var (
	runTaskID  string
	runOfferID string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a generation task from the command line",
	Long: `Run a pending generation task to completion without going through the HTTP API.
With --offer a single offer is processed; without it every offer of the task runs in sequence.`,
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runTaskID, "task", "", "ID of the pending task to run (required)")
	runCmd.Flags().StringVar(&runOfferID, "offer", "", "ID of a single offer to process")
	_ = runCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(runCmd)
}

func runTask(cmd *cobra.Command, _ []string) error {
	taskID, err := uuid.Parse(runTaskID)
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var result *pipeline.RunResult
	if runOfferID != "" {
		offerID, err := uuid.Parse(runOfferID)
		if err != nil {
			return fmt.Errorf("invalid offer ID: %w", err)
		}
		result, err = a.runner.RunSingleOffer(ctx, taskID, offerID)
		if err != nil {
			return err
		}
	} else {
		result, err = a.runner.RunMultiOffer(ctx, taskID)
		if err != nil {
			return err
		}
	}

	fmt.Printf("Task %s finished: status=%s generated=%d failed=%d refunded=%d in %s\n",
		taskID, result.Status, result.Generated, result.Failed, result.CreditsRefunded, result.Duration)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

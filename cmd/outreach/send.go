package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/outreach/internal/app"
)

var (
	sendRecipients string
	sendSentLog    string
	sendBatchSize  int
	sendMinDelay   time.Duration
	sendMaxDelay   time.Duration
	sendDryRun     bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Run a send against the recipient file",
	Long: `Load recipients, drop the ones already in the sent log, and deliver
the personalized message to the rest in throttled batches. The run
exits 0 even when individual recipients fail; only startup problems,
a rejected login, or an interrupt are fatal.`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendRecipients, "recipients", "", "recipient file path (overrides config)")
	sendCmd.Flags().StringVar(&sendSentLog, "sent-log", "", "sent log path (overrides config)")
	sendCmd.Flags().IntVar(&sendBatchSize, "batch-size", 0, "recipients per batch (overrides config)")
	sendCmd.Flags().DurationVar(&sendMinDelay, "min-delay", 0, "minimum pause between batches (overrides config)")
	sendCmd.Flags().DurationVar(&sendMaxDelay, "max-delay", 0, "maximum pause between batches (overrides config)")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "compose and log without connecting to the relay")

	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if sendRecipients != "" {
		cfg.Recipients.File = sendRecipients
	}
	if sendSentLog != "" {
		cfg.SentLog.Path = sendSentLog
	}
	if sendBatchSize > 0 {
		cfg.Throttle.BatchSize = sendBatchSize
	}
	if sendMinDelay > 0 {
		cfg.Throttle.MinDelay = sendMinDelay
	}
	if sendMaxDelay > 0 {
		cfg.Throttle.MaxDelay = sendMaxDelay
	}
	if cfg.Throttle.MaxDelay < cfg.Throttle.MinDelay {
		return fmt.Errorf("max-delay (%s) must not be less than min-delay (%s)",
			cfg.Throttle.MaxDelay, cfg.Throttle.MinDelay)
	}

	application, err := app.New(cfg, sendDryRun)
	if err != nil {
		return err
	}

	report, err := application.Run(context.Background())
	if err != nil {
		if errors.Is(err, context.Canceled) && report != nil {
			// Interrupted mid-run. Everything already sent is in the
			// sent log, so a re-run picks up where this one stopped.
			fmt.Printf("interrupted after %d of %d message(s)\n", report.Sent, report.Selected)
		}
		return err
	}

	fmt.Printf("Run %s complete\n", report.RunID)
	fmt.Printf("  Sent:               %d\n", report.Sent)
	fmt.Printf("  Failed:             %d\n", report.Failed)
	fmt.Printf("  Skipped duplicates: %d\n", report.SkippedDuplicate)
	if report.SkippedMalformed > 0 {
		fmt.Printf("  Malformed rows:     %d\n", report.SkippedMalformed)
	}
	fmt.Printf("  Batches:            %d\n", report.Batches)
	fmt.Printf("  Duration:           %s\n", report.Duration.Round(time.Second))

	return nil
}

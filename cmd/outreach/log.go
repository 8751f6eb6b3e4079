package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/outreach/internal/sentlog"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Sent-log inspection commands",
}

var logStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show sent-log totals",
	RunE:  runLogStats,
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sends in order",
	RunE:  runLogList,
}

func init() {
	logCmd.AddCommand(logStatsCmd, logListCmd)
	rootCmd.AddCommand(logCmd)
}

func openSentLog() (sentlog.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := sentlog.Open(cfg.SentLog.Backend, cfg.SentLog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sent log: %w", err)
	}
	return store, nil
}

func runLogStats(cmd *cobra.Command, args []string) error {
	store, err := openSentLog()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.All()
	if err != nil {
		return err
	}

	runs := make(map[string]struct{})
	var first, last time.Time
	for _, rec := range records {
		if rec.RunID != "" {
			runs[rec.RunID] = struct{}{}
		}
		if first.IsZero() || rec.SentAt.Before(first) {
			first = rec.SentAt
		}
		if rec.SentAt.After(last) {
			last = rec.SentAt
		}
	}

	fmt.Printf("Recorded sends: %d\n", len(records))
	fmt.Printf("Runs:           %d\n", len(runs))
	if !first.IsZero() {
		fmt.Printf("First send:     %s\n", first.Format(time.RFC3339))
		fmt.Printf("Last send:      %s\n", last.Format(time.RFC3339))
	}

	return nil
}

func runLogList(cmd *cobra.Command, args []string) error {
	store, err := openSentLog()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.All()
	if err != nil {
		return err
	}

	for _, rec := range records {
		fmt.Printf("%s  %s  %s\n", rec.SentAt.Format(time.RFC3339), rec.Email, rec.RunID)
	}

	return nil
}

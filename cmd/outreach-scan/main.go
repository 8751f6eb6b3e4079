// Command outreach-scan is a standalone linter for common security
// anti-patterns in source trees. It is independent of the send
// pipeline; its exit code reflects scan findings only.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/foxzi/outreach/internal/scan"
)

var (
	scanJSON       bool
	scanReportFile string
)

var rootCmd = &cobra.Command{
	Use:   "outreach-scan [root]",
	Short: "Scan a source tree for security anti-patterns",
	Long: `Scan source files under the given root (default: current directory)
for hardcoded credentials, secret-like tokens, and risky process
execution calls. Exits 1 only when a high-severity finding exists.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.Flags().BoolVar(&scanJSON, "json", false, "emit the report as JSON")
	rootCmd.Flags().StringVar(&scanReportFile, "report", "", "also write the report to a file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	scanner := scan.NewScanner(logger)

	findings, err := scanner.Scan(root)
	if err != nil {
		return err
	}
	report := scan.NewReport(root, findings)

	if err := writeReport(report, os.Stdout); err != nil {
		return err
	}
	if scanReportFile != "" {
		f, err := os.Create(scanReportFile)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		if err := writeReport(report, f); err != nil {
			return err
		}
	}

	if report.HasHighSeverity() {
		// Bypass cobra's error printing; the report already says why.
		os.Exit(1)
	}
	return nil
}

func writeReport(report *scan.Report, w io.Writer) error {
	if scanJSON {
		return report.WriteJSON(w)
	}
	return report.WriteText(w)
}

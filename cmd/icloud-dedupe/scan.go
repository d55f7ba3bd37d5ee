package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icloud-dedupe/icloud-dedupe/internal/report"
)

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "Discover and verify iCloud sync conflict duplicates",
		Long: `Walks the given paths for iCloud-style conflict copies ("foo Copy.txt",
"foo 2.txt"), verifies each candidate against its presumed original by
content digest, and prints a report. Nothing is moved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runScan(args, opts)
		},
	}

	addScanFlags(cmd, opts)
	return cmd
}

func runScan(paths []string, opts *scanOptions) error {
	outcomes, err := runScanPipeline(paths, opts)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Println("no conflict candidates found")
		return nil
	}

	rep, err := report.Build(outcomes)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	printReport(rep)

	if len(rep.OrphanedConflict) > 0 || len(rep.ContentDiverged) > 0 || len(rep.Skipped) > 0 {
		return errPartialFailure
	}
	return nil
}

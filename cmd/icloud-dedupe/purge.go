package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icloud-dedupe/icloud-dedupe/internal/quarantine"
)

type purgeOptions struct {
	quarantineDir string
	runID         string
}

func newPurgeCmd() *cobra.Command {
	opts := &purgeOptions{}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete quarantined files",
		Long: `Permanently removes the files, manifest, and run directory for --run <id>,
or every run present in the quarantine base directory if --run is omitted.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPurge(opts)
		},
	}

	cmd.Flags().StringVar(&opts.quarantineDir, "quarantine-dir", "", "Override the quarantine base directory")
	cmd.Flags().StringVar(&opts.runID, "run", "", "Purge a specific run by id (default: all runs)")

	return cmd
}

func runPurge(opts *purgeOptions) error {
	baseDir, err := resolveBaseDir(opts.quarantineDir)
	if err != nil {
		return fmt.Errorf("resolve quarantine directory: %w", err)
	}
	engine := quarantine.New(baseDir, quarantine.Options{})

	runIDs := []string{opts.runID}
	if opts.runID == "" {
		summaries, err := engine.List()
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		runIDs = runIDs[:0]
		for _, s := range summaries {
			runIDs = append(runIDs, s.RunID)
		}
	}

	var totalFailures int
	for _, runID := range runIDs {
		failures, err := engine.Purge(runID)
		if err != nil {
			return fmt.Errorf("purge run %s: %w", runID, err)
		}
		fmt.Printf("purged run %s\n", runID)
		for _, f := range failures {
			fmt.Printf("  failed: %s\n", f.String())
		}
		totalFailures += len(failures)
	}

	if totalFailures > 0 {
		return errPartialFailure
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icloud-dedupe/icloud-dedupe/internal/quarantine"
)

type restoreOptions struct {
	quarantineDir string
	all           bool
	runID         string
	entries       []int
}

func newRestoreCmd() *cobra.Command {
	opts := &restoreOptions{}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Move quarantined files back to their original locations",
		Long: `Restores an entire run with --all, or a single run (optionally a subset
of its entries by receipt id) with --run and --entries.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runRestore(opts)
		},
	}

	cmd.Flags().StringVar(&opts.quarantineDir, "quarantine-dir", "", "Override the quarantine base directory")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Restore every run")
	cmd.Flags().StringVar(&opts.runID, "run", "", "Restore a specific run by id")
	cmd.Flags().IntSliceVar(&opts.entries, "entries", nil, "Restrict restore to these entry ids within --run")

	return cmd
}

func runRestore(opts *restoreOptions) error {
	if !opts.all && opts.runID == "" {
		return fmt.Errorf("specify --all or --run <id>")
	}
	if opts.all && len(opts.entries) > 0 {
		return fmt.Errorf("--entries requires --run, not --all")
	}

	baseDir, err := resolveBaseDir(opts.quarantineDir)
	if err != nil {
		return fmt.Errorf("resolve quarantine directory: %w", err)
	}
	engine := quarantine.New(baseDir, quarantine.Options{})

	runIDs := []string{opts.runID}
	if opts.all {
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
		failures, err := engine.Restore(runID, opts.entries)
		if err != nil {
			return fmt.Errorf("restore run %s: %w", runID, err)
		}
		fmt.Printf("restored run %s\n", runID)
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

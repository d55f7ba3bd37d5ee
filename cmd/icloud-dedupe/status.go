package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icloud-dedupe/icloud-dedupe/internal/quarantine"
)

type statusOptions struct {
	quarantineDir string
}

func newStatusCmd() *cobra.Command {
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List quarantine runs",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStatus(opts)
		},
	}

	cmd.Flags().StringVar(&opts.quarantineDir, "quarantine-dir", "", "Override the quarantine base directory")
	return cmd
}

func runStatus(opts *statusOptions) error {
	baseDir, err := resolveBaseDir(opts.quarantineDir)
	if err != nil {
		return fmt.Errorf("resolve quarantine directory: %w", err)
	}

	summaries, err := quarantine.New(baseDir, quarantine.Options{}).List()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("no quarantine runs")
		return nil
	}

	for _, s := range summaries {
		fmt.Printf("%s  %s  %d entries  %s\n", s.RunID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.EntryCount, humanizeBytes(s.TotalBytes))
	}
	return nil
}

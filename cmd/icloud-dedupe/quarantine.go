package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icloud-dedupe/icloud-dedupe/internal/quarantine"
	"github.com/icloud-dedupe/icloud-dedupe/internal/report"
)

type quarantineOptions struct {
	scanOptions
	quarantineDir string
	dryRun        bool
}

func newQuarantineCmd() *cobra.Command {
	opts := &quarantineOptions{}

	cmd := &cobra.Command{
		Use:   "quarantine <path>...",
		Short: "Scan for duplicates and move confirmed ones into quarantine",
		Long: `Runs the same discovery and verification as scan, then moves every
confirmed duplicate into a run directory under the quarantine base
directory, recording a manifest that restore and purge operate on.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runQuarantine(args, opts)
		},
	}

	addScanFlags(cmd, &opts.scanOptions)
	cmd.Flags().StringVar(&opts.quarantineDir, "quarantine-dir", "", "Override the quarantine base directory (default: $ICLOUD_DEDUPE_HOME or the platform default)")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Preview the duplicates that would be quarantined without moving anything")

	return cmd
}

// selectionsFromOutcomes extracts a quarantine.Selection for every
// ConfirmedDuplicate outcome. Selections are built from the raw verify
// outcomes rather than the canonicalized report, since report.DuplicateGroup
// does not retain each member's individual size.
func selectionsFromOutcomes(outcomes []report.Outcome) []quarantine.Selection {
	var selections []quarantine.Selection
	for _, o := range outcomes {
		if o.Kind != report.ConfirmedDuplicate {
			continue
		}
		selections = append(selections, quarantine.Selection{
			Keep:   o.Keep,
			Remove: o.Remove,
			Digest: o.Digest,
			Size:   o.Size,
		})
	}
	return selections
}

func runQuarantine(paths []string, opts *quarantineOptions) error {
	outcomes, err := runScanPipeline(paths, &opts.scanOptions)
	if err != nil {
		return err
	}

	selections := selectionsFromOutcomes(outcomes)
	if len(selections) == 0 {
		fmt.Println("no confirmed duplicates found")
		return nil
	}

	if opts.dryRun {
		fmt.Printf("would quarantine %d file(s):\n", len(selections))
		for _, s := range selections {
			fmt.Printf("  %s (keeping %s)\n", s.Remove, s.Keep)
		}
		return nil
	}

	baseDir, err := resolveBaseDir(opts.quarantineDir)
	if err != nil {
		return fmt.Errorf("resolve quarantine directory: %w", err)
	}

	engine := quarantine.New(baseDir, quarantine.Options{ShowProgress: !opts.noProgress})
	manifest, failures, err := engine.Quarantine(selections)
	if err != nil {
		return fmt.Errorf("quarantine: %w", err)
	}

	fmt.Printf("quarantined %d file(s) to run %s\n", len(manifest.Entries), manifest.RunID)
	for _, f := range failures {
		fmt.Printf("  failed: %s\n", f.String())
	}

	if len(failures) > 0 {
		return errPartialFailure
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/icloud-dedupe/icloud-dedupe/internal/cache"
	"github.com/icloud-dedupe/icloud-dedupe/internal/config"
	"github.com/icloud-dedupe/icloud-dedupe/internal/discovery"
	"github.com/icloud-dedupe/icloud-dedupe/internal/report"
	"github.com/icloud-dedupe/icloud-dedupe/internal/verify"
)

func humanizeBytes(n int64) string {
	return humanize.IBytes(uint64(n))
}

// scanOptions holds the discovery/verification flags shared by scan and
// quarantine.
type scanOptions struct {
	maxDepth       int
	followSymlinks bool
	ignoreHidden   bool
	workers        int
	noProgress     bool
	cacheFile      string
}

// addScanFlags binds the shared discovery/verification flags onto cmd.
func addScanFlags(cmd *cobra.Command, opts *scanOptions) {
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "Maximum directory depth to descend (0 = unbounded)")
	cmd.Flags().BoolVar(&opts.followSymlinks, "follow-symlinks", false, "Follow symlinks encountered during the walk")
	cmd.Flags().BoolVar(&opts.ignoreHidden, "ignore-hidden", false, "Skip dotfile entries")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of parallel workers (0 = automatic)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to digest cache file (enables caching across runs)")
}

// drainErrors consumes errors from a channel and writes them to stderr.
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kerror: %v\n", err)
	}
}

// runScanPipeline executes discovery and verification over paths and
// returns the raw, uncanonicalized outcomes. An empty slice with a nil
// error means no candidates were found.
func runScanPipeline(paths []string, opts *scanOptions) ([]report.Outcome, error) {
	showProgress := !opts.noProgress

	errCh := make(chan error, 100)
	go drainErrors(errCh)
	defer close(errCh)

	discCfg := discovery.Config{
		Roots:          paths,
		MaxDepth:       opts.maxDepth,
		FollowSymlinks: opts.followSymlinks,
		IgnoreHidden:   opts.ignoreHidden,
		Workers:        opts.workers,
		ShowProgress:   showProgress,
		ErrCh:          errCh,
	}
	candidates := discovery.New(discCfg).Run()
	if len(candidates) == 0 {
		return nil, nil
	}

	digestCache, err := cache.Open(opts.cacheFile)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = digestCache.Close() }()

	verifyOpts := verify.Options{Workers: opts.workers, ShowProgress: showProgress, ErrCh: errCh}
	outcomes := verify.New(candidates, verifyOpts, digestCache).Run()
	return outcomes, nil
}

// printReport writes a human-readable summary of a finished scan to stdout.
func printReport(rep *report.ScanReport) {
	fmt.Printf("%d duplicate group(s), %s recoverable\n", rep.GroupCount(), humanizeBytes(rep.RecoverableBytes()))
	for _, g := range rep.Groups {
		fmt.Printf("  keep %s\n", g.Keep)
		for _, m := range g.Members {
			fmt.Printf("    remove %s\n", m)
		}
	}
	if n := len(rep.OrphanedConflict); n > 0 {
		fmt.Printf("%d orphaned conflict(s) (no matching original)\n", n)
	}
	if n := len(rep.ContentDiverged); n > 0 {
		fmt.Printf("%d diverged candidate(s) (content no longer matches)\n", n)
	}
	if n := len(rep.Skipped); n > 0 {
		fmt.Printf("%d skipped\n", n)
	}
}

// resolveBaseDir resolves the quarantine base directory, honoring an
// explicit --quarantine-dir override before falling back to config.BaseDir.
func resolveBaseDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return config.BaseDir()
}

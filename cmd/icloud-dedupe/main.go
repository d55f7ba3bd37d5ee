package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes (spec §6): 0 success, 1 partial failure (some items skipped
// or diverged), 2 fatal error, 130 cancelled.
const (
	exitSuccess        = 0
	exitPartialFailure = 1
	exitFatal          = 2
	exitCancelled      = 130
)

func main() {
	// SIGINT/SIGTERM during a scan or quarantine run exits 130 rather than
	// unwinding through every in-flight worker goroutine.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ncancelled")
		os.Exit(exitCancelled)
	}()

	os.Exit(run())
}

func run() int {
	root := newRootCmd()

	err := root.Execute()
	switch {
	case err == nil:
		return exitSuccess
	case isPartialFailure(err):
		return exitPartialFailure
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitFatal
	}
}

var errPartialFailure = errors.New("partial failure")

// isPartialFailure reports whether err wraps errPartialFailure, the
// sentinel a command's RunE returns when the operation completed but some
// items were skipped, diverged, or failed.
func isPartialFailure(err error) bool {
	return errors.Is(err, errPartialFailure)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "icloud-dedupe",
		Short:         "Detect and quarantine iCloud sync conflict duplicates",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newScanCmd())
	root.AddCommand(newQuarantineCmd())
	root.AddCommand(newRestoreCmd())
	root.AddCommand(newPurgeCmd())
	root.AddCommand(newStatusCmd())

	return root
}

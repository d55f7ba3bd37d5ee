// Package xerrors defines the strongly-typed error kinds shared across the
// detection and quarantine pipeline (spec §7).
package xerrors

import "fmt"

// IoError wraps a file open/read/write/rename failure.
type IoError struct {
	Path  string
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error at %s: %v", e.Path, e.Cause)
}

func (e *IoError) Unwrap() error { return e.Cause }

// Permission reports an access-denied failure, kept distinct from IoError
// for user-facing messaging.
type Permission struct {
	Path  string
	Cause error
}

func (e *Permission) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Path)
}

func (e *Permission) Unwrap() error { return e.Cause }

// Vanished reports a TOCTOU failure: a path that existed during discovery
// no longer exists by the time it was opened.
type Vanished struct {
	Path string
}

func (e *Vanished) Error() string {
	return fmt.Sprintf("vanished: %s", e.Path)
}

// ContentChanged reports a digest mismatch detected at quarantine
// pre-flight, after a candidate was already confirmed during verification.
type ContentChanged struct {
	Path string
}

func (e *ContentChanged) Error() string {
	return fmt.Sprintf("content changed since scan: %s", e.Path)
}

// ManifestCorrupt reports a manifest that failed to parse, was missing
// required fields, or declared a schema version newer than understood.
type ManifestCorrupt struct {
	Path  string
	Cause error
}

func (e *ManifestCorrupt) Error() string {
	return fmt.Sprintf("manifest corrupt at %s: %v", e.Path, e.Cause)
}

func (e *ManifestCorrupt) Unwrap() error { return e.Cause }

// Cancelled reports user-initiated termination of a long-running operation.
type Cancelled struct{}

func (e *Cancelled) Error() string { return "cancelled" }

// InvariantViolation reports a fatal internal consistency failure, e.g. two
// distinct digests claimed for the same keep path within one report.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

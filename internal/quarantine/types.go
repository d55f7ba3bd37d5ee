// Package quarantine implements the quarantine engine (spec §4.6): moving
// confirmed duplicates into a staging area, maintaining a durable manifest,
// and supporting restore and purge.
package quarantine

import (
	"fmt"
	"time"

	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
)

// Selection is one tuple drawn from a ScanReport's duplicate groups,
// describing a single candidate to quarantine.
type Selection struct {
	Keep   string
	Remove string
	Digest types.ContentDigest
	Size   int64
}

// FailureReason enumerates why one selection or restore entry could not be
// processed.
type FailureReason int

const (
	ReasonVanished FailureReason = iota
	ReasonContentChanged
	ReasonStaleCopy
	ReasonConflict
	ReasonIOError
)

func (r FailureReason) String() string {
	switch r {
	case ReasonVanished:
		return "vanished"
	case ReasonContentChanged:
		return "content-changed"
	case ReasonStaleCopy:
		return "stale-copy"
	case ReasonConflict:
		return "conflict"
	case ReasonIOError:
		return "io-error"
	default:
		return "unknown"
	}
}

// Failure describes one selection or restore entry that could not be
// completed, and why.
type Failure struct {
	Path   string
	Reason FailureReason
	Cause  error
}

func (f Failure) String() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", f.Path, f.Reason, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Path, f.Reason)
}

// Receipt is a QuarantineReceipt (spec §3): uniquely identifies one moved
// file within a manifest.
type Receipt struct {
	ID              int                 `json:"id"`
	OriginalPath    string              `json:"original_path"`
	QuarantinedPath string              `json:"quarantined_path"`
	Digest          types.ContentDigest `json:"-"`
	DigestString    string              `json:"digest"`
	Size            int64               `json:"size"`
	MovedAt         time.Time           `json:"moved_at"`
}

// Manifest is the durable record of one quarantine run (spec §6).
//
// Invariants: QuarantinedPath is under BaseDir for every entry; all
// QuarantinedPath values are distinct; Entries preserve insertion
// (quarantine) order.
type Manifest struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	RunID     string    `json:"run_id"`
	BaseDir   string    `json:"base_dir"`
	Entries   []Receipt `json:"entries"`

	// unknown preserves fields not recognized by this schema version, so a
	// read-modify-write round trip does not silently drop forward-compatible
	// data (spec §6: "Unknown fields must be preserved").
	unknown map[string]any
}

// ManifestSummary is a lightweight listing entry for status/list output.
type ManifestSummary struct {
	RunID      string
	CreatedAt  time.Time
	EntryCount int
	TotalBytes int64
}

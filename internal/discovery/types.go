package discovery

import (
	"github.com/icloud-dedupe/icloud-dedupe/internal/events"
	"github.com/icloud-dedupe/icloud-dedupe/internal/pattern"
)

// bundleExts is the set of directory extensions treated as an opaque
// bundle rather than descended into.
var bundleExts = map[string]bool{
	".pages":     true,
	".numbers":   true,
	".keynote":   true,
	".logicx":    true,
	".app":       true,
	".framework": true,
	".xcassets":  true,
}

// Config enumerates the knobs find_candidates accepts (spec §4.3).
type Config struct {
	Roots          []string
	MaxDepth       int  // 0 = unbounded
	FollowSymlinks bool // default false
	IgnoreHidden   bool // default false; CloudPlaceholder is always skipped regardless
	Workers        int
	ShowProgress   bool
	ErrCh          chan error
	Bus            *events.Bus // optional; nil disables event publishing
}

// Candidate is a ConflictCandidate: a file whose name matched the pattern
// engine, alongside the pattern and its presumed original path.
//
// Invariant: PresumedOriginal shares the parent directory of Path and
// differs only in the final path component.
type Candidate struct {
	Path             string
	Pattern          pattern.Match
	PresumedOriginal string
	Size             int64
}

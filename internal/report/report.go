// Package report implements the aggregate classification model (spec §3,
// §4.5): grouping confirmed duplicates, collecting the other outcome
// categories, and deriving totals for a finished scan.
package report

import (
	"fmt"
	"sort"

	"github.com/icloud-dedupe/icloud-dedupe/internal/pattern"
	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
	"github.com/icloud-dedupe/icloud-dedupe/internal/xerrors"
)

// SkipReason enumerates why a candidate could not be classified.
type SkipReason int

const (
	ReasonReadError SkipReason = iota
	ReasonPermission
	ReasonUnsupportedKind
	ReasonVanished
)

func (r SkipReason) String() string {
	switch r {
	case ReasonReadError:
		return "read-error"
	case ReasonPermission:
		return "permission"
	case ReasonUnsupportedKind:
		return "unsupported-kind"
	case ReasonVanished:
		return "vanished"
	default:
		return "unknown"
	}
}

// OutcomeKind tags the variant an Outcome carries.
type OutcomeKind int

const (
	ConfirmedDuplicate OutcomeKind = iota
	OrphanedConflict
	ContentDiverged
	Skipped
)

// Outcome is the VerificationOutcome tagged variant (spec §3). Only the
// fields relevant to Kind are populated.
type Outcome struct {
	Kind OutcomeKind

	Keep   string // ConfirmedDuplicate, ContentDiverged
	Remove string // ConfirmedDuplicate, ContentDiverged

	Digest types.ContentDigest // ConfirmedDuplicate
	Size   int64               // ConfirmedDuplicate

	KeepDigest   types.ContentDigest // ContentDiverged
	RemoveDigest types.ContentDigest // ContentDiverged

	Candidate string        // OrphanedConflict, Skipped
	Pattern   pattern.Match // OrphanedConflict

	Reason SkipReason // Skipped
}

// DuplicateGroup aggregates all confirmed duplicates sharing one keep path.
//
// Invariant: Members are distinct and all share Digest, which equals the
// digest of Keep.
type DuplicateGroup struct {
	Keep       string
	Members    []string
	Digest     types.ContentDigest
	TotalBytes int64
}

// ScanReport is the immutable aggregate produced by verifying a batch of
// candidates: constructed once via Build, read many times thereafter.
type ScanReport struct {
	Groups           []DuplicateGroup
	OrphanedConflict []Outcome
	ContentDiverged  []Outcome
	Skipped          []Outcome
}

// GroupCount returns the number of duplicate groups.
func (r *ScanReport) GroupCount() int { return len(r.Groups) }

// RecoverableBytes sums the bytes reclaimable by quarantining every member
// across every group.
func (r *ScanReport) RecoverableBytes() int64 {
	var total int64
	for _, g := range r.Groups {
		total += g.TotalBytes
	}
	return total
}

// builder accumulates outcomes sequentially; it is the only place ever
// allowed to mutate shared report state (spec §5: "the report builder... is
// accessed only by an aggregator that consumes outcomes sequentially").
type builder struct {
	byKeep map[string]*DuplicateGroup
	order  []string // insertion order of keep paths, for deterministic iteration pre-sort

	orphaned []Outcome
	diverged []Outcome
	skipped  []Outcome
}

func newBuilder() *builder {
	return &builder{byKeep: make(map[string]*DuplicateGroup)}
}

// add folds one outcome into the builder's running aggregate. Returns an
// *xerrors.InvariantViolation if a ConfirmedDuplicate's digest disagrees
// with an existing group's digest for the same keep path.
func (b *builder) add(o Outcome) error {
	switch o.Kind {
	case ConfirmedDuplicate:
		g, ok := b.byKeep[o.Keep]
		if !ok {
			g = &DuplicateGroup{Keep: o.Keep, Digest: o.Digest}
			b.byKeep[o.Keep] = g
			b.order = append(b.order, o.Keep)
		} else if !g.Digest.Equal(o.Digest) {
			return &xerrors.InvariantViolation{
				Detail: fmt.Sprintf("keep %s claimed with two distinct digests: %s and %s", o.Keep, g.Digest, o.Digest),
			}
		}
		g.Members = append(g.Members, o.Remove)
		g.TotalBytes += o.Size
	case OrphanedConflict:
		b.orphaned = append(b.orphaned, o)
	case ContentDiverged:
		b.diverged = append(b.diverged, o)
	case Skipped:
		b.skipped = append(b.skipped, o)
	}
	return nil
}

// Build canonicalizes a finished batch of outcomes into an immutable
// ScanReport: groups sorted by total_bytes descending then keep ascending;
// within each group, members sorted by path ascending (spec §4.4).
func Build(outcomes []Outcome) (*ScanReport, error) {
	b := newBuilder()
	for _, o := range outcomes {
		if err := b.add(o); err != nil {
			return nil, err
		}
	}

	groups := make([]DuplicateGroup, 0, len(b.order))
	for _, keep := range b.order {
		g := *b.byKeep[keep]
		sort.Strings(g.Members)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TotalBytes != groups[j].TotalBytes {
			return groups[i].TotalBytes > groups[j].TotalBytes
		}
		return groups[i].Keep < groups[j].Keep
	})

	return &ScanReport{
		Groups:           groups,
		OrphanedConflict: b.orphaned,
		ContentDiverged:  b.diverged,
		Skipped:          b.skipped,
	}, nil
}

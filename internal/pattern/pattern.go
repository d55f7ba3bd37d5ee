// Package pattern implements the pure filename grammar that recognizes
// iCloud sync conflict duplicates and derives the presumed original path
// for a candidate.
//
// Detection operates on the final path component only; directory names are
// never interpreted. The grammar is intentionally narrow: a literal single
// ASCII space must separate the stem from the "Copy"/numeric suffix, and
// "Copy" is case-sensitive. See Detect for the exact rules.
package pattern

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind distinguishes the two conflict-name shapes iCloud produces.
type Kind int

const (
	// KindCopy matches "<stem> Copy.<ext>" or "<stem> Copy N.<ext>".
	KindCopy Kind = iota
	// KindNumbered matches "<stem> N.<ext>" (N >= 2).
	KindNumbered
)

func (k Kind) String() string {
	switch k {
	case KindCopy:
		return "copy"
	case KindNumbered:
		return "numbered"
	default:
		return "unknown"
	}
}

// Match describes a detected conflict pattern.
//
// Index is 0 for a bare "Copy" suffix (no trailing number), and the
// parsed integer (>= 2) for "Copy N" or "<stem> N" suffixes.
type Match struct {
	Kind  Kind
	Index int
}

// copyNRe matches " Copy N" where N is one or more ASCII digits, anchored
// to the end of the stem.
var copyNRe = regexp.MustCompile(`^(.*) Copy ([0-9]+)$`)

// numberedRe matches " N" where N is one or more ASCII digits, anchored to
// the end of the stem.
var numberedRe = regexp.MustCompile(`^(.*) ([0-9]+)$`)

// Detect inspects name (the final path component — must contain no path
// separators) and reports the conflict pattern it matches, if any.
//
// Algorithm (spec §4.1):
//  1. Split name into (stem, ext) at the last '.'; if there is no '.', ext
//     is empty and stem is the whole name.
//  2. Test stem in order: exact suffix " Copy" (no index); " Copy N" with
//     N >= 2; then " N" with N >= 2. First match wins.
func Detect(name string) (Match, bool) {
	stem, _ := splitExt(name)

	if nonEmptyStem, ok := strings.CutSuffix(stem, " Copy"); ok && nonEmptyStem != "" {
		return Match{Kind: KindCopy, Index: 0}, true
	}

	if m := copyNRe.FindStringSubmatch(stem); m != nil && m[1] != "" {
		if n, ok := parseIndex(m[2]); ok {
			return Match{Kind: KindCopy, Index: n}, true
		}
	}

	if m := numberedRe.FindStringSubmatch(stem); m != nil && m[1] != "" {
		if n, ok := parseIndex(m[2]); ok {
			return Match{Kind: KindNumbered, Index: n}, true
		}
	}

	return Match{}, false
}

// IsConflict reports whether name matches any conflict pattern. Equivalent
// to checking the second return value of Detect.
func IsConflict(name string) bool {
	_, ok := Detect(name)
	return ok
}

// parseIndex parses a digit run as a conflict index, requiring N >= 2.
// Leading-zero runs (e.g. "02") are accepted as valid decimal integers —
// the grammar only constrains the character class, not canonical form.
func parseIndex(digits string) (int, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 2 {
		return 0, false
	}
	return n, true
}

// DeriveOriginal computes the presumed original filename for name given
// its detected pattern: the stem before the conflict suffix, plus the
// original extension (trailing dot omitted when ext is empty).
func DeriveOriginal(name string, m Match) string {
	stem, ext := splitExt(name)

	switch m.Kind {
	case KindCopy:
		if m.Index == 0 {
			stem = strings.TrimSuffix(stem, " Copy")
		} else {
			suffix := " Copy " + strconv.Itoa(m.Index)
			stem = strings.TrimSuffix(stem, suffix)
		}
	case KindNumbered:
		suffix := " " + strconv.Itoa(m.Index)
		stem = strings.TrimSuffix(stem, suffix)
	}

	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

// splitExt splits name into (stem, ext) at the last '.', with ext not
// including the dot. If name has no '.', ext is empty and stem is name
// unchanged. Dotfiles get no special handling: a leading-dot-only name
// like ".bashrc" has its lone '.' at index 0, so stem is empty and ext is
// "bashrc".
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

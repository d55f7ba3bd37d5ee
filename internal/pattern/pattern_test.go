package pattern

import (
	"fmt"
	"testing"
)

// TestDetectPositiveCases covers the literal conflict shapes the grammar
// recognizes: bare "Copy", "Copy N", and plain "N".
func TestDetectPositiveCases(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKind  Kind
		wantIndex int
	}{
		{"bare copy", "foo Copy.txt", KindCopy, 0},
		{"copy with index", "foo Copy 2.txt", KindCopy, 2},
		{"copy with larger index", "foo Copy 10.txt", KindCopy, 10},
		{"numbered", "c 2.txt", KindNumbered, 2},
		{"numbered no extension", "c 2", KindNumbered, 2},
		{"bare copy no extension", "foo Copy", KindCopy, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Detect(tt.input)
			if !ok {
				t.Fatalf("Detect(%q) = no match, want %v{%d}", tt.input, tt.wantKind, tt.wantIndex)
			}
			if m.Kind != tt.wantKind || m.Index != tt.wantIndex {
				t.Errorf("Detect(%q) = %v{%d}, want %v{%d}", tt.input, m.Kind, m.Index, tt.wantKind, tt.wantIndex)
			}
		})
	}
}

// TestDetectBoundaryNegatives covers the spec's explicit non-matches: an
// empty stem, a lowercase "copy", and an index below 2.
func TestDetectBoundaryNegatives(t *testing.T) {
	tests := []string{
		"Copy.txt",    // no stem before " Copy"
		"foo copy.txt", // lowercase "copy" does not match
		"foo 1.txt",   // N must be >= 2
		"foo.icloud",  // not a conflict suffix at all (CloudPlaceholder is discovery's concern, not pattern's)
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			if m, ok := Detect(name); ok {
				t.Errorf("Detect(%q) = %v, want no match", name, m)
			}
		})
	}
}

// TestIsConflictAgreesWithDetect checks IsConflict is exactly Detect's
// second return value, for both matching and non-matching names.
func TestIsConflictAgreesWithDetect(t *testing.T) {
	names := []string{"foo Copy.txt", "Copy.txt", "foo copy.txt", "foo 1.txt", "c 2.txt"}
	for _, name := range names {
		_, wantOk := Detect(name)
		if gotOk := IsConflict(name); gotOk != wantOk {
			t.Errorf("IsConflict(%q) = %v, want %v", name, gotOk, wantOk)
		}
	}
}

// TestP1DetectAgreesWithDeriveOriginal is the spec's P1 invariant: for
// every name n, detect(n) matches iff derive_original(n, detect(n)) != n.
func TestP1DetectAgreesWithDeriveOriginal(t *testing.T) {
	names := []string{
		"foo.txt", "foo Copy.txt", "foo Copy 2.txt", "c 2.txt", "c 3.txt",
		"Copy.txt", "foo copy.txt", "foo 1.txt", "foo.icloud", "noext", "noext Copy",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			m, ok := Detect(name)
			if !ok {
				// No derive_original to compare against when there is no match;
				// P1 only constrains the matching direction.
				return
			}
			original := DeriveOriginal(name, m)
			if original == name {
				t.Errorf("Detect(%q) matched but DeriveOriginal returned the same name", name)
			}
		})
	}
}

// TestP2CopyAndNumberedConstruction is the spec's P2 invariant: for every
// (stem, ext, index >= 2), "<stem> Copy <index>.<ext>" detects as
// Copy{index} and "<stem> <index>.<ext>" detects as Numbered{index}.
func TestP2CopyAndNumberedConstruction(t *testing.T) {
	stems := []string{"foo", "a b c", "report"}
	exts := []string{"txt", "pages", ""}
	indices := []int{2, 3, 10, 999}

	for _, stem := range stems {
		for _, ext := range exts {
			for _, idx := range indices {
				suffix := "." + ext
				if ext == "" {
					suffix = ""
				}

				copyName := fmt.Sprintf("%s Copy %d%s", stem, idx, suffix)
				m, ok := Detect(copyName)
				if !ok || m.Kind != KindCopy || m.Index != idx {
					t.Errorf("Detect(%q) = (%v, %v), want Copy{%d}", copyName, m, ok, idx)
				}

				numberedName := fmt.Sprintf("%s %d%s", stem, idx, suffix)
				m, ok = Detect(numberedName)
				if !ok || m.Kind != KindNumbered || m.Index != idx {
					t.Errorf("Detect(%q) = (%v, %v), want Numbered{%d}", numberedName, m, ok, idx)
				}
			}
		}
	}
}

// TestDeriveOriginalRoundTrip confirms derive_original recovers the exact
// pre-conflict filename for both pattern kinds.
func TestDeriveOriginalRoundTrip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"foo Copy.txt", "foo.txt"},
		{"foo Copy 2.txt", "foo.txt"},
		{"c 2.txt", "c.txt"},
		{"c 3.txt", "c.txt"},
		{"foo Copy", "foo"},
		{"report Copy 5", "report"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, ok := Detect(tt.input)
			if !ok {
				t.Fatalf("Detect(%q) = no match", tt.input)
			}
			if got := DeriveOriginal(tt.input, m); got != tt.want {
				t.Errorf("DeriveOriginal(%q, %v) = %q, want %q", tt.input, m, got, tt.want)
			}
		})
	}
}

// TestDetectDotfileStem exercises splitExt's documented literal "last dot"
// behavior on a leading-dot-only name: the stem is empty, so none of the
// conflict suffix checks can match.
func TestDetectDotfileStem(t *testing.T) {
	if _, ok := Detect(".bashrc"); ok {
		t.Error("Detect(\".bashrc\") = match, want no match")
	}
}

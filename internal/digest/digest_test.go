package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
)

func TestForFileIdenticalContent(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")

	if err := os.WriteFile(a, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	da, err := ForFile(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := ForFile(b)
	if err != nil {
		t.Fatal(err)
	}

	if !da.Equal(db) {
		t.Error("expected identical content to produce equal digests")
	}
}

func TestForFileDifferentContent(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")

	if err := os.WriteFile(a, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("world"), 0o644); err != nil {
		t.Fatal(err)
	}

	da, err := ForFile(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := ForFile(b)
	if err != nil {
		t.Fatal(err)
	}

	if da.Equal(db) {
		t.Error("expected different content to produce different digests")
	}
}

func TestEqualHelper(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	_ = os.WriteFile(a, []byte("same"), 0o644)
	_ = os.WriteFile(b, []byte("same"), 0o644)

	eq, err := Equal(a, b, types.KindRegular)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Error("expected Equal to report true for identical files")
	}
}

func TestForBundleOrderIndependence(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()

	// rootA gets a.txt first, rootB gets sub/b.txt first.
	for i, root := range []string{rootA, rootB} {
		if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
			t.Fatal(err)
		}
		writeA := func() {
			if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("aaa"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		writeB := func() {
			if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("bbb"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		if i == 0 {
			writeA()
			writeB()
		} else {
			writeB()
			writeA()
		}
	}

	dA, err := ForBundle(rootA)
	if err != nil {
		t.Fatal(err)
	}
	dB, err := ForBundle(rootB)
	if err != nil {
		t.Fatal(err)
	}

	if !dA.Equal(dB) {
		t.Error("identical bundle trees should produce equal digests regardless of construction order")
	}
}

func TestForBundleDetectsDifference(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()

	_ = os.WriteFile(filepath.Join(rootA, "a.txt"), []byte("aaa"), 0o644)
	_ = os.WriteFile(filepath.Join(rootB, "a.txt"), []byte("zzz"), 0o644)

	dA, err := ForBundle(rootA)
	if err != nil {
		t.Fatal(err)
	}
	dB, err := ForBundle(rootB)
	if err != nil {
		t.Fatal(err)
	}

	if dA.Equal(dB) {
		t.Error("bundles with different content should produce different digests")
	}
}

func TestForBundleHashesSymlinkTargetNotContent(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real.txt")
	if err := os.WriteFile(target, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("real.txt", filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	d1, err := ForBundle(root)
	if err != nil {
		t.Fatal(err)
	}

	// Point the symlink elsewhere without touching file content; the
	// bundle digest must change because it hashes the link text.
	if err := os.Remove(filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("other-target.txt", filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}

	d2, err := ForBundle(root)
	if err != nil {
		t.Fatal(err)
	}

	if d1.Equal(d2) {
		t.Error("changing a symlink's target text should change the bundle digest")
	}
}

func TestForPathRejectsCloudPlaceholder(t *testing.T) {
	if _, err := ForPath("/irrelevant", types.KindCloudPlaceholder); err == nil {
		t.Error("expected error when hashing a cloud placeholder")
	}
}

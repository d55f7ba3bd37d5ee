package quarantine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/icloud-dedupe/icloud-dedupe/internal/digest"
	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func selectionFor(t *testing.T, keep, remove string) Selection {
	t.Helper()
	info, err := os.Stat(remove)
	if err != nil {
		t.Fatal(err)
	}
	d, err := digest.ForPath(remove, types.KindRegular)
	if err != nil {
		t.Fatal(err)
	}
	return Selection{Keep: keep, Remove: remove, Digest: d, Size: info.Size()}
}

func TestQuarantineMovesFileAndWritesManifest(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	keep := filepath.Join(src, "foo.txt")
	remove := filepath.Join(src, "foo Copy.txt")
	writeFile(t, keep, "hello")
	writeFile(t, remove, "hello")

	sel := selectionFor(t, keep, remove)

	e := New(base, Options{})
	manifest, failures, err := e.Quarantine([]Selection{sel})
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %+v", failures)
	}
	if len(manifest.Entries) != 1 {
		t.Fatalf("expected 1 manifest entry, got %d", len(manifest.Entries))
	}

	if _, err := os.Stat(remove); !os.IsNotExist(err) {
		t.Error("expected source file to be gone after quarantine")
	}

	receipt := manifest.Entries[0]
	if _, err := os.Stat(receipt.QuarantinedPath); err != nil {
		t.Errorf("expected quarantined file at %s: %v", receipt.QuarantinedPath, err)
	}

	manifestPath := filepath.Join(base, manifest.RunID, manifestFileName)
	if _, err := os.Stat(manifestPath); err != nil {
		t.Errorf("expected manifest on disk at %s: %v", manifestPath, err)
	}
}

func TestQuarantineDetectsContentChangedAtPreflight(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	keep := filepath.Join(src, "foo.txt")
	remove := filepath.Join(src, "foo Copy.txt")
	writeFile(t, keep, "hello")
	writeFile(t, remove, "hello")

	sel := selectionFor(t, keep, remove)

	// Content changes after the scan captured the digest, before quarantine runs.
	writeFile(t, remove, "hello, but different now")

	e := New(base, Options{})
	manifest, failures, err := e.Quarantine([]Selection{sel})
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}
	if len(manifest.Entries) != 0 {
		t.Fatalf("expected no entries quarantined, got %d", len(manifest.Entries))
	}
	if len(failures) != 1 || failures[0].Reason != ReasonContentChanged {
		t.Fatalf("expected ContentChanged failure, got %+v", failures)
	}
	if _, err := os.Stat(remove); err != nil {
		t.Error("changed file should remain in place after a failed quarantine")
	}
}

func TestQuarantineDetectsVanishedAtPreflight(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	keep := filepath.Join(src, "foo.txt")
	remove := filepath.Join(src, "foo Copy.txt")
	writeFile(t, keep, "hello")
	writeFile(t, remove, "hello")

	sel := selectionFor(t, keep, remove)
	if err := os.Remove(remove); err != nil {
		t.Fatal(err)
	}

	e := New(base, Options{})
	_, failures, err := e.Quarantine([]Selection{sel})
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}
	if len(failures) != 1 || failures[0].Reason != ReasonVanished {
		t.Fatalf("expected Vanished failure, got %+v", failures)
	}
}

func TestQuarantineThenRestoreRecoversOriginal(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	keep := filepath.Join(src, "foo.txt")
	remove := filepath.Join(src, "foo Copy.txt")
	writeFile(t, keep, "hello")
	writeFile(t, remove, "hello")

	sel := selectionFor(t, keep, remove)

	e := New(base, Options{})
	manifest, _, err := e.Quarantine([]Selection{sel})
	if err != nil {
		t.Fatal(err)
	}

	failures, err := e.Restore(manifest.RunID, nil)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no restore failures, got %+v", failures)
	}

	if _, err := os.Stat(remove); err != nil {
		t.Errorf("expected restored file at %s: %v", remove, err)
	}

	runDir := filepath.Join(base, manifest.RunID)
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Error("expected emptied run directory to be removed")
	}
}

func TestRestoreDetectsConflict(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	keep := filepath.Join(src, "foo.txt")
	remove := filepath.Join(src, "foo Copy.txt")
	writeFile(t, keep, "hello")
	writeFile(t, remove, "hello")

	sel := selectionFor(t, keep, remove)

	e := New(base, Options{})
	manifest, _, err := e.Quarantine([]Selection{sel})
	if err != nil {
		t.Fatal(err)
	}

	// Something else now occupies the original path, with different content.
	writeFile(t, remove, "a brand new unrelated file, much longer than hello")

	failures, err := e.Restore(manifest.RunID, nil)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(failures) != 1 || failures[0].Reason != ReasonConflict {
		t.Fatalf("expected Conflict failure, got %+v", failures)
	}

	manifestPath := filepath.Join(base, manifest.RunID, manifestFileName)
	m, err := readManifest(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Entries) != 1 {
		t.Errorf("expected the unresolved entry to remain in the manifest, got %d entries", len(m.Entries))
	}
}

func TestPurgeRemovesFilesAndManifest(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	keep := filepath.Join(src, "foo.txt")
	remove := filepath.Join(src, "foo Copy.txt")
	writeFile(t, keep, "hello")
	writeFile(t, remove, "hello")

	sel := selectionFor(t, keep, remove)

	e := New(base, Options{})
	manifest, _, err := e.Quarantine([]Selection{sel})
	if err != nil {
		t.Fatal(err)
	}
	quarantinedPath := manifest.Entries[0].QuarantinedPath

	if failures, err := e.Purge(manifest.RunID); err != nil || len(failures) != 0 {
		t.Fatalf("Purge failed: failures=%+v err=%v", failures, err)
	}

	if _, err := os.Stat(quarantinedPath); !os.IsNotExist(err) {
		t.Error("expected quarantined file removed by purge")
	}
	runDir := filepath.Join(base, manifest.RunID)
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Error("expected run directory removed by purge")
	}
}

func TestListEnumeratesRunsMostRecentFirst(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	e := New(base, Options{})

	var runIDs []string
	for i := 0; i < 3; i++ {
		keep := filepath.Join(src, "foo.txt")
		remove := filepath.Join(src, "foo Copy.txt")
		writeFile(t, keep, "hello")
		writeFile(t, remove, "hello")

		sel := selectionFor(t, keep, remove)
		manifest, _, err := e.Quarantine([]Selection{sel})
		if err != nil {
			t.Fatal(err)
		}
		runIDs = append(runIDs, manifest.RunID)
	}

	summaries, err := e.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 manifests, got %d", len(summaries))
	}
	for i, s := range summaries {
		if want := runIDs[len(runIDs)-1-i]; s.RunID != want {
			t.Errorf("summaries[%d].RunID = %s, want %s (most recent first)", i, s.RunID, want)
		}
	}
}

func TestSelectiveRestoreByEntryID(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	keepA := filepath.Join(src, "a.txt")
	removeA := filepath.Join(src, "a Copy.txt")
	writeFile(t, keepA, "aaa")
	writeFile(t, removeA, "aaa")

	keepB := filepath.Join(src, "b.txt")
	removeB := filepath.Join(src, "b Copy.txt")
	writeFile(t, keepB, "bbb")
	writeFile(t, removeB, "bbb")

	selA := selectionFor(t, keepA, removeA)
	selB := selectionFor(t, keepB, removeB)

	e := New(base, Options{})
	manifest, _, err := e.Quarantine([]Selection{selA, selB})
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(manifest.Entries))
	}

	var keepID int
	for _, r := range manifest.Entries {
		if r.OriginalPath == removeB {
			keepID = r.ID
		}
	}

	failures, err := e.Restore(manifest.RunID, []int{keepID})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %+v", failures)
	}

	if _, err := os.Stat(removeB); err != nil {
		t.Errorf("expected %s restored", removeB)
	}
	if _, err := os.Stat(removeA); !os.IsNotExist(err) {
		t.Error("expected a Copy.txt to remain quarantined")
	}

	manifestPath := filepath.Join(base, manifest.RunID, manifestFileName)
	m, err := readManifest(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", len(m.Entries))
	}
}

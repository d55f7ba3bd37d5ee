package quarantine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icloud-dedupe/icloud-dedupe/internal/digest"
	"github.com/icloud-dedupe/icloud-dedupe/internal/events"
	"github.com/icloud-dedupe/icloud-dedupe/internal/progress"
	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
	"github.com/icloud-dedupe/icloud-dedupe/internal/xerrors"
)

// Options configures an Engine run.
type Options struct {
	ShowProgress bool
	Bus          *events.Bus // optional; nil disables event publishing
}

// Engine implements the quarantine state machine (spec §4.6): moving
// confirmed duplicates into a staging area under BaseDir, maintaining a
// durable manifest per run, and supporting restore and purge.
//
// Quarantine itself is deliberately single-threaded — correctness of the
// manifest (never a moved file without a matching entry) outweighs the
// throughput a worker pool would buy, and every write is already bounded
// by disk I/O rather than CPU.
type Engine struct {
	BaseDir string
	opts    Options
}

// New creates an Engine rooted at baseDir, created with mode 0700 on first
// use if it does not already exist.
func New(baseDir string, opts Options) *Engine {
	return &Engine{BaseDir: baseDir, opts: opts}
}

// newRunID generates a run_id in the spec's
// "YYYYMMDDTHHMMSSZ-<6-char-random>" format: a UTC timestamp for
// at-a-glance ordering plus a random suffix for uniqueness against
// back-to-back runs within the same second.
func newRunID() string {
	ts := time.Now().UTC().Format("20060102T150405Z")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s", ts, suffix)
}

// Quarantine moves every selection's Remove path into a fresh run
// directory under BaseDir, writing the manifest after each successful
// move. Selections that fail pre-flight or the move itself are reported
// in the returned failure list rather than aborting the run.
func (e *Engine) Quarantine(selections []Selection) (*Manifest, []Failure, error) {
	if err := os.MkdirAll(e.BaseDir, 0o700); err != nil {
		return nil, nil, &xerrors.IoError{Path: e.BaseDir, Cause: err}
	}

	runID := newRunID()
	runDir := filepath.Join(e.BaseDir, runID)
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return nil, nil, &xerrors.IoError{Path: runDir, Cause: err}
	}
	manifestPath := filepath.Join(runDir, manifestFileName)

	manifest := &Manifest{
		Version:   manifestVersion,
		CreatedAt: time.Now().UTC(),
		RunID:     runID,
		BaseDir:   e.BaseDir,
	}

	var failures []Failure
	bar := progress.New(e.opts.ShowProgress, int64(len(selections)))
	nextID := 1

	for i, sel := range selections {
		e.publish(events.Event{Kind: events.QuarantineProgress, Done: i, Total: len(selections), Current: sel.Remove})

		receipt, failure := e.quarantineOne(sel, runDir, nextID)
		if failure != nil {
			slog.Warn("quarantine pre-flight rejected selection", "path", sel.Remove, "reason", failure.Reason, "error", failure.Cause)
			failures = append(failures, *failure)
			bar.Set(uint64(i + 1))
			continue
		}

		manifest.Entries = append(manifest.Entries, *receipt)
		nextID++

		if err := writeManifest(manifestPath, manifest); err != nil {
			return manifest, failures, &xerrors.IoError{Path: manifestPath, Cause: err}
		}
		bar.Set(uint64(i + 1))
	}

	bar.Finish(finishStats{n: len(manifest.Entries), failed: len(failures)})
	e.publish(events.Event{Kind: events.QuarantineComplete, Manifest: manifest, Failed: failuresAsAny(failures)})

	return manifest, failures, nil
}

// quarantineOne re-validates one selection against the live filesystem,
// moves it into runDir, and returns its receipt. Pre-flight failures and
// move failures are both reported via the returned *Failure rather than
// an error, since one bad selection must not abort the run.
func (e *Engine) quarantineOne(sel Selection, runDir string, id int) (*Receipt, *Failure) {
	removeInfo, err := os.Lstat(sel.Remove)
	if os.IsNotExist(err) {
		return nil, &Failure{Path: sel.Remove, Reason: ReasonVanished, Cause: &xerrors.Vanished{Path: sel.Remove}}
	}
	if err != nil {
		return nil, &Failure{Path: sel.Remove, Reason: ReasonIOError, Cause: err}
	}

	if _, err := os.Lstat(sel.Keep); os.IsNotExist(err) {
		return nil, &Failure{Path: sel.Keep, Reason: ReasonVanished, Cause: &xerrors.Vanished{Path: sel.Keep}}
	}

	if removeInfo.Size() != sel.Size {
		return nil, &Failure{Path: sel.Remove, Reason: ReasonContentChanged, Cause: &xerrors.ContentChanged{Path: sel.Remove}}
	}

	kind := types.KindRegular
	if removeInfo.IsDir() {
		kind = types.KindBundle
	}
	liveDigest, err := digest.ForPath(sel.Remove, kind)
	if err != nil {
		return nil, &Failure{Path: sel.Remove, Reason: ReasonIOError, Cause: err}
	}
	if !liveDigest.Equal(sel.Digest) {
		return nil, &Failure{Path: sel.Remove, Reason: ReasonContentChanged, Cause: &xerrors.ContentChanged{Path: sel.Remove}}
	}

	dest := filepath.Join(runDir, relativizeAbsolute(sel.Remove))
	if err := moveFile(sel.Remove, dest); err != nil {
		if err == errStaleCopy {
			return nil, &Failure{Path: sel.Remove, Reason: ReasonStaleCopy, Cause: err}
		}
		return nil, &Failure{Path: sel.Remove, Reason: ReasonIOError, Cause: err}
	}

	return &Receipt{
		ID:              id,
		OriginalPath:    sel.Remove,
		QuarantinedPath: dest,
		Digest:          sel.Digest,
		DigestString:    sel.Digest.String(),
		Size:            sel.Size,
		MovedAt:         time.Now().UTC(),
	}, nil
}

// relativizeAbsolute strips the leading path separator from an absolute
// path so it can be joined under a run directory (spec §4.6: "the
// relative path preserves the source absolute path hierarchy (leading
// `/` dropped) to allow exact restore").
func relativizeAbsolute(path string) string {
	return strings.TrimPrefix(filepath.Clean(path), string(filepath.Separator))
}

// Restore moves entries back to their original locations and removes
// them from the manifest. entryIDs selects a subset by receipt id; a nil
// or empty slice restores every entry. The run directory (and its
// manifest) is deleted once emptied.
func (e *Engine) Restore(runID string, entryIDs []int) ([]Failure, error) {
	runDir := filepath.Join(e.BaseDir, runID)
	manifestPath := filepath.Join(runDir, manifestFileName)

	manifest, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	wanted := toSet(entryIDs)
	var remaining []Receipt
	var failures []Failure
	total := len(manifest.Entries)

	for i, r := range manifest.Entries {
		if len(wanted) > 0 && !wanted[r.ID] {
			remaining = append(remaining, r)
			continue
		}

		e.publish(events.Event{Kind: events.QuarantineProgress, Done: i, Total: total, Current: r.OriginalPath})

		if failure := e.restoreOne(r); failure != nil {
			failures = append(failures, *failure)
			remaining = append(remaining, r) // leave the quarantined file and its entry in place
			continue
		}

		// Persist every entry not yet restored — the processed-and-kept
		// prefix plus the still-unprocessed tail — so a crash here never
		// leaves a quarantined file with no manifest reference.
		snapshot := &Manifest{
			Version:   manifest.Version,
			CreatedAt: manifest.CreatedAt,
			RunID:     manifest.RunID,
			BaseDir:   manifest.BaseDir,
			Entries:   append(append([]Receipt{}, remaining...), manifest.Entries[i+1:]...),
			unknown:   manifest.unknown,
		}
		if err := writeManifest(manifestPath, snapshot); err != nil {
			return failures, &xerrors.IoError{Path: manifestPath, Cause: err}
		}
	}

	manifest.Entries = remaining
	if len(manifest.Entries) == 0 {
		_ = os.Remove(manifestPath)
		_ = os.Remove(runDir)
	} else if err := writeManifest(manifestPath, manifest); err != nil {
		return failures, &xerrors.IoError{Path: manifestPath, Cause: err}
	}

	return failures, nil
}

// restoreOne moves one receipt's quarantined file back to its original
// path. A pre-existing, differently-sized file at original_path fails
// the entry with ReasonConflict rather than overwriting user data.
func (e *Engine) restoreOne(r Receipt) *Failure {
	if info, err := os.Lstat(r.OriginalPath); err == nil {
		if info.Size() != r.Size {
			return &Failure{Path: r.OriginalPath, Reason: ReasonConflict, Cause: fmt.Errorf("original path now occupied by different content")}
		}
	}

	if _, err := os.Lstat(r.QuarantinedPath); os.IsNotExist(err) {
		return &Failure{Path: r.QuarantinedPath, Reason: ReasonVanished, Cause: &xerrors.Vanished{Path: r.QuarantinedPath}}
	}

	if err := moveFile(r.QuarantinedPath, r.OriginalPath); err != nil {
		if err == errStaleCopy {
			return &Failure{Path: r.QuarantinedPath, Reason: ReasonStaleCopy, Cause: err}
		}
		return &Failure{Path: r.QuarantinedPath, Reason: ReasonIOError, Cause: err}
	}
	return nil
}

// Purge permanently deletes every file referenced by a manifest, then the
// manifest, then the run directory. Failures accumulate per-entry rather
// than aborting.
func (e *Engine) Purge(runID string) ([]Failure, error) {
	runDir := filepath.Join(e.BaseDir, runID)
	manifestPath := filepath.Join(runDir, manifestFileName)

	manifest, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	var failures []Failure
	for _, r := range manifest.Entries {
		if err := os.RemoveAll(r.QuarantinedPath); err != nil {
			failures = append(failures, Failure{Path: r.QuarantinedPath, Reason: ReasonIOError, Cause: err})
		}
	}

	_ = os.Remove(manifestPath)
	_ = os.RemoveAll(runDir)
	return failures, nil
}

// List enumerates manifests present under BaseDir, most recent first.
func (e *Engine) List() ([]ManifestSummary, error) {
	return listManifests(e.BaseDir)
}

func toSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func failuresAsAny(failures []Failure) []any {
	out := make([]any, len(failures))
	for i, f := range failures {
		out[i] = f
	}
	return out
}

func (e *Engine) publish(ev events.Event) {
	if e.opts.Bus != nil {
		e.opts.Bus.Publish(ev)
	}
}

type finishStats struct{ n, failed int }

func (f finishStats) String() string {
	if f.failed == 0 {
		return fmt.Sprintf("quarantined %d files", f.n)
	}
	return fmt.Sprintf("quarantined %d files, %d failed", f.n, f.failed)
}

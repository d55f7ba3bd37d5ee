package quarantine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/icloud-dedupe/icloud-dedupe/internal/xerrors"
)

const manifestVersion = 1

// manifestFileName is the fixed name written under each run directory.
const manifestFileName = "manifest.json"

// knownManifestFields lists the JSON keys this schema version understands;
// anything else read from disk is preserved verbatim in Manifest.unknown.
var knownManifestFields = map[string]bool{
	"version": true, "created_at": true, "run_id": true,
	"base_dir": true, "entries": true,
}

// readManifest loads and validates the manifest at path. A parse failure,
// missing required field, or a schema version newer than understood is
// reported as *xerrors.ManifestCorrupt.
func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &xerrors.ManifestCorrupt{Path: path, Cause: err}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &xerrors.ManifestCorrupt{Path: path, Cause: err}
	}

	if m.Version > manifestVersion {
		return nil, &xerrors.ManifestCorrupt{
			Path:  path,
			Cause: fmt.Errorf("manifest schema version %d is newer than supported version %d", m.Version, manifestVersion),
		}
	}
	if m.RunID == "" || m.BaseDir == "" {
		return nil, &xerrors.ManifestCorrupt{Path: path, Cause: fmt.Errorf("missing required field")}
	}

	for _, r := range m.Entries {
		if r.DigestString == "" {
			return nil, &xerrors.ManifestCorrupt{Path: path, Cause: fmt.Errorf("entry %d missing digest", r.ID)}
		}
	}

	unknown := make(map[string]any)
	for k, v := range raw {
		if knownManifestFields[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err == nil {
			unknown[k] = val
		}
	}
	m.unknown = unknown

	return &m, nil
}

// writeManifest serializes m and durably replaces the manifest file at
// path: write to a temp file in the same directory, fsync the temp file,
// then rename over the destination (spec §4.6 "append-then-fsync
// semantics"). A crash can therefore never leave a moved file without a
// corresponding manifest entry — either the rename happened and the new
// manifest is visible, or it didn't and the prior manifest is untouched.
func writeManifest(path string, m *Manifest) error {
	payload, err := marshalManifest(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "manifest-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// marshalManifest serializes m, merging back any preserved unknown fields
// from a prior read so round-tripping never drops forward-compatible data.
func marshalManifest(m *Manifest) ([]byte, error) {
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].ID < m.Entries[j].ID })

	type alias Manifest
	base, err := json.MarshalIndent((*alias)(m), "", "  ")
	if err != nil {
		return nil, err
	}
	if len(m.unknown) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.unknown {
		encoded, err := json.Marshal(v)
		if err != nil {
			continue
		}
		merged[k] = encoded
	}
	return json.MarshalIndent(merged, "", "  ")
}

// listManifests enumerates run directories under baseDir holding a
// manifest.json, most recently created first.
func listManifests(baseDir string) ([]ManifestSummary, error) {
	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summaries []ManifestSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		manifestPath := filepath.Join(baseDir, e.Name(), manifestFileName)
		m, err := readManifest(manifestPath)
		if err != nil {
			slog.Warn("skipping unreadable manifest while listing runs", "path", manifestPath, "error", err)
			continue // corrupt or missing manifest: skip, don't abort listing
		}
		var totalBytes int64
		for _, r := range m.Entries {
			totalBytes += r.Size
		}
		summaries = append(summaries, ManifestSummary{
			RunID:      m.RunID,
			CreatedAt:  m.CreatedAt,
			EntryCount: len(m.Entries),
			TotalBytes: totalBytes,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Package digest implements icloud-dedupe's content hasher (spec §4.2): a
// BLAKE3-based content digest for regular files and bundles, streamed
// rather than loaded wholesale into memory.
package digest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"lukechampine.com/blake3"

	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
)

// blockSize is the read buffer size used while streaming file content
// through the hasher, matching the teacher's own streaming block size.
const blockSize = 64 * 1024

// ForFile computes the content digest of a single regular file by
// streaming its bytes through BLAKE3 in fixed-size chunks. It never loads
// the whole file into memory. It opens path with os.Open, which follows a
// symlink, so a symlink path is hashed by its target's content.
func ForFile(path string) (types.ContentDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.ContentDigest{}, err
	}
	defer func() { _ = f.Close() }()

	h := blake3.New(types.DigestSize, nil)
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return types.ContentDigest{}, err
	}

	var d types.ContentDigest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// bundleEntry is one file inside a bundle's relative tree, used to build
// the canonical serialization that ForBundle digests.
type bundleEntry struct {
	relPath string
	size    int64
	digest  types.ContentDigest
}

// ForBundle computes the content digest of a directory bundle (spec §4.2):
// a sorted list of (relative_path, size, per-file digest) over the
// bundle's file tree, then a digest of that canonical serialization.
// Sort order is lexicographic on the raw bytes of the relative path, so
// the result is independent of traversal order. Symlinks inside the
// bundle are hashed by their link target text, not followed.
func ForBundle(root string) (types.ContentDigest, error) {
	var entries []bundleEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, linkErr := os.Readlink(path)
			if linkErr != nil {
				return linkErr
			}
			entries = append(entries, bundleEntry{
				relPath: rel,
				size:    int64(len(target)),
				digest:  digestBytes([]byte(target)),
			})
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		fd, hashErr := ForFile(path)
		if hashErr != nil {
			return hashErr
		}
		entries = append(entries, bundleEntry{relPath: rel, size: info.Size(), digest: fd})
		return nil
	})
	if err != nil {
		return types.ContentDigest{}, fmt.Errorf("digest bundle %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].relPath < entries[j].relPath
	})

	return digestBytes(serializeBundle(entries)), nil
}

// serializeBundle produces the canonical byte serialization of a bundle's
// sorted file tree: for each entry, the relative path length and bytes,
// the size, then the per-file digest, concatenated in sorted order.
func serializeBundle(entries []bundleEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		_ = binary.Write(&buf, binary.BigEndian, int64(len(e.relPath)))
		buf.WriteString(e.relPath)
		_ = binary.Write(&buf, binary.BigEndian, e.size)
		buf.Write(e.digest[:])
	}
	return buf.Bytes()
}

// digestBytes hashes an in-memory byte slice directly (used for symlink
// target text and the bundle's final canonical serialization).
func digestBytes(b []byte) types.ContentDigest {
	sum := blake3.Sum256(b)
	var d types.ContentDigest
	copy(d[:], sum[:])
	return d
}

// ForPath computes the content digest for path given its kind: ForFile for
// regular files, ForBundle for bundles. CloudPlaceholder entries are never
// hashed (spec §3) — calling ForPath with KindCloudPlaceholder is a
// programmer error.
func ForPath(path string, kind types.FileKind) (types.ContentDigest, error) {
	switch kind {
	case types.KindRegular:
		return ForFile(path)
	case types.KindBundle:
		return ForBundle(path)
	default:
		return types.ContentDigest{}, errors.New("digest: cannot hash a cloud placeholder")
	}
}

// Equal reports whether two paths of the given kind have identical content,
// by computing and comparing their digests.
func Equal(a, b string, kind types.FileKind) (bool, error) {
	da, err := ForPath(a, kind)
	if err != nil {
		return false, err
	}
	db, err := ForPath(b, kind)
	if err != nil {
		return false, err
	}
	return da.Equal(db), nil
}

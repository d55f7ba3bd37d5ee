//go:build unix

package quarantine

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// moveFile moves source to dest (spec §4.6): an atomic rename when both
// paths are on the same volume, or copy-then-fsync-then-unlink when rename
// fails with EXDEV. dest's parent directory is created if missing.
//
// A failed copy leaves the original intact. A failed unlink after a
// successful copy is reported as errStaleCopy — the data has been
// duplicated onto dest but the source still exists, requiring manual
// cleanup rather than silent data loss.
func moveFile(source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return err
	}

	err := os.Rename(source, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	return copyThenUnlink(source, dest)
}

// errStaleCopy marks a move that copied successfully but failed to remove
// the source, leaving both copies on disk.
var errStaleCopy = errors.New("quarantine: copy succeeded but removing the source failed (stale copy)")

// copyThenUnlink implements the cross-device fallback: copy source's bytes
// to a temp file beside dest, fsync, rename the temp file over dest, then
// unlink source. If the unlink fails, errStaleCopy is returned so the
// caller can flag the entry rather than lose track of the duplicate file.
func copyThenUnlink(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp := dest + ".icloud-dedupe.tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Remove(source); err != nil {
		return errStaleCopy
	}
	return nil
}

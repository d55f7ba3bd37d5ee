package xerrors

import (
	"errors"
	"testing"
)

func TestIoErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &IoError{Path: "/a", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through IoError to its cause")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestManifestCorruptUnwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &ManifestCorrupt{Path: "manifest.json", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through ManifestCorrupt to its cause")
	}
}

func TestDistinctErrorTypes(t *testing.T) {
	var err error = &Vanished{Path: "/x"}

	var v *Vanished
	if !errors.As(err, &v) {
		t.Error("expected errors.As to match *Vanished")
	}

	var c *ContentChanged
	if errors.As(err, &c) {
		t.Error("did not expect a Vanished error to match *ContentChanged")
	}
}

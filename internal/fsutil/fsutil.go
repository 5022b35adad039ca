// Package fsutil holds the file operations shared by the downloaders.
//
// Every failure of the local file system is wrapped in ErrFileSystem so the
// CLI can map it to its own exit code, separate from network failures that
// happen while a file is being written.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrFileSystem marks a failure to create, write or rename a local file.
var ErrFileSystem = errors.New("file system error")

// PartSuffix is appended to a file while it is being downloaded.
const PartSuffix = ".part"

// Wrap annotates err with the operation and path and marks it as
// ErrFileSystem. It returns nil for a nil err.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %w", ErrFileSystem, op, path, err)
}

// MkdirAll creates dir and its parents.
func MkdirAll(dir string) error {
	return Wrap("mkdir", dir, os.MkdirAll(dir, 0o750))
}

// WriteFile writes data to path, replacing any previous content.
func WriteFile(path string, data []byte) error {
	return Wrap("write", path, os.WriteFile(path, data, 0o600))
}

// Fill produces the content of a file. It returns the number of bytes
// written to w. An error of w itself must be returned unchanged.
type Fill func(w io.Writer) (int64, error)

// WriteStream writes the output of fill to path+PartSuffix and renames it
// to path once fill succeeds. On failure the partial file is removed.
//
// Errors of the file are wrapped in ErrFileSystem; any other error of fill
// is returned as is.
func WriteStream(path string, fill Fill) (int64, error) {
	part := path + PartSuffix
	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 - path built by the caller
	if err != nil {
		return 0, Wrap("create", part, err)
	}

	tw := &trackingWriter{w: f}
	n, err := fill(tw)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(part)
		if tw.err != nil {
			return n, Wrap("write", part, tw.err)
		}
		return n, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(part)
		return n, Wrap("close", part, err)
	}
	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return n, Wrap("rename", part, err)
	}
	return n, nil
}

// trackingWriter remembers the first error of the file.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

// Exists reports whether path exists. Errors other than "not exist" are
// returned wrapped in ErrFileSystem.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, Wrap("stat", path, err)
	}
}

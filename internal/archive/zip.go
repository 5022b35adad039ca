// Package archive unpacks the feed archives published as bulletin
// attachments.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrUnsafePath indicates an entry that would be written outside the target.
var ErrUnsafePath = errors.New("archive entry escapes target directory")

// maxEntrySize caps a single extracted file.
const maxEntrySize = 1 << 30

// ExtractZip unpacks src into dst, overwriting existing files, and returns
// the number of files written. Nothing is written when any entry name is
// absolute or climbs out of dst.
func ExtractZip(src, dst string) (int, error) {
	// OpenReader may return a usable reader together with an insecure
	// path error; entry names are checked below either way.
	r, err := zip.OpenReader(src)
	if r == nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dst, 0o750); err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	root, err := filepath.Abs(dst)
	if err != nil {
		return 0, err
	}

	targets := make([]string, len(r.File))
	for i, f := range r.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return 0, err
		}
		targets[i] = target
	}

	written := 0
	for i, f := range r.File {
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(targets[i], 0o750); err != nil {
				return written, err
			}
			continue
		}
		if err := extractFile(f, targets[i]); err != nil {
			return written, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		written++
	}
	return written, nil
}

func safeJoin(root, name string) (string, error) {
	clean := filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	target := filepath.Join(root, clean)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) // #nosec G304 - target checked by safeJoin
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxEntrySize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxEntrySize {
		err = fmt.Errorf("entry larger than %d bytes", maxEntrySize)
	}
	return err
}

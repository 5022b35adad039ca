// Package mirror copies downloaded files to secondary storage.
//
// The client always writes to the local download directories first; a
// Mirror receives each file once it is complete. Nop is used unless an S3
// bucket is configured.
package mirror

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
)

// Mirror stores a completed local file under a slash separated key.
type Mirror interface {
	Put(ctx context.Context, key, localPath string) error
}

// Nop discards everything.
type Nop struct{}

// Put does nothing.
func (Nop) Put(context.Context, string, string) error { return nil }

// MirrorDir mirrors every regular file below root/rel, keyed by its path
// relative to root. It returns the number of files handed to m.
func MirrorDir(ctx context.Context, m Mirror, root, rel string) (int, error) {
	if _, ok := m.(Nop); ok {
		return 0, nil
	}

	count := 0
	base := filepath.Join(root, rel)
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		r, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if err := m.Put(ctx, filepath.ToSlash(r), p); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("mirror %s: %w", base, err)
	}
	return count, nil
}

// Key joins prefix and a relative path into an object key.
func Key(prefix, rel string) string {
	if prefix == "" {
		return path.Clean(rel)
	}
	return path.Join(prefix, rel)
}

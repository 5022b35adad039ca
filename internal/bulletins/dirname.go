package bulletins

import (
	"strings"
	"time"

	"github.com/sufield/fincert/internal/assert"
)

// Placeholder replaces a name that is empty after sanitization.
const Placeholder = "--"

// dirTimeLayout must not change: existing directories are matched by name.
const dirTimeLayout = "2006-01-02 1504"

// Sanitize removes the characters Windows and POSIX file systems reject in
// a path element (/ \ : * ? " < > | and control characters), trims spaces
// and returns Placeholder when nothing is left.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(`/\:*?"<>|`, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		out = Placeholder
	}
	assert.Invariant(!strings.ContainsAny(out, `/\`), "sanitized name must not contain a path separator")
	return out
}

// DirName is the checkpoint directory of a bulletin: the publication time
// as published (its own offset, minute precision) and the trimmed hrid.
func DirName(published time.Time, hrid string) string {
	return Sanitize(published.Format(dirTimeLayout) + " " + strings.TrimSpace(hrid))
}

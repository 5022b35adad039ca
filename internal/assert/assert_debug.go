//go:build debug

package assert

import "fmt"

// Invariant checks an invariant condition and panics if violated in debug builds.
// Invariants represent conditions that must always be true for the client to be
// correct, such as postconditions of the retry loop. Use this for internal
// sanity checks, not for validating server responses or configuration.
//
// Examples:
//
//	// The backoff never shrinks between two attempts of one call
//	assert.Invariant(wait >= prevWait, "backoff must be monotonic")
//
//	// A materialized bulletin always has a directory name
//	assert.Invariant(name != "", "directory name must never be empty after sanitizing")
func Invariant(ok bool, msg string) {
	if !ok {
		panic(fmt.Sprintf("INVARIANT VIOLATION: %s", msg))
	}
}

// Invariantf is Invariant with a formatted message. The arguments are only
// formatted when the check fails.
func Invariantf(ok bool, format string, args ...any) {
	if !ok {
		panic("INVARIANT VIOLATION: " + fmt.Sprintf(format, args...))
	}
}

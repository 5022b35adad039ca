//go:build !debug

package assert

// Invariant is compiled out unless built with -tags debug.
func Invariant(bool, string) {}

// Invariantf is compiled out unless built with -tags debug.
func Invariantf(bool, string, ...any) {}

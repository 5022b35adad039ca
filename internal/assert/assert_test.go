//go:build debug

package assert

import "testing"

// panicMessage runs f and returns the string it panicked with, or "" and
// false when it returned normally.
func panicMessage(t *testing.T, f func()) (msg string, panicked bool) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s, ok := r.(string)
		if !ok {
			t.Fatalf("expected string panic, got %T: %v", r, r)
		}
		msg, panicked = s, true
	}()
	f()
	return "", false
}

func TestInvariant(t *testing.T) {
	tests := []struct {
		name string
		call func()
		want string // empty means no panic
	}{
		{name: "holds", call: func() { Invariant(true, "unused") }},
		{name: "violated", call: func() { Invariant(false, "backoff must be monotonic") }, want: "INVARIANT VIOLATION: backoff must be monotonic"},
		{name: "empty message", call: func() { Invariant(false, "") }, want: "INVARIANT VIOLATION: "},
		{name: "multiline message", call: func() { Invariant(false, "a\nb") }, want: "INVARIANT VIOLATION: a\nb"},
		{name: "formatted holds", call: func() { Invariantf(true, "attempt %d", 3) }},
		{name: "formatted violated", call: func() { Invariantf(false, "backoff shrank from %v to %v", "4s", "2s") }, want: "INVARIANT VIOLATION: backoff shrank from 4s to 2s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg, panicked := panicMessage(t, tt.call)
			if tt.want == "" {
				if panicked {
					t.Fatalf("unexpected panic: %q", msg)
				}
				return
			}
			if !panicked {
				t.Fatalf("expected panic %q", tt.want)
			}
			if msg != tt.want {
				t.Fatalf("panic = %q, want %q", msg, tt.want)
			}
		})
	}
}

package identity

import (
	"crypto/sha1" // #nosec G505 - thumbprints are SHA-1 by definition, not used for integrity
	"crypto/x509"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeThumbprint strips whitespace and invisible format characters
// (certificate viewers like to prepend U+200E) and uppercases the rest.
func NormalizeThumbprint(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.Is(unicode.Cf, r) || r == ':' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Thumbprint returns the SHA-1 digest of the DER encoding of cert as
// uppercase hex. It returns "" for a nil certificate.
func Thumbprint(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	sum := sha1.Sum(cert.Raw) // #nosec G401
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// ThumbprintsEqual compares two thumbprints after normalization.
// Empty values never match.
func ThumbprintsEqual(a, b string) bool {
	na, nb := NormalizeThumbprint(a), NormalizeThumbprint(b)
	return na != "" && na == nb
}

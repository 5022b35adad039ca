// Package tlsverify decides whether the FinCERT server certificate is
// trusted.
//
// Chain verification and thumbprint pinning are independent policy switches.
// The chain is always verified so its result can be logged, but it only
// rejects the handshake when Policy.ValidateChain is set. Pinning compares
// the SHA-1 thumbprint of the presented leaf with a configured value.
package tlsverify

import (
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"github.com/sufield/fincert/internal/identity"
)

// ErrRejected is matched by every error Validate returns.
var ErrRejected = errors.New("server certificate rejected")

// Policy selects which server checks are enforced.
type Policy struct {
	ValidateChain bool   // reject on any chain verification error
	PinThumbprint bool   // reject unless the leaf thumbprint equals Thumbprint
	Thumbprint    string // pinned thumbprint, normalized before comparison
}

// RejectionError lists every reason a certificate was refused.
type RejectionError struct {
	Thumbprint string // thumbprint of the presented certificate, "" if none
	Reasons    []string
	ChainErr   error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrRejected, strings.Join(e.Reasons, "; "))
}

// Is reports ErrRejected so callers can use errors.Is.
func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// Unwrap exposes the chain verification error, if any.
func (e *RejectionError) Unwrap() error {
	return e.ChainErr
}

// Validate applies p to the presented leaf certificate and the result of
// chain verification. Both checks are evaluated so the error names every
// failing one.
func Validate(cert *x509.Certificate, chainErr error, p Policy) error {
	if cert == nil {
		return &RejectionError{Reasons: []string{"no certificate presented"}, ChainErr: chainErr}
	}

	got := identity.Thumbprint(cert)
	var reasons []string
	if p.ValidateChain && chainErr != nil {
		reasons = append(reasons, fmt.Sprintf("chain: %v", chainErr))
	}
	if p.PinThumbprint {
		if !identity.ThumbprintsEqual(got, p.Thumbprint) {
			reasons = append(reasons, fmt.Sprintf("thumbprint %s does not match pinned %s", got, identity.NormalizeThumbprint(p.Thumbprint)))
		}
	}

	if len(reasons) == 0 {
		return nil
	}
	rej := &RejectionError{Thumbprint: got, Reasons: reasons}
	if p.ValidateChain {
		rej.ChainErr = chainErr
	}
	return rej
}

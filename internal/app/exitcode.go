package app

import (
	"context"
	"errors"

	"github.com/sufield/fincert/internal/config"
	"github.com/sufield/fincert/internal/fincert"
	"github.com/sufield/fincert/internal/fsutil"
	"github.com/sufield/fincert/internal/identity"
)

// Exit statuses of the fincert command.
const (
	ExitOK               = 0
	ExitInternal         = 1
	ExitConfig           = 2
	ExitIdentity         = 3
	ExitTLSRejected      = 4
	ExitTimedOut         = 5
	ExitUnexpectedStatus = 6
	ExitFileSystem       = 7
	ExitAuth             = 8
	ExitTransport        = 9
	ExitInterrupted      = 130
)

// ExitCode maps err to an exit status. The most specific cause wins: a
// login refused by the server certificate check is ExitTLSRejected, not
// ExitAuth.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitConfig
	case errors.Is(err, identity.ErrCertificateNotFound),
		errors.Is(err, identity.ErrAmbiguousCertificate),
		errors.Is(err, identity.ErrCredentials):
		return ExitIdentity
	case errors.Is(err, fincert.ErrTLSRejected):
		return ExitTLSRejected
	case errors.Is(err, fincert.ErrTimedOut):
		return ExitTimedOut
	case errors.Is(err, fincert.ErrAuth):
		return ExitAuth
	case errors.Is(err, fincert.ErrUnexpectedStatus):
		return ExitUnexpectedStatus
	case errors.Is(err, fsutil.ErrFileSystem):
		return ExitFileSystem
	case errors.Is(err, fincert.ErrTransport):
		return ExitTransport
	default:
		return ExitInternal
	}
}

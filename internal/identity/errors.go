package identity

import "errors"

// Sentinel errors for identity failures
// Use with errors.Is() for checking and fmt.Errorf("%w", ...) for wrapping with context

var (
	// ErrCertificateNotFound indicates no valid certificate in the store matches the thumbprint
	ErrCertificateNotFound = errors.New("client certificate not found")

	// ErrAmbiguousCertificate indicates more than one valid certificate matches the thumbprint
	ErrAmbiguousCertificate = errors.New("client certificate is ambiguous")

	// ErrCredentials indicates the account login or password could not be resolved
	ErrCredentials = errors.New("credentials unavailable")
)

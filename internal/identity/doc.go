// Package identity supplies the client side of the mutual TLS exchange: the
// account credentials used for account/login and the client certificate
// selected by thumbprint from a local PEM certificate store.
//
// The store is a directory. A certificate is usable when its private key is
// available, either in the same PEM file or in a sibling file with the same
// base name and a .key extension, and when it is inside its validity window.
//
// Thumbprints are compared after normalization (see NormalizeThumbprint), so
// values copied from a certificate viewer with spaces or lowercase letters
// match.
package identity

package identity

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClientCertificate is a certificate from the store together with its key.
//
// Concurrency: Safe for concurrent use (immutable after Load).
type ClientCertificate struct {
	path  string
	leaf  *x509.Certificate
	chain []*x509.Certificate // leaf-first
	pair  tls.Certificate
}

// Leaf returns the end-entity certificate.
func (c *ClientCertificate) Leaf() *x509.Certificate { return c.leaf }

// Chain returns a copy of the chain, leaf first.
func (c *ClientCertificate) Chain() []*x509.Certificate {
	out := make([]*x509.Certificate, len(c.chain))
	copy(out, c.chain)
	return out
}

// Path is the file the certificate was read from.
func (c *ClientCertificate) Path() string { return c.path }

// Thumbprint returns the SHA-1 thumbprint of the leaf.
func (c *ClientCertificate) Thumbprint() string { return Thumbprint(c.leaf) }

// TLSCertificate returns the certificate and key for tls.Config.Certificates.
func (c *ClientCertificate) TLSCertificate() tls.Certificate { return c.pair }

// IsValidAt reports whether t is inside the leaf validity window.
func (c *ClientCertificate) IsValidAt(t time.Time) bool {
	return !t.Before(c.leaf.NotBefore) && !t.After(c.leaf.NotAfter)
}

// Store is a directory of PEM encoded certificates and keys.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

var certExtensions = map[string]bool{".pem": true, ".crt": true, ".cer": true}

// Load reads every certificate in the store that has a private key.
// Files that cannot be parsed are reported in the second return value and
// skipped; only a store directory that cannot be read is an error.
func (s *Store) Load() ([]*ClientCertificate, []error, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read certificate store %s: %w", s.dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		certs   []*ClientCertificate
		skipped []error
	)
	for _, e := range entries {
		if e.IsDir() || !certExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		cert, err := loadPair(path)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if cert != nil {
			certs = append(certs, cert)
		}
	}
	return certs, skipped, nil
}

// Find returns the only valid certificate whose thumbprint equals
// thumbprint. Zero matches yield ErrCertificateNotFound, several yield
// ErrAmbiguousCertificate.
func (s *Store) Find(thumbprint string) (*ClientCertificate, error) {
	want := NormalizeThumbprint(thumbprint)
	if want == "" {
		return nil, fmt.Errorf("%w: empty thumbprint", ErrCertificateNotFound)
	}

	certs, _, err := s.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCertificateNotFound, err)
	}

	now := s.now()
	var matches []*ClientCertificate
	for _, c := range certs {
		if c.Thumbprint() == want && c.IsValidAt(now) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no valid certificate with thumbprint %s in %s", ErrCertificateNotFound, want, s.dir)
	case 1:
		return matches[0], nil
	default:
		paths := make([]string, len(matches))
		for i, m := range matches {
			paths[i] = m.path
		}
		return nil, fmt.Errorf("%w: thumbprint %s matches %s", ErrAmbiguousCertificate, want, strings.Join(paths, ", "))
	}
}

// loadPair reads a certificate file and its key. It returns (nil, nil) for
// a file that holds no certificate at all, such as a bare .pem key file.
func loadPair(path string) (*ClientCertificate, error) {
	certPEM, err := os.ReadFile(path) // #nosec G304 - path comes from the configured store
	if err != nil {
		return nil, err
	}
	if !hasBlock(certPEM, func(t string) bool { return t == "CERTIFICATE" }) {
		return nil, nil
	}

	keyPEM := certPEM
	if !hasBlock(certPEM, isKeyBlock) {
		keyPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".key"
		keyPEM, err = os.ReadFile(keyPath) // #nosec G304
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no private key (expected in the file or in %s)", filepath.Base(keyPath))
		}
		if err != nil {
			return nil, err
		}
	}

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	chain := make([]*x509.Certificate, 0, len(pair.Certificate))
	for _, der := range pair.Certificate {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		chain = append(chain, c)
	}
	pair.Leaf = chain[0]

	return &ClientCertificate{path: path, leaf: chain[0], chain: chain, pair: pair}, nil
}

func hasBlock(data []byte, match func(string) bool) bool {
	rest := bytes.TrimSpace(data)
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return false
		}
		if match(block.Type) {
			return true
		}
	}
	return false
}

func isKeyBlock(t string) bool {
	return t == "PRIVATE KEY" || strings.HasSuffix(t, " PRIVATE KEY")
}

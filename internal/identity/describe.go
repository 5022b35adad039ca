package identity

import (
	"crypto/x509"
	"time"
)

// CertificateFields returns the parts of cert that are safe and useful to
// log. The map plugs into zerolog's Event.Fields.
func CertificateFields(cert *x509.Certificate) map[string]any {
	if cert == nil {
		return map[string]any{"certificate": nil}
	}
	return map[string]any{
		"subject":    cert.Subject.String(),
		"issuer":     cert.Issuer.String(),
		"serial":     cert.SerialNumber.Text(16),
		"not_before": cert.NotBefore.UTC().Format(time.RFC3339),
		"not_after":  cert.NotAfter.UTC().Format(time.RFC3339),
		"thumbprint": Thumbprint(cert),
	}
}

package tlsverify

import (
	"crypto/x509"
	"fmt"

	"github.com/spiffe/go-spiffe/v2/bundle/x509bundle"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
)

// bundleTrustDomain names the trust bundle. FinCERT does not issue SPIFFE
// identities; the bundle is only a container of X.509 authorities.
var bundleTrustDomain = spiffeid.RequireTrustDomainFromString("fincert.cbr.ru")

// LoadTrustBundle reads PEM encoded root certificates from path.
func LoadTrustBundle(path string) (*x509.CertPool, error) {
	bundle, err := x509bundle.Load(bundleTrustDomain, path)
	if err != nil {
		return nil, fmt.Errorf("load trust bundle: %w", err)
	}

	authorities := bundle.X509Authorities()
	if len(authorities) == 0 {
		return nil, fmt.Errorf("load trust bundle: %s holds no certificates", path)
	}

	pool := x509.NewCertPool()
	for _, cert := range authorities {
		pool.AddCert(cert)
	}
	return pool, nil
}

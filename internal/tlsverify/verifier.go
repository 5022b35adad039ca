package tlsverify

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sufield/fincert/internal/identity"
)

// Verifier adapts Validate to tls.Config.VerifyConnection.
type Verifier struct {
	Policy Policy

	// Roots verifies the chain. nil means the system pool.
	Roots *x509.CertPool

	// ServerName is matched against the certificate. When empty the SNI
	// value of the connection is used. Set it for IP address endpoints,
	// which carry no SNI.
	ServerName string

	// Verbose logs every presented certificate at info level.
	Verbose bool
	Logger  zerolog.Logger

	// Now is the verification time; time.Now when nil.
	Now func() time.Time
}

// Apply installs the verifier on cfg. Go's built-in verification is
// disabled so that the policy, not the runtime, decides on chain errors.
func (v *Verifier) Apply(cfg *tls.Config) {
	cfg.InsecureSkipVerify = true // #nosec G402 - VerifyConnection performs verification
	cfg.VerifyConnection = v.VerifyConnection
}

// VerifyConnection is a tls.Config.VerifyConnection callback.
func (v *Verifier) VerifyConnection(cs tls.ConnectionState) error {
	var leaf *x509.Certificate
	if len(cs.PeerCertificates) > 0 {
		leaf = cs.PeerCertificates[0]
	}
	chainErr := v.ChainError(cs)

	if v.Verbose {
		ev := v.Logger.Info().Fields(identity.CertificateFields(leaf))
		if chainErr != nil {
			ev = ev.Str("chain_error", chainErr.Error())
		}
		ev.Int("chain_length", len(cs.PeerCertificates)).Msg("Server certificate presented")
	}

	if err := Validate(leaf, chainErr, v.Policy); err != nil {
		v.Logger.Warn().Err(err).Str("server_name", v.serverName(cs)).Msg("Server certificate rejected")
		return err
	}
	if chainErr != nil {
		v.Logger.Debug().Err(chainErr).Msg("Chain error ignored by policy")
	}
	return nil
}

// ChainError verifies the presented chain and returns the verification
// error, or nil when the chain is trusted.
func (v *Verifier) ChainError(cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("no certificate presented")
	}

	intermediates := x509.NewCertPool()
	for _, c := range cs.PeerCertificates[1:] {
		intermediates.AddCert(c)
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
		DNSName:       v.serverName(cs),
		Roots:         v.Roots,
		Intermediates: intermediates,
		CurrentTime:   now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	return err
}

func (v *Verifier) serverName(cs tls.ConnectionState) string {
	if v.ServerName != "" {
		return v.ServerName
	}
	return cs.ServerName
}

package fincert

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sufield/fincert/internal/identity"
	"github.com/sufield/fincert/internal/tlsverify"
)

// HTTP connection defaults
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 30 * time.Second
)

// TransportConfig describes the mutual TLS transport.
type TransportConfig struct {
	Certificate *identity.ClientCertificate
	Verifier    *tlsverify.Verifier

	// Proxy is an http(s) proxy URL; empty means a direct connection.
	Proxy string

	// Timeout bounds one HTTP exchange including the body. Zero means none.
	Timeout time.Duration
}

// NewHTTPClient builds the client used by the executor.
//
// The returned *http.Client:
//   - Presents cfg.Certificate to the server
//   - Enforces TLS 1.2 minimum
//   - Leaves server verification to cfg.Verifier
//   - Never follows the environment proxy settings, only cfg.Proxy
func NewHTTPClient(cfg TransportConfig) (*http.Client, *http.Transport, error) {
	if cfg.Certificate == nil {
		return nil, nil, errors.New("client certificate cannot be nil")
	}
	if cfg.Verifier == nil {
		return nil, nil, errors.New("server verifier cannot be nil")
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cfg.Certificate.TLSCertificate()},
		MinVersion:   tls.VersionTLS12,
	}
	cfg.Verifier.Apply(tlsCfg)

	transport := &http.Transport{
		TLSClientConfig:     tlsCfg,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, nil, fmt.Errorf("invalid proxy %q", cfg.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, transport, nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks if the configuration is valid.
//
// Credentials are not checked here: an empty password is legal and means
// "take the account from the environment".
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("%w: api: %w", ErrInvalidConfig, err)
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("%w: tls: %w", ErrInvalidConfig, err)
	}
	if err := c.Proxy.Validate(); err != nil {
		return fmt.Errorf("%w: proxy: %w", ErrInvalidConfig, err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("%w: retry: %w", ErrInvalidConfig, err)
	}
	if c.Feeds.Enabled && strings.TrimSpace(c.Feeds.Downloads) == "" {
		return fmt.Errorf("%w: feeds: downloads is required", ErrInvalidConfig)
	}
	if err := c.Bulletins.Validate(); err != nil {
		return fmt.Errorf("%w: bulletins: %w", ErrInvalidConfig, err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (a *APIConfig) Validate() error {
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url %q: %w", a.BaseURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("base_url %q must use https", a.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q has no host", a.BaseURL)
	}
	return nil
}

// Validate checks the certificate lookup and the pinning settings.
func (t *TLSConfig) Validate() error {
	if strings.TrimSpace(t.ClientThumbprint) == "" {
		return fmt.Errorf("client_thumbprint is required")
	}
	if strings.TrimSpace(t.CertStore) == "" {
		return fmt.Errorf("cert_store is required")
	}
	if t.PinThumbprint && strings.TrimSpace(t.ServerThumbprint) == "" {
		return fmt.Errorf("pin_thumbprint requires server_thumbprint to be set")
	}
	return nil
}

// Validate checks the proxy address when the proxy is enabled.
func (p *ProxyConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if strings.TrimSpace(p.Address) == "" {
		return fmt.Errorf("address is required when enabled")
	}
	u, err := url.Parse(p.Address)
	if err != nil || u.Host == "" {
		return fmt.Errorf("address %q must be an absolute URL", p.Address)
	}
	return nil
}

// Validate checks retry durations.
func (r *RetryConfig) Validate() error {
	if r.PacingInterval < 0 {
		return fmt.Errorf("pacing_interval must be non-negative, got %v", r.PacingInterval)
	}
	if r.BackoffUnit <= 0 {
		return fmt.Errorf("backoff_unit must be positive, got %v", r.BackoffUnit)
	}
	if r.WaitBudget <= 0 {
		return fmt.Errorf("wait_budget must be positive, got %v", r.WaitBudget)
	}
	if r.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be non-negative, got %v", r.RequestTimeout)
	}
	return nil
}

// Validate checks the page size the server accepts (1-100).
func (b *BulletinsConfig) Validate() error {
	if !b.Enabled {
		return nil
	}
	if strings.TrimSpace(b.Downloads) == "" {
		return fmt.Errorf("downloads is required")
	}
	if b.Limit < 1 || b.Limit > 100 {
		return fmt.Errorf("invalid limit %d (must be 1-100)", b.Limit)
	}
	return nil
}

// Validate checks level and format names.
func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q (expected: trace, debug, info, warn, error)", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid format %q (expected: console, json)", l.Format)
	}
	return nil
}

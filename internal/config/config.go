// Package config loads and validates the fincert client configuration file.
//
// The file is YAML. Values are read in three layers: the built-in defaults
// (Default), the file itself, and FINCERT_* environment variables, in that
// order. ApplyDefaults fills anything still zero and Validate rejects
// incomplete configurations with ErrInvalidConfig.
package config

import (
	"errors"
	"time"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the root of fincert.yaml.
type Config struct {
	API          APIConfig          `yaml:"api"`
	TLS          TLSConfig          `yaml:"tls"`
	Credentials  CredentialsConfig  `yaml:"credentials"`
	Proxy        ProxyConfig        `yaml:"proxy"`
	Retry        RetryConfig        `yaml:"retry"`
	Feeds        FeedsConfig        `yaml:"feeds"`
	Bulletins    BulletinsConfig    `yaml:"bulletins"`
	FeedsArchive FeedsArchiveConfig `yaml:"feeds_archive"`
	Mirror       MirrorConfig       `yaml:"mirror"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// APIConfig describes the remote service.
type APIConfig struct {
	// BaseURL is the API root every relative path is appended to.
	// Example: "https://zoe-api.fincert.cbr.ru/api/v1/"
	BaseURL string `yaml:"base_url"`

	// UserAgent overrides the default "fincert/<version>" product token.
	UserAgent string `yaml:"user_agent"`
}

// TLSConfig holds the client certificate lookup and the server identity policy.
type TLSConfig struct {
	// ClientThumbprint selects the client certificate in CertStore.
	// Spaces and case are ignored, so a value copied from a certificate
	// viewer can be pasted as is.
	ClientThumbprint string `yaml:"client_thumbprint"`

	// CertStore is a directory of PEM files (certificate and private key).
	CertStore string `yaml:"cert_store"`

	// ValidateChain rejects the server when chain verification reports any error.
	ValidateChain bool `yaml:"validate_chain"`

	// PinThumbprint rejects the server unless its certificate thumbprint
	// equals ServerThumbprint.
	PinThumbprint    bool   `yaml:"pin_thumbprint"`
	ServerThumbprint string `yaml:"server_thumbprint"`

	// TrustBundle is an optional PEM file with the roots used for chain
	// verification. The system pool is used when empty.
	TrustBundle string `yaml:"trust_bundle"`

	VerboseClient bool `yaml:"verbose_client"`
	VerboseServer bool `yaml:"verbose_server"`
}

// CredentialsConfig holds the account used for account/login.
// When Password is empty the credentials are taken from FINCERT_LOGIN and
// FINCERT_PASSWORD (a dotenv file is honored, see identity.ResolveCredentials).
type CredentialsConfig struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
	EnvFile  string `yaml:"env_file"`
}

// ProxyConfig routes the API traffic through an HTTP proxy.
type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// RetryConfig tunes the request executor.
type RetryConfig struct {
	PacingInterval time.Duration `yaml:"pacing_interval"` // minimum gap between two sends
	BackoffUnit    time.Duration `yaml:"backoff_unit"`    // wait = attempt * unit
	WaitBudget     time.Duration `yaml:"wait_budget"`     // overall deadline of one call
	RequestTimeout time.Duration `yaml:"request_timeout"` // single HTTP exchange
}

// FeedsConfig enables the antifraud feed download.
type FeedsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Downloads string `yaml:"downloads"`
}

// BulletinsConfig enables the bulletin synchronization.
type BulletinsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Downloads string `yaml:"downloads"`
	Limit     int    `yaml:"limit"`

	// RequireMarker makes a bulletin directory count as synchronized only
	// once its completion marker exists. Disable it to keep directories
	// written by older clients as checkpoints.
	RequireMarker bool `yaml:"require_marker"`
}

// FeedsArchiveConfig lists the directories the published feeds_*.zip
// bulletin attachments are unpacked into.
type FeedsArchiveConfig struct {
	Targets []string `yaml:"targets"`
}

// MirrorConfig copies every downloaded file to S3 when S3Bucket is set.
type MirrorConfig struct {
	S3Bucket     string `yaml:"s3_bucket"`
	S3Prefix     string `yaml:"s3_prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // console or json
	File   string `yaml:"file"`   // optional file the log is copied to
}

// Default returns the configuration written for a first run.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
		},
		TLS: TLSConfig{
			CertStore:     DefaultCertStore,
			ValidateChain: true,
		},
		Proxy: ProxyConfig{
			Address: DefaultProxyAddress,
		},
		Retry: RetryConfig{
			PacingInterval: DefaultPacingInterval,
			BackoffUnit:    DefaultBackoffUnit,
			WaitBudget:     DefaultWaitBudget,
			RequestTimeout: DefaultRequestTimeout,
		},
		Feeds: FeedsConfig{
			Enabled:   true,
			Downloads: DefaultFeedsDownloads,
		},
		Bulletins: BulletinsConfig{
			Enabled:       true,
			Downloads:     DefaultBulletinsDownloads,
			Limit:         DefaultBulletinsLimit,
			RequireMarker: true,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

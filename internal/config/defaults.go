package config

import (
	"strings"
	"time"
)

// Defaults mirror the limits the FinCERT API documents: one request per
// second, a linear two-second backoff and ten minutes for a resource to
// become ready.
const (
	DefaultBaseURL            = "https://zoe-api.fincert.cbr.ru/api/v1/"
	DefaultCertStore          = "certs"
	DefaultProxyAddress       = "http://192.168.2.1:3128"
	DefaultPacingInterval     = 1 * time.Second
	DefaultBackoffUnit        = 2 * time.Second
	DefaultWaitBudget         = 10 * time.Minute
	DefaultRequestTimeout     = 5 * time.Minute
	DefaultFeedsDownloads     = "FeedsDownloads"
	DefaultBulletinsDownloads = "BulletinsDownloads"
	DefaultBulletinsLimit     = 100
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "console"
)

// ApplyDefaults sets values for anything left zero after the file and the
// environment have been read.
//
// PacingInterval is not defaulted: zero is a valid "no pacing" setting and
// Default already carries the production value.
func ApplyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.API.BaseURL, "/") {
		cfg.API.BaseURL += "/"
	}

	if cfg.Retry.BackoffUnit == 0 {
		cfg.Retry.BackoffUnit = DefaultBackoffUnit
	}
	if cfg.Retry.WaitBudget == 0 {
		cfg.Retry.WaitBudget = DefaultWaitBudget
	}
	if cfg.Retry.RequestTimeout == 0 {
		cfg.Retry.RequestTimeout = DefaultRequestTimeout
	}

	if cfg.Feeds.Downloads == "" {
		cfg.Feeds.Downloads = DefaultFeedsDownloads
	}
	if cfg.Bulletins.Downloads == "" {
		cfg.Bulletins.Downloads = DefaultBulletinsDownloads
	}
	if cfg.Bulletins.Limit == 0 {
		cfg.Bulletins.Limit = DefaultBulletinsLimit
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

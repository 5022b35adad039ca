package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// applyEnvOverrides overrides config values with environment variables if set
// Returns error for invalid environment variable values to fail fast
func applyEnvOverrides(cfg *Config) error {
	// API
	if url := os.Getenv("FINCERT_API_URL"); url != "" {
		cfg.API.BaseURL = url
	}

	// Client identity
	if thumbprint := os.Getenv("FINCERT_CLIENT_THUMBPRINT"); thumbprint != "" {
		cfg.TLS.ClientThumbprint = thumbprint
	}
	if store := os.Getenv("FINCERT_CERT_STORE"); store != "" {
		cfg.TLS.CertStore = store
	}
	if login := os.Getenv("FINCERT_LOGIN"); login != "" {
		cfg.Credentials.Login = login
	}
	if password := os.Getenv("FINCERT_PASSWORD"); password != "" {
		cfg.Credentials.Password = password
	}

	// Server identity
	if v := os.Getenv("FINCERT_VALIDATE_CHAIN"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FINCERT_VALIDATE_CHAIN %q: %w", v, err)
		}
		cfg.TLS.ValidateChain = b
	}
	if v := os.Getenv("FINCERT_PIN_THUMBPRINT"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FINCERT_PIN_THUMBPRINT %q: %w", v, err)
		}
		cfg.TLS.PinThumbprint = b
	}
	if thumbprint := os.Getenv("FINCERT_SERVER_THUMBPRINT"); thumbprint != "" {
		cfg.TLS.ServerThumbprint = thumbprint
	}

	// Proxy: setting an address implies using it
	if proxy := os.Getenv("FINCERT_PROXY"); proxy != "" {
		cfg.Proxy.Enabled = true
		cfg.Proxy.Address = proxy
	}

	// Retry tuning
	if v := os.Getenv("FINCERT_WAIT_BUDGET"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FINCERT_WAIT_BUDGET %q: %w", v, err)
		}
		cfg.Retry.WaitBudget = d
	}

	// Logging
	if level := os.Getenv("FINCERT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	// Mirror
	if bucket := os.Getenv("FINCERT_S3_BUCKET"); bucket != "" {
		cfg.Mirror.S3Bucket = bucket
	}

	return nil
}

// parseBool parses boolean environment variables
// Accepts: "true", "1", "yes", "on" for true; "false", "0", "no", "off" for false
func parseBool(value string) (bool, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", value)
	}
}

package debug

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds debug mode configuration
type Config struct {
	// Enabled is the global debug on/off switch. It forces the log level
	// to debug regardless of the configuration file.
	Enabled bool

	// Faults lets the request executor consult the global fault profile.
	Faults bool

	// VerboseClient logs the client certificate that was selected.
	VerboseClient bool

	// VerboseServer logs every server certificate presented during the
	// TLS handshake together with the chain verification result.
	VerboseServer bool
}

// Active is the global debug configuration
var Active Config

// Init initializes debug configuration from environment variables.
// With FINCERT_DEBUG_FAULTS set, the one-shot faults of the global profile
// are loaded from FINCERT_FAULT_STATUS, FINCERT_FAULT_DROP_SEND and
// FINCERT_FAULT_DELAY; an invalid fault value is an error.
func Init() error {
	Active = Config{
		Enabled:       parseBool(os.Getenv("FINCERT_DEBUG"), false),
		Faults:        parseBool(os.Getenv("FINCERT_DEBUG_FAULTS"), false),
		VerboseClient: parseBool(os.Getenv("FINCERT_VERBOSE_CLIENT"), false),
		VerboseServer: parseBool(os.Getenv("FINCERT_VERBOSE_SERVER"), false),
	}

	Faults.Reset()
	if !Active.Faults {
		return nil
	}
	// Fault injection is a debug feature
	Active.Enabled = true
	return loadFaults(Faults)
}

func loadFaults(f *FaultProfile) error {
	if v := os.Getenv("FINCERT_FAULT_STATUS"); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FINCERT_FAULT_STATUS %q: %w", v, err)
		}
		if err := f.SetForceNextStatus(code); err != nil {
			return fmt.Errorf("invalid FINCERT_FAULT_STATUS: %w", err)
		}
	}
	if v := os.Getenv("FINCERT_FAULT_DROP_SEND"); v != "" {
		drop, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FINCERT_FAULT_DROP_SEND %q: %w", v, err)
		}
		f.SetDropNextSend(drop)
	}
	if v := os.Getenv("FINCERT_FAULT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FINCERT_FAULT_DELAY %q: %w", v, err)
		}
		if err := f.SetDelayNextSend(d); err != nil {
			return fmt.Errorf("invalid FINCERT_FAULT_DELAY: %w", err)
		}
	}
	return nil
}

func parseBool(s string, defaultVal bool) bool {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// IsEnabled returns whether debug mode is enabled
func IsEnabled() bool {
	return Active.Enabled
}

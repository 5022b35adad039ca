package debug

import (
	"fmt"
	"sync"
	"time"
)

// FaultProfile defines faults the request executor can be made to observe.
// All faults are one-shot (consumed after check) so a single scripted
// failure never turns into a permanent outage of the run.
type FaultProfile struct {
	mu sync.RWMutex

	// ForceNextStatus replaces the status code of the next response (one-shot, 0 = off)
	ForceNextStatus int

	// DropNextSend fails the next send with a transport error (one-shot)
	DropNextSend bool

	// DelayNextSend waits before the next send (one-shot, must be >= 0)
	DelayNextSend time.Duration
}

// Faults is the global fault profile
var Faults = &FaultProfile{}

// SetForceNextStatus makes the next response report code.
// Returns an error if code is not a valid HTTP status.
func (f *FaultProfile) SetForceNextStatus(code int) error {
	if code != 0 && (code < 100 || code > 599) {
		return fmt.Errorf("status must be 100-599, got %d", code)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ForceNextStatus = code
	return nil
}

// TakeForcedStatus returns and clears the forced status code.
func (f *FaultProfile) TakeForcedStatus() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := f.ForceNextStatus
	f.ForceNextStatus = 0
	return code
}

// SetDropNextSend enables/disables send dropping
func (f *FaultProfile) SetDropNextSend(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DropNextSend = enabled
}

// ShouldDropSend checks and consumes the drop send flag
func (f *FaultProfile) ShouldDropSend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DropNextSend {
		f.DropNextSend = false // One-shot
		return true
	}
	return false
}

// SetDelayNextSend sets the delay applied before the next send.
// Returns an error if d is negative.
func (f *FaultProfile) SetDelayNextSend(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("delay must be non-negative, got %v", d)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DelayNextSend = d
	return nil
}

// GetAndClearDelay gets and clears the delay setting
func (f *FaultProfile) GetAndClearDelay() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	delay := f.DelayNextSend
	f.DelayNextSend = 0
	return delay
}

// Reset clears all fault flags
func (f *FaultProfile) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ForceNextStatus = 0
	f.DropNextSend = false
	f.DelayNextSend = 0
}

// Snapshot returns the current state of all faults as a map, suitable
// for a structured log field.
func (f *FaultProfile) Snapshot() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return map[string]any{
		"force_next_status": f.ForceNextStatus,
		"drop_next_send":    f.DropNextSend,
		"delay_next_send":   f.DelayNextSend.String(),
	}
}

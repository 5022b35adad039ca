package debug

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultProfile_OneShot(t *testing.T) {
	t.Run("DropNextSend", func(t *testing.T) {
		f := &FaultProfile{}
		f.SetDropNextSend(true)
		assert.True(t, f.ShouldDropSend(), "first check should consume the fault")
		assert.False(t, f.ShouldDropSend(), "second check should see it consumed")
	})

	t.Run("ForceNextStatus", func(t *testing.T) {
		f := &FaultProfile{}
		require.NoError(t, f.SetForceNextStatus(503))
		assert.Equal(t, 503, f.TakeForcedStatus())
		assert.Equal(t, 0, f.TakeForcedStatus())
	})

	t.Run("DelayNextSend", func(t *testing.T) {
		f := &FaultProfile{}
		require.NoError(t, f.SetDelayNextSend(3*time.Second))
		assert.Equal(t, 3*time.Second, f.GetAndClearDelay())
		assert.Equal(t, time.Duration(0), f.GetAndClearDelay())
	})
}

func TestFaultProfile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		apply   func(*FaultProfile) error
		wantErr string
	}{
		{"status zero clears", func(f *FaultProfile) error { return f.SetForceNextStatus(0) }, ""},
		{"status 429", func(f *FaultProfile) error { return f.SetForceNextStatus(429) }, ""},
		{"status too small", func(f *FaultProfile) error { return f.SetForceNextStatus(42) }, "100-599"},
		{"status too large", func(f *FaultProfile) error { return f.SetForceNextStatus(600) }, "100-599"},
		{"negative delay", func(f *FaultProfile) error { return f.SetDelayNextSend(-time.Second) }, "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.apply(&FaultProfile{})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFaultProfile_ResetAndSnapshot(t *testing.T) {
	f := &FaultProfile{}
	f.SetDropNextSend(true)
	require.NoError(t, f.SetForceNextStatus(500))
	require.NoError(t, f.SetDelayNextSend(time.Second))

	snap := f.Snapshot()
	assert.Equal(t, true, snap["drop_next_send"])
	assert.Equal(t, 500, snap["force_next_status"])
	assert.Equal(t, "1s", snap["delay_next_send"])

	f.Reset()
	assert.False(t, f.ShouldDropSend())
	assert.Equal(t, 0, f.TakeForcedStatus())
	assert.Equal(t, time.Duration(0), f.GetAndClearDelay())
}

func TestFaultProfile_ConcurrentConsume(t *testing.T) {
	f := &FaultProfile{}
	f.SetDropNextSend(true)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		drops int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.ShouldDropSend() {
				mu.Lock()
				drops++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, drops, "a one-shot fault fires exactly once")
}

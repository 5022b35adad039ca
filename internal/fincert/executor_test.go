package fincert

// Executor Tests
//
// These tests drive the retry state machine with a scripted HTTP doer and a
// fake clock, so no test sleeps in real time.
//
// Run these tests with:
//
//	go test ./internal/fincert/... -run Executor -v

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/fincert/internal/debug"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want Outcome
	}{
		{200, Success},
		{204, Retryable},
		{408, Retryable},
		{429, Retryable},
		{500, Retryable},
		{502, Retryable},
		{503, Retryable},
		{599, Retryable},
		{201, Terminal},
		{301, Terminal},
		{400, Terminal},
		{401, Terminal},
		{403, Terminal},
		{404, Terminal},
		{409, Terminal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.code), "status %d", tt.code)
		})
	}
}

func TestExecutor_RetryableStatusesAreRetried(t *testing.T) {
	for _, code := range []int{500, 502, 503, 408, 429, 204} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			doer := &scriptedDoer{codes: []int{code}}
			clock := newFakeClock()
			exec := newTestExecutor(t, doer, clock)

			resp, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins/A"})
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, 2, doer.Calls(), "one retry after status %d", code)
			assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
		})
	}
}

func TestExecutor_TerminalStatusesFailOnFirstAttempt(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			doer := &scriptedDoer{codes: []int{code}}
			exec := newTestExecutor(t, doer, newFakeClock())

			_, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins/A"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnexpectedStatus)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, code, statusErr.Code)
			assert.Equal(t, "payload", statusErr.Body)
			assert.Equal(t, 1, doer.Calls(), "no second request")
		})
	}
}

func TestExecutor_BackoffIsMonotonicUntilTimedOut(t *testing.T) {
	codes := make([]int, 1000)
	for i := range codes {
		codes[i] = http.StatusServiceUnavailable
	}
	doer := &scriptedDoer{codes: codes}
	clock := newFakeClock()
	exec := newTestExecutor(t, doer, clock)

	start := clock.Now()
	_, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "antifraud/feeds/inn"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimedOut)

	waits := clock.Sleeps()
	require.NotEmpty(t, waits)
	for k := 1; k < len(waits); k++ {
		assert.GreaterOrEqual(t, waits[k], waits[k-1], "wait before attempt %d shrank", k+1)
		assert.Equal(t, time.Duration(k+1)*2*time.Second, waits[k])
	}
	for _, w := range waits {
		assert.Less(t, w, 10*time.Minute)
	}

	// Every wait is followed by one more request, and the call stops only
	// once the budget is exceeded.
	assert.Equal(t, len(waits)+1, doer.Calls())
	assert.True(t, clock.Now().Sub(start) > 10*time.Minute)
	var elapsedBeforeLast time.Duration
	for _, w := range waits[:len(waits)-1] {
		elapsedBeforeLast += w
	}
	assert.LessOrEqual(t, elapsedBeforeLast, 10*time.Minute)
}

func TestExecutor_SmallBudgetTimesOutAfterFirstRetryableResponse(t *testing.T) {
	doer := &scriptedDoer{codes: []int{503, 503, 503}}
	clock := newFakeClock()
	exec := newTestExecutor(t, doer, clock, func(c *ExecutorConfig) {
		c.Retry = RetryPolicy{BackoffUnit: time.Second, WaitBudget: 2 * time.Second}
	})

	_, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins"})
	require.ErrorIs(t, err, ErrTimedOut)
	// t=0 send, wait 1s; t=1 send, wait 2s; t=3 send, past the deadline.
	assert.Equal(t, 3, doer.Calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestExecutor_PacingSpacesSends(t *testing.T) {
	clock := newFakeClock()
	doer := &scriptedDoer{clock: clock}
	pacer := NewPacer(time.Second, clock)
	require.Equal(t, time.Second, pacer.Interval())
	exec := newTestExecutor(t, doer, clock, func(c *ExecutorConfig) { c.Pacer = pacer })

	for i := 0; i < 3; i++ {
		resp, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins"})
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	require.Len(t, doer.times, 3)
	for i := 1; i < len(doer.times); i++ {
		assert.GreaterOrEqual(t, doer.times[i].Sub(doer.times[i-1]), time.Second)
	}
	assert.Equal(t, doer.times[2].Add(time.Second), pacer.NextAllowed())
}

func TestExecutor_PacingCountsElapsedTime(t *testing.T) {
	clock := newFakeClock()
	doer := &scriptedDoer{clock: clock}
	pacer := NewPacer(time.Second, clock)
	exec := newTestExecutor(t, doer, clock, func(c *ExecutorConfig) { c.Pacer = pacer })

	resp, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins"})
	require.NoError(t, err)
	_ = resp.Body.Close()

	clock.Advance(5 * time.Second)
	resp, err = exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins"})
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, clock.Sleeps(), "no wait once the interval has passed")
}

func TestExecutor_TransportErrorIsNotRetried(t *testing.T) {
	doer := &scriptedDoer{err: errors.New("connection reset by peer")}
	exec := newTestExecutor(t, doer, newFakeClock())

	_, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins"})
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, doer.Calls())
}

func TestExecutor_CancelledContext(t *testing.T) {
	doer := &scriptedDoer{codes: []int{503, 503}}
	exec := newTestExecutor(t, doer, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Do(ctx, Request{Method: http.MethodGet, Path: "bulletins"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, doer.Calls())
}

func TestExecutor_SleepIsCancellable(t *testing.T) {
	doer := &scriptedDoer{codes: []int{503}}
	exec := newTestExecutor(t, doer, RealClock{}, func(c *ExecutorConfig) {
		c.Retry = RetryPolicy{BackoffUnit: time.Hour, WaitBudget: 2 * time.Hour}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := exec.Do(ctx, Request{Method: http.MethodGet, Path: "bulletins"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecutor_RequestShape(t *testing.T) {
	doer := &scriptedDoer{}
	exec := newTestExecutor(t, doer, newFakeClock(), func(c *ExecutorConfig) {
		c.Token = func() string { return "abc" }
		c.UserAgent = "fincert/1.0"
	})

	resp, err := exec.Do(context.Background(), Request{
		Method:      http.MethodPost,
		Path:        "bulletins/list",
		Body:        []byte(`{"ids":["A"]}`),
		ContentType: "application/json",
	})
	require.NoError(t, err)
	_ = resp.Body.Close()

	req := doer.reqs[0]
	assert.Equal(t, "https://fincert.test/api/v1/bulletins/list", req.URL.String())
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
	assert.Equal(t, "fincert/1.0", req.Header.Get("User-Agent"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ids":["A"]}`, string(body))
}

func TestExecutor_QueryIsPreserved(t *testing.T) {
	doer := &scriptedDoer{}
	exec := newTestExecutor(t, doer, newFakeClock())

	resp, err := exec.Do(context.Background(), BulletinIDsRequest(500, 20))
	require.NoError(t, err)
	_ = resp.Body.Close()

	u := doer.reqs[0].URL
	assert.Equal(t, "/api/v1/bulletins", u.Path)
	assert.Equal(t, "100", u.Query().Get("limit"), "limit is clamped")
	assert.Equal(t, "20", u.Query().Get("offset"))
	assert.Empty(t, doer.reqs[0].Header.Get("Authorization"), "no token, no header")
}

func TestExecutor_FaultInjection(t *testing.T) {
	t.Run("forced status is retried", func(t *testing.T) {
		faults := &debug.FaultProfile{}
		require.NoError(t, faults.SetForceNextStatus(http.StatusTooManyRequests))
		doer := &scriptedDoer{}
		exec := newTestExecutor(t, doer, newFakeClock(), func(c *ExecutorConfig) { c.Faults = faults })

		resp, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins"})
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, 2, doer.Calls())
	})

	t.Run("dropped send is a transport error", func(t *testing.T) {
		faults := &debug.FaultProfile{}
		faults.SetDropNextSend(true)
		doer := &scriptedDoer{}
		exec := newTestExecutor(t, doer, newFakeClock(), func(c *ExecutorConfig) { c.Faults = faults })

		_, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins"})
		assert.ErrorIs(t, err, ErrTransport)
		assert.Equal(t, 0, doer.Calls())
	})

	t.Run("delay uses the clock", func(t *testing.T) {
		faults := &debug.FaultProfile{}
		require.NoError(t, faults.SetDelayNextSend(7*time.Second))
		doer := &scriptedDoer{}
		clock := newFakeClock()
		exec := newTestExecutor(t, doer, clock, func(c *ExecutorConfig) { c.Faults = faults })

		resp, err := exec.Do(context.Background(), Request{Method: http.MethodGet, Path: "bulletins"})
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, []time.Duration{7 * time.Second}, clock.Sleeps())
	})
}

func TestNewExecutor_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ExecutorConfig
	}{
		{"nil doer", ExecutorConfig{BaseURL: "https://x/", Retry: RetryPolicy{BackoffUnit: 1, WaitBudget: 1}}},
		{"relative base", ExecutorConfig{BaseURL: "api/v1/", Doer: &scriptedDoer{}, Retry: RetryPolicy{BackoffUnit: 1, WaitBudget: 1}}},
		{"zero backoff", ExecutorConfig{BaseURL: "https://x/", Doer: &scriptedDoer{}, Retry: RetryPolicy{WaitBudget: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExecutor(tt.cfg)
			assert.Error(t, err)
		})
	}
}

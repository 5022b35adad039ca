package fincert

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sufield/fincert/internal/apitest"
	"github.com/sufield/fincert/internal/identity"
	"github.com/sufield/fincert/internal/tlsverify"
)

// fakeClock advances only when something sleeps on it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// scriptedDoer answers with the queued status codes, then 200.
type scriptedDoer struct {
	mu    sync.Mutex
	codes []int
	err   error
	reqs  []*http.Request
	times []time.Time
	clock Clock
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	if d.clock != nil {
		d.times = append(d.times, d.clock.Now())
	}
	if d.err != nil {
		return nil, d.err
	}
	code := http.StatusOK
	if len(d.codes) > 0 {
		code, d.codes = d.codes[0], d.codes[1:]
	}
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("payload")),
		Request:    req,
	}, nil
}

func (d *scriptedDoer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reqs)
}

func newTestExecutor(t *testing.T, doer Doer, clock Clock, mutate ...func(*ExecutorConfig)) *Executor {
	t.Helper()
	cfg := ExecutorConfig{
		BaseURL: "https://fincert.test/api/v1/",
		Doer:    doer,
		Clock:   clock,
		Retry:   RetryPolicy{BackoffUnit: 2 * time.Second, WaitBudget: 10 * time.Minute},
		Logger:  zerolog.Nop(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	exec, err := NewExecutor(cfg)
	require.NoError(t, err)
	return exec
}

// testOptions returns Options that open a session against srv.
func testOptions(t *testing.T, srv *apitest.Server, clock Clock) Options {
	t.Helper()

	leaf := srv.ClientCertificate(t)
	dir := t.TempDir()
	leaf.WriteCombined(t, dir, "client.pem")
	cert, err := identity.NewStore(dir).Find(identity.Thumbprint(leaf.Cert))
	require.NoError(t, err)

	return Options{
		BaseURL:     srv.BaseURL(),
		Certificate: cert,
		Credentials: identity.Credentials{Login: apitest.Login, Password: apitest.Password},
		Verifier: &tlsverify.Verifier{
			Policy:     tlsverify.Policy{ValidateChain: true},
			Roots:      srv.ServerCA.Pool(),
			ServerName: "127.0.0.1",
			Logger:     zerolog.Nop(),
		},
		PacingInterval: time.Second,
		Retry:          RetryPolicy{BackoffUnit: 2 * time.Second, WaitBudget: 10 * time.Minute},
		RequestTimeout: 30 * time.Second,
		UserAgent:      "fincert/test",
		Logger:         zerolog.Nop(),
		Clock:          clock,
	}
}

func openTestClient(t *testing.T, srv *apitest.Server) (*Client, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	client, err := Open(context.Background(), testOptions(t, srv, clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client, clock
}

// Package fincerttest opens fincert sessions against the fake API of
// package apitest, for tests of the packages built on top of the client.
package fincerttest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sufield/fincert/internal/apitest"
	"github.com/sufield/fincert/internal/fincert"
	"github.com/sufield/fincert/internal/identity"
	"github.com/sufield/fincert/internal/tlsverify"
)

// Clock is a fake fincert.Clock that only moves when something sleeps on
// it, so retries and pacing complete instantly.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	slept  time.Duration
	sleeps int
}

// NewClock returns a Clock set to 2024-07-01 10:00 UTC.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)}
}

// Now returns the fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the fake time by d.
func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
	return nil
}

// Slept returns the total fake time spent sleeping.
func (c *Clock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// Options returns session options for srv with a client certificate the
// server accepts, the default account and production retry settings on
// clock.
func Options(t testing.TB, srv *apitest.Server, clock fincert.Clock) fincert.Options {
	t.Helper()

	leaf := srv.ClientCertificate(t)
	dir := t.TempDir()
	leaf.WriteCombined(t, dir, "client.pem")
	cert, err := identity.NewStore(dir).Find(identity.Thumbprint(leaf.Cert))
	require.NoError(t, err)

	return fincert.Options{
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
		Retry:          fincert.RetryPolicy{BackoffUnit: 2 * time.Second, WaitBudget: 10 * time.Minute},
		RequestTimeout: 30 * time.Second,
		UserAgent:      "fincert/test",
		Logger:         zerolog.Nop(),
		Clock:          clock,
	}
}

// Open logs in to srv on a fake clock. The session is closed when the test
// ends.
func Open(t testing.TB, srv *apitest.Server) (*fincert.Client, *Clock) {
	t.Helper()
	clock := NewClock()
	client, err := fincert.Open(context.Background(), Options(t, srv, clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client, clock
}

package fincert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sufield/fincert/internal/debug"
	"github.com/sufield/fincert/internal/identity"
	"github.com/sufield/fincert/internal/tlsverify"
)

// Session is the authenticated state of one run.
//
// Concurrency: Safe for concurrent use; the Client is the only writer.
type Session struct {
	thumbprint string
	baseURL    string

	mu    sync.RWMutex
	token string
}

// Token returns the bearer token, "" when not authenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Thumbprint identifies the client certificate of the session.
func (s *Session) Thumbprint() string { return s.thumbprint }

// BaseURL is the API root of the session.
func (s *Session) BaseURL() string { return s.baseURL }

func (s *Session) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Options configures Open.
type Options struct {
	BaseURL     string
	Certificate *identity.ClientCertificate
	Credentials identity.Credentials
	Verifier    *tlsverify.Verifier
	Proxy       string

	PacingInterval time.Duration
	Retry          RetryPolicy
	RequestTimeout time.Duration

	UserAgent string
	Logger    zerolog.Logger

	// Pacer is shared between clients of one process; a new one is made when nil.
	Pacer *Pacer
	// Clock defaults to the wall clock.
	Clock Clock
	// Faults enables fault injection in the executor.
	Faults *debug.FaultProfile
	// VerboseClient logs the presented client certificate.
	VerboseClient bool
}

// Client is an open FinCERT session.
type Client struct {
	session   *Session
	exec      *Executor
	transport *http.Transport
	logger    zerolog.Logger
}

// Open builds the transport and logs in. Every failure is reported as
// ErrAuth wrapping the cause; empty credentials fail before any request is
// sent.
func Open(ctx context.Context, opts Options) (*Client, error) {
	if opts.Credentials.Login == "" || opts.Credentials.Password == "" {
		return nil, fmt.Errorf("%w: login and password are required", ErrAuth)
	}

	logger := opts.Logger.With().Str("component", "session").Logger()

	httpClient, transport, err := NewHTTPClient(TransportConfig{
		Certificate: opts.Certificate,
		Verifier:    opts.Verifier,
		Proxy:       opts.Proxy,
		Timeout:     opts.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: build transport: %w", ErrAuth, err)
	}
	if opts.VerboseClient {
		logger.Info().Fields(identity.CertificateFields(opts.Certificate.Leaf())).Msg("Client certificate")
	}

	pacer := opts.Pacer
	if pacer == nil {
		pacer = NewPacer(opts.PacingInterval, opts.Clock)
	}

	session := &Session{thumbprint: opts.Certificate.Thumbprint(), baseURL: opts.BaseURL}
	exec, err := NewExecutor(ExecutorConfig{
		BaseURL:   opts.BaseURL,
		Doer:      httpClient,
		Pacer:     pacer,
		Clock:     opts.Clock,
		Retry:     opts.Retry,
		Token:     session.Token,
		UserAgent: opts.UserAgent,
		Logger:    opts.Logger,
		Faults:    opts.Faults,
	})
	if err != nil {
		transport.CloseIdleConnections()
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	c := &Client{session: session, exec: exec, transport: transport, logger: logger}
	if err := c.login(ctx, opts.Credentials); err != nil {
		transport.CloseIdleConnections()
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	logger.Info().
		Str("login", opts.Credentials.Login).
		Dur("pacing", pacer.Interval()).
		Msg("Logged in")
	return c, nil
}

func (c *Client) login(ctx context.Context, creds identity.Credentials) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]string{"login": creds.Login, "password": creds.Password}); err != nil {
		return fmt.Errorf("encode login: %w", err)
	}

	resp, err := c.exec.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "account/login",
		Body:        bytes.TrimSuffix(body.Bytes(), []byte("\n")),
		ContentType: "application/json",
	})
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read token: %w", ErrTransport, err)
	}
	// The body is the token; a header value cannot carry its line break.
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return errors.New("login returned an empty token")
	}
	c.session.setToken(token)
	return nil
}

// Close logs out. The token is cleared and idle connections are released
// even when the logout request fails; that failure is logged and returned.
func (c *Client) Close(ctx context.Context) error {
	defer c.transport.CloseIdleConnections()
	if !c.session.Authenticated() {
		return nil
	}

	resp, err := c.exec.Do(ctx, Request{Method: http.MethodPost, Path: "account/logout"})
	c.session.setToken("")
	if err != nil {
		c.logger.Warn().Err(err).Msg("Logout failed")
		return fmt.Errorf("logout: %w", err)
	}
	closeBody(resp.Body)
	c.logger.Info().Msg("Logged out")
	return nil
}

// Session returns the session state.
func (c *Client) Session() *Session { return c.session }

package fincert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sufield/fincert/internal/assert"
	"github.com/sufield/fincert/internal/debug"
	"github.com/sufield/fincert/internal/tlsverify"
)

// Doer sends one HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is one logical API call. Body is kept as bytes so every retry can
// send it again.
type Request struct {
	Method      string
	Path        string // relative to the base URL, may carry a query
	Body        []byte
	ContentType string
}

// RetryPolicy tunes the executor.
type RetryPolicy struct {
	BackoffUnit time.Duration // wait before retry n is n * BackoffUnit
	WaitBudget  time.Duration // a call fails with ErrTimedOut once this has elapsed
}

// ExecutorConfig wires an Executor.
type ExecutorConfig struct {
	BaseURL   string
	Doer      Doer
	Pacer     *Pacer
	Clock     Clock
	Retry     RetryPolicy
	Token     func() string // bearer token source, "" sends no Authorization header
	UserAgent string
	Logger    zerolog.Logger

	// Faults, when set, is consulted before every send.
	Faults *debug.FaultProfile
}

// Executor turns a Request into a paced, retried exchange.
type Executor struct {
	base      *url.URL
	doer      Doer
	pacer     *Pacer
	clock     Clock
	retry     RetryPolicy
	token     func() string
	userAgent string
	logger    zerolog.Logger
	faults    *debug.FaultProfile
}

// NewExecutor validates cfg and returns an Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Doer == nil {
		return nil, errors.New("executor: doer cannot be nil")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("executor: base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("executor: base url %q is not absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if cfg.Retry.BackoffUnit <= 0 || cfg.Retry.WaitBudget <= 0 {
		return nil, fmt.Errorf("executor: backoff unit and wait budget must be positive")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}
	pacer := cfg.Pacer
	if pacer == nil {
		pacer = NewPacer(0, clock)
	}
	token := cfg.Token
	if token == nil {
		token = func() string { return "" }
	}

	return &Executor{
		base:      base,
		doer:      cfg.Doer,
		pacer:     pacer,
		clock:     clock,
		retry:     cfg.Retry,
		token:     token,
		userAgent: cfg.UserAgent,
		logger:    cfg.Logger.With().Str("component", "executor").Logger(),
		faults:    cfg.Faults,
	}, nil
}

// Do runs req until it succeeds, fails terminally or spends the wait budget.
//
// On success the caller owns the response body and must close it. Errors
// match ErrTimedOut, ErrUnexpectedStatus (a *StatusError), ErrTLSRejected or
// ErrTransport; when ctx ends first ctx.Err() is returned.
func (e *Executor) Do(ctx context.Context, req Request) (*http.Response, error) {
	target, err := e.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	deadline := e.clock.Now().Add(e.retry.WaitBudget)
	var (
		attempt  int
		prevWait time.Duration
	)
	for {
		if err := e.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := e.send(ctx, req, target)
		e.pacer.MarkSent()
		if err != nil {
			return nil, e.transportError(ctx, req, err)
		}

		outcome := Classify(resp.StatusCode)
		e.logger.Debug().
			Str("method", req.Method).
			Str("path", req.Path).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Stringer("outcome", outcome).
			Msg("Response received")

		switch outcome {
		case Success:
			return resp, nil
		case Terminal:
			snippet := readSnippet(resp.Body)
			closeBody(resp.Body)
			return nil, &StatusError{Method: req.Method, Path: req.Path, Code: resp.StatusCode, Body: snippet}
		}

		closeBody(resp.Body)
		if e.clock.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s %s: last status %d after %d retries within %v",
				ErrTimedOut, req.Method, req.Path, resp.StatusCode, attempt, e.retry.WaitBudget)
		}

		attempt++
		wait := time.Duration(attempt) * e.retry.BackoffUnit
		assert.Invariantf(wait >= prevWait, "backoff shrank from %v to %v", prevWait, wait)
		prevWait = wait

		e.logger.Debug().
			Str("method", req.Method).
			Str("path", req.Path).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Retrying")
		if err := e.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (e *Executor) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid path %q: %w", ErrTransport, path, err)
	}
	return e.base.ResolveReference(ref), nil
}

func (e *Executor) send(ctx context.Context, req Request, target *url.URL) (*http.Response, error) {
	if e.faults != nil {
		if d := e.faults.GetAndClearDelay(); d > 0 {
			if err := e.clock.Sleep(ctx, d); err != nil {
				return nil, err
			}
		}
		if e.faults.ShouldDropSend() {
			return nil, errors.New("send dropped by fault injection")
		}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json, */*")
	if e.userAgent != "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}
	if token := e.token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.doer.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if e.faults != nil {
		if code := e.faults.TakeForcedStatus(); code != 0 {
			e.logger.Warn().Int("status", code).Int("actual", resp.StatusCode).Msg("Status replaced by fault injection")
			resp.StatusCode = code
		}
	}
	return resp, nil
}

func (e *Executor) transportError(ctx context.Context, req Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, tlsverify.ErrRejected) {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.Path, err)
}

const snippetLimit = 512

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, snippetLimit))
	return strings.TrimSpace(string(b))
}

// closeBody drains a little of the body so the connection can be reused.
func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

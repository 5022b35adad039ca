package fincert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GetRaw runs req and copies the response body into w unchanged.
// A failure while reading the body is ErrTransport; a failure of w is
// returned as is so the caller can tell its own storage errors apart.
func (c *Client) GetRaw(ctx context.Context, req Request, w io.Writer) (int64, error) {
	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer closeBody(resp.Body)

	ew := &errWriter{w: w}
	n, err := io.Copy(ew, resp.Body)
	if err != nil {
		if ew.err != nil {
			return n, ew.err
		}
		return n, fmt.Errorf("%w: read %s %s: %w", ErrTransport, req.Method, req.Path, err)
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	return c.doJSON(ctx, Request{Method: http.MethodGet, Path: path}, v)
}

func (c *Client) doJSON(ctx context.Context, req Request, v any) error {
	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDecode, req.Method, req.Path, err)
	}
	return nil
}

// errWriter remembers the first error of the wrapped writer.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil && e.err == nil {
		e.err = err
	}
	return n, err
}

// Package fincert is the client for the FinCERT API.
//
// Open builds a mutual TLS transport from a client certificate, logs in and
// returns a Client holding the bearer token. Every call goes through the
// Executor, which paces requests process-wide, retries responses the server
// uses to signal "not ready" or "slow down" with a linear backoff, and gives
// up when a per-call wait budget is spent.
//
// Status classification:
//   - 200 is success
//   - 204, 408, 429 and every 5xx are retried
//   - anything else fails at once with a *StatusError
//
// Transport failures are never retried. A server certificate refused by the
// tlsverify policy surfaces as ErrTLSRejected.
package fincert

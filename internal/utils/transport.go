package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrIdleTimeout ends a response body that produced no data within the idle
// timeout. It wraps context.DeadlineExceeded so callers classify it as a
// timeout.
var ErrIdleTimeout = fmt.Errorf("response body idle: %w", context.DeadlineExceeded)

// NewHTTPClient returns a client whose timeout bounds each phase of a call
// instead of the whole exchange: dialing, the TLS handshake, waiting for
// response headers and every gap between body reads. A stream that keeps
// producing data is never cut off; a stalled one fails with ErrIdleTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout

	return &http.Client{Transport: &idleTimeoutTransport{base: transport, timeout: timeout}}
}

type idleTimeoutTransport struct {
	base    http.RoundTripper
	timeout time.Duration
}

func (t *idleTimeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancelCause(req.Context())

	response, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel(nil)
		return nil, err
	}

	body := &idleBody{ReadCloser: response.Body, ctx: ctx, cancel: cancel, timeout: t.timeout}
	body.timer = time.AfterFunc(t.timeout, func() { cancel(ErrIdleTimeout) })
	body.timer.Stop()
	response.Body = body
	return response, nil
}

// idleBody arms the idle timer only while a Read is blocked, so a slow
// consumer does not count against the provider.
type idleBody struct {
	io.ReadCloser
	ctx     context.Context
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
}

func (b *idleBody) Read(p []byte) (int, error) {
	b.timer.Reset(b.timeout)
	n, err := b.ReadCloser.Read(p)
	b.timer.Stop()

	if err != nil && errors.Is(context.Cause(b.ctx), ErrIdleTimeout) {
		return n, ErrIdleTimeout
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	b.cancel(nil)
	return b.ReadCloser.Close()
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind places a failure in the shared error taxonomy.
type Kind string

const (
	// KindConfiguration covers unknown providers and missing API keys. Fatal
	// for the request, no retry.
	KindConfiguration Kind = "configuration"
	// KindAuth covers invalid keys and expired sessions.
	KindAuth Kind = "auth"
	// KindRateLimit is reported as user-retryable after a delay.
	KindRateLimit Kind = "rate_limit"
	// KindTransport covers unreachable networks, timeouts and aborted requests.
	KindTransport Kind = "transport"
	// KindProtocol covers unexpected vendor payloads and non-2xx responses
	// that do not fit a more specific kind.
	KindProtocol Kind = "protocol"
	// KindLifecycle means the host environment was invalidated mid-session.
	// It requires a full reload and is never retryable.
	KindLifecycle Kind = "lifecycle"
)

var (
	// ErrUnknownProvider is wrapped by the configuration error returned for a
	// provider id that has no registered adapter.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingAPIKey is wrapped by the configuration error an adapter
	// returns before any network activity when no credential is set.
	ErrMissingAPIKey = errors.New("API key is not set")

	// ErrEmptyResponse signals a successful HTTP exchange without content.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// Error is the typed failure every adapter returns.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	// Timeout is set for transport failures caused by a deadline.
	Timeout bool
	Message string
	Err     error
}

// NewError builds an *Error with the given kind.
func NewError(kind Kind, provider, message string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: err}
}

func (e *Error) Error() string {
	var builder strings.Builder
	if e.Provider != "" {
		builder.WriteString(e.Provider)
		builder.WriteString(": ")
	}
	builder.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&builder, " (status %d)", e.StatusCode)
	}
	if e.Err != nil && e.Message != e.Err.Error() {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err. Untyped errors are classified by
// inspecting the chain for transport failures; anything else is a protocol
// failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if typed, ok := AsError(err); ok {
		return typed.Kind
	}
	if isTransport(err) {
		return KindTransport
	}
	return KindProtocol
}

// StatusError maps a non-2xx HTTP response to the taxonomy. The vendor's
// error message is extracted from the body when it follows the common
// {"error":{"message":...}} or {"error":"..."} shapes.
func StatusError(provider string, statusCode int, body string) *Error {
	message := vendorMessage(body)
	if message == "" {
		message = http.StatusText(statusCode)
	}

	kind := KindProtocol
	timeout := false
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = KindAuth
		message = "invalid API key or expired session: " + message
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimit
		message = "rate limit exceeded: " + message
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		kind = KindTransport
		timeout = true
		message = "timeout: " + message
	case statusCode == http.StatusBadRequest || statusCode == http.StatusNotFound || statusCode == http.StatusUnprocessableEntity:
		message = "invalid request: " + message
	}

	return &Error{
		Kind:       kind,
		Provider:   provider,
		StatusCode: statusCode,
		Timeout:    timeout,
		Message:    message,
	}
}

// TransportError wraps a failure that happened before or while reading an
// HTTP exchange. Already-typed errors are returned unchanged.
func TransportError(provider string, err error) *Error {
	if typed, ok := AsError(err); ok {
		return typed
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindTransport, Provider: provider, Message: "request aborted", Err: err}
	case isTimeout(err):
		return &Error{Kind: KindTransport, Provider: provider, Timeout: true, Message: "timeout while contacting provider", Err: err}
	default:
		return &Error{Kind: KindTransport, Provider: provider, Message: "network error", Err: err}
	}
}

// ProtocolError wraps an unexpected vendor payload.
func ProtocolError(provider string, err error) *Error {
	if typed, ok := AsError(err); ok {
		return typed
	}
	return &Error{Kind: KindProtocol, Provider: provider, Message: "unexpected response from provider", Err: err}
}

// MissingAPIKey returns the configuration error adapters raise before any
// network call when no credential is available.
func MissingAPIKey(provider string) *Error {
	return &Error{Kind: KindConfiguration, Provider: provider, Message: "API key is not set", Err: ErrMissingAPIKey}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTransport(err error) bool {
	if errors.Is(err, context.Canceled) || isTimeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// vendorMessage pulls a human-readable message out of a vendor error body.
func vendorMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(body), &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(body), &flat) == nil {
		if flat.Message != "" {
			return flat.Message
		}
		if flat.Error != "" {
			return flat.Error
		}
	}

	if len(body) > 300 {
		return body[:300]
	}
	return body
}

package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leofalp/explainer/providers/observability"
)

// DoPostStream performs a JSON POST asking for an event stream and returns
// the response with its body left open. The caller must close the body once
// the stream is consumed. Non-2xx responses are read, closed and returned as
// *StatusError.
func DoPostStream(ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, size, err := newJSONRequest(ctx, url, apiKey, body, append([]HeaderOption{{Key: "Accept", Value: "text/event-stream"}}, headers...))
	if err != nil {
		return nil, err
	}

	if span != nil {
		span.AddEvent("http.stream_request.prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, size),
		)
	}

	requestStart := time.Now()
	response, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)
	if err != nil {
		if span != nil {
			span.AddEvent("http.stream_request.error",
				observability.Error(err),
				observability.Duration(observability.AttrHTTPDuration, requestDuration),
			)
		}
		return nil, fmt.Errorf("error sending stream request: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			return response, &StatusError{StatusCode: response.StatusCode, Body: "failed to read body: " + readErr.Error()}
		}
		return response, &StatusError{StatusCode: response.StatusCode, Body: string(errorBody)}
	}

	if span != nil {
		span.AddEvent("http.stream_response.started",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration(observability.AttrHTTPDuration, requestDuration),
		)
	}

	return response, nil
}

// maxSSELineSize bounds a single SSE line (1 MB); the bufio default of
// 64 KiB is too small for long completions.
const maxSSELineSize = 1 * 1024 * 1024

// SSEEvent is one dispatched server-sent event.
type SSEEvent struct {
	// Name is the value of the last "event:" field, empty when absent.
	Name string
	// Data is the joined value of the event's "data:" fields.
	Data string
}

// SSEScanner reads server-sent events from a reader. Comments and fields
// other than "event:" and "data:" are ignored; the OpenAI "[DONE]" sentinel
// ends the stream.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates a scanner over reader.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next event carrying data. It returns io.EOF at the end of
// the stream or on the "[DONE]" sentinel.
func (s *SSEScanner) Next() (SSEEvent, error) {
	var (
		name      string
		dataLines []string
	)

	flush := func() SSEEvent {
		return SSEEvent{Name: name, Data: strings.Join(dataLines, "\n")}
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()

		switch {
		case line == "":
			if len(dataLines) > 0 {
				return flush(), nil
			}
			name = ""
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return SSEEvent{}, io.EOF
			}
			dataLines = append(dataLines, data)
		}
	}

	if err := s.scanner.Err(); err != nil {
		return SSEEvent{}, fmt.Errorf("SSE scanner error: %w", err)
	}
	if len(dataLines) > 0 {
		return flush(), nil
	}
	return SSEEvent{}, io.EOF
}

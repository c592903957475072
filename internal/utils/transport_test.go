package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPClient_ProgressingStreamOutlivesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 6; i++ {
			fmt.Fprintf(writer, "data: %d\n\n", i)
			writer.(http.Flusher).Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(150 * time.Millisecond)
	start := time.Now()
	response, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("a stream that keeps producing data must not time out: %v", err)
	}
	if strings.Count(string(body), "data:") != 6 {
		t.Errorf("expected 6 events, got %q", body)
	}
	if time.Since(start) < 150*time.Millisecond {
		t.Errorf("stream finished before the timeout elapsed, test proves nothing")
	}
}

func TestNewHTTPClient_StalledBodyFailsWithIdleTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(writer, "data: first\n\n")
		writer.(http.Flusher).Flush()
		select {
		case <-release:
		case <-request.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	response, err := NewHTTPClient(100 * time.Millisecond).Get(server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer response.Body.Close()

	_, err = io.ReadAll(response.Body)
	if !errors.Is(err, ErrIdleTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected idle timeout, got %v", err)
	}
}

func TestNewHTTPClient_SlowHeadersTimeOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case <-release:
		case <-request.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTPClient(100 * time.Millisecond).Get(server.URL)
	if err == nil {
		t.Fatal("expected a response header timeout")
	}
}

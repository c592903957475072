package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Reply string `json:"reply"`
}

func TestDoPostSync_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "explainer" {
			t.Errorf("unexpected X-Title header %q", got)
		}
		var body echoRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(echoResponse{Reply: "echo: " + body.Text})
	}))
	defer server.Close()

	res, out, err := DoPostSync[echoResponse](context.Background(), server.Client(), server.URL, "sk-test",
		echoRequest{Text: "hi"}, HeaderOption{Key: "X-Title", Value: "explainer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK || out.Reply != "echo: hi" {
		t.Errorf("unexpected result: %d %+v", res.StatusCode, out)
	}
}

func TestDoPostSync_NoAPIKeyOmitsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expected no Authorization header, got %q", got)
		}
		_, _ = w.Write([]byte(`{"reply":"ok"}`))
	}))
	defer server.Close()

	if _, _, err := DoPostSync[echoResponse](context.Background(), nil, server.URL, "", echoRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDoPostSync_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	_, _, err := DoPostSync[echoResponse](context.Background(), server.Client(), server.URL, "k", echoRequest{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !strings.Contains(statusErr.Body, "slow down") {
		t.Errorf("unexpected status error: %+v", statusErr)
	}
}

func TestDoPostSync_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, _, err := DoPostSync[echoResponse](context.Background(), server.Client(), server.URL, "k", echoRequest{})
	if err == nil || !strings.Contains(err.Error(), "Response preview: not json") {
		t.Errorf("expected unmarshal error with preview, got %v", err)
	}
}

func TestDoPostSync_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := DoPostSync[echoResponse](ctx, server.Client(), server.URL, "k", echoRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestDoPostSync_UnmarshalableBody(t *testing.T) {
	_, _, err := DoPostSync[echoResponse](context.Background(), nil, "http://unused", "k", map[string]any{"ch": make(chan int)})
	if err == nil || !strings.Contains(err.Error(), "error marshaling body") {
		t.Errorf("expected marshal error, got %v", err)
	}
}

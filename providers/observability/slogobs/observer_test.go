package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/leofalp/explainer/providers/observability"
)

func newTestObserver(buf *bytes.Buffer, format Format, level slog.Level) *Observer {
	return New(WithFormat(format), WithLevel(level), WithOutput(buf))
}

func TestHandler_Compact(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatCompact, Level: slog.LevelDebug, Output: &buf}))

	logger.Info("Request done", "provider", "openai", "chunks", 3)

	output := buf.String()
	if !strings.Contains(output, " INFO Request done -> ") {
		t.Errorf("unexpected compact line: %s", output)
	}
	if !strings.Contains(output, `"provider":"openai"`) || !strings.Contains(output, `"chunks":3`) {
		t.Errorf("expected JSON attributes, got: %s", output)
	}
}

func TestHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Format: FormatJSON, Output: &buf}))

	logger.With("component", "channel").WithGroup("req").Warn("Stale event dropped", "session", "abc")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if record["level"] != "WARN" || record["msg"] != "Stale event dropped" {
		t.Errorf("unexpected record: %v", record)
	}
	if record["component"] != "channel" {
		t.Errorf("expected handler attribute without group, got %v", record)
	}
	if record["req.session"] != "abc" {
		t.Errorf("expected grouped attribute, got %v", record)
	}
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&HandlerOptions{Level: slog.LevelWarn, Output: &buf}))

	logger.Info("hidden")
	logger.Error("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("INFO record should be filtered: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("ERROR record missing: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"trace":   LevelTrace,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JSON") != FormatJSON {
		t.Error("expected json format")
	}
	if ParseFormat("pretty") != FormatCompact {
		t.Error("unknown formats should fall back to compact")
	}
}

func TestFromEnv_PrefersExplainerVariables(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("EXPLAINER_LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")

	if got := LevelFromEnv(); got != slog.LevelDebug {
		t.Errorf("expected DEBUG from EXPLAINER_LOG_LEVEL, got %v", got)
	}
	if got := FormatFromEnv(); got != FormatJSON {
		t.Errorf("expected LOG_FORMAT fallback, got %v", got)
	}
}

func TestObserver_CounterAccumulates(t *testing.T) {
	var buf bytes.Buffer
	observer := newTestObserver(&buf, FormatCompact, slog.LevelDebug)
	ctx := context.Background()

	observer.Counter(observability.MetricRequests).Add(ctx, 1)
	observer.Counter(observability.MetricRequests).Add(ctx, 2, observability.String(observability.AttrLLMProvider, "gemini"))

	if got := observer.CounterValue(observability.MetricRequests); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := observer.CounterValue(observability.MetricErrors); got != 0 {
		t.Errorf("expected untouched counter to be 0, got %d", got)
	}
	if !strings.Contains(buf.String(), `"llm.provider":"gemini"`) {
		t.Errorf("expected counter attributes in log: %s", buf.String())
	}
}

func TestObserver_SpanLifecycle(t *testing.T) {
	var buf bytes.Buffer
	observer := newTestObserver(&buf, FormatJSON, slog.LevelDebug)

	ctx, span := observer.StartSpan(context.Background(), observability.SpanRequest,
		observability.String(observability.AttrLLMProvider, "anthropic"))
	if observability.SpanFromContext(ctx) != span {
		t.Fatal("StartSpan should store the span in the returned context")
	}

	span.AddEvent(observability.EventChunkReceived, observability.Int(observability.AttrLLMChunkCount, 1))
	span.RecordError(errors.New("boom"))
	span.SetStatus(observability.StatusError, "boom")
	span.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected start, event, error and end records, got %d: %s", len(lines), buf.String())
	}

	var end map[string]any
	if err := json.Unmarshal([]byte(lines[3]), &end); err != nil {
		t.Fatalf("end record is not JSON: %v", err)
	}
	if end["event"] != "span.end" || end[observability.AttrStatus] != "error" || end[observability.AttrError] != "boom" {
		t.Errorf("unexpected end record: %v", end)
	}
	if _, ok := end[observability.AttrDuration].(string); !ok {
		t.Errorf("expected duration string, got %v", end[observability.AttrDuration])
	}
}

func TestObserver_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	observer := New(WithLogger(logger))

	observer.Info(context.Background(), "hello", observability.String("k", "v"))

	if observer.Logger() != logger {
		t.Error("expected the provided logger to be used")
	}
	if !strings.Contains(buf.String(), "k=v") {
		t.Errorf("expected text handler output, got %s", buf.String())
	}
}

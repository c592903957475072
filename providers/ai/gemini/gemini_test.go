package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"google.golang.org/genai"

	"github.com/leofalp/explainer/providers/ai"
)

func TestPricingFor_FamilyPrefix(t *testing.T) {
	pricing := pricingFor("models/gemini-2.5-flash-preview-05-20")
	if pricing == nil {
		t.Fatal("expected the 2.5 flash family to match")
	}
	if pricing.Prompt != 0.30/1e6 || pricing.Completion != 2.50/1e6 {
		t.Errorf("unexpected pricing: %+v", pricing)
	}

	lite := pricingFor("gemini-2.5-flash-lite-001")
	if lite == nil || lite.Prompt != 0.10/1e6 {
		t.Errorf("expected the longest prefix (flash-lite) to win, got %+v", lite)
	}

	if pricingFor("gemma-3-27b-it") != nil {
		t.Error("unknown families should have no pricing")
	}
}

func TestToDescriptors(t *testing.T) {
	items := []*genai.Model{
		{Name: "models/gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", InputTokenLimit: 1048576, SupportedActions: []string{"generateContent", "countTokens"}},
		{Name: "models/text-embedding-004", SupportedActions: []string{"embedContent"}},
		{Name: "models/gemini-legacy"},
		nil,
	}

	models := toDescriptors(items)
	if len(models) != 2 {
		t.Fatalf("expected 2 generation models, got %+v", models)
	}
	if models[0].ID != "gemini-2.0-flash" || models[0].ContextLength != 1048576 || models[0].Pricing == nil || models[0].Provider != ProviderID {
		t.Errorf("unexpected descriptor: %+v", models[0])
	}
	if models[1].Name != "gemini-legacy" {
		t.Errorf("expected id as name fallback, got %q", models[1].Name)
	}
}

func TestMapError_APIError(t *testing.T) {
	err := fmt.Errorf("generate: %w", genai.APIError{Code: http.StatusTooManyRequests, Message: "Resource has been exhausted", Status: "RESOURCE_EXHAUSTED"})

	mapped := mapError(err)
	if mapped.Kind != ai.KindRateLimit || mapped.StatusCode != http.StatusTooManyRequests {
		t.Errorf("unexpected mapping: %+v", mapped)
	}
}

func TestMapError_Transport(t *testing.T) {
	if mapped := mapError(context.DeadlineExceeded); mapped.Kind != ai.KindTransport || !mapped.Timeout {
		t.Errorf("expected transport timeout, got %+v", mapped)
	}
}

func TestSend_MissingAPIKey(t *testing.T) {
	_, err := New().Send(context.Background(), ai.Request{Model: Model25Flash, UserMessage: "x"}, func(string) {})
	if !errors.Is(err, ai.ErrMissingAPIKey) {
		t.Errorf("expected missing key, got %v", err)
	}
}

func TestListModels_MissingKeyServesFallback(t *testing.T) {
	models, err := New().ListModels(context.Background(), "", false)
	if !errors.Is(err, ai.ErrMissingAPIKey) {
		t.Errorf("expected missing key, got %v", err)
	}
	if len(models) != len(fallbackModels) || models[0].Pricing == nil {
		t.Errorf("expected priced fallback list, got %+v", models)
	}
}

func TestResponseText_NoCandidates(t *testing.T) {
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
	if got := responseText(nil); got != "" {
		t.Errorf("expected empty text for nil, got %q", got)
	}
}

func writeSSE(writer http.ResponseWriter, data string) {
	fmt.Fprintf(writer, "data: %s\n\n", data)
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

func candidate(text, finishReason string) string {
	if finishReason == "" {
		return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"},"index":0}]}`, text)
	}
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"},"finishReason":%q,"index":0}]}`, text, finishReason)
}

func TestSend_Streaming_ChunksMatchContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.URL.Path, "models/"+Model25Flash+":streamGenerateContent") {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		if got := request.Header.Get("x-goog-api-key"); got != "g-key" {
			t.Errorf("unexpected api key header %q", got)
		}

		writer.Header().Set("Content-Type", "text/event-stream")
		writeSSE(writer, candidate("Bonjour", ""))
		writeSSE(writer, `{"usageMetadata":{"promptTokenCount":4}}`)
		writeSSE(writer, candidate(" le monde", "STOP"))
	}))
	defer server.Close()

	var chunks []string
	content, err := New().WithBaseURL(server.URL).Send(context.Background(), ai.Request{
		Model: "models/" + Model25Flash, SystemPrompt: "translate", UserMessage: "Hello world", APIKey: "g-key",
	}, func(chunk string) { chunks = append(chunks, chunk) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "Bonjour le monde" || strings.Join(chunks, "") != content || len(chunks) != 2 {
		t.Errorf("content %q chunks %v", content, chunks)
	}
}

func TestSend_Streaming_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusTooManyRequests)
		writer.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	var chunks []string
	_, err := New().WithBaseURL(server.URL).Send(context.Background(),
		ai.Request{Model: Model25Flash, UserMessage: "x", APIKey: "g-key"},
		func(chunk string) { chunks = append(chunks, chunk) })
	if ai.KindOf(err) != ai.KindRateLimit {
		t.Errorf("expected rate limit, got %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %v", chunks)
	}
}

func TestListModels_CachesUntilForced(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/models") {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		calls.Add(1)
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"models":[
			{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash","inputTokenLimit":1048576,"supportedGenerationMethods":["generateContent"]},
			{"name":"models/text-embedding-004","supportedGenerationMethods":["embedContent"]}
		]}`))
	}))
	defer server.Close()

	provider := New().WithBaseURL(server.URL)
	for i := 0; i < 2; i++ {
		models, err := provider.ListModels(context.Background(), "g-key", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(models) != 1 || models[0].ID != "gemini-2.0-flash" {
			t.Fatalf("unexpected models: %+v", models)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected a cache hit, got %d calls", calls.Load())
	}

	if _, err := provider.ListModels(context.Background(), "g-key", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected forceRefresh to refetch, got %d calls", calls.Load())
	}
}

package openai

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/leofalp/explainer/internal/utils"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
)

const (
	// ProviderID is the registry key and settings value for this adapter.
	ProviderID = "openai"

	defaultBaseURL = "https://api.openai.com/v1"
)

// OpenAIProvider implements [ai.Provider]. Blocking sends, credential tests
// and model listing go through openai-go; streams are read with the shared
// SSE scanner. A client is built per call because the API key comes with
// each request.
type OpenAIProvider struct {
	baseURL string
	client  *http.Client
	cache   *ai.ModelCache
}

var _ ai.Provider = (*OpenAIProvider)(nil)

// New returns a provider targeting OPENAI_API_BASE_URL, or the public API
// when unset.
func New() *OpenAIProvider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIProvider{
		baseURL: baseURL,
		client:  &http.Client{},
		cache:   ai.NewModelCache(fallbackModels),
	}
}

func (p *OpenAIProvider) WithBaseURL(baseURL string) *OpenAIProvider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) *OpenAIProvider {
	if httpClient != nil {
		p.client = httpClient
	}
	return p
}

func (p *OpenAIProvider) ID() string { return ProviderID }

func (p *OpenAIProvider) newClient(apiKey string) openai.Client {
	return openai.NewClient(
		openaiopt.WithAPIKey(apiKey),
		openaiopt.WithBaseURL(p.baseURL),
		openaiopt.WithHTTPClient(p.client),
		openaiopt.WithMaxRetries(0),
	)
}

func buildParams(request ai.Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if request.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(request.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(request.UserMessage))

	return openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(request.Model),
		Messages: messages,
	}
}

// Send implements [ai.Provider].
func (p *OpenAIProvider) Send(ctx context.Context, request ai.Request, onChunk ai.ChunkFunc) (string, error) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, ProviderID),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
		)
	}

	if request.APIKey == "" {
		return "", ai.MissingAPIKey(ProviderID)
	}

	if onChunk == nil {
		client := p.newClient(request.APIKey)
		completion, err := client.Chat.Completions.New(ctx, buildParams(request))
		if err != nil {
			return "", mapError(err)
		}
		if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
			return "", ai.NewError(ai.KindProtocol, ProviderID, "empty response", ai.ErrEmptyResponse)
		}
		return completion.Choices[0].Message.Content, nil
	}

	url := strings.TrimSuffix(p.baseURL, "/") + completionsEndpoint
	response, err := utils.DoPostStream(ctx, p.client, url, request.APIKey, buildStreamRequest(request))
	if err != nil {
		return "", ai.HTTPError(ProviderID, err)
	}

	content, err := ai.Drain(streamText(ctx, response), onChunk)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", ai.NewError(ai.KindProtocol, ProviderID, "empty response", ai.ErrEmptyResponse)
	}
	return content, nil
}

// Test lists models, which validates the key without generating tokens.
func (p *OpenAIProvider) Test(ctx context.Context, credential string) error {
	if credential == "" {
		return ai.MissingAPIKey(ProviderID)
	}
	client := p.newClient(credential)
	if _, err := client.Models.List(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// ListModels implements [ai.Provider]. Only chat-capable model families are
// kept; embeddings, audio and image models are dropped.
func (p *OpenAIProvider) ListModels(ctx context.Context, credential string, forceRefresh bool) ([]ai.ModelDescriptor, error) {
	return p.cache.Load(ctx, forceRefresh, func(ctx context.Context) ([]ai.ModelDescriptor, error) {
		if credential == "" {
			return nil, ai.MissingAPIKey(ProviderID)
		}
		client := p.newClient(credential)
		page, err := client.Models.List(ctx)
		if err != nil {
			return nil, mapError(err)
		}

		models := make([]ai.ModelDescriptor, 0, len(page.Data))
		for _, model := range page.Data {
			if !isChatModel(model.ID) {
				continue
			}
			models = append(models, ai.ModelDescriptor{ID: model.ID, Name: model.ID, Provider: ProviderID})
		}
		sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
		return models, nil
	})
}

var chatModelPrefixes = []string{"gpt-", "chatgpt-", "o1", "o3", "o4"}

var nonChatMarkers = []string{"embedding", "tts", "whisper", "dall-e", "transcribe", "realtime", "audio", "image", "moderation", "search"}

func isChatModel(id string) bool {
	for _, marker := range nonChatMarkers {
		if strings.Contains(id, marker) {
			return false
		}
	}
	for _, prefix := range chatModelPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// mapError converts SDK errors. API errors carry the status code and the
// vendor's error object; everything else is transport or protocol.
func mapError(err error) *ai.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		mapped := ai.StatusError(ProviderID, apiErr.StatusCode, apiErr.RawJSON())
		mapped.Err = err
		return mapped
	}
	return ai.HTTPError(ProviderID, err)
}

var fallbackModels = []ai.ModelDescriptor{
	{ID: "gpt-4o-mini", Name: "gpt-4o-mini", ContextLength: 128000, Provider: ProviderID},
	{ID: "gpt-4o", Name: "gpt-4o", ContextLength: 128000, Provider: ProviderID},
	{ID: "gpt-4.1-mini", Name: "gpt-4.1-mini", ContextLength: 1047576, Provider: ProviderID},
}

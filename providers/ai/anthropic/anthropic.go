package anthropic

import (
	"context"
	"net/http"
	"os"

	"github.com/go-resty/resty/v2"

	"github.com/leofalp/explainer/internal/utils"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
)

const (
	// ProviderID is the registry key and settings value for this adapter.
	ProviderID = "anthropic"

	defaultBaseURL   = "https://api.anthropic.com/v1"
	messagesEndpoint = "/messages"
	modelsEndpoint   = "/models"

	// anthropicVersion pins the response format independently of the URL.
	anthropicVersion = "2023-06-01"

	defaultMaxTokens = 2048
)

// AnthropicProvider implements [ai.Provider] for Anthropic's Messages API.
// The API key travels with each request; the provider itself only holds the
// endpoint, the HTTP client and the model cache.
type AnthropicProvider struct {
	baseURL   string
	client    *http.Client
	rest      *resty.Client
	maxTokens int
	cache     *ai.ModelCache
}

var _ ai.Provider = (*AnthropicProvider)(nil)

// New returns a provider targeting ANTHROPIC_API_BASE_URL, or the public API
// when unset.
func New() *AnthropicProvider {
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := &http.Client{}
	return &AnthropicProvider{
		baseURL:   baseURL,
		client:    client,
		rest:      utils.NewRestClient(client),
		maxTokens: defaultMaxTokens,
		cache:     ai.NewModelCache(fallbackModels),
	}
}

// WithBaseURL overrides the API base URL, for proxies and tests.
func (p *AnthropicProvider) WithBaseURL(baseURL string) *AnthropicProvider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithHttpClient replaces the HTTP client. Its timeout is the only timeout
// applied to requests.
func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) *AnthropicProvider {
	if httpClient != nil {
		p.client = httpClient
		p.rest = utils.NewRestClient(httpClient)
	}
	return p
}

// WithMaxTokens sets the max_tokens sent with every request.
func (p *AnthropicProvider) WithMaxTokens(maxTokens int) *AnthropicProvider {
	if maxTokens > 0 {
		p.maxTokens = maxTokens
	}
	return p
}

func (p *AnthropicProvider) ID() string { return ProviderID }

// buildHeaders returns the authentication and versioning headers. Anthropic
// does not accept Bearer tokens, so the helpers are always called with an
// empty apiKey.
func buildHeaders(apiKey string) []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: apiKey},
		{Key: "anthropic-version", Value: anthropicVersion},
	}
}

// Send implements [ai.Provider]. With a nil onChunk it performs one
// synchronous Messages call; otherwise it streams and forwards text deltas.
func (p *AnthropicProvider) Send(ctx context.Context, request ai.Request, onChunk ai.ChunkFunc) (string, error) {
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, ProviderID),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
		)
	}

	if request.APIKey == "" {
		return "", ai.MissingAPIKey(ProviderID)
	}

	body := messagesRequest{
		Model:     request.Model,
		System:    request.SystemPrompt,
		Messages:  []message{{Role: "user", Content: request.UserMessage}},
		MaxTokens: p.maxTokens,
	}

	if onChunk == nil {
		return p.sendSync(ctx, body, request.APIKey)
	}

	body.Stream = true
	response, err := utils.DoPostStream(ctx, p.client, p.baseURL+messagesEndpoint, "", body, buildHeaders(request.APIKey)...)
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

func (p *AnthropicProvider) sendSync(ctx context.Context, body messagesRequest, apiKey string) (string, error) {
	_, response, err := utils.DoPostSync[messagesResponse](ctx, p.client, p.baseURL+messagesEndpoint, "", body, buildHeaders(apiKey)...)
	if err != nil {
		return "", ai.HTTPError(ProviderID, err)
	}

	if span := observability.SpanFromContext(ctx); span != nil && response.StopReason != "" {
		span.SetAttributes(observability.String(observability.AttrLLMFinishReason, response.StopReason))
	}

	content := response.text()
	if content == "" {
		return "", ai.NewError(ai.KindProtocol, ProviderID, "empty response", ai.ErrEmptyResponse)
	}
	return content, nil
}

// Test validates the key with a one-entry model listing, which costs nothing.
func (p *AnthropicProvider) Test(ctx context.Context, credential string) error {
	if credential == "" {
		return ai.MissingAPIKey(ProviderID)
	}
	_, err := utils.GetJSON[modelList](ctx, p.rest, p.baseURL+modelsEndpoint+"?limit=1", buildHeaders(credential)...)
	if err != nil {
		return ai.HTTPError(ProviderID, err)
	}
	return nil
}

// ListModels implements [ai.Provider]. On failure the fallback list is
// returned together with the error.
func (p *AnthropicProvider) ListModels(ctx context.Context, credential string, forceRefresh bool) ([]ai.ModelDescriptor, error) {
	return p.cache.Load(ctx, forceRefresh, func(ctx context.Context) ([]ai.ModelDescriptor, error) {
		if credential == "" {
			return nil, ai.MissingAPIKey(ProviderID)
		}
		list, err := utils.GetJSON[modelList](ctx, p.rest, p.baseURL+modelsEndpoint+"?limit=100", buildHeaders(credential)...)
		if err != nil {
			return nil, ai.HTTPError(ProviderID, err)
		}
		return list.descriptors(), nil
	})
}

package openrouter

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
	ProviderID = "openrouter"

	defaultBaseURL      = "https://openrouter.ai/api/v1"
	completionsEndpoint = "/chat/completions"
	modelsEndpoint      = "/models"
	keyEndpoint         = "/auth/key"

	defaultReferer = "https://github.com/leofalp/explainer"
	defaultTitle   = "Explainer"
)

// OpenRouterProvider implements [ai.Provider] for OpenRouter.
type OpenRouterProvider struct {
	baseURL string
	client  *http.Client
	rest    *resty.Client
	cache   *ai.ModelCache
}

var _ ai.Provider = (*OpenRouterProvider)(nil)

// New returns a provider targeting OPENROUTER_API_BASE_URL, or the public
// API when unset.
func New() *OpenRouterProvider {
	baseURL := os.Getenv("OPENROUTER_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := &http.Client{}
	return &OpenRouterProvider{
		baseURL: baseURL,
		client:  client,
		rest:    utils.NewRestClient(client),
		cache:   ai.NewModelCache(fallbackModels),
	}
}

func (p *OpenRouterProvider) WithBaseURL(baseURL string) *OpenRouterProvider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

func (p *OpenRouterProvider) WithHttpClient(httpClient *http.Client) *OpenRouterProvider {
	if httpClient != nil {
		p.client = httpClient
		p.rest = utils.NewRestClient(httpClient)
	}
	return p
}

func (p *OpenRouterProvider) ID() string { return ProviderID }

// attributionHeaders identify the app on OpenRouter's leaderboard.
func attributionHeaders() []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "HTTP-Referer", Value: defaultReferer},
		{Key: "X-Title", Value: defaultTitle},
	}
}

func buildMessages(request ai.Request) []chatMessage {
	messages := make([]chatMessage, 0, 2)
	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: request.SystemPrompt})
	}
	return append(messages, chatMessage{Role: "user", Content: request.UserMessage})
}

// Send implements [ai.Provider].
func (p *OpenRouterProvider) Send(ctx context.Context, request ai.Request, onChunk ai.ChunkFunc) (string, error) {
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

	body := chatRequest{Model: request.Model, Messages: buildMessages(request)}
	url := p.baseURL + completionsEndpoint

	if onChunk == nil {
		_, response, err := utils.DoPostSync[chatResponse](ctx, p.client, url, request.APIKey, body, attributionHeaders()...)
		if err != nil {
			return "", ai.HTTPError(ProviderID, err)
		}
		if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
			return "", ai.NewError(ai.KindProtocol, ProviderID, "empty response", ai.ErrEmptyResponse)
		}
		return response.Choices[0].Message.Content, nil
	}

	body.Stream = true
	response, err := utils.DoPostStream(ctx, p.client, url, request.APIKey, body, attributionHeaders()...)
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

// Test checks the key against /auth/key, which never bills.
func (p *OpenRouterProvider) Test(ctx context.Context, credential string) error {
	if credential == "" {
		return ai.MissingAPIKey(ProviderID)
	}
	_, err := utils.GetJSON[keyInfo](ctx, p.rest, p.baseURL+keyEndpoint,
		utils.HeaderOption{Key: "Authorization", Value: "Bearer " + credential})
	if err != nil {
		return ai.HTTPError(ProviderID, err)
	}
	return nil
}

// ListModels implements [ai.Provider]. The OpenRouter catalogue is public, so
// the credential is forwarded only when present.
func (p *OpenRouterProvider) ListModels(ctx context.Context, credential string, forceRefresh bool) ([]ai.ModelDescriptor, error) {
	return p.cache.Load(ctx, forceRefresh, func(ctx context.Context) ([]ai.ModelDescriptor, error) {
		var headers []utils.HeaderOption
		if credential != "" {
			headers = append(headers, utils.HeaderOption{Key: "Authorization", Value: "Bearer " + credential})
		}
		list, err := utils.GetJSON[modelList](ctx, p.rest, p.baseURL+modelsEndpoint, headers...)
		if err != nil {
			return nil, ai.HTTPError(ProviderID, err)
		}
		models := make([]ai.ModelDescriptor, 0, len(list.Data))
		for _, entry := range list.Data {
			models = append(models, entry.descriptor())
		}
		return models, nil
	})
}

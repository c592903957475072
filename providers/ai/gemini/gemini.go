package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
)

// ProviderID is the registry key and settings value for this adapter.
const ProviderID = "gemini"

// GeminiProvider implements [ai.Provider] with the genai SDK. A client is
// created per call because the API key comes with each request.
type GeminiProvider struct {
	baseURL string
	client  *http.Client
	cache   *ai.ModelCache
}

var _ ai.Provider = (*GeminiProvider)(nil)

// New returns a provider targeting GEMINI_API_BASE_URL, or the SDK default
// endpoint when unset.
func New() *GeminiProvider {
	return &GeminiProvider{
		baseURL: os.Getenv("GEMINI_API_BASE_URL"),
		client:  &http.Client{},
		cache:   ai.NewModelCache(fallbackModels),
	}
}

func (p *GeminiProvider) WithBaseURL(baseURL string) *GeminiProvider {
	p.baseURL = baseURL
	return p
}

func (p *GeminiProvider) WithHttpClient(httpClient *http.Client) *GeminiProvider {
	if httpClient != nil {
		p.client = httpClient
	}
	return p
}

func (p *GeminiProvider) ID() string { return ProviderID }

func (p *GeminiProvider) newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	config := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.client,
	}
	if p.baseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, ai.NewError(ai.KindConfiguration, ProviderID, "cannot create client", err)
	}
	return client, nil
}

func buildConfig(request ai.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if request.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemPrompt, genai.RoleUser)
	}
	return config
}

// Send implements [ai.Provider].
func (p *GeminiProvider) Send(ctx context.Context, request ai.Request, onChunk ai.ChunkFunc) (string, error) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, ProviderID),
			observability.String(observability.AttrLLMModel, request.Model),
		)
	}

	if request.APIKey == "" {
		return "", ai.MissingAPIKey(ProviderID)
	}

	client, err := p.newClient(ctx, request.APIKey)
	if err != nil {
		return "", err
	}

	model := strings.TrimPrefix(request.Model, "models/")
	contents := genai.Text(request.UserMessage)
	config := buildConfig(request)

	if onChunk == nil {
		response, err := client.Models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			return "", mapError(err)
		}
		content := response.Text()
		if content == "" {
			return "", ai.NewError(ai.KindProtocol, ProviderID, "empty response", ai.ErrEmptyResponse)
		}
		return content, nil
	}

	stream := func(yield func(string, error) bool) {
		for response, err := range client.Models.GenerateContentStream(ctx, model, contents, config) {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				ai.SkipFragment(ctx, ProviderID, err.Error(), err)
				continue
			}
			if err != nil {
				yield("", mapError(err))
				return
			}
			if !yield(responseText(response), nil) {
				return
			}
		}
	}

	content, err := ai.Drain(stream, onChunk)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", ai.NewError(ai.KindProtocol, ProviderID, "empty response", ai.ErrEmptyResponse)
	}
	return content, nil
}

// responseText returns the text of one streamed response, empty when the
// response carries no candidates (safety or usage-only frames).
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}
	return response.Text()
}

// Test lists one page of models; listing is free.
func (p *GeminiProvider) Test(ctx context.Context, credential string) error {
	if credential == "" {
		return ai.MissingAPIKey(ProviderID)
	}
	client, err := p.newClient(ctx, credential)
	if err != nil {
		return err
	}
	if _, err := client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return mapError(err)
	}
	return nil
}

// ListModels implements [ai.Provider]. Only models supporting
// generateContent are returned.
func (p *GeminiProvider) ListModels(ctx context.Context, credential string, forceRefresh bool) ([]ai.ModelDescriptor, error) {
	return p.cache.Load(ctx, forceRefresh, func(ctx context.Context) ([]ai.ModelDescriptor, error) {
		if credential == "" {
			return nil, ai.MissingAPIKey(ProviderID)
		}
		client, err := p.newClient(ctx, credential)
		if err != nil {
			return nil, err
		}
		page, err := client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 100})
		if err != nil {
			return nil, mapError(err)
		}
		return toDescriptors(page.Items), nil
	})
}

func toDescriptors(items []*genai.Model) []ai.ModelDescriptor {
	models := make([]ai.ModelDescriptor, 0, len(items))
	for _, item := range items {
		if item == nil || !supportsGeneration(item.SupportedActions) {
			continue
		}
		id := strings.TrimPrefix(item.Name, "models/")
		name := item.DisplayName
		if name == "" {
			name = id
		}
		models = append(models, ai.ModelDescriptor{
			ID:            id,
			Name:          name,
			Description:   item.Description,
			ContextLength: int(item.InputTokenLimit),
			Pricing:       pricingFor(id),
			Provider:      ProviderID,
		})
	}
	return models
}

func supportsGeneration(actions []string) bool {
	// older list responses omit the field
	if len(actions) == 0 {
		return true
	}
	for _, action := range actions {
		if action == "generateContent" {
			return true
		}
	}
	return false
}

// mapError converts genai API errors by HTTP code; other failures go
// through the shared transport/protocol split.
func mapError(err error) *ai.Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		mapped := ai.StatusError(ProviderID, apiErr.Code, apiErr.Message)
		mapped.Err = err
		return mapped
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		mapped := ai.StatusError(ProviderID, apiErrPtr.Code, apiErrPtr.Message)
		mapped.Err = err
		return mapped
	}
	return ai.HTTPError(ProviderID, err)
}

var fallbackModels = []ai.ModelDescriptor{
	{ID: Model25Flash, Name: "Gemini 2.5 Flash", ContextLength: 1048576, Pricing: pricingFor(Model25Flash), Provider: ProviderID},
	{ID: Model25FlashLite, Name: "Gemini 2.5 Flash-Lite", ContextLength: 1048576, Pricing: pricingFor(Model25FlashLite), Provider: ProviderID},
	{ID: Model25Pro, Name: "Gemini 2.5 Pro", ContextLength: 1048576, Pricing: pricingFor(Model25Pro), Provider: ProviderID},
	{ID: Model20Flash, Name: "Gemini 2.0 Flash", ContextLength: 1048576, Pricing: pricingFor(Model20Flash), Provider: ProviderID},
}

package openrouter

import (
	"strconv"
	"strings"

	"github.com/leofalp/explainer/providers/ai"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// chatChunk is one SSE payload. OpenRouter reports upstream failures inside
// the stream as an "error" object with a 200 status.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// keyInfo is the body of GET /auth/key.
type keyInfo struct {
	Data struct {
		Label string `json:"label"`
	} `json:"data"`
}

type modelList struct {
	Data []modelEntry `json:"data"`
}

// modelEntry prices are decimal strings in USD per token.
type modelEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ContextLength int    `json:"context_length"`
	Pricing       struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
}

func (e modelEntry) descriptor() ai.ModelDescriptor {
	name := e.Name
	if name == "" {
		name = e.ID
	}
	descriptor := ai.ModelDescriptor{
		ID:            e.ID,
		Name:          name,
		Description:   e.Description,
		ContextLength: e.ContextLength,
		Provider:      ProviderID,
	}

	prompt, promptErr := strconv.ParseFloat(e.Pricing.Prompt, 64)
	completion, completionErr := strconv.ParseFloat(e.Pricing.Completion, 64)
	if promptErr == nil && completionErr == nil {
		descriptor.Pricing = &ai.Pricing{Prompt: prompt, Completion: completion}
	}
	descriptor.IsFree = isFree(e.ID, descriptor.Pricing)
	return descriptor
}

// isFree reports a ":free" variant or a model priced at zero both ways.
func isFree(id string, pricing *ai.Pricing) bool {
	if strings.HasSuffix(id, ":free") {
		return true
	}
	return pricing != nil && pricing.Prompt == 0 && pricing.Completion == 0
}

var fallbackModels = []ai.ModelDescriptor{
	{ID: "openai/gpt-4o-mini", Name: "OpenAI: GPT-4o-mini", ContextLength: 128000, Provider: ProviderID},
	{ID: "anthropic/claude-3.5-haiku", Name: "Anthropic: Claude 3.5 Haiku", ContextLength: 200000, Provider: ProviderID},
	{ID: "google/gemini-2.0-flash-exp:free", Name: "Google: Gemini 2.0 Flash Experimental (free)", ContextLength: 1048576, IsFree: true, Provider: ProviderID},
	{ID: "meta-llama/llama-3.3-70b-instruct:free", Name: "Meta: Llama 3.3 70B Instruct (free)", ContextLength: 131072, IsFree: true, Provider: ProviderID},
}

package anthropic

import "github.com/leofalp/explainer/providers/ai"

/*
	##### MESSAGES API #####
*/

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"` // required by Anthropic on every request
	Stream    bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// text concatenates the text blocks of a response in order.
func (r *messagesResponse) text() string {
	var out string
	for _, block := range r.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

/*
	##### STREAMING #####
*/

// streamEvent is the envelope shared by every SSE payload; Type repeats the
// SSE event name.
type streamEvent struct {
	Type  string       `json:"type"`
	Delta *streamDelta `json:"delta,omitempty"`
	Error *apiError    `json:"error,omitempty"`
}

type streamDelta struct {
	Type       string `json:"type,omitempty"` // "text_delta" on content_block_delta
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"` // on message_delta
}

type apiError struct {
	Type    string `json:"type"` // e.g. "overloaded_error", "rate_limit_error"
	Message string `json:"message"`
}

/*
	##### MODEL LISTING #####
*/

type modelList struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
	HasMore bool `json:"has_more"`
}

func (l *modelList) descriptors() []ai.ModelDescriptor {
	models := make([]ai.ModelDescriptor, 0, len(l.Data))
	for _, entry := range l.Data {
		name := entry.DisplayName
		if name == "" {
			name = entry.ID
		}
		models = append(models, ai.ModelDescriptor{ID: entry.ID, Name: name, Provider: ProviderID})
	}
	return models
}

// fallbackModels is served when the model list cannot be fetched.
var fallbackModels = []ai.ModelDescriptor{
	{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", ContextLength: 200000, Provider: ProviderID},
	{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", ContextLength: 200000, Provider: ProviderID},
	{ID: "claude-opus-4-1", Name: "Claude Opus 4.1", ContextLength: 200000, Provider: ProviderID},
}

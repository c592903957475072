package ai

/*
	##### PROVIDER INPUT #####
*/

// Request is the provider-neutral unit every adapter must accept.
type Request struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
	UserMessage  string `json:"user_message"`
	APIKey       string `json:"api_key,omitempty"`
}

/*
	##### MODEL LISTING #####
*/

// Pricing holds per-token prices as reported by the vendor (USD per token).
type Pricing struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
}

// ModelDescriptor describes one selectable backend model.
type ModelDescriptor struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	ContextLength int      `json:"contextLength,omitempty"`
	Pricing       *Pricing `json:"pricing,omitempty"`
	IsFree        bool     `json:"isFree"`
	Provider      string   `json:"provider"`
}

// CloneModels returns a copy of models so cached slices are never shared
// with callers.
func CloneModels(models []ModelDescriptor) []ModelDescriptor {
	if models == nil {
		return nil
	}
	out := make([]ModelDescriptor, len(models))
	for i, model := range models {
		if model.Pricing != nil {
			pricing := *model.Pricing
			model.Pricing = &pricing
		}
		out[i] = model
	}
	return out
}

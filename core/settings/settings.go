// Package settings holds the user's provider configuration and the stores
// that persist it. The orchestrator reads one Snapshot per request and never
// writes.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

const (
	DefaultProvider = "openrouter"
	DefaultModel    = "openai/gpt-4o-mini"
	DefaultLanguage = "English"
)

// Persisted field names. API keys are stored as "<provider>ApiKey".
const (
	FieldProvider     = "provider"
	FieldModel        = "model"
	FieldLanguage     = "language"
	FieldSystemPrompt = "systemPrompt"

	apiKeySuffix = "ApiKey"
)

// Settings is the single settings record.
type Settings struct {
	Provider     string
	Model        string
	Language     string
	SystemPrompt string
	// APIKeys maps provider id to credential.
	APIKeys map[string]string
}

// Default returns the settings used before anything was saved.
func Default() Settings {
	return Settings{
		Provider: DefaultProvider,
		Model:    DefaultModel,
		Language: DefaultLanguage,
		APIKeys:  map[string]string{},
	}
}

// APIKey returns the credential stored for provider.
func (s Settings) APIKey(provider string) string {
	return s.APIKeys[provider]
}

// Clone returns a deep copy, so later edits to s never reach the copy.
func (s Settings) Clone() Settings {
	clone := s
	clone.APIKeys = make(map[string]string, len(s.APIKeys))
	for provider, key := range s.APIKeys {
		clone.APIKeys[provider] = key
	}
	return clone
}

// Fields flattens the record into its persisted key/value form. Empty API
// keys are omitted.
func (s Settings) Fields() map[string]string {
	fields := map[string]string{
		FieldProvider:     s.Provider,
		FieldModel:        s.Model,
		FieldLanguage:     s.Language,
		FieldSystemPrompt: s.SystemPrompt,
	}
	for provider, key := range s.APIKeys {
		if provider != "" && key != "" {
			fields[provider+apiKeySuffix] = key
		}
	}
	return fields
}

// FromFields rebuilds settings from persisted fields on top of Default().
// Unknown keys are ignored.
func FromFields(fields map[string]string) Settings {
	settings := Default()
	for key, value := range fields {
		switch key {
		case FieldProvider:
			if value != "" {
				settings.Provider = value
			}
		case FieldModel:
			if value != "" {
				settings.Model = value
			}
		case FieldLanguage:
			if value != "" {
				settings.Language = value
			}
		case FieldSystemPrompt:
			settings.SystemPrompt = value
		default:
			if provider, ok := strings.CutSuffix(key, apiKeySuffix); ok && provider != "" && value != "" {
				settings.APIKeys[provider] = value
			}
		}
	}
	return settings
}

func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Fields())
}

// UnmarshalJSON accepts the flat wire form. Non-string values are rejected.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("settings field %q must be a string", key)
		}
		fields[key] = text
	}
	*s = FromFields(fields)
	return nil
}

// Store persists the settings record.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, settings Settings) error
}

// MemoryStore keeps the record in memory. The zero value holds Default().
type MemoryStore struct {
	mu       sync.RWMutex
	settings *Settings
}

func NewMemoryStore(initial Settings) *MemoryStore {
	clone := initial.Clone()
	return &MemoryStore{settings: &clone}
}

func (m *MemoryStore) Load(_ context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return Default(), nil
	}
	return m.settings.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, settings Settings) error {
	clone := settings.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &clone
	return nil
}

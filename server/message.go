package server

import (
	"github.com/leofalp/explainer/core/settings"
	"github.com/leofalp/explainer/providers/ai"
)

// MessageType discriminates one-shot messages.
type MessageType string

const (
	MessageGetSettings    MessageType = "GET_SETTINGS"
	MessageSaveSettings   MessageType = "SAVE_SETTINGS"
	MessageTestConnection MessageType = "TEST_CONNECTION"
	MessageGetModels      MessageType = "GET_MODELS"
	MessageRefreshModels  MessageType = "REFRESH_MODELS"
)

// Message is the body of POST /message.
type Message struct {
	Type     MessageType        `json:"type"`
	Settings *settings.Settings `json:"settings,omitempty"`
	Provider string             `json:"provider,omitempty"`
	APIKey   string             `json:"apiKey,omitempty"`
}

type settingsResponse struct {
	Settings settings.Settings `json:"settings"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// modelsResponse always carries a list; on failure it is the fallback.
type modelsResponse struct {
	Models []ai.ModelDescriptor `json:"models"`
	Error  string               `json:"error,omitempty"`
}

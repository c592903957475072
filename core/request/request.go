// Package request defines the data exchanged when a selection turns into an
// explain or translate request: the captured selection, the payload sent over
// a streaming channel and the channel open message.
package request

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinSelectionLength is the smallest trimmed selection, in characters, that
// may start a request.
const MinSelectionLength = 2

// MaxContextBefore caps SelectionContext.ContextBefore, in characters.
const MaxContextBefore = 200

// MessageType is the channel open message discriminator.
type MessageType string

const (
	MessageExplain   MessageType = "EXPLAIN_TEXT_STREAM"
	MessageTranslate MessageType = "TRANSLATE_TEXT_STREAM"
)

// Mode selects the translate template. The zero value means explain.
type Mode string

const (
	ModeExplain     Mode = ""
	ModeTranslation Mode = "translation"
	ModeIdioms      Mode = "idioms"
	ModeSimilar     Mode = "similar"
	ModeLearning    Mode = "learning"
)

// TranslateModes lists the translate-family modes in presentation order.
var TranslateModes = []Mode{ModeTranslation, ModeIdioms, ModeSimilar, ModeLearning}

// Valid reports whether m is explain or one of the translate modes.
func (m Mode) Valid() bool {
	if m == ModeExplain {
		return true
	}
	for _, mode := range TranslateModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Position is the popup anchor in surface coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SelectionContext is an immutable snapshot of a text selection.
type SelectionContext struct {
	Text          string   `json:"text"`
	ContextBefore string   `json:"contextBefore"`
	PageTitle     string   `json:"pageTitle"`
	PageURL       string   `json:"pageUrl"`
	Position      Position `json:"position"`
}

// Payload builds the request payload for mode. ModeExplain yields a payload
// without a mode.
func (s SelectionContext) Payload(mode Mode) Payload {
	return Payload{
		Text:          s.Text,
		ContextBefore: s.ContextBefore,
		PageTitle:     s.PageTitle,
		PageURL:       s.PageURL,
		Mode:          mode,
	}
}

// Payload is the request body carried by an OpenMessage.
type Payload struct {
	Text          string `json:"text"`
	ContextBefore string `json:"contextBefore"`
	PageTitle     string `json:"pageTitle"`
	PageURL       string `json:"pageUrl"`
	Mode          Mode   `json:"mode,omitempty"`
}

// IsTranslate reports whether the payload selects a translate template.
func (p Payload) IsTranslate() bool {
	return p.Mode != ModeExplain
}

// OpenMessage is the single surface → orchestrator message of a channel.
type OpenMessage struct {
	Type    MessageType `json:"type"`
	Payload Payload     `json:"payload"`
}

// MessageType returns the open message type matching the payload mode.
func (p Payload) MessageType() MessageType {
	if p.IsTranslate() {
		return MessageTranslate
	}
	return MessageExplain
}

// NewOpenMessage picks the message type from the payload mode.
func NewOpenMessage(payload Payload) OpenMessage {
	return OpenMessage{Type: payload.MessageType(), Payload: payload}
}

// Validate checks the type/mode pairing and the selection length.
func (m OpenMessage) Validate() error {
	switch m.Type {
	case MessageExplain:
		if m.Payload.Mode != ModeExplain {
			return fmt.Errorf("explain message must not carry a mode, got %q", m.Payload.Mode)
		}
	case MessageTranslate:
		if m.Payload.Mode == ModeExplain || !m.Payload.Mode.Valid() {
			return fmt.Errorf("unknown translate mode %q", m.Payload.Mode)
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if utf8.RuneCountInString(strings.TrimSpace(m.Payload.Text)) < MinSelectionLength {
		return fmt.Errorf("selection shorter than %d characters", MinSelectionLength)
	}
	return nil
}

// DecodeOpenMessage parses and validates an open message.
func DecodeOpenMessage(data []byte) (OpenMessage, error) {
	var message OpenMessage
	if err := json.Unmarshal(data, &message); err != nil {
		return OpenMessage{}, fmt.Errorf("malformed open message: %w", err)
	}
	if err := message.Validate(); err != nil {
		return OpenMessage{}, err
	}
	return message, nil
}

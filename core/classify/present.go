package classify

import (
	"encoding/json"
	"strings"

	"github.com/leofalp/explainer/providers/ai"
)

// LifecycleMessage replaces the message of lifecycle failures.
const LifecycleMessage = "The extension was reloaded or updated. Refresh the page to continue."

// Presentation is what the renderer shows for a failure.
type Presentation struct {
	Cause     string  `json:"cause"`
	Message   string  `json:"message"`
	Kind      ai.Kind `json:"kind,omitempty"`
	Retryable bool    `json:"retryable"`
}

// Detail is the error payload carried by a channel Error event.
type Detail struct {
	Cause   string  `json:"cause"`
	Message string  `json:"message"`
	Kind    ai.Kind `json:"kind,omitempty"`
}

// DetailFor builds the wire detail for err, keeping its taxonomy kind.
func DetailFor(err error) Detail {
	classified := Classify(err)
	return Detail{Cause: classified.Cause, Message: classified.Message, Kind: kindOf(err)}
}

// Present classifies input and decides whether a retry action is offered.
// Every failure is retryable except a host lifecycle failure.
func Present(input any) Presentation {
	var classified ClassifiedError
	var kind ai.Kind

	switch value := input.(type) {
	case Detail:
		classified = Classify(map[string]any{"cause": value.Cause, "message": value.Message})
		kind = value.Kind
	case error:
		classified = Classify(value)
		kind = kindOf(value)
	case map[string]any:
		classified = Classify(value)
		if text, ok := value["kind"].(string); ok {
			kind = ai.Kind(text)
		}
	case json.RawMessage:
		return Present(decodeDetail(value))
	default:
		classified = Classify(input)
	}

	if kind == "" && isLifecycleText(classified.Message) {
		kind = ai.KindLifecycle
	}

	presentation := Presentation{
		Cause:     classified.Cause,
		Message:   classified.Message,
		Kind:      kind,
		Retryable: kind != ai.KindLifecycle,
	}
	if kind == ai.KindLifecycle {
		presentation.Cause = KindCause(ai.KindLifecycle, false)
		presentation.Message = LifecycleMessage
	}
	return presentation
}

func decodeDetail(data json.RawMessage) any {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data)
	}
	return decoded
}

func kindOf(err error) ai.Kind {
	if typed, ok := ai.AsError(err); ok {
		return typed.Kind
	}
	return ""
}

func isLifecycleText(message string) bool {
	return strings.Contains(strings.ToLower(message), "context invalidated")
}

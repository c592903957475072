// Package classify maps heterogeneous failure signals to a short cause and
// a human-readable message. It is pure: the same input always yields the
// same result.
package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/leofalp/explainer/providers/ai"
)

const (
	UnknownCause   = "Unknown error"
	UnknownMessage = "An unexpected error occurred."
	DefaultCause   = "Error"

	// sentenceRemainderMin is the character count the text after the first sentence
	// must exceed before the sentence is used as cause.
	sentenceRemainderMin = 10
)

// ClassifiedError is the derived cause/message pair shown to the user.
type ClassifiedError struct {
	Cause   string `json:"cause"`
	Message string `json:"message"`
}

// Rule maps a lowercase keyword to a cause.
type Rule struct {
	Keyword string
	Cause   string
}

// Rules is checked in order; the first keyword found in the lowercased text
// wins.
var Rules = []Rule{
	{Keyword: "api key", Cause: "API Key Error"},
	{Keyword: "network", Cause: "Network Error"},
	{Keyword: "connection", Cause: "Network Error"},
	{Keyword: "rate limit", Cause: "Rate Limit"},
	{Keyword: "timeout", Cause: "Timeout"},
	{Keyword: "invalid", Cause: "Invalid Request"},
}

var firstSentence = regexp.MustCompile(`^([^.]+\.)\s+(.+)$`)

// Classify accepts nil, a string, an error, a JSON document, a map or any
// JSON-serializable struct.
func Classify(input any) ClassifiedError {
	switch value := input.(type) {
	case nil:
		return unknown()
	case ClassifiedError:
		return value
	case string:
		return classifyText(value)
	case *ai.Error:
		if value == nil {
			return unknown()
		}
		return fromProviderError(value)
	case error:
		if typed, ok := ai.AsError(value); ok {
			return fromProviderError(typed)
		}
		return classifyText(value.Error())
	case map[string]any:
		return classifyObject(value)
	case json.RawMessage:
		return classifyJSON(value)
	case []byte:
		return classifyJSON(value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return classifyText(fmt.Sprint(value))
		}
		return classifyJSON(data)
	}
}

func unknown() ClassifiedError {
	return ClassifiedError{Cause: UnknownCause, Message: UnknownMessage}
}

func classifyJSON(data []byte) ClassifiedError {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return classifyText(string(data))
	}
	switch value := decoded.(type) {
	case nil:
		return unknown()
	case string:
		return classifyText(value)
	case map[string]any:
		return classifyObject(value)
	default:
		return classifyText(string(data))
	}
}

func classifyObject(object map[string]any) ClassifiedError {
	cause := field(object, "cause")
	if cause == "" {
		cause = field(object, "code")
	}
	if cause == "" {
		cause = DefaultCause
	}

	message := field(object, "message")
	if message == "" {
		message = field(object, "error")
	}
	if message == "" && len(object) > 0 {
		if data, err := json.Marshal(object); err == nil {
			message = string(data)
		}
	}
	if message == "" {
		message = UnknownMessage
	}

	return ClassifiedError{Cause: cause, Message: message}
}

// field renders object[key] as text. Nested objects are serialized.
func field(object map[string]any, key string) string {
	switch value := object[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case map[string]any:
		if nested := field(value, "message"); nested != "" {
			return nested
		}
		data, _ := json.Marshal(value)
		return string(data)
	case float64:
		return fmt.Sprintf("%g", value)
	default:
		return fmt.Sprint(value)
	}
}

func classifyText(text string) ClassifiedError {
	text = strings.TrimSpace(text)
	if text == "" {
		return unknown()
	}

	if cause, message, ok := strings.Cut(text, ":"); ok {
		cause, message = strings.TrimSpace(cause), strings.TrimSpace(message)
		if cause != "" && message != "" {
			return ClassifiedError{Cause: cause, Message: message}
		}
	}

	if match := firstSentence.FindStringSubmatch(text); match != nil && utf8.RuneCountInString(match[2]) > sentenceRemainderMin {
		return ClassifiedError{Cause: strings.TrimSuffix(match[1], "."), Message: match[2]}
	}

	return ClassifiedError{Cause: KeywordCause(text), Message: text}
}

// KeywordCause applies Rules to text.
func KeywordCause(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range Rules {
		if strings.Contains(lower, rule.Keyword) {
			return rule.Cause
		}
	}
	return DefaultCause
}

func fromProviderError(err *ai.Error) ClassifiedError {
	message := err.Message
	if message == "" {
		message = err.Error()
	}
	return ClassifiedError{Cause: KindCause(err.Kind, err.Timeout), Message: message}
}

// KindCause names a taxonomy kind the way the keyword table would.
func KindCause(kind ai.Kind, timeout bool) string {
	switch kind {
	case ai.KindConfiguration:
		return "Configuration Error"
	case ai.KindAuth:
		return "API Key Error"
	case ai.KindRateLimit:
		return "Rate Limit"
	case ai.KindTransport:
		if timeout {
			return "Timeout"
		}
		return "Network Error"
	case ai.KindProtocol:
		return "Invalid Response"
	case ai.KindLifecycle:
		return "Extension Reloaded"
	default:
		return DefaultCause
	}
}

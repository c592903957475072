package utils

import (
	"encoding/json"
	"fmt"
)

// DefaultMaxStringLength is the truncation length used when none is given.
const DefaultMaxStringLength = 500

// JSONToString returns the compact JSON form of object. A marshalling
// failure yields a JSON error string, so the result is always loggable.
func JSONToString(object any) string {
	encoded, err := json.Marshal(object)
	if err != nil {
		return "{\"error\": \"failed to marshal to JSON: " + err.Error() + "\"}"
	}
	return string(encoded)
}

// TruncateString shortens s to at most maxLen bytes and records the original
// length. A non-positive maxLen means DefaultMaxStringLength.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}
	if len(s) <= maxLen {
		return s
	}
	return fmt.Sprintf("%s... (truncated, total: %d chars)", s[:maxLen], len(s))
}

package ai

import (
	"iter"
	"strings"
)

// TextStream is the adapter-side view of a streamed response: an iterator of
// text fragments that may yield a non-nil error to signal a mid-stream
// failure. The underlying provider may hold an open HTTP body that is only
// released once the iterator completes or the caller stops iterating.
type TextStream = iter.Seq2[string, error]

// Drain consumes stream, forwarding every non-empty fragment to onChunk in
// emission order, and returns the concatenation of the forwarded fragments.
// On a mid-stream error Drain stops and returns the error with empty content;
// the partial text has already been delivered through onChunk.
func Drain(stream TextStream, onChunk ChunkFunc) (string, error) {
	var accumulated strings.Builder

	for fragment, err := range stream {
		if err != nil {
			return "", err
		}
		if fragment == "" {
			continue
		}
		accumulated.WriteString(fragment)
		if onChunk != nil {
			onChunk(fragment)
		}
	}

	return accumulated.String(), nil
}

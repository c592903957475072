// Package anthropic implements ai.Provider for Anthropic's Messages API.
//
// Requests authenticate with the x-api-key header and pin the wire format with
// anthropic-version. Streaming responses follow the typed SSE lifecycle
// (message_start, content_block_delta, message_delta, message_stop); only
// text deltas are forwarded as chunks.
package anthropic

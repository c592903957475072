// Package openrouter implements ai.Provider for OpenRouter's OpenAI-compatible
// chat completions API. Streaming uses plain SSE with the "[DONE]" sentinel.
// The model list is public and carries per-token pricing, which drives the
// IsFree flag on each descriptor.
package openrouter

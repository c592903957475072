// Package openai implements ai.Provider for the OpenAI chat completions API.
// Blocking sends, credential tests and model listing use the official
// openai-go SDK. Streams are posted through the shared HTTP helpers and read
// with the SSE scanner, so a malformed fragment is repaired or skipped
// instead of ending the stream.
//
// SDK retries are disabled: the caller decides whether to retry.
package openai

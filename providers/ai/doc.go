// Package ai defines the provider-agnostic contract every backend adapter
// satisfies: a [Provider] turns a [Request] into either a completed or a
// streamed textual result, validates credentials, and lists the models it
// can serve.
//
// Adapters never let vendor-specific failures escape: every failure path is
// returned as an [*Error] whose [Kind] places it in the shared taxonomy
// (configuration, auth, rate limit, transport, protocol, lifecycle). Streaming
// adapters build an iterator of text fragments and hand it to [Drain], which
// enforces the round-trip law: the returned content is exactly the
// concatenation of the fragments delivered to the [ChunkFunc].
//
// Model lists are cached per adapter instance through [ModelCache]; a failed
// fetch falls back to a fixed list so a known-good model id stays usable.
package ai

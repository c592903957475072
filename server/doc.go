// Package server exposes the orchestrator over HTTP.
//
//   - POST /message answers one-shot settings and model messages
//     (GET_SETTINGS, SAVE_SETTINGS, TEST_CONNECTION, GET_MODELS,
//     REFRESH_MODELS).
//   - GET /channel upgrades to a WebSocket carrying one streaming request:
//     the client sends a single open message and receives CHUNK events
//     followed by exactly one DONE or error event.
//
// [WebSocketDialer] is the client side of /channel and satisfies
// channel.Dialer, so a channel.Surface can drive a remote orchestrator.
package server

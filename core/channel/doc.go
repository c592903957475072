// Package channel implements the single-request streaming channel between a
// display surface and the orchestrator.
//
// A [Channel] is the orchestrator side: it accepts exactly one open message,
// runs it and emits zero or more CHUNK events followed by exactly one DONE or
// error event. Closing it cancels the request.
//
// A [Surface] is the display side: it keeps at most one active channel,
// tearing down the previous one when a new request is opened, and applies
// inbound events to a render.Accumulator only while their session is still
// the active one.
package channel

// Package render turns a streamed response into display markup.
//
// An [Accumulator] receives the ordered events of one channel. It starts in
// the Empty state showing a loading text keyed by mode, switches to Streaming
// on the first chunk and re-renders the whole buffer after every chunk. The
// [Renderer] converts markdown with goldmark (tables included), highlights
// fenced code blocks and drops empty or redundant paragraph wrappers. Text
// direction is decided once from the selected text with [DetectDirection].
package render

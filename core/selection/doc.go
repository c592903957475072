// Package selection turns a user's text selection into a request context and
// offers the explain and translate actions that open a streaming channel.
//
// Selections shorter than two characters (after trimming) never produce a
// context, so no request can start from them.
package selection

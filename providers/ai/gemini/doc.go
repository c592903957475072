// Package gemini implements ai.Provider for the Gemini Developer API using
// the google.golang.org/genai SDK.
//
// The model catalogue returned by the API carries no prices, so descriptors
// are enriched from the static table in pricing.go.
package gemini

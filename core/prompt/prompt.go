// Package prompt turns a request payload into the system prompt and user
// message sent to a provider. Every mode has its own template and output is
// a pure function of its inputs.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/leofalp/explainer/core/request"
)

// DefaultSystemPrompt is used when the settings carry none.
const DefaultSystemPrompt = "You are a helpful assistant that explains and translates text selected by the user on a web page. Answer in well-structured markdown."

// DefaultLanguage is used when the settings carry no output language.
const DefaultLanguage = "English"

// Prompt is the provider-neutral pair built for one request.
type Prompt struct {
	System string
	User   string
}

type data struct {
	Text          string
	ContextBefore string
	PageTitle     string
	PageURL       string
	Language      string
}

const explainTemplate = `Explain the following text selected by the user.
{{- if .PageTitle}}

Page title: {{.PageTitle}}{{end}}
{{- if .PageURL}}
Page URL: {{.PageURL}}{{end}}
{{- if .ContextBefore}}

Preceding context:
"""
{{.ContextBefore}}
"""{{end}}

Selected text:
"""
{{.Text}}
"""

Respond only in {{.Language}}.`

const translationTemplate = `Translate the following text into {{.Language}}.
{{- if .ContextBefore}}

Use this preceding context only to disambiguate:
"""
{{.ContextBefore}}
"""{{end}}

Text:
"""
{{.Text}}
"""

Return only the translation, with no commentary.`

const idiomsTemplate = `Give 3 to 5 idiomatic ways a native {{.Language}} speaker would express the following text.

Text:
"""
{{.Text}}
"""

For each alternative write the phrase in bold, then its tone in brackets (formal, neutral, casual or slang) and one short usage note. Respond only in {{.Language}}.`

const similarTemplate = `List 4 to 6 {{.Language}} words or expressions with a meaning similar to the following text.

Text:
"""
{{.Text}}
"""

For each entry write the word in bold followed by one line on how its nuance differs. Respond only in {{.Language}}.`

const learningTemplate = `Build a short {{.Language}} lesson around the following text.

Text:
"""
{{.Text}}
"""

Use exactly these sections:
## Vocabulary
Key words with their {{.Language}} meaning.
## Grammar
The main grammar point the text shows.
## Practice
Two short exercises with answers at the end.`

var templates = map[request.Mode]*template.Template{
	request.ModeExplain:     template.Must(template.New("explain").Parse(explainTemplate)),
	request.ModeTranslation: template.Must(template.New("translation").Parse(translationTemplate)),
	request.ModeIdioms:      template.Must(template.New("idioms").Parse(idiomsTemplate)),
	request.ModeSimilar:     template.Must(template.New("similar").Parse(similarTemplate)),
	request.ModeLearning:    template.Must(template.New("learning").Parse(learningTemplate)),
}

// Build renders the prompt for payload. language and systemPrompt come from
// the settings snapshot; empty values fall back to the defaults.
func Build(payload request.Payload, language, systemPrompt string) (Prompt, error) {
	tpl, ok := templates[payload.Mode]
	if !ok {
		return Prompt{}, fmt.Errorf("no prompt template for mode %q", payload.Mode)
	}

	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultLanguage
	}
	systemPrompt = strings.TrimSpace(systemPrompt)
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	var buf bytes.Buffer
	err := tpl.Execute(&buf, data{
		Text:          strings.TrimSpace(payload.Text),
		ContextBefore: strings.TrimSpace(payload.ContextBefore),
		PageTitle:     strings.TrimSpace(payload.PageTitle),
		PageURL:       strings.TrimSpace(payload.PageURL),
		Language:      language,
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("render %s prompt: %w", tpl.Name(), err)
	}

	return Prompt{System: systemPrompt, User: buf.String()}, nil
}

package render

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/leofalp/explainer/core/classify"
	"github.com/leofalp/explainer/core/request"
)

// State is the accumulator's position in its lifecycle.
type State string

const (
	StateEmpty     State = "empty"
	StateStreaming State = "streaming"
	StateDone      State = "done"
	StateError     State = "error"
)

// ErrTerminated is returned for events applied after Done or an error.
var ErrTerminated = errors.New("accumulator already terminated")

var loadingText = map[request.Mode]string{
	request.ModeExplain:     "Explaining…",
	request.ModeTranslation: "Translating…",
	request.ModeIdioms:      "Finding idiomatic expressions…",
	request.ModeSimilar:     "Finding similar words…",
	request.ModeLearning:    "Preparing your lesson…",
}

// LoadingText returns the loading indicator text for mode.
func LoadingText(mode request.Mode) string {
	if text, ok := loadingText[mode]; ok {
		return text
	}
	return loadingText[request.ModeExplain]
}

// View is a snapshot of what the surface displays.
type View struct {
	State     State     `json:"state"`
	Direction Direction `json:"direction"`
	// Loading is set only in StateEmpty.
	Loading string `json:"loading,omitempty"`
	// HTML is the rendered response, or the error markup in StateError.
	HTML  string                 `json:"html"`
	Error *classify.Presentation `json:"error,omitempty"`
}

// Markup wraps the view in its container element.
func (v View) Markup() string {
	if v.State == StateEmpty {
		return fmt.Sprintf(`<div class="explainer-loading" dir="%s">%s</div>`, v.Direction, html.EscapeString(v.Loading))
	}
	return fmt.Sprintf(`<div class="explainer-content explainer-%s" dir="%s">%s</div>`, v.State, v.Direction, v.HTML)
}

// Accumulator holds the response buffer of one request.
type Accumulator struct {
	renderer  *Renderer
	mode      request.Mode
	direction Direction

	mu          sync.Mutex
	state       State
	buffer      strings.Builder
	html        string
	presented   *classify.Presentation
	transitions int
}

// NewAccumulator starts in StateEmpty. The direction is computed once from
// selectedText.
func NewAccumulator(renderer *Renderer, mode request.Mode, selectedText string) *Accumulator {
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Accumulator{
		renderer:  renderer,
		mode:      mode,
		direction: DetectDirection(selectedText),
		state:     StateEmpty,
	}
}

// Chunk appends content and re-renders the whole buffer.
func (a *Accumulator) Chunk(content string) (View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.terminated() {
		return a.view(), ErrTerminated
	}
	if a.state == StateEmpty {
		a.state = StateStreaming
		a.transitions++
	}

	a.buffer.WriteString(content)
	a.html = a.render(false)
	return a.view(), nil
}

// Done runs the final rendering pass.
func (a *Accumulator) Done() (View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.done()
}

func (a *Accumulator) done() (View, error) {
	if a.terminated() {
		return a.view(), ErrTerminated
	}
	a.state = StateDone
	a.html = a.render(true)
	return a.view(), nil
}

// Fail discards any streamed content and shows the error presentation of
// detail.
func (a *Accumulator) Fail(detail any) (View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fail(detail)
}

func (a *Accumulator) fail(detail any) (View, error) {
	if a.terminated() {
		return a.view(), ErrTerminated
	}
	presented := classify.Present(detail)
	a.state = StateError
	a.presented = &presented
	a.buffer.Reset()
	a.html = ErrorMarkup(presented)
	return a.view(), nil
}

// Disconnect handles a channel that ended without a terminal event. Before
// any chunk it is an error; after chunks the content is finalized.
func (a *Accumulator) Disconnect() (View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateStreaming {
		return a.done()
	}
	return a.fail("Connection lost: the response ended before any content arrived.")
}

// View returns the current snapshot.
func (a *Accumulator) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view()
}

// Content returns the accumulated raw text.
func (a *Accumulator) Content() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer.String()
}

// Transitions counts Empty→Streaming transitions; it never exceeds one.
func (a *Accumulator) Transitions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transitions
}

func (a *Accumulator) terminated() bool {
	return a.state == StateDone || a.state == StateError
}

func (a *Accumulator) view() View {
	v := View{State: a.state, Direction: a.direction, HTML: a.html, Error: a.presented}
	if a.state == StateEmpty {
		v.Loading = LoadingText(a.mode)
	}
	return v
}

// render falls back to escaped text when conversion fails.
func (a *Accumulator) render(final bool) string {
	rendered, err := a.renderer.Render(a.buffer.String(), final)
	if err != nil {
		return "<pre>" + html.EscapeString(a.buffer.String()) + "</pre>"
	}
	return rendered
}

// ErrorMarkup renders an error presentation. The retry button is omitted
// for non-retryable failures.
func ErrorMarkup(p classify.Presentation) string {
	var b strings.Builder
	b.WriteString(`<div class="explainer-error">`)
	b.WriteString(`<strong class="error-cause">`)
	b.WriteString(html.EscapeString(p.Cause))
	b.WriteString(`</strong><p class="error-message">`)
	b.WriteString(html.EscapeString(p.Message))
	b.WriteString(`</p>`)
	if p.Retryable {
		b.WriteString(`<button class="error-retry" type="button">Retry</button>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

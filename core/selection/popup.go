package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leofalp/explainer/core/request"
)

// ErrPopupClosed is returned by actions invoked after Close.
var ErrPopupClosed = errors.New("popup closed")

// Opener opens a streaming channel for one request and returns its session
// id. core/channel.Surface satisfies it.
type Opener interface {
	Open(ctx context.Context, message request.OpenMessage) (string, error)
}

// Popup offers the explain and translate actions for one captured selection.
// The selection is discarded on Close.
type Popup struct {
	mu        sync.Mutex
	selection *request.SelectionContext
	opener    Opener
}

func NewPopup(selection request.SelectionContext, opener Opener) *Popup {
	return &Popup{selection: &selection, opener: opener}
}

// Selection returns the captured selection and false once the popup closed.
func (p *Popup) Selection() (request.SelectionContext, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selection == nil {
		return request.SelectionContext{}, false
	}
	return *p.selection, true
}

// Explain opens an explain channel for the selection.
func (p *Popup) Explain(ctx context.Context) (string, error) {
	return p.open(ctx, request.ModeExplain)
}

// Translate opens a translate channel using mode.
func (p *Popup) Translate(ctx context.Context, mode request.Mode) (string, error) {
	if mode == request.ModeExplain || !mode.Valid() {
		return "", fmt.Errorf("unknown translate mode %q", mode)
	}
	return p.open(ctx, mode)
}

func (p *Popup) open(ctx context.Context, mode request.Mode) (string, error) {
	selection, ok := p.Selection()
	if !ok {
		return "", ErrPopupClosed
	}
	return p.opener.Open(ctx, request.NewOpenMessage(selection.Payload(mode)))
}

// Close discards the selection.
func (p *Popup) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selection = nil
}

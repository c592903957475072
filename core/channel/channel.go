package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/leofalp/explainer/core/classify"
	"github.com/leofalp/explainer/core/request"
	"github.com/leofalp/explainer/providers/ai"
)

var (
	// ErrChannelBusy is returned by a second Send on the same channel.
	ErrChannelBusy = errors.New("channel already carries a request")
	// ErrChannelClosed is returned by Send after Close.
	ErrChannelClosed = errors.New("channel closed")
)

// eventBuffer bounds how far the producer may run ahead of the consumer.
const eventBuffer = 16

// Handler runs one request. orchestrator.Orchestrator satisfies it.
type Handler interface {
	Handle(ctx context.Context, message request.OpenMessage, onChunk ai.ChunkFunc) (string, error)
}

// Stream is what a surface reads from: the ordered events of one request.
// The events channel is closed after the terminal event, or early when the
// stream is closed or lost.
type Stream interface {
	Events() <-chan Event
	Close() error
}

// Channel carries exactly one request for its lifetime.
type Channel struct {
	id      string
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	events  chan Event

	mu      sync.Mutex
	started bool
	closed  bool
}

var _ Stream = (*Channel)(nil)

// New opens a channel. Cancelling parent or calling Close aborts the request.
func New(parent context.Context, handler Handler) *Channel {
	ctx, cancel := context.WithCancel(parent)
	return &Channel{
		id:      uuid.NewString(),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan Event, eventBuffer),
	}
}

func (c *Channel) ID() string {
	return c.id
}

// Events returns the event sequence. It is closed after the terminal event.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Send starts the request carried by message. It may be called once.
func (c *Channel) Send(message request.OpenMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	if c.started {
		return ErrChannelBusy
	}
	c.started = true

	go c.run(message)
	return nil
}

func (c *Channel) run(message request.OpenMessage) {
	defer close(c.events)

	_, err := c.handler.Handle(c.ctx, message, func(content string) {
		c.emit(ChunkEvent(content))
	})

	// a closed channel delivers nothing more, terminal event included
	if c.ctx.Err() != nil {
		return
	}
	if err != nil {
		c.emit(ErrorEvent(classify.DetailFor(err)))
		return
	}
	c.emit(DoneEvent())
}

func (c *Channel) emit(event Event) {
	if event.Type == EventChunk && event.Content == "" {
		return
	}
	select {
	case c.events <- event:
	case <-c.ctx.Done():
	}
}

// Close cancels the request and releases the adapter's network read. It is
// idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	neverStarted := !c.started
	c.started = true
	c.mu.Unlock()

	c.cancel()
	if neverStarted {
		close(c.events)
	}
	return nil
}

// Dialer opens a stream for one request.
type Dialer interface {
	Dial(ctx context.Context, message request.OpenMessage) (Stream, error)
}

// LocalDialer runs requests in-process. The stream outlives ctx; only Close
// cancels it.
type LocalDialer struct {
	Handler Handler
}

func (d LocalDialer) Dial(ctx context.Context, message request.OpenMessage) (Stream, error) {
	channel := New(context.WithoutCancel(ctx), d.Handler)
	if err := channel.Send(message); err != nil {
		_ = channel.Close()
		return nil, err
	}
	return channel, nil
}

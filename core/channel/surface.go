package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/leofalp/explainer/core/render"
	"github.com/leofalp/explainer/core/request"
	"github.com/leofalp/explainer/providers/ai"
)

// ErrLifecycle is returned once the surface's host was invalidated. It
// requires a full reload and is never retryable.
var ErrLifecycle = ai.NewError(ai.KindLifecycle, "", "extension context invalidated", nil)

// ErrNotRetryable is returned by Retry when the displayed state offers no
// retry action.
var ErrNotRetryable = errors.New("nothing to retry")

// Update is one applied display change.
type Update struct {
	SessionID string
	View      render.View
}

// UpdateFunc receives every applied update, in order. It runs while the
// surface holds its lock and must not call back into the Surface.
type UpdateFunc func(Update)

type session struct {
	id          string
	message     request.OpenMessage
	stream      Stream
	accumulator *render.Accumulator
	done        chan struct{}
}

// Surface displays at most one request at a time.
type Surface struct {
	dialer   Dialer
	renderer *render.Renderer
	onUpdate UpdateFunc

	openMu sync.Mutex

	mu          sync.Mutex
	active      *session
	running     map[string]*session
	last        *session
	invalidated bool
}

// NewSurface creates a surface. renderer and onUpdate may be nil.
func NewSurface(dialer Dialer, renderer *render.Renderer, onUpdate UpdateFunc) *Surface {
	if renderer == nil {
		renderer = render.NewRenderer()
	}
	return &Surface{
		dialer:   dialer,
		renderer: renderer,
		onUpdate: onUpdate,
		running:  make(map[string]*session),
	}
}

// Open tears down the active channel, if any, and opens a new one for
// message. It returns the new session id. A dial failure is displayed as an
// error and also returned.
func (s *Surface) Open(ctx context.Context, message request.OpenMessage) (string, error) {
	if err := message.Validate(); err != nil {
		return "", err
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()

	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return "", ErrLifecycle
	}
	previous := s.active
	s.active = nil
	s.mu.Unlock()

	if previous != nil && previous.stream != nil {
		_ = previous.stream.Close()
	}

	sess := &session{
		id:          uuid.NewString(),
		message:     message,
		accumulator: render.NewAccumulator(s.renderer, message.Payload.Mode, message.Payload.Text),
		done:        make(chan struct{}),
	}

	s.mu.Lock()
	s.active = sess
	s.last = sess
	s.running[sess.id] = sess
	s.publish(sess, sess.accumulator.View())
	s.mu.Unlock()

	stream, err := s.dialer.Dial(ctx, message)
	if err != nil {
		s.mu.Lock()
		if s.isActive(sess) {
			view, _ := sess.accumulator.Fail(err)
			s.publish(sess, view)
		}
		s.finish(sess)
		s.mu.Unlock()
		return sess.id, fmt.Errorf("open channel: %w", err)
	}

	s.mu.Lock()
	sess.stream = stream
	superseded := !s.isActive(sess)
	s.mu.Unlock()
	if superseded {
		_ = stream.Close()
	}

	go s.pump(sess)
	return sess.id, nil
}

// pump applies the session's events while it stays active.
func (s *Surface) pump(sess *session) {
	terminal := false
	for event := range sess.stream.Events() {
		s.mu.Lock()
		if !s.isActive(sess) {
			s.mu.Unlock()
			continue
		}
		view, err := s.apply(sess, event)
		if err == nil {
			s.publish(sess, view)
		}
		s.mu.Unlock()

		if event.IsTerminal() {
			terminal = true
			break
		}
	}

	if terminal {
		_ = sess.stream.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !terminal && s.isActive(sess) {
		if view, err := sess.accumulator.Disconnect(); err == nil {
			s.publish(sess, view)
		}
	}
	s.finish(sess)
}

func (s *Surface) apply(sess *session, event Event) (render.View, error) {
	switch {
	case event.IsError():
		return sess.accumulator.Fail(event.Error)
	case event.Type == EventDone:
		return sess.accumulator.Done()
	default:
		return sess.accumulator.Chunk(event.Content)
	}
}

// isActive is the stale-channel guard. Callers hold s.mu.
func (s *Surface) isActive(sess *session) bool {
	return s.active != nil && s.active.id == sess.id
}

func (s *Surface) publish(sess *session, view render.View) {
	if s.onUpdate != nil {
		s.onUpdate(Update{SessionID: sess.id, View: view})
	}
}

func (s *Surface) finish(sess *session) {
	if _, ok := s.running[sess.id]; ok {
		delete(s.running, sess.id)
		close(sess.done)
	}
}

// Done returns a channel closed once the session stopped receiving events.
// Unknown or finished sessions return a closed channel.
func (s *Surface) Done(sessionID string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.running[sessionID]; ok {
		return sess.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Current returns the active session id and its view.
func (s *Surface) Current() (string, render.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", render.View{}, false
	}
	return s.active.id, s.active.accumulator.View(), true
}

// Retry reopens the last request when its error view offers a retry.
func (s *Surface) Retry(ctx context.Context) (string, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		return "", ErrNotRetryable
	}
	view := last.accumulator.View()
	if view.State != render.StateError || view.Error == nil || !view.Error.Retryable {
		return "", ErrNotRetryable
	}
	return s.Open(ctx, last.message)
}

// Close tears down the active channel and clears the display.
func (s *Surface) Close() {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active != nil && active.stream != nil {
		_ = active.stream.Close()
	}
}

// Invalidate marks the host as gone. The active request shows the lifecycle
// error and every later Open fails with ErrLifecycle.
func (s *Surface) Invalidate() {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	s.mu.Lock()
	s.invalidated = true
	active := s.active
	if active != nil {
		if view, err := active.accumulator.Fail(ErrLifecycle); err == nil {
			s.publish(active, view)
		}
	}
	s.active = nil
	s.mu.Unlock()

	if active != nil && active.stream != nil {
		_ = active.stream.Close()
	}
}

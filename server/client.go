package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/leofalp/explainer/core/channel"
	"github.com/leofalp/explainer/core/request"
	"github.com/leofalp/explainer/providers/observability"
)

// WebSocketDialer opens /channel streams on a remote server.
type WebSocketDialer struct {
	// URL is the ws:// or wss:// address of the /channel endpoint.
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

var _ channel.Dialer = (*WebSocketDialer)(nil)

// Dial connects, sends the open message and returns the event stream. ctx
// bounds only the handshake.
func (d *WebSocketDialer) Dial(ctx context.Context, message request.OpenMessage) (channel.Stream, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, response, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	if err := conn.WriteJSON(message); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send open message: %w", err)
	}

	stream := &wsStream{
		conn:    conn,
		events:  make(chan channel.Event, 16),
		done:    make(chan struct{}),
		session: response.Header.Get(SessionHeader),
	}
	go stream.read()
	return stream, nil
}

type wsStream struct {
	conn    *websocket.Conn
	events  chan channel.Event
	done    chan struct{}
	once    sync.Once
	session string
}

func (s *wsStream) Events() <-chan channel.Event {
	return s.events
}

// read forwards events until the terminal one, a read failure or Close. The
// events channel is closed in every case.
func (s *wsStream) read() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		event, err := channel.DecodeEvent(data)
		if err != nil {
			slog.Warn("Skipping malformed channel event", slog.String(observability.AttrSessionID, s.session), slog.String("error", err.Error()))
			continue
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		}
		if event.IsTerminal() {
			return
		}
	}
}

// Close drops the connection; the server cancels the request.
func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

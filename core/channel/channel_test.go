package channel

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/explainer/core/classify"
	"github.com/leofalp/explainer/core/request"
	"github.com/leofalp/explainer/providers/ai"
)

type scriptedHandler struct {
	fragments []string
	err       error
	block     chan struct{}
	cancelled chan struct{}
}

func (h *scriptedHandler) Handle(ctx context.Context, _ request.OpenMessage, onChunk ai.ChunkFunc) (string, error) {
	for _, fragment := range h.fragments {
		onChunk(fragment)
	}
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			if h.cancelled != nil {
				close(h.cancelled)
			}
			return "", ai.TransportError("fake", ctx.Err())
		}
	}
	if h.err != nil {
		return "", h.err
	}
	return strings.Join(h.fragments, ""), nil
}

var explainMessage = request.NewOpenMessage(request.Payload{Text: "entropy"})

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatal("timed out waiting for events to close")
			return out
		}
	}
}

func TestEvent_WireFormat(t *testing.T) {
	cases := []struct {
		event Event
		want  string
	}{
		{ChunkEvent("A"), `{"type":"CHUNK","content":"A"}`},
		{DoneEvent(), `{"type":"DONE"}`},
		{ErrorEvent("boom"), `{"error":"boom"}`},
		{ErrorEvent(classify.Detail{Cause: "Rate Limit", Message: "slow", Kind: ai.KindRateLimit}), `{"error":{"cause":"Rate Limit","message":"slow","kind":"rate_limit"}}`},
		{ErrorEvent(nil), `{"error":{"cause":"Unknown error","message":"An unexpected error occurred."}}`},
	}

	for _, tc := range cases {
		data, err := json.Marshal(tc.event)
		require.NoError(t, err)
		assert.JSONEq(t, tc.want, string(data))

		decoded, err := DecodeEvent(data)
		require.NoError(t, err)
		assert.Equal(t, tc.event.IsTerminal(), decoded.IsTerminal())
	}

	assert.False(t, ChunkEvent("x").IsTerminal())
	assert.True(t, DoneEvent().IsTerminal())

	_, err := DecodeEvent([]byte(`{"type":"PING"}`))
	assert.Error(t, err)
	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestChannel_EmitsChunksThenDone(t *testing.T) {
	ch := New(context.Background(), &scriptedHandler{fragments: []string{"A", "", "B"}})
	require.NoError(t, ch.Send(explainMessage))

	events := collect(t, ch.Events())
	require.Len(t, events, 3)
	assert.Equal(t, ChunkEvent("A"), events[0])
	assert.Equal(t, ChunkEvent("B"), events[1])
	assert.Equal(t, DoneEvent(), events[2])
	assert.NotEmpty(t, ch.ID())
}

func TestChannel_SingleRequest(t *testing.T) {
	ch := New(context.Background(), &scriptedHandler{})
	require.NoError(t, ch.Send(explainMessage))
	assert.ErrorIs(t, ch.Send(explainMessage), ErrChannelBusy)

	collect(t, ch.Events())
	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Send(explainMessage), ErrChannelClosed)
}

func TestChannel_HandlerErrorBecomesTerminalErrorEvent(t *testing.T) {
	ch := New(context.Background(), &scriptedHandler{
		fragments: []string{"partial"},
		err:       ai.StatusError("fake", 401, ""),
	})
	require.NoError(t, ch.Send(explainMessage))

	events := collect(t, ch.Events())
	require.Len(t, events, 2)
	assert.Equal(t, EventChunk, events[0].Type)
	require.True(t, events[1].IsError())

	presented := classify.Present(events[1].Error)
	assert.Equal(t, "API Key Error", presented.Cause)
	assert.Equal(t, ai.KindAuth, presented.Kind)
}

func TestChannel_CloseCancelsRequest(t *testing.T) {
	handler := &scriptedHandler{
		fragments: []string{"first"},
		block:     make(chan struct{}),
		cancelled: make(chan struct{}),
	}
	ch := New(context.Background(), handler)
	require.NoError(t, ch.Send(explainMessage))

	first := <-ch.Events()
	assert.Equal(t, ChunkEvent("first"), first)

	require.NoError(t, ch.Close())
	select {
	case <-handler.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler context was not cancelled")
	}

	// no terminal event after close
	for _, event := range collect(t, ch.Events()) {
		assert.False(t, event.IsTerminal())
	}
	require.NoError(t, ch.Close())
}

func TestChannel_CloseBeforeSendClosesEvents(t *testing.T) {
	ch := New(context.Background(), &scriptedHandler{})
	require.NoError(t, ch.Close())
	assert.Empty(t, collect(t, ch.Events()))
}

func TestLocalDialer_IgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := LocalDialer{Handler: &scriptedHandler{fragments: []string{"ok"}}}.Dial(ctx, explainMessage)
	require.NoError(t, err)
	cancel()

	events := collect(t, stream.Events())
	require.NotEmpty(t, events)
	assert.Equal(t, DoneEvent(), events[len(events)-1])
}

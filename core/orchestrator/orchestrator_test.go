package orchestrator

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/explainer/core/request"
	"github.com/leofalp/explainer/core/settings"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
	"github.com/leofalp/explainer/providers/observability/slogobs"
)

type fakeProvider struct {
	id        string
	fragments []string
	err       error

	mu       sync.Mutex
	requests []ai.Request
	streamed []bool
	tested   []string
	listed   []string
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) Send(_ context.Context, req ai.Request, onChunk ai.ChunkFunc) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.streamed = append(f.streamed, onChunk != nil)
	f.mu.Unlock()

	if req.APIKey == "" {
		return "", ai.MissingAPIKey(f.id)
	}
	var sb strings.Builder
	for _, fragment := range f.fragments {
		sb.WriteString(fragment)
		if onChunk != nil {
			onChunk(fragment)
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return sb.String(), nil
}

func (f *fakeProvider) Test(_ context.Context, credential string) error {
	f.tested = append(f.tested, credential)
	if credential == "" {
		return ai.MissingAPIKey(f.id)
	}
	return nil
}

func (f *fakeProvider) ListModels(_ context.Context, credential string, _ bool) ([]ai.ModelDescriptor, error) {
	f.listed = append(f.listed, credential)
	fallback := []ai.ModelDescriptor{{ID: "fallback", Provider: f.id}}
	if f.err != nil {
		return fallback, f.err
	}
	return []ai.ModelDescriptor{{ID: "live", Provider: f.id}}, nil
}

func (f *fakeProvider) lastRequest() ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newStore(provider string) *settings.MemoryStore {
	return settings.NewMemoryStore(settings.Settings{
		Provider: provider,
		Model:    "model-a",
		Language: "Spanish",
		APIKeys:  map[string]string{"alpha": "key-a", "beta": "key-b"},
	})
}

var explainPayload = request.Payload{Text: "photosynthesis", PageTitle: "Plants"}

func TestNew_RequiresProvidersAndStore(t *testing.T) {
	_, err := New(nil, newStore("alpha"))
	assert.Error(t, err)

	_, err = New(ai.NewRegistry(&fakeProvider{id: "alpha"}), nil)
	assert.Error(t, err)
}

func TestExecute_BuildsRequestFromSnapshot(t *testing.T) {
	alpha := &fakeProvider{id: "alpha", fragments: []string{"A", "B"}}
	orch, err := New(ai.NewRegistry(alpha), newStore("alpha"))
	require.NoError(t, err)

	content, err := orch.Execute(context.Background(), explainPayload, nil)
	require.NoError(t, err)
	assert.Equal(t, "AB", content)

	sent := alpha.lastRequest()
	assert.Equal(t, "model-a", sent.Model)
	assert.Equal(t, "key-a", sent.APIKey)
	assert.Contains(t, sent.UserMessage, "photosynthesis")
	assert.Contains(t, sent.UserMessage, "Respond only in Spanish.")
	assert.NotEmpty(t, sent.SystemPrompt)
	assert.Equal(t, []bool{false}, alpha.streamed)
}

func TestExecute_StreamingDeliversChunksInOrder(t *testing.T) {
	alpha := &fakeProvider{id: "alpha", fragments: []string{"one ", "two ", "three"}}
	orch, err := New(ai.NewRegistry(alpha), newStore("alpha"))
	require.NoError(t, err)

	var chunks []string
	content, err := orch.Execute(context.Background(), explainPayload, func(c string) { chunks = append(chunks, c) })
	require.NoError(t, err)

	assert.Equal(t, []string{"one ", "two ", "three"}, chunks)
	assert.Equal(t, strings.Join(chunks, ""), content)
}

func TestExecute_UnknownProvider_FailsBeforeSend(t *testing.T) {
	alpha := &fakeProvider{id: "alpha"}
	orch, err := New(ai.NewRegistry(alpha), newStore("nope"))
	require.NoError(t, err)

	_, err = orch.Execute(context.Background(), explainPayload, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrUnknownProvider)
	assert.Equal(t, ai.KindConfiguration, ai.KindOf(err))
	assert.Empty(t, alpha.requests)
}

func TestExecute_SettingsChangeDoesNotAffectInFlight(t *testing.T) {
	store := newStore("alpha")
	blocker := make(chan struct{})
	release := make(chan struct{})

	alpha := &fakeProvider{id: "alpha", fragments: []string{"x"}}
	wait := func(next SendFunc) SendFunc {
		return func(ctx context.Context, p ai.Provider, req ai.Request, onChunk ai.ChunkFunc) (string, error) {
			close(blocker)
			<-release
			return next(ctx, p, req, onChunk)
		}
	}
	orch, err := New(ai.NewRegistry(alpha), store, WithMiddleware(wait))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Execute(context.Background(), explainPayload, nil)
		done <- err
	}()

	<-blocker
	changed := settings.Default()
	changed.Provider = "alpha"
	changed.Model = "model-z"
	changed.APIKeys = map[string]string{"alpha": "rotated"}
	require.NoError(t, store.Save(context.Background(), changed))
	close(release)

	require.NoError(t, <-done)
	sent := alpha.lastRequest()
	assert.Equal(t, "model-a", sent.Model)
	assert.Equal(t, "key-a", sent.APIKey)
}

func TestExecute_StatelessAcrossRequests(t *testing.T) {
	alpha := &fakeProvider{id: "alpha", fragments: []string{"fine"}}
	beta := &fakeProvider{id: "beta", err: ai.StatusError("beta", 500, "")}
	store := newStore("beta")
	orch, err := New(ai.NewRegistry(alpha, beta), store)
	require.NoError(t, err)

	_, err = orch.Execute(context.Background(), explainPayload, nil)
	require.Error(t, err)

	next := settings.Default()
	next.Provider = "alpha"
	next.APIKeys = map[string]string{"alpha": "key-a"}
	require.NoError(t, store.Save(context.Background(), next))

	content, err := orch.Execute(context.Background(), explainPayload, nil)
	require.NoError(t, err)
	assert.Equal(t, "fine", content)
	assert.Equal(t, settings.DefaultModel, alpha.lastRequest().Model)
}

func TestExecute_UntypedErrorsBecomeTyped(t *testing.T) {
	alpha := &fakeProvider{id: "alpha", err: context.DeadlineExceeded}
	orch, err := New(ai.NewRegistry(alpha), newStore("alpha"))
	require.NoError(t, err)

	_, err = orch.Execute(context.Background(), explainPayload, func(string) {})
	typed, ok := ai.AsError(err)
	require.True(t, ok)
	assert.Equal(t, ai.KindTransport, typed.Kind)
	assert.True(t, typed.Timeout)
}

func TestHandle_ValidatesMessage(t *testing.T) {
	alpha := &fakeProvider{id: "alpha", fragments: []string{"hola"}}
	orch, err := New(ai.NewRegistry(alpha), newStore("alpha"))
	require.NoError(t, err)

	_, err = orch.Handle(context.Background(), request.OpenMessage{Type: request.MessageTranslate, Payload: explainPayload}, nil)
	assert.Error(t, err)
	assert.Empty(t, alpha.requests)

	translate := explainPayload
	translate.Mode = request.ModeIdioms
	content, err := orch.Handle(context.Background(), request.NewOpenMessage(translate), nil)
	require.NoError(t, err)
	assert.Equal(t, "hola", content)
	assert.Contains(t, alpha.lastRequest().UserMessage, "idiomatic")
}

func TestTestConnection_FallsBackToStoredKey(t *testing.T) {
	beta := &fakeProvider{id: "beta"}
	orch, err := New(ai.NewRegistry(beta), newStore("beta"))
	require.NoError(t, err)

	require.NoError(t, orch.TestConnection(context.Background(), "beta", ""))
	require.NoError(t, orch.TestConnection(context.Background(), "beta", "explicit"))
	assert.Equal(t, []string{"key-b", "explicit"}, beta.tested)

	err = orch.TestConnection(context.Background(), "gamma", "k")
	assert.ErrorIs(t, err, ai.ErrUnknownProvider)
}

func TestModels_ReturnsFallbackWithError(t *testing.T) {
	alpha := &fakeProvider{id: "alpha", err: ai.StatusError("alpha", 503, "")}
	orch, err := New(ai.NewRegistry(alpha), newStore("alpha"))
	require.NoError(t, err)

	models, err := orch.Models(context.Background(), "alpha", "", true)
	assert.Error(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "fallback", models[0].ID)

	_, err = orch.Models(context.Background(), "missing", "", false)
	assert.ErrorIs(t, err, ai.ErrUnknownProvider)
}

func TestProvidersAndValidate(t *testing.T) {
	orch, err := New(ai.NewRegistry(&fakeProvider{id: "beta"}, &fakeProvider{id: "alpha"}), newStore("alpha"))
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta"}, orch.Providers())
	assert.NoError(t, orch.ValidateProvider("beta"))
	assert.Error(t, orch.ValidateProvider("gamma"))
}

func TestExecute_WithObserver_RecordsMetrics(t *testing.T) {
	buf := &bytes.Buffer{}
	observer := slogobs.New(slogobs.WithOutput(buf), slogobs.WithLevel(slogobs.LevelTrace))

	alpha := &fakeProvider{id: "alpha", fragments: []string{"a", "b"}}
	orch, err := New(ai.NewRegistry(alpha), newStore("alpha"), WithObserver(observer))
	require.NoError(t, err)

	_, err = orch.Execute(context.Background(), explainPayload, func(string) {})
	require.NoError(t, err)

	failing := &fakeProvider{id: "alpha", err: ai.StatusError("alpha", 401, "")}
	orch, err = New(ai.NewRegistry(failing), newStore("alpha"), WithObserver(observer))
	require.NoError(t, err)
	_, err = orch.Execute(context.Background(), explainPayload, nil)
	require.Error(t, err)

	assert.Equal(t, int64(2), observer.CounterValue(observability.MetricRequests))
	assert.Equal(t, int64(1), observer.CounterValue(observability.MetricErrors))
	assert.Equal(t, int64(2), observer.CounterValue(observability.MetricChunks))
	assert.Contains(t, buf.String(), observability.SpanRequest)
	assert.Contains(t, buf.String(), observability.AttrRequestType)
	assert.Contains(t, buf.String(), string(request.MessageExplain))
}

package orchestrator

import (
	"context"
	"errors"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/leofalp/explainer/core/prompt"
	"github.com/leofalp/explainer/core/request"
	"github.com/leofalp/explainer/core/settings"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
)

// Orchestrator resolves settings and adapters per request and drives the
// provider call. It is safe for concurrent use.
type Orchestrator struct {
	registry    ai.Registry
	settings    settings.Store
	observer    observability.Provider
	middlewares []Middleware
	send        SendFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver enables spans, metrics and logs for every request.
func WithObserver(observer observability.Provider) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// WithMiddleware appends middlewares to the send chain.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(o *Orchestrator) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// New builds an orchestrator over a registry resolved at startup.
func New(registry ai.Registry, store settings.Store, opts ...Option) (*Orchestrator, error) {
	if len(registry) == 0 {
		return nil, errors.New("orchestrator: no providers registered")
	}
	if store == nil {
		return nil, errors.New("orchestrator: settings store is nil")
	}

	o := &Orchestrator{registry: registry, settings: store}
	for _, opt := range opts {
		opt(o)
	}
	o.send = buildChain(o.middlewares)
	return o, nil
}

// Providers returns the registered provider ids, sorted.
func (o *Orchestrator) Providers() []string {
	ids := o.registry.IDs()
	sort.Strings(ids)
	return ids
}

// ValidateProvider fails with a configuration error for unknown ids.
func (o *Orchestrator) ValidateProvider(id string) error {
	_, err := o.registry.Lookup(id)
	return err
}

// Handle validates a channel open message and executes its payload.
func (o *Orchestrator) Handle(ctx context.Context, message request.OpenMessage, onChunk ai.ChunkFunc) (string, error) {
	if err := message.Validate(); err != nil {
		return "", ai.NewError(ai.KindProtocol, "", "invalid request: "+err.Error(), err)
	}
	return o.Execute(ctx, message.Payload, onChunk)
}

// Execute builds the provider request from payload and a settings snapshot
// and sends it. A nil onChunk performs a one-shot request. Every returned
// error is an *ai.Error.
func (o *Orchestrator) Execute(ctx context.Context, payload request.Payload, onChunk ai.ChunkFunc) (string, error) {
	snapshot, err := o.settings.Load(ctx)
	if err != nil {
		return "", ai.NewError(ai.KindConfiguration, "", "could not load settings", err)
	}
	// the snapshot is private to this request
	snapshot = snapshot.Clone()

	provider, err := o.registry.Lookup(snapshot.Provider)
	if err != nil {
		o.recordFailure(ctx, snapshot.Provider, err)
		return "", err
	}

	built, err := prompt.Build(payload, snapshot.Language, snapshot.SystemPrompt)
	if err != nil {
		return "", ai.NewError(ai.KindConfiguration, provider.ID(), "could not build prompt", err)
	}

	providerRequest := ai.Request{
		Model:        snapshot.Model,
		SystemPrompt: built.System,
		UserMessage:  built.User,
		APIKey:       snapshot.APIKey(provider.ID()),
	}

	tracked := o.track(ctx, provider.ID(), snapshot, payload, onChunk != nil)

	var deliver ai.ChunkFunc
	if onChunk != nil {
		deliver = func(content string) {
			tracked.chunk(content)
			onChunk(content)
		}
	}

	content, err := o.send(tracked.ctx, provider, providerRequest, deliver)
	if err != nil {
		typed := ai.HTTPError(provider.ID(), err)
		tracked.fail(typed)
		return "", typed
	}

	tracked.succeed(content)
	return content, nil
}

// TestConnection validates a credential against provider. An empty apiKey
// falls back to the stored one.
func (o *Orchestrator) TestConnection(ctx context.Context, providerID, apiKey string) error {
	provider, err := o.registry.Lookup(providerID)
	if err != nil {
		return err
	}

	ctx, span := o.startSpan(ctx, observability.SpanConnectionTest, providerID)
	if span != nil {
		defer span.End()
	}

	err = provider.Test(ctx, o.credential(ctx, providerID, apiKey))
	if err != nil {
		err = ai.HTTPError(providerID, err)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusError, "connection test failed")
		}
		return err
	}

	if span != nil {
		span.SetStatus(observability.StatusOK, "")
	}
	return nil
}

// Models lists provider's models. On failure the adapter's fallback list is
// returned together with the error. Unknown providers return no models.
func (o *Orchestrator) Models(ctx context.Context, providerID, apiKey string, forceRefresh bool) ([]ai.ModelDescriptor, error) {
	provider, err := o.registry.Lookup(providerID)
	if err != nil {
		return nil, err
	}

	ctx, span := o.startSpan(ctx, observability.SpanModels, providerID)
	if span != nil {
		defer span.End()
	}

	models, err := provider.ListModels(ctx, o.credential(ctx, providerID, apiKey), forceRefresh)
	if span != nil {
		span.SetAttributes(
			observability.Int(observability.AttrLLMModelsCount, len(models)),
			observability.Bool(observability.AttrLLMModelsFallback, err != nil),
		)
	}
	if err != nil {
		err = ai.HTTPError(providerID, err)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusError, "model listing failed")
		}
		return models, err
	}
	return models, nil
}

func (o *Orchestrator) credential(ctx context.Context, providerID, apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	snapshot, err := o.settings.Load(ctx)
	if err != nil {
		return ""
	}
	return snapshot.APIKey(providerID)
}

func (o *Orchestrator) startSpan(ctx context.Context, name, providerID string) (context.Context, observability.Span) {
	if o.observer == nil {
		return ctx, nil
	}
	ctx, span := o.observer.StartSpan(ctx, name, observability.String(observability.AttrLLMProvider, providerID))
	return observability.ContextWithObserver(ctx, o.observer), span
}

func (o *Orchestrator) recordFailure(ctx context.Context, providerID string, err error) {
	if o.observer == nil {
		return
	}
	o.observer.Counter(observability.MetricErrors).Add(ctx, 1,
		observability.String(observability.AttrLLMProvider, providerID),
		observability.String(observability.AttrErrorKind, string(ai.KindOf(err))),
	)
	o.observer.Error(ctx, "Request rejected", observability.Error(err))
}

// tracker records the observability side of one request. With no observer
// every method is a no-op.
type tracker struct {
	ctx      context.Context
	observer observability.Provider
	span     observability.Span
	start    time.Time
	attrs    []observability.Attribute
	chunks   int
}

func (o *Orchestrator) track(ctx context.Context, providerID string, snapshot settings.Settings, payload request.Payload, streaming bool) *tracker {
	t := &tracker{ctx: ctx, observer: o.observer, start: time.Now()}
	if o.observer == nil {
		return t
	}

	mode := string(payload.Mode)
	if mode == "" {
		mode = "explain"
	}
	t.attrs = []observability.Attribute{
		observability.String(observability.AttrLLMProvider, providerID),
		observability.String(observability.AttrLLMModel, snapshot.Model),
		observability.String(observability.AttrRequestType, string(payload.MessageType())),
		observability.String(observability.AttrRequestMode, mode),
		observability.Bool(observability.AttrRequestStreaming, streaming),
	}

	t.ctx, t.span = o.observer.StartSpan(ctx, observability.SpanRequest, t.attrs...)
	t.ctx = observability.ContextWithObserver(t.ctx, o.observer)
	t.span.SetAttributes(
		observability.String(observability.AttrRequestLanguage, snapshot.Language),
		observability.Int(observability.AttrRequestTextChars, utf8.RuneCountInString(payload.Text)),
	)
	t.span.AddEvent(observability.EventRequestStart)
	o.observer.Counter(observability.MetricRequests).Add(t.ctx, 1, t.attrs...)
	return t
}

func (t *tracker) chunk(content string) {
	t.chunks++
	if t.span != nil {
		t.span.AddEvent(observability.EventChunkReceived, observability.Int(observability.AttrLLMContentChars, len(content)))
	}
}

func (t *tracker) finish(status string) {
	elapsed := time.Since(t.start)
	t.span.SetAttributes(
		observability.Int(observability.AttrLLMChunkCount, t.chunks),
		observability.Duration(observability.AttrDuration, elapsed),
	)
	t.span.AddEvent(observability.EventRequestEnd, observability.String(observability.AttrStatus, status))
	t.observer.Histogram(observability.MetricRequestDuration).Record(t.ctx, elapsed.Seconds(), t.attrs...)
	if t.chunks > 0 {
		t.observer.Counter(observability.MetricChunks).Add(t.ctx, int64(t.chunks), t.attrs...)
	}
	t.span.End()
}

func (t *tracker) succeed(content string) {
	if t.span == nil {
		return
	}
	t.span.SetAttributes(observability.Int(observability.AttrLLMContentChars, len(content)))
	t.span.SetStatus(observability.StatusOK, "")
	t.observer.Debug(t.ctx, "Request completed", observability.Int(observability.AttrLLMChunkCount, t.chunks))
	t.finish("ok")
}

func (t *tracker) fail(err *ai.Error) {
	if t.span == nil {
		return
	}
	t.span.RecordError(err)
	t.span.SetAttributes(observability.String(observability.AttrErrorKind, string(err.Kind)))
	t.span.SetStatus(observability.StatusError, err.Message)
	t.observer.Counter(observability.MetricErrors).Add(t.ctx, 1,
		append(t.attrs, observability.String(observability.AttrErrorKind, string(err.Kind)))...,
	)
	t.observer.Error(t.ctx, "Request failed",
		observability.Error(err),
		observability.String(observability.AttrErrorKind, string(err.Kind)),
	)
	t.finish("error")
}

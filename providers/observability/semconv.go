package observability

// Semantic conventions shared by the orchestrator, the streaming channel and
// the provider adapters.

// --- Provider attributes ---

const (
	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMFinishReason is the vendor's stop reason, when it sends one.
	AttrLLMFinishReason = "llm.finish_reason"

	AttrLLMChunkCount   = "llm.chunks"
	AttrLLMContentChars = "llm.content.chars"

	// AttrLLMModelsCount is the size of a model list returned to the caller.
	AttrLLMModelsCount = "llm.models.count"
	// AttrLLMModelsFallback is true when the fallback list was served.
	AttrLLMModelsFallback = "llm.models.fallback"
)

// --- Request attributes ---

const (
	// AttrRequestType is the message type, EXPLAIN_TEXT_STREAM or TRANSLATE_TEXT_STREAM.
	AttrRequestType = "request.type"
	// AttrRequestMode is the translate sub-mode.
	AttrRequestMode     = "request.mode"
	AttrRequestLanguage = "request.language"
	// AttrRequestStreaming is true when the caller asked for chunk delivery.
	AttrRequestStreaming = "request.streaming"
	// AttrRequestTextChars is the length of the selected text.
	AttrRequestTextChars = "request.text.chars"
	AttrSessionID        = "channel.session_id"
)

// --- HTTP attributes ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
	AttrHTTPDuration         = "http.duration"
)

// --- General attributes ---

const (
	AttrError             = "error"
	AttrErrorKind         = "error.kind"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// --- Span names ---

const (
	// SpanRequest covers one orchestrated explain or translate request.
	SpanRequest = "explainer.request"
	// SpanModels covers a model list lookup.
	SpanModels = "explainer.models"
	// SpanConnectionTest covers a credential check.
	SpanConnectionTest = "explainer.connection_test"
)

// --- Event names ---

const (
	EventRequestStart    = "explainer.request.start"
	EventRequestEnd      = "explainer.request.end"
	EventChunkReceived   = "explainer.chunk"
	EventFragmentSkipped = "explainer.fragment.skipped"
)

// --- Metric names ---

const (
	MetricRequests        = "explainer.requests"
	MetricErrors          = "explainer.errors"
	MetricRequestDuration = "explainer.request.duration"
	MetricChunks          = "explainer.chunks"
)

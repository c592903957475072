package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/leofalp/explainer/core/orchestrator"
	"github.com/leofalp/explainer/internal/utils"
	"github.com/leofalp/explainer/providers/ai"
)

// LogLevel controls how much detail the logging middleware emits per request.
type LogLevel int

const (
	// LogLevelMinimal logs the provider, model, duration and chunk count.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds the streaming flag and the response length.
	LogLevelStandard

	// LogLevelVerbose adds the user message and the response content, each
	// truncated to 500 characters.
	//
	// WARNING: DO NOT use LogLevelVerbose in production. Selected text may
	// contain private data.
	LogLevelVerbose
)

// truncateLen is the maximum content length included in verbose log output.
const truncateLen = 500

// NewLoggingMiddleware logs every provider send. For streaming sends the
// completion entry carries the number of chunks delivered.
//
// The logger parameter must not be nil. Use slog.Default() if you have not
// configured a custom logger.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) orchestrator.Middleware {
	return func(next orchestrator.SendFunc) orchestrator.SendFunc {
		return func(ctx context.Context, provider ai.Provider, request ai.Request, onChunk ai.ChunkFunc) (string, error) {
			streaming := onChunk != nil
			logger.InfoContext(ctx, "provider send", buildRequestAttrs(provider, request, streaming, level)...)

			chunks := 0
			if streaming {
				forward := onChunk
				onChunk = func(content string) {
					chunks++
					forward(content)
				}
			}

			start := time.Now()
			content, err := next(ctx, provider, request, onChunk)
			elapsed := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "provider send failed",
					slog.String("provider", provider.ID()),
					slog.String("model", request.Model),
					slog.Duration("duration", elapsed),
					slog.Int("chunks", chunks),
					slog.String("kind", string(ai.KindOf(err))),
					slog.String("error", err.Error()),
				)
				return "", err
			}

			logger.InfoContext(ctx, "provider send completed",
				buildResponseAttrs(provider, request, content, chunks, elapsed, level)...,
			)
			return content, nil
		}
	}
}

func buildRequestAttrs(provider ai.Provider, request ai.Request, streaming bool, level LogLevel) []any {
	attrs := []any{
		slog.String("provider", provider.ID()),
		slog.String("model", request.Model),
	}
	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Bool("streaming", streaming))
	}
	if level >= LogLevelVerbose {
		attrs = append(attrs, slog.String("user_message", utils.TruncateString(request.UserMessage, truncateLen)))
	}
	return attrs
}

func buildResponseAttrs(provider ai.Provider, request ai.Request, content string, chunks int, elapsed time.Duration, level LogLevel) []any {
	attrs := []any{
		slog.String("provider", provider.ID()),
		slog.String("model", request.Model),
		slog.Duration("duration", elapsed),
		slog.Int("chunks", chunks),
	}
	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("content_chars", len(content)))
	}
	if level >= LogLevelVerbose {
		attrs = append(attrs, slog.String("response_content", utils.TruncateString(content, truncateLen)))
	}
	return attrs
}

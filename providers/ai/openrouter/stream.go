package openrouter

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/leofalp/explainer/internal/utils"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
)

func streamText(ctx context.Context, response *http.Response) ai.TextStream {
	return func(yield func(string, error) bool) {
		defer utils.CloseWithLog(response.Body)

		scanner := utils.NewSSEScanner(response.Body)
		for {
			if ctx.Err() != nil {
				yield("", ai.TransportError(ProviderID, ctx.Err()))
				return
			}

			sse, err := scanner.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", ai.TransportError(ProviderID, err))
				return
			}

			chunk, _, err := utils.DecodeFragment[chatChunk](sse.Data)
			if err != nil {
				ai.SkipFragment(ctx, ProviderID, sse.Data, err)
				continue
			}

			if chunk.Error != nil {
				yield("", streamError(chunk.Error.Code, chunk.Error.Message))
				return
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					if !yield(choice.Delta.Content, nil) {
						return
					}
				}
				if choice.FinishReason != nil && *choice.FinishReason != "" {
					if span := observability.SpanFromContext(ctx); span != nil {
						span.SetAttributes(observability.String(observability.AttrLLMFinishReason, *choice.FinishReason))
					}
				}
			}
		}
	}
}

// streamError maps an in-stream error object. Numeric codes mirror HTTP
// statuses; anything else is a protocol failure.
func streamError(code any, message string) *ai.Error {
	if status, ok := code.(float64); ok && status >= 400 {
		return ai.StatusError(ProviderID, int(status), utils.JSONToString(map[string]string{"message": message}))
	}
	return ai.NewError(ai.KindProtocol, ProviderID, message, nil)
}

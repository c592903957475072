package anthropic

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/leofalp/explainer/internal/utils"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
)

// streamText turns an open SSE response into a text stream. The body is
// closed when the stream ends or the consumer stops early.
//
// Event lifecycle:
//
//	message_start → content_block_start → content_block_delta(s) →
//	content_block_stop → message_delta → message_stop
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

			event, _, err := utils.DecodeFragment[streamEvent](sse.Data)
			if err != nil {
				ai.SkipFragment(ctx, ProviderID, sse.Data, err)
				continue
			}
			if event.Type == "" {
				event.Type = sse.Name
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if !yield(event.Delta.Text, nil) {
						return
					}
				}

			case "message_delta":
				if span := observability.SpanFromContext(ctx); span != nil && event.Delta != nil && event.Delta.StopReason != "" {
					span.SetAttributes(observability.String(observability.AttrLLMFinishReason, event.Delta.StopReason))
				}

			case "message_stop":
				return

			case "error":
				yield("", streamError(event.Error))
				return

			default:
				// message_start, content_block_start/stop, ping and future
				// event types carry no text.
			}
		}
	}
}

// streamError maps an in-stream error event into the taxonomy.
func streamError(apiErr *apiError) *ai.Error {
	if apiErr == nil {
		return ai.NewError(ai.KindProtocol, ProviderID, "unknown stream error", nil)
	}
	switch apiErr.Type {
	case "rate_limit_error":
		return ai.NewError(ai.KindRateLimit, ProviderID, "rate limit exceeded: "+apiErr.Message, nil)
	case "authentication_error", "permission_error":
		return ai.NewError(ai.KindAuth, ProviderID, "invalid API key or expired session: "+apiErr.Message, nil)
	case "overloaded_error", "api_error":
		return ai.NewError(ai.KindTransport, ProviderID, "provider unavailable: "+apiErr.Message, nil)
	default:
		return ai.NewError(ai.KindProtocol, ProviderID, apiErr.Message, nil)
	}
}

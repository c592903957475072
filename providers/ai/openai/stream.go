package openai

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/leofalp/explainer/internal/utils"
	"github.com/leofalp/explainer/providers/ai"
	"github.com/leofalp/explainer/providers/observability"
)

const completionsEndpoint = "/chat/completions"

// streamRequest is the streaming chat body. Streams bypass the SDK decoder so
// a malformed fragment can be skipped instead of ending the stream.
type streamRequest struct {
	Model    string          `json:"model"`
	Messages []streamMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type streamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func buildStreamRequest(request ai.Request) streamRequest {
	messages := make([]streamMessage, 0, 2)
	if request.SystemPrompt != "" {
		messages = append(messages, streamMessage{Role: "system", Content: request.SystemPrompt})
	}
	messages = append(messages, streamMessage{Role: "user", Content: request.UserMessage})
	return streamRequest{Model: request.Model, Messages: messages, Stream: true}
}

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

			chunk, _, err := utils.DecodeFragment[streamChunk](sse.Data)
			if err != nil {
				ai.SkipFragment(ctx, ProviderID, sse.Data, err)
				continue
			}

			if chunk.Error != nil {
				yield("", ai.NewError(ai.KindProtocol, ProviderID, chunk.Error.Message, nil))
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

package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// Stream opens a streaming chat completion. Rate-limit errors (429) at open
// time are retried twice with backoff.
func (c *OpenAICompatClient) Stream(ctx context.Context, req Request) (Stream, error) {
	params := c.buildParams(req)

	var stream *ssestream.Stream[openai.ChatCompletionChunk]
	var err error
	for attempt := range 3 {
		stream = c.client.Chat.Completions.NewStreaming(ctx, params)
		err = stream.Err()
		if err == nil {
			break
		}
		stream.Close()
		if !strings.Contains(err.Error(), "429") || attempt == 2 {
			return nil, fmt.Errorf("chat completion stream: %w", err)
		}
		wait := time.Duration(2<<attempt) * time.Second // 2s, 4s
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, fmt.Errorf("chat completion stream: %w", ctx.Err())
		}
	}

	return &chunkStream{stream: stream}, nil
}

// chunkStream adapts an SSE chunk stream to Stream.
type chunkStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	done   bool
}

func (s *chunkStream) Recv() (Delta, error) {
	for {
		if s.done {
			return Delta{}, io.EOF
		}
		if !s.stream.Next() {
			s.done = true
			if err := s.stream.Err(); err != nil {
				return Delta{}, fmt.Errorf("streaming: %w", err)
			}
			return Delta{}, io.EOF
		}
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			// usage-only chunks
			continue
		}
		return chunkToDelta(chunk.Choices[0]), nil
	}
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}

// chunkToDelta converts the first choice of a chunk. Only the first tool call
// of a chunk is carried; the loop dispatches one tool per iteration.
func chunkToDelta(choice openai.ChatCompletionChunkChoice) Delta {
	d := Delta{
		Role:         Role(choice.Delta.Role),
		Content:      choice.Delta.Content,
		FinishReason: NormalizeFinishReason(choice.FinishReason),
	}

	if len(choice.Delta.ToolCalls) > 0 {
		tc := choice.Delta.ToolCalls[0]
		if tc.Index == 0 && (tc.ID != "" || tc.Function.Name != "" || tc.Function.Arguments != "") {
			d.ToolCall = &ToolCallDelta{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}
		}
	} else if fc := choice.Delta.FunctionCall; fc.Name != "" || fc.Arguments != "" {
		// legacy function_call streaming
		d.ToolCall = &ToolCallDelta{
			Name:      fc.Name,
			Arguments: fc.Arguments,
		}
	}
	return d
}

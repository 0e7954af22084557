package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/concierge/internal/llm"
)

func TestAppendPreservesOrder(t *testing.T) {
	s := New(llm.SystemMessage("sys"))
	s.Append(llm.UserMessage("one"), llm.AssistantMessage("two"))
	s.Append(llm.UserMessage("three"))

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"sys", "one", "two", "three"}, []string{
		msgs[0].Content, msgs[1].Content, msgs[2].Content, msgs[3].Content,
	})
	assert.Equal(t, 4, s.Len())
}

func TestMessagesAreCopies(t *testing.T) {
	call := &llm.ToolCall{ID: "c1", Name: "get_current_weather", Arguments: `{"location":"Paris"}`}
	s := New(llm.Message{Role: llm.RoleAssistant, ToolCall: call})

	// mutating the caller's pointer must not reach the store
	call.Name = "changed"

	msgs := s.Messages()
	require.NotNil(t, msgs[0].ToolCall)
	assert.Equal(t, "get_current_weather", msgs[0].ToolCall.Name)

	// neither may mutating a returned copy
	msgs[0].ToolCall.Arguments = "{}"
	msgs[0].Content = "edited"
	again := s.Messages()
	assert.Equal(t, `{"location":"Paris"}`, again[0].ToolCall.Arguments)
	assert.Empty(t, again[0].Content)
}

func TestSince(t *testing.T) {
	s := New(llm.UserMessage("a"), llm.UserMessage("b"), llm.UserMessage("c"))

	assert.Len(t, s.Since(1), 2)
	assert.Equal(t, "c", s.Since(2)[0].Content)
	assert.Nil(t, s.Since(3))
	assert.Len(t, s.Since(-1), 3)
}

func TestLast(t *testing.T) {
	s := New()
	_, ok := s.Last()
	assert.False(t, ok)

	s.Append(llm.UserMessage("hi"))
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "hi", last.Content)
}

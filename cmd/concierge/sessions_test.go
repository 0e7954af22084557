package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/storage"
)

func TestWriteTranscriptPairsResultsWithCalls(t *testing.T) {
	call := llm.AssistantMessage("")
	call.ToolCall = &llm.ToolCall{ID: "call_1", Name: "get_current_weather", Arguments: `{"location":"Paris"}`}

	var buf bytes.Buffer
	writeTranscript(&buf, []llm.Message{
		llm.SystemMessage("prompt"),
		llm.UserMessage("Weather in Paris?"),
		call,
		llm.ToolResultMessage("call_1", "get_current_weather", `{"forecast":["windy"]}`),
		llm.AssistantMessage("It is windy."),
	})
	out := buf.String()

	assert.NotContains(t, out, "prompt")
	assert.Contains(t, out, "get_current_weather(location=Paris)")
	assert.Contains(t, out, "[call_1]")
	assert.Contains(t, out, `get_current_weather → {"forecast":["windy"]}`)
	assert.Contains(t, out, "It is windy.")
	assert.NotContains(t, out, "no result recorded")
	assert.NotContains(t, out, "unknown call")
}

func TestWriteTranscriptFlagsUnpairedMessages(t *testing.T) {
	call := llm.AssistantMessage("")
	call.ToolCall = &llm.ToolCall{ID: "call_1", Name: "get_user_information"}

	var buf bytes.Buffer
	writeTranscript(&buf, []llm.Message{
		call,
		llm.ToolResultMessage("call_9", "get_taxi_booking_information", "{}"),
	})
	out := buf.String()

	assert.Contains(t, out, "no result recorded")
	assert.Contains(t, out, "result for unknown call call_9")
	assert.Contains(t, out, "get_taxi_booking_information → {}")
}

func TestWriteSessionTable(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	writeSessionTable(&buf, nil, now)
	assert.Equal(t, "No sessions found.\n", buf.String())

	buf.Reset()
	writeSessionTable(&buf, []storage.Session{
		{ID: "0123456789abcdef", Status: storage.StatusIncomplete, Model: "gpt-4-1106-preview", UpdatedAt: now.Add(-3 * time.Hour)},
	}, now)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[2], "01234567 ")
	assert.Contains(t, lines[2], "incomplete")
	assert.Contains(t, lines[2], "(untitled)")
	assert.Contains(t, lines[2], "gpt-4-1106-pr...")
	assert.Contains(t, lines[2], "3h ago")
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{2 * time.Hour, "2h ago"},
		{49 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeAgo(tt.d))
	}
}

package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/render"
)

func TestAgentSendAcrossTurns(t *testing.T) {
	p := &scriptedProvider{scripts: [][]llm.Delta{
		toolReply("call_1", "get_user_information", `{}`),
		textReply("stop", "You live on Main St."),
		toolReply("call_2", "get_current_weather", `{"location":"San Francisco, CA"}`),
		toolReply("call_3", "get_current_weather", `{"location":"San Francisco, CA","unit":"celsius"}`),
		textReply("stop", "It is windy."),
	}}
	a := New(p, builtinRegistry(t), Options{MaxIterations: 3})

	out, err := a.Send(context.Background(), "Where do I live?", render.NewRecorder())
	require.NoError(t, err)
	assert.Equal(t, "You live on Main St.", out)

	// the budget is per turn, so two tool calls fit again
	out, err = a.Send(context.Background(), "And the weather there?", nil)
	require.NoError(t, err)
	assert.Equal(t, "It is windy.", out)

	history := a.History()
	require.Len(t, history, 11)
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Equal(t, DefaultSystemPrompt, history[0].Content)
	assert.Equal(t, "And the weather there?", history[5].Content)
}

func TestAgentSystemPrompt(t *testing.T) {
	p := &scriptedProvider{scripts: [][]llm.Delta{textReply("stop", "hi")}}
	a := New(p, nil, Options{})

	require.NoError(t, a.SetSystemPrompt("Be brief."))
	assert.Equal(t, "Be brief.", a.History()[0].Content)

	_, err := a.Send(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, a.SetSystemPrompt("Be verbose."), ErrConversationStarted)

	a.Reset()
	history := a.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Be brief.", history[0].Content)
}

func TestAgentSetHistory(t *testing.T) {
	a := New(&scriptedProvider{}, nil, Options{})
	a.SetID("session-1")

	a.SetHistory([]llm.Message{llm.UserMessage("hi"), llm.AssistantMessage("hello")})
	history := a.History()
	require.Len(t, history, 3, "system prompt is restored")
	assert.Equal(t, llm.RoleSystem, history[0].Role)
	assert.Equal(t, "session-1", a.ID())

	a.SetHistory([]llm.Message{llm.SystemMessage("custom"), llm.UserMessage("hi")})
	assert.Equal(t, "custom", a.History()[0].Content)
	assert.Equal(t, 2, a.State().Transcript.Len())
}

func TestAgentFilterTools(t *testing.T) {
	p := &scriptedProvider{scripts: [][]llm.Delta{textReply("stop", "ok")}}
	a := New(p, builtinRegistry(t), Options{})
	a.FilterTools([]string{"get_current_weather"})

	_, err := a.Send(context.Background(), "hi", nil)
	require.NoError(t, err)

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "get_current_weather", reqs[0].Tools[0].Name)
	assert.Contains(t, a.String(), "tools=1")
}

func TestAgentHistoryJSON(t *testing.T) {
	a := New(&scriptedProvider{}, nil, Options{})
	assert.Contains(t, a.HistoryJSON(), `"role": "system"`)
}

func TestFormatToolCall(t *testing.T) {
	tests := []struct {
		name string
		call llm.ToolCall
		want string
	}{
		{"sorted args", llm.ToolCall{Name: "f", Arguments: `{"b":2,"a":"x"}`}, "f(a=x, b=2)"},
		{"no args", llm.ToolCall{Name: "f"}, "f()"},
		{"malformed", llm.ToolCall{Name: "f", Arguments: "{oops"}, "f({oops)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatToolCall(tt.call))
		})
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concierge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: careful
model: gpt-4o
system_prompt: Speak slowly.
tools: [get_current_weather]
max_iterations: 3
temperature: 0.2
strict: true
`), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "careful", p.Name)
	assert.Equal(t, []string{"get_current_weather"}, p.Tools)

	opts := p.Apply(Options{MaxIterations: 5})
	assert.Equal(t, 3, opts.MaxIterations)
	assert.Equal(t, 0.2, opts.Temperature)
	assert.True(t, opts.Strict)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/render"
	"github.com/michaelbrown/concierge/internal/tools"
)

// DefaultSystemPrompt seeds every new conversation.
const DefaultSystemPrompt = "You are a helpful assistant. You are specialised to work with senior citizens and help them with their daily tasks."

// ErrConversationStarted is returned by SetSystemPrompt once messages beyond
// the system prompt exist.
var ErrConversationStarted = errors.New("conversation already started")

// Agent owns one conversation: its state, the provider it talks to and the
// tools it may call. An Agent is not safe for concurrent Send calls.
type Agent struct {
	provider     llm.Provider
	registry     *tools.Registry
	opts         Options
	logger       *slog.Logger
	systemPrompt string
	state        *ConversationState
}

// New creates an Agent with the given provider, tool registry, and loop options.
func New(provider llm.Provider, registry *tools.Registry, opts Options) *Agent {
	a := &Agent{
		provider:     provider,
		registry:     registry,
		opts:         opts.withDefaults(),
		logger:       slog.Default(),
		systemPrompt: DefaultSystemPrompt,
	}
	a.state = NewState("", llm.SystemMessage(a.systemPrompt))
	return a
}

// SetLogger replaces the agent's logger.
func (a *Agent) SetLogger(logger *slog.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// SetID names the conversation, usually after the storage session ID.
func (a *Agent) SetID(id string) {
	if id != "" {
		a.state.ID = id
	}
}

// ID returns the conversation ID.
func (a *Agent) ID() string {
	return a.state.ID
}

// SetSystemPrompt overrides the default system prompt. It only applies
// before the first user message.
func (a *Agent) SetSystemPrompt(prompt string) error {
	if prompt == "" {
		return nil
	}
	if a.state.Transcript.Len() > 1 {
		return ErrConversationStarted
	}
	a.systemPrompt = prompt
	a.state = NewState(a.state.ID, llm.SystemMessage(prompt))
	return nil
}

// FilterTools restricts available tools to the given names.
func (a *Agent) FilterTools(names []string) {
	if len(names) == 0 || a.registry == nil {
		return
	}
	a.registry = a.registry.Filter(names)
}

// SetClient swaps the provider (for mid-session model switching).
func (a *Agent) SetClient(provider llm.Provider) {
	a.provider = provider
}

// Options returns the loop options in effect.
func (a *Agent) Options() Options {
	return a.opts
}

// Send appends a user message and runs one turn of the loop. It returns the
// final assistant text.
func (a *Agent) Send(ctx context.Context, userMessage string, r render.Renderer) (string, error) {
	a.state.Transcript.Append(llm.UserMessage(userMessage))

	loop := NewLoop(a.provider, a.registry, a.opts, WithLogger(a.logger))
	msg, err := loop.Run(ctx, a.state, r)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// State exposes the conversation state.
func (a *Agent) State() *ConversationState {
	return a.state
}

// History returns a copy of the conversation transcript.
func (a *Agent) History() []llm.Message {
	return a.state.Transcript.Messages()
}

// HistoryJSON returns the conversation as formatted JSON (for debugging).
func (a *Agent) HistoryJSON() string {
	data, _ := json.MarshalIndent(a.History(), "", "  ")
	return string(data)
}

// SetHistory replaces the conversation transcript (used when resuming a session).
func (a *Agent) SetHistory(messages []llm.Message) {
	if len(messages) == 0 || messages[0].Role != llm.RoleSystem {
		messages = append([]llm.Message{llm.SystemMessage(a.systemPrompt)}, messages...)
	}
	a.state = NewState(a.state.ID, messages...)
}

// Reset clears conversation history (keeps system prompt).
func (a *Agent) Reset() {
	a.state = NewState(a.state.ID, llm.SystemMessage(a.systemPrompt))
}

// String returns a summary of the agent state.
func (a *Agent) String() string {
	n := 0
	if a.registry != nil {
		n = len(a.registry.Names())
	}
	return fmt.Sprintf("Agent(tools=%d, history=%d messages, maxIter=%d)",
		n, a.state.Transcript.Len(), a.opts.MaxIterations)
}

// FormatToolCall returns a human-readable string for a tool call.
func FormatToolCall(tc llm.ToolCall) string {
	args, err := tools.ParseArguments(tc.Arguments)
	if err != nil || len(args) == 0 {
		return fmt.Sprintf("%s(%s)", tc.Name, tc.Arguments)
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return fmt.Sprintf("%s(%s)", tc.Name, strings.Join(parts, ", "))
}

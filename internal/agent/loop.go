package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/render"
	"github.com/michaelbrown/concierge/internal/tools"
	"github.com/michaelbrown/concierge/internal/transcript"
)

// DefaultMaxIterations bounds the model-request/tool-dispatch cycles of one turn.
const DefaultMaxIterations = 5

// Options tune the conversation loop.
type Options struct {
	MaxIterations int
	Temperature   float64
	ToolChoice    llm.ToolChoice

	// StreamTimeout bounds each wait for the next delta (the first one
	// included), ToolTimeout each tool invocation. Zero means no timeout.
	StreamTimeout time.Duration
	ToolTimeout   time.Duration

	// Strict makes malformed arguments, unknown tools and handler failures
	// abort the turn. Otherwise they are reported back to the model as a
	// tool result carrying an error payload.
	Strict bool
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.ToolChoice == "" {
		o.ToolChoice = llm.ToolChoiceAuto
	}
	return o
}

// ConversationState is the working state of one conversation. It is owned
// by the caller and must not be shared between concurrent Run calls.
type ConversationState struct {
	ID         string
	Transcript *transcript.Store
	// Iteration counts completed tool dispatches within the current turn.
	Iteration int
	// Pending is the message being streamed, nil between iterations.
	Pending *Accumulator
}

// NewState creates a conversation state seeded with messages.
func NewState(id string, messages ...llm.Message) *ConversationState {
	if id == "" {
		id = uuid.NewString()
	}
	return &ConversationState{ID: id, Transcript: transcript.New(messages...)}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the structured logger used by the loop.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop drives the streaming tool-calling protocol. A Loop holds no
// per-conversation state and may serve many conversations concurrently.
type Loop struct {
	provider llm.Provider
	registry *tools.Registry
	opts     Options
	logger   *slog.Logger
}

// NewLoop creates a loop over a provider and a (sealed) tool registry.
func NewLoop(provider llm.Provider, registry *tools.Registry, opts Options, options ...Option) *Loop {
	l := &Loop{
		provider: provider,
		registry: registry,
		opts:     opts.withDefaults(),
		logger:   slog.Default(),
	}
	for _, o := range options {
		o(l)
	}
	return l
}

// Run executes one turn: it streams model responses and dispatches tool
// calls until the model stops, an error occurs, or the iteration budget is
// spent. It returns the final assistant message.
func (l *Loop) Run(ctx context.Context, state *ConversationState, r render.Renderer) (llm.Message, error) {
	if r == nil {
		r = render.Discard
	}
	log := l.logger.With("conversation", state.ID)

	var defs []llm.ToolDef
	if l.registry != nil {
		defs = l.registry.Schemas()
	}

	state.Iteration = 0
	for state.Iteration < l.opts.MaxIterations {
		iter := state.Iteration + 1
		log.Debug("iteration start", "iteration", iter, "messages", state.Transcript.Len())

		turn := r.OpenMessage()
		acc := NewAccumulator(r, turn)
		state.Pending = acc

		reason, err := l.stream(ctx, state, acc, defs)

		if child, ok := acc.Child(); ok {
			r.Finalize(child)
		}
		r.Finalize(turn)
		state.Pending = nil

		if err != nil {
			return llm.Message{}, fmt.Errorf("llm call (iteration %d): %w", iter, err)
		}

		msg := acc.Message()
		if msg.ToolCall != nil && msg.ToolCall.ID == "" {
			msg.ToolCall.ID = "call_" + uuid.NewString()
		}
		state.Transcript.Append(msg)
		log.Debug("iteration finished", "iteration", iter, "finish_reason", reason)

		switch reason {
		case llm.FinishStop:
			return msg, nil
		case llm.FinishToolCall:
			if msg.ToolCall == nil {
				return llm.Message{}, fmt.Errorf("iteration %d: %w: no tool call was streamed", iter, ErrUnexpectedFinishReason)
			}
			if err := l.dispatch(ctx, log, state, r, turn, msg.ToolCall); err != nil {
				return llm.Message{}, fmt.Errorf("iteration %d: %w", iter, err)
			}
			state.Iteration++
		default:
			if msg.ToolCall != nil {
				state.Transcript.Append(interruptedResult(msg.ToolCall))
			}
			return llm.Message{}, &UnexpectedFinishReasonError{Reason: reason}
		}
	}

	err := &IncompleteTurnError{Iterations: state.Iteration}
	log.Warn("iteration budget exhausted", "iterations", state.Iteration)
	if rep, ok := r.(render.IncompleteReporter); ok {
		rep.Incomplete(err)
	}
	return llm.Message{}, err
}

// stream requests one completion and merges its deltas. It returns the last
// finish reason the provider reported.
func (l *Loop) stream(ctx context.Context, state *ConversationState, acc *Accumulator, defs []llm.ToolDef) (llm.FinishReason, error) {
	var idle *time.Timer
	if l.opts.StreamTimeout > 0 {
		var cancel context.CancelCauseFunc
		ctx, cancel = context.WithCancelCause(ctx)
		defer cancel(nil)
		idle = time.AfterFunc(l.opts.StreamTimeout, func() { cancel(ErrStreamTimeout) })
		defer idle.Stop()
	}

	stream, err := l.provider.Stream(ctx, llm.Request{
		Messages:    state.Transcript.Messages(),
		Tools:       defs,
		Temperature: l.opts.Temperature,
		ToolChoice:  l.opts.ToolChoice,
	})
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return "", cause
		}
		return "", err
	}
	defer stream.Close()

	var reason llm.FinishReason
	for {
		d, err := stream.Recv()
		if idle != nil {
			idle.Reset(l.opts.StreamTimeout)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if cause := context.Cause(ctx); cause != nil {
				return "", cause
			}
			return "", err
		}
		acc.Merge(d)
		if d.FinishReason != "" {
			reason = llm.NormalizeFinishReason(string(d.FinishReason))
		}
		if ctx.Err() != nil {
			return "", context.Cause(ctx)
		}
	}
	return reason, nil
}

// dispatch runs a tool call and appends its result to the transcript.
func (l *Loop) dispatch(ctx context.Context, log *slog.Logger, state *ConversationState, r render.Renderer, turn render.Handle, call *llm.ToolCall) error {
	log.Info("tool call", "tool", call.Name, "call_id", call.ID)

	result, err := l.invoke(ctx, call)
	if err != nil {
		if ctx.Err() != nil {
			state.Transcript.Append(interruptedResult(call))
			return err
		}
		if l.opts.Strict {
			// the call still gets an answer so the transcript stays sendable
			state.Transcript.Append(llm.ToolResultMessage(call.ID, call.Name, errorPayload(err)))
			return err
		}
		log.Warn("tool call failed", "tool", call.Name, "error", err)
		result = errorPayload(err)
	}

	state.Transcript.Append(llm.ToolResultMessage(call.ID, call.Name, result))

	child := r.OpenChildMessage(turn, call.Name)
	r.StreamToken(child, result)
	r.Finalize(child)
	return nil
}

func (l *Loop) invoke(ctx context.Context, call *llm.ToolCall) (string, error) {
	args, err := tools.ParseArguments(call.Arguments)
	if err != nil {
		return "", err
	}
	if l.registry == nil {
		return "", &tools.ToolNotFoundError{Name: call.Name}
	}

	if l.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.ToolTimeout)
		defer cancel()
	}
	return l.registry.Invoke(ctx, call.Name, args)
}

// interruptedResult answers a tool call that was never run to completion.
func interruptedResult(call *llm.ToolCall) llm.Message {
	return llm.ToolResultMessage(call.ID, call.Name, `{"error":"interrupted"}`)
}

func errorPayload(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

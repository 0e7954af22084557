package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/michaelbrown/concierge/internal/llm"
)

var (
	// ErrUnexpectedFinishReason is returned when a stream ends with neither
	// stop nor tool_call.
	ErrUnexpectedFinishReason = errors.New("unexpected finish reason")
	// ErrIncompleteTurn is returned when the iteration budget runs out before
	// the model produces a final answer.
	ErrIncompleteTurn = errors.New("incomplete turn")
	// ErrStreamTimeout is the cause when no delta arrives within
	// Options.StreamTimeout.
	ErrStreamTimeout = fmt.Errorf("no delta within stream timeout: %w", context.DeadlineExceeded)
)

// UnexpectedFinishReasonError carries the reason the provider reported.
type UnexpectedFinishReasonError struct {
	Reason llm.FinishReason
}

func (e *UnexpectedFinishReasonError) Error() string {
	if e.Reason == "" {
		return "unexpected finish reason: stream ended without one"
	}
	return fmt.Sprintf("unexpected finish reason %q", string(e.Reason))
}

func (e *UnexpectedFinishReasonError) Unwrap() error { return ErrUnexpectedFinishReason }

// IncompleteTurnError reports how many iterations ran without a final answer.
type IncompleteTurnError struct {
	Iterations int
}

func (e *IncompleteTurnError) Error() string {
	return fmt.Sprintf("incomplete turn: reached max iterations (%d) without a final response", e.Iterations)
}

func (e *IncompleteTurnError) Unwrap() error { return ErrIncompleteTurn }

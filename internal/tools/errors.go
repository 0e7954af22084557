package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when a requested tool has no registered handler.
	ErrToolNotFound = errors.New("tool not found")
	// ErrMalformedArguments is returned when tool-call argument text cannot be decoded.
	ErrMalformedArguments = errors.New("malformed tool arguments")
	// ErrSealed is returned by Register once the registry has been sealed.
	ErrSealed = errors.New("registry is sealed")
)

// ToolNotFoundError names the tool that could not be resolved.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

// MalformedArgumentsError carries the raw argument text that failed to decode.
type MalformedArgumentsError struct {
	Raw    string
	Reason string
}

func (e *MalformedArgumentsError) Error() string {
	return fmt.Sprintf("malformed tool arguments (%s): %q", e.Reason, e.Raw)
}

func (e *MalformedArgumentsError) Unwrap() error { return ErrMalformedArguments }

// Package render defines the surface the conversation loop streams to.
package render

import "github.com/google/uuid"

// Handle identifies a message opened on a Renderer.
type Handle string

// Renderer receives streamed tokens and message lifecycle events.
// A Renderer is used by one conversation at a time.
type Renderer interface {
	OpenMessage() Handle
	StreamToken(h Handle, text string)
	OpenChildMessage(parent Handle, label string) Handle
	Finalize(h Handle)
}

// IncompleteReporter is implemented by renderers that want to be told when a
// turn ends without a final answer.
type IncompleteReporter interface {
	Incomplete(err error)
}

// NewHandle returns a fresh unique handle.
func NewHandle() Handle {
	return Handle(uuid.NewString())
}

// Discard is a Renderer that drops everything.
var Discard Renderer = discard{}

type discard struct{}

func (discard) OpenMessage() Handle                    { return NewHandle() }
func (discard) StreamToken(Handle, string)             {}
func (discard) OpenChildMessage(Handle, string) Handle { return NewHandle() }
func (discard) Finalize(Handle)                        {}

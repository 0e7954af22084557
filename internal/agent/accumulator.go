package agent

import (
	"strings"

	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/render"
)

// Accumulator merges the deltas of one streamed response into a single
// message, forwarding text to the renderer as it arrives. Accumulation is
// append-only.
type Accumulator struct {
	renderer render.Renderer
	turn     render.Handle

	role    llm.Role
	content strings.Builder

	hasCall bool
	callID  string
	name    strings.Builder
	args    strings.Builder
	child   render.Handle
}

// NewAccumulator starts a pending message rendered under the turn handle.
func NewAccumulator(r render.Renderer, turn render.Handle) *Accumulator {
	if r == nil {
		r = render.Discard
	}
	return &Accumulator{renderer: r, turn: turn}
}

// Merge folds one delta into the pending message.
func (a *Accumulator) Merge(d llm.Delta) {
	if d.Role != "" && a.role == "" {
		a.role = d.Role
	}

	if d.Content != "" {
		a.content.WriteString(d.Content)
		a.renderer.StreamToken(a.turn, d.Content)
	}

	tc := d.ToolCall
	if tc == nil {
		return
	}
	if tc.ID != "" && a.callID == "" {
		a.callID = tc.ID
	}
	if tc.Name != "" {
		if !a.hasCall {
			a.startCall(tc.Name)
		} else {
			// some providers chunk the name; treat it like the arguments.
			// The child message keeps the first fragment as its label.
			a.name.WriteString(tc.Name)
		}
	}
	if tc.Arguments != "" {
		if !a.hasCall {
			a.startCall("")
		}
		a.args.WriteString(tc.Arguments)
		a.renderer.StreamToken(a.child, tc.Arguments)
	}
}

func (a *Accumulator) startCall(name string) {
	a.hasCall = true
	a.name.WriteString(name)
	a.child = a.renderer.OpenChildMessage(a.turn, name)
}

// HasToolCall reports whether a tool call has started.
func (a *Accumulator) HasToolCall() bool {
	return a.hasCall
}

// Child returns the renderer handle of the tool-call sub-message, if any. It
// is opened on the first name-bearing delta and labelled with that fragment
// only; Message carries the full name.
func (a *Accumulator) Child() (render.Handle, bool) {
	return a.child, a.hasCall
}

// Content returns the text accumulated so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Message converts the pending message into a transcript message.
func (a *Accumulator) Message() llm.Message {
	role := a.role
	if role == "" {
		role = llm.RoleAssistant
	}
	msg := llm.Message{Role: role, Content: a.content.String()}
	if a.hasCall {
		msg.ToolCall = &llm.ToolCall{
			ID:        a.callID,
			Name:      a.name.String(),
			Arguments: a.args.String(),
		}
	}
	return msg
}

package render

import (
	"strings"
	"sync"
)

// EventKind names a recorded renderer call.
type EventKind string

const (
	EventOpen       EventKind = "open"
	EventOpenChild  EventKind = "open_child"
	EventToken      EventKind = "token"
	EventFinalize   EventKind = "finalize"
	EventIncomplete EventKind = "incomplete"
)

// Event is one recorded renderer call.
type Event struct {
	Kind   EventKind
	Handle Handle
	Parent Handle
	Label  string
	Text   string
}

// Recorder keeps every renderer call in memory. It backs the non-streaming
// HTTP endpoint and is handy in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) OpenMessage() Handle {
	h := NewHandle()
	r.record(Event{Kind: EventOpen, Handle: h})
	return h
}

func (r *Recorder) StreamToken(h Handle, text string) {
	r.record(Event{Kind: EventToken, Handle: h, Text: text})
}

func (r *Recorder) OpenChildMessage(parent Handle, label string) Handle {
	h := NewHandle()
	r.record(Event{Kind: EventOpenChild, Handle: h, Parent: parent, Label: label})
	return h
}

func (r *Recorder) Finalize(h Handle) {
	r.record(Event{Kind: EventFinalize, Handle: h})
}

func (r *Recorder) Incomplete(err error) {
	r.record(Event{Kind: EventIncomplete, Text: err.Error()})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Text returns the concatenated tokens streamed to h.
func (r *Recorder) Text(h Handle) string {
	var b strings.Builder
	for _, e := range r.Events() {
		if e.Kind == EventToken && e.Handle == h {
			b.WriteString(e.Text)
		}
	}
	return b.String()
}

// Count returns how many events of the given kind were recorded.
func (r *Recorder) Count(kind EventKind) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Finalized reports whether h was finalized.
func (r *Recorder) Finalized(h Handle) bool {
	for _, e := range r.Events() {
		if e.Kind == EventFinalize && e.Handle == h {
			return true
		}
	}
	return false
}

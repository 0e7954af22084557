// Package transcript holds the ordered, append-only message log of a
// conversation.
package transcript

import (
	"sync"

	"github.com/michaelbrown/concierge/internal/llm"
)

// Store is an append-only message log. Messages are copied on the way in
// and on the way out, so a stored entry never changes after Append.
type Store struct {
	mu       sync.RWMutex
	messages []llm.Message
}

// New creates a store seeded with the given messages.
func New(messages ...llm.Message) *Store {
	s := &Store{}
	s.Append(messages...)
	return s
}

// Append adds messages to the end of the log.
func (s *Store) Append(messages ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		s.messages = append(s.messages, m.Clone())
	}
}

// Messages returns a copy of the full log.
func (s *Store) Messages() []llm.Message {
	return s.Since(0)
}

// Since returns copies of the messages appended at index i and later.
func (s *Store) Since(i int) []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 {
		i = 0
	}
	if i >= len(s.messages) {
		return nil
	}
	out := make([]llm.Message, 0, len(s.messages)-i)
	for _, m := range s.messages[i:] {
		out = append(out, m.Clone())
	}
	return out
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message, if any.
func (s *Store) Last() (llm.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return llm.Message{}, false
	}
	return s.messages[len(s.messages)-1].Clone(), true
}

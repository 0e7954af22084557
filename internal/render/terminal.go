package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const maxPreviewLines = 8

// Terminal renders a conversation to an ANSI terminal. Tool call arguments
// and tool results are shown indented under the turn that produced them.
type Terminal struct {
	w  io.Writer
	mu sync.Mutex

	labels   map[Handle]string
	children map[Handle]bool
	buffers  map[Handle]*strings.Builder
}

// NewTerminal creates a Terminal writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{
		w:        w,
		labels:   make(map[Handle]string),
		children: make(map[Handle]bool),
		buffers:  make(map[Handle]*strings.Builder),
	}
}

func (t *Terminal) OpenMessage() Handle {
	return NewHandle()
}

func (t *Terminal) StreamToken(h Handle, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.children[h] {
		t.buffers[h].WriteString(text)
		return
	}
	fmt.Fprint(t.w, text)
}

func (t *Terminal) OpenChildMessage(parent Handle, label string) Handle {
	h := NewHandle()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.labels[h] = label
	t.children[h] = true
	t.buffers[h] = &strings.Builder{}
	return h
}

// Finalize prints a child message's buffered body as a short preview.
func (t *Terminal) Finalize(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.children[h] {
		return
	}
	body := t.buffers[h].String()
	label := t.labels[h]
	delete(t.children, h)
	delete(t.buffers, h)
	delete(t.labels, h)

	fmt.Fprintf(t.w, "\n  \033[33m⚡ %s\033[0m\n", label)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	preview := lines
	if len(preview) > maxPreviewLines {
		preview = preview[:maxPreviewLines]
	}
	for _, line := range preview {
		fmt.Fprintf(t.w, "  \033[90m│ %s\033[0m\n", line)
	}
	if len(lines) > maxPreviewLines {
		fmt.Fprintf(t.w, "  \033[90m│ ... (%d more lines)\033[0m\n", len(lines)-maxPreviewLines)
	}
}

func (t *Terminal) Incomplete(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "\n\033[31m(incomplete: %s)\033[0m\n", err)
}

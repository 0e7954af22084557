package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/michaelbrown/concierge/internal/llm"
)

// ExportMarkdown renders a session and its messages as a markdown document.
func ExportMarkdown(sess *Session, messages []llm.Message) string {
	var b strings.Builder

	title := sess.Title
	if title == "" {
		title = "Conversation " + shortID(sess.ID)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **Session:** %s\n", sess.ID)
	fmt.Fprintf(&b, "- **Provider:** %s\n", sess.Provider)
	fmt.Fprintf(&b, "- **Model:** %s\n", sess.Model)
	if sess.Profile != "" {
		fmt.Fprintf(&b, "- **Profile:** %s\n", sess.Profile)
	}
	fmt.Fprintf(&b, "- **Created:** %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Status:** %s\n", sess.Status)
	b.WriteString("\n---\n\n")

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleUser:
			fmt.Fprintf(&b, "## You\n\n%s\n\n", m.Content)
		case llm.RoleAssistant:
			if m.Content != "" {
				fmt.Fprintf(&b, "## Assistant\n\n%s\n\n", m.Content)
			}
			if tc := m.ToolCall; tc != nil {
				fmt.Fprintf(&b, "**Tool Call:** `%s`\n```json\n%s\n```\n\n", tc.Name, prettyArgs(tc.Arguments))
			}
		case llm.RoleTool:
			label := "Tool Result"
			if m.Name != "" {
				label += ": " + m.Name
			}
			fmt.Fprintf(&b, "<details>\n<summary>%s</summary>\n\n```\n%s\n```\n</details>\n\n", label, m.Content)
		}
	}

	return b.String()
}

// ExportJSON renders a session and its messages as formatted JSON.
func ExportJSON(sess *Session, messages []llm.Message) ([]byte, error) {
	export := struct {
		Session  *Session      `json:"session"`
		Messages []llm.Message `json:"messages"`
	}{
		Session:  sess,
		Messages: messages,
	}
	return json.MarshalIndent(export, "", "  ")
}

// prettyArgs indents argument text when it is valid JSON and returns it
// unchanged otherwise.
func prettyArgs(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "{}"
	}
	if !gjson.Valid(raw) {
		return raw
	}
	return strings.TrimSpace(gjson.Get(raw, "@pretty").Raw)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/concierge/internal/agent"
	"github.com/michaelbrown/concierge/internal/config"
	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/storage"
	"github.com/michaelbrown/concierge/internal/storage/sqlite"
)

var (
	statusFilter string
	limitFlag    int
	exportFormat string
	exportOutput string
	forceFlag    bool
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "s"},
	Short:   "Manage saved conversations",
}

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved conversations",
		RunE:  withStore(listSessions),
	}
	listCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (active, running, completed, incomplete, failed)")
	listCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max sessions to show")

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a conversation with its tool calls and results",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(showSession),
	}

	resumeCmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Continue a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resumeID = args[0]
			return runChat(cmd, args)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(deleteSession),
	}
	deleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")

	exportCmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a conversation as markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(exportSession),
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	sessionsCmd.AddCommand(listCmd, showCmd, resumeCmd, deleteCmd, exportCmd)
	rootCmd.AddCommand(sessionsCmd)
}

type storeCommand func(ctx context.Context, store storage.Store, args []string) error

// withStore opens the configured session store around a command.
func withStore(fn storeCommand) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd.Context(), store, args)
	}
}

func openStore() (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

func listSessions(ctx context.Context, store storage.Store, _ []string) error {
	sessions, err := store.ListSessions(ctx, storage.SessionListOptions{
		Status: storage.SessionStatus(statusFilter),
		Limit:  limitFlag,
	})
	if err != nil {
		return err
	}
	writeSessionTable(os.Stdout, sessions, time.Now())
	return nil
}

// writeSessionTable prints one row per session, newest first as stored.
func writeSessionTable(w io.Writer, sessions []storage.Session, now time.Time) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}

	fmt.Fprintf(w, "%-10s %-12s %-40s %-15s %s\n", "ID", "STATUS", "TITLE", "MODEL", "UPDATED")
	fmt.Fprintln(w, strings.Repeat("─", 95))
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%-10s %-12s %-40s %-15s %s\n",
			shortID(s.ID), s.Status, truncate(title, 38), truncate(s.Model, 13), timeAgo(now.Sub(s.UpdatedAt)))
	}
}

func showSession(ctx context.Context, store storage.Store, args []string) error {
	sess, err := store.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	messages, err := store.LoadMessages(ctx, sess.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Session:  %s\n", sess.ID)
	fmt.Printf("Title:    %s\n", sess.Title)
	fmt.Printf("Status:   %s\n", sess.Status)
	fmt.Printf("Provider: %s\n", sess.Provider)
	fmt.Printf("Model:    %s\n", sess.Model)
	if sess.Profile != "" {
		fmt.Printf("Profile:  %s\n", sess.Profile)
	}
	fmt.Printf("Created:  %s\n", sess.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", sess.UpdatedAt.Format(time.RFC3339))
	fmt.Printf("\nMessages: %d\n", len(messages))
	fmt.Println(strings.Repeat("─", 60))

	writeTranscript(os.Stdout, messages)
	return nil
}

// writeTranscript prints a stored conversation. Each tool result is printed
// under the call it answers, matched by call ID; a call with no result and a
// result with no call are both flagged.
func writeTranscript(w io.Writer, messages []llm.Message) {
	answered := make(map[string]bool)
	for _, m := range messages {
		if m.Role == llm.RoleTool {
			answered[m.ToolCallID] = true
		}
	}
	calls := make(map[string]string) // call ID -> tool name

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleUser:
			fmt.Fprintf(w, "\n\033[36myou>\033[0m %s\n", truncate(m.Content, 200))
		case llm.RoleAssistant:
			if m.Content != "" {
				fmt.Fprintf(w, "\n\033[32massistant>\033[0m %s\n", truncate(m.Content, 200))
			}
			if tc := m.ToolCall; tc != nil {
				calls[tc.ID] = tc.Name
				fmt.Fprintf(w, "  \033[33m⚡ %s\033[0m \033[90m[%s]\033[0m\n", agent.FormatToolCall(*tc), tc.ID)
				if !answered[tc.ID] {
					fmt.Fprintf(w, "  \033[31m│ (no result recorded)\033[0m\n")
				}
			}
		case llm.RoleTool:
			name, ok := calls[m.ToolCallID]
			if !ok {
				fmt.Fprintf(w, "  \033[31m│ result for unknown call %s\033[0m\n", m.ToolCallID)
				name = m.Name
			}
			fmt.Fprintf(w, "  \033[90m│ %s → %s\033[0m\n", name, truncate(m.Content, 100))
		}
	}
}

func deleteSession(ctx context.Context, store storage.Store, args []string) error {
	sess, err := store.GetSession(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag {
		title := sess.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("Delete session %s - %q? [y/N] ", shortID(sess.ID), title)
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", shortID(sess.ID))
	return nil
}

func exportSession(ctx context.Context, store storage.Store, args []string) error {
	sess, err := store.GetSession(ctx, args[0])
	if err != nil {
		return err
	}
	messages, err := store.LoadMessages(ctx, sess.ID)
	if err != nil {
		return err
	}

	var output []byte
	switch exportFormat {
	case "json":
		if output, err = storage.ExportJSON(sess, messages); err != nil {
			return err
		}
	case "md", "markdown":
		output = []byte(storage.ExportMarkdown(sess, messages))
	default:
		return fmt.Errorf("unknown export format %q (want md or json)", exportFormat)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, output, 0o644)
	}
	_, err = os.Stdout.Write(output)
	return err
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxLen {
		return string(r[:maxLen]) + "..."
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func timeAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

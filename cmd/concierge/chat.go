package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/concierge/internal/agent"
	"github.com/michaelbrown/concierge/internal/config"
	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/render"
	"github.com/michaelbrown/concierge/internal/storage"
	"github.com/michaelbrown/concierge/internal/storage/sqlite"
)

// resumeID is set by `sessions resume`.
var resumeID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive conversation with the assistant.
The assistant can call tools to help answer your questions.

Examples:
  concierge chat
  concierge chat --provider ollama --model qwen3:8b
  concierge chat --profile careful`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatSession couples the agent with its stored session.
type chatSession struct {
	agent *agent.Agent
	store storage.Store
	sess  *storage.Session
	saved int
}

func (c *chatSession) ensureStored(ctx context.Context, firstMessage string) error {
	if c.sess.CreatedAt.IsZero() {
		c.sess.Title = firstLine(firstMessage, 80)
		if err := c.store.CreateSession(ctx, c.sess); err != nil {
			return err
		}
	}
	return nil
}

func (c *chatSession) save(ctx context.Context, turnErr error) {
	msgs := c.agent.State().Transcript.Since(c.saved)
	if err := c.store.AppendMessages(ctx, c.sess.ID, msgs); err != nil {
		slog.Warn("saving messages", "session", c.sess.ID, "error", err)
		return
	}
	c.saved += len(msgs)

	switch {
	case turnErr == nil:
		c.sess.Status = storage.StatusActive
	case errors.Is(turnErr, agent.ErrIncompleteTurn):
		c.sess.Status = storage.StatusIncomplete
	default:
		c.sess.Status = storage.StatusFailed
	}
	if err := c.store.UpdateSession(ctx, c.sess); err != nil {
		slog.Warn("updating session", "session", c.sess.ID, "error", err)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	var resumed *storage.Session
	if resumeID != "" {
		resumed, err = store.GetSession(ctx, resumeID)
		if err != nil {
			return err
		}
	}

	providerName, model, profileName := providerFlag, modelFlag, profileFlag
	if resumed != nil {
		providerName = firstNonEmpty(providerName, resumed.Provider)
		model = firstNonEmpty(model, resumed.Model)
		profileName = firstNonEmpty(profileName, resumed.Profile)
	}
	sel, err := resolveSelection(cfg, providerName, model, profileName)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	fmt.Printf("Concierge - Interactive Chat\n")
	if sel.profile != nil {
		fmt.Printf("Profile: %s\n", sel.profile.Name)
	}
	fmt.Printf("Provider: %s | Model: %s\n", sel.providerName, sel.model)
	fmt.Printf("Tools: %s\n", strings.Join(registry.Names(), ", "))

	client := llm.NewClient(sel.provider.BaseURL, sel.provider.APIKey, sel.model)
	a := agent.New(client, registry, sel.profile.Apply(cfg.LoopOptions()))
	if err := a.SetSystemPrompt(cfg.Agent.SystemPrompt); err != nil {
		return err
	}
	if sel.profile != nil {
		if err := a.SetSystemPrompt(sel.profile.SystemPrompt); err != nil {
			return err
		}
		a.FilterTools(sel.profile.Tools)
	}

	chat := &chatSession{agent: a, store: store}
	if resumed != nil {
		messages, err := store.LoadMessages(ctx, resumed.ID)
		if err != nil {
			return err
		}
		a.SetHistory(messages)
		chat.sess = resumed
		chat.saved = a.State().Transcript.Len()
		fmt.Printf("Resumed session %s (%d messages)\n", shortID(resumed.ID), len(messages))
	} else {
		profile := ""
		if sel.profile != nil {
			profile = sel.profile.Name
		}
		chat.sess = &storage.Session{
			ID:       uuid.NewString(),
			Status:   storage.StatusActive,
			Provider: sel.providerName,
			Model:    sel.model,
			Profile:  profile,
		}
	}
	a.SetID(chat.sess.ID)

	fmt.Printf("Type /help for commands, /quit to exit\n\n")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36myou>\033[0m ",
		HistoryFile:     filepath.Join(os.TempDir(), "concierge_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Ctrl+C cancels the running turn, not the whole app.
	var (
		cancelMu  sync.Mutex
		reqCancel context.CancelFunc
	)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			cancelMu.Lock()
			if reqCancel != nil {
				reqCancel()
			}
			cancelMu.Unlock()
		}
	}()

	term := render.NewTerminal(os.Stdout)

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleCommand(input, chat); quit {
				return nil
			}
			continue
		}

		if err := chat.ensureStored(ctx, input); err != nil {
			slog.Warn("creating session", "error", err)
		}

		reqCtx, cancel := context.WithCancel(ctx)
		cancelMu.Lock()
		reqCancel = cancel
		cancelMu.Unlock()

		fmt.Printf("\n\033[32massistant>\033[0m ")
		_, err = a.Send(reqCtx, input, term)
		wasInterrupted := reqCtx.Err() != nil

		cancelMu.Lock()
		reqCancel = nil
		cancelMu.Unlock()
		cancel()

		chat.save(ctx, err)

		switch {
		case err == nil:
			fmt.Printf("\n\n")
		case wasInterrupted:
			fmt.Println("\n(interrupted)")
		case errors.Is(err, agent.ErrIncompleteTurn):
			// the terminal renderer already reported it
			fmt.Println()
		default:
			fmt.Printf("\n\033[31merror: %s\033[0m\n\n", err)
		}
	}
}

// handleCommand runs a slash command and reports whether the chat should end.
func handleCommand(input string, chat *chatSession) bool {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		return true
	case "/reset":
		chat.agent.Reset()
		chat.sess = &storage.Session{
			ID:       uuid.NewString(),
			Status:   storage.StatusActive,
			Provider: chat.sess.Provider,
			Model:    chat.sess.Model,
			Profile:  chat.sess.Profile,
		}
		chat.agent.SetID(chat.sess.ID)
		chat.saved = 0
		fmt.Println("Conversation reset.")
		fmt.Println()
	case "/history":
		fmt.Println(chat.agent.HistoryJSON())
		fmt.Println()
	case "/session":
		fmt.Printf("Session %s: %s\n\n", chat.sess.ID, chat.agent)
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help     - Show this help")
		fmt.Println("  /reset    - Start a new conversation")
		fmt.Println("  /history  - Show raw conversation history (JSON)")
		fmt.Println("  /session  - Show the current session")
		fmt.Println("  /quit     - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstLine(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen]) + "..."
	}
	return s
}

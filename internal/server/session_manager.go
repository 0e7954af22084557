package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/michaelbrown/concierge/internal/agent"
	"github.com/michaelbrown/concierge/internal/config"
	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/storage"
	"github.com/michaelbrown/concierge/internal/tools"
)

// ProviderFactory builds the model provider for a session.
type ProviderFactory func(p config.ProviderConfig, model string) llm.Provider

// DefaultProviderFactory talks to an OpenAI-compatible endpoint.
func DefaultProviderFactory(p config.ProviderConfig, model string) llm.Provider {
	return llm.NewClient(p.BaseURL, p.APIKey, model)
}

// ActiveSession tracks an in-memory agent for a session.
type ActiveSession struct {
	Agent *agent.Agent
	mu    sync.Mutex // one turn at a time per session
	saved int        // transcript messages already persisted

	// cancelMu is separate from mu, which is held for a whole turn.
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func (as *ActiveSession) setCancel(cancel context.CancelFunc) {
	as.cancelMu.Lock()
	as.cancel = cancel
	as.cancelMu.Unlock()
}

// Cancel stops the in-flight turn, if any.
func (as *ActiveSession) Cancel() {
	as.cancelMu.Lock()
	defer as.cancelMu.Unlock()
	if as.cancel != nil {
		as.cancel()
	}
}

// persist appends the messages produced since the last save.
func (as *ActiveSession) persist(ctx context.Context, store storage.Store) error {
	msgs := as.Agent.State().Transcript.Since(as.saved)
	if len(msgs) == 0 {
		return nil
	}
	if err := store.AppendMessages(ctx, as.Agent.ID(), msgs); err != nil {
		return err
	}
	as.saved += len(msgs)
	return nil
}

// SessionManager tracks which sessions have an active Agent in memory.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*ActiveSession
	newProvider ProviderFactory
	logger      *slog.Logger
}

// NewSessionManager creates a new SessionManager. A nil factory selects
// DefaultProviderFactory.
func NewSessionManager(factory ProviderFactory) *SessionManager {
	if factory == nil {
		factory = DefaultProviderFactory
	}
	return &SessionManager{
		sessions:    make(map[string]*ActiveSession),
		newProvider: factory,
		logger:      slog.Default(),
	}
}

// Get returns an active session if it exists.
func (sm *SessionManager) Get(sessionID string) (*ActiveSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	as, ok := sm.sessions[sessionID]
	return as, ok
}

// GetOrCreate returns an existing active session or builds its agent from
// config, profile and stored history.
func (sm *SessionManager) GetOrCreate(
	ctx context.Context,
	sess *storage.Session,
	cfg *config.Config,
	store storage.Store,
	registry *tools.Registry,
) (*ActiveSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if as, ok := sm.sessions[sess.ID]; ok {
		return as, nil
	}

	profile, err := cfg.Profile(sess.Profile)
	if err != nil {
		return nil, err
	}
	picked, err := cfg.Select(sess.Provider, sess.Model, profile)
	if err != nil {
		return nil, fmt.Errorf("resolving provider: %w", err)
	}

	a := agent.New(sm.newProvider(picked.Provider, picked.Model), registry, profile.Apply(cfg.LoopOptions()))
	a.SetID(sess.ID)
	a.SetLogger(sm.logger.With("session", sess.ID))
	if err := a.SetSystemPrompt(cfg.Agent.SystemPrompt); err != nil {
		return nil, err
	}
	if profile != nil {
		if err := a.SetSystemPrompt(profile.SystemPrompt); err != nil {
			return nil, err
		}
		a.FilterTools(profile.Tools)
	}

	messages, err := store.LoadMessages(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	as := &ActiveSession{Agent: a}
	if len(messages) > 0 {
		a.SetHistory(messages)
		as.saved = a.State().Transcript.Len()
	}

	sm.sessions[sess.ID] = as
	return as, nil
}

// Remove removes an active session and cancels any in-flight work.
func (sm *SessionManager) Remove(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if as, ok := sm.sessions[sessionID]; ok {
		as.Cancel()
		delete(sm.sessions, sessionID)
	}
}

// CloseAll cancels all active sessions.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, as := range sm.sessions {
		as.Cancel()
		delete(sm.sessions, id)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/michaelbrown/concierge/internal/agent"
	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/render"
	"github.com/michaelbrown/concierge/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func storeErrorStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// --- Session handlers ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	opts := storage.SessionListOptions{}

	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = storage.SessionStatus(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	sessions, err := s.store.ListSessions(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if sessions == nil {
		sessions = []storage.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Profile  string `json:"profile"`
	Title    string `json:"title"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	profile, err := s.cfg.Profile(req.Profile)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	picked, err := s.cfg.Select(req.Provider, req.Model, profile)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := &storage.Session{
		ID:       uuid.New().String(),
		Title:    req.Title,
		Status:   storage.StatusActive,
		Provider: picked.ProviderName,
		Model:    picked.Model,
		Profile:  req.Profile,
	}

	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, storeErrorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.sessions.Remove(id)

	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		writeError(w, storeErrorStatus(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Message handlers ---

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	messages, err := s.store.LoadMessages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if messages == nil {
		messages = []llm.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// activity is a tool call or tool result surfaced during a turn.
type activity struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type sendMessageResponse struct {
	Content    string     `json:"content"`
	Activity   []activity `json:"activity"`
	Incomplete bool       `json:"incomplete,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, storeErrorStatus(err), err.Error())
		return
	}

	as, err := s.sessions.GetOrCreate(r.Context(), sess, s.cfg, s.store, s.registry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("initializing agent: %v", err))
		return
	}

	rec := render.NewRecorder()
	response, err := s.runTurn(r.Context(), as, sess, req.Content, rec)

	resp := sendMessageResponse{Content: response, Activity: recordedActivity(rec)}
	switch {
	case errors.Is(err, agent.ErrIncompleteTurn):
		resp.Incomplete = true
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("agent error: %v", err))
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// runTurn runs one user turn on a session and persists whatever the turn
// appended, even when it fails.
func (s *Server) runTurn(ctx context.Context, as *ActiveSession, sess *storage.Session, content string, r render.Renderer) (string, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if sess.Title == "" {
		sess.Title = generateTitle(content)
	}
	sess.Status = storage.StatusRunning
	s.store.UpdateSession(ctx, sess)

	ctx, cancel := context.WithCancel(ctx)
	as.setCancel(cancel)
	defer func() {
		cancel()
		as.setCancel(nil)
	}()

	response, err := as.Agent.Send(ctx, content, r)

	// the request context may be gone; storage must still happen
	saveCtx := context.WithoutCancel(ctx)
	if saveErr := as.persist(saveCtx, s.store); saveErr != nil {
		s.logger.Error("saving messages", "session", sess.ID, "error", saveErr)
		if err == nil {
			err = fmt.Errorf("saving messages: %w", saveErr)
		}
	}

	switch {
	case err == nil:
		sess.Status = storage.StatusActive
	case errors.Is(err, agent.ErrIncompleteTurn):
		sess.Status = storage.StatusIncomplete
	default:
		sess.Status = storage.StatusFailed
	}
	s.store.UpdateSession(saveCtx, sess)

	return response, err
}

func recordedActivity(rec *render.Recorder) []activity {
	out := []activity{}
	for _, e := range rec.Events() {
		if e.Kind == render.EventOpenChild {
			out = append(out, activity{Label: e.Label, Text: rec.Text(e.Handle)})
		}
	}
	return out
}

// --- Tool handlers ---

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	defs := []llm.ToolDef{}
	if s.registry != nil {
		defs = append(defs, s.registry.Schemas()...)
	}
	writeJSON(w, http.StatusOK, defs)
}

// --- Provider/Model handlers ---

type providerInfo struct {
	Name     string            `json:"name"`
	Models   map[string]string `json:"models"`
	IsOllama bool              `json:"is_ollama"`
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := []providerInfo{}
	for name, p := range s.cfg.Providers {
		providers = append(providers, providerInfo{
			Name:     name,
			Models:   p.Models,
			IsOllama: p.IsOllama(),
		})
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name < providers[j].Name })
	writeJSON(w, http.StatusOK, providers)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	provider, err := s.cfg.Provider(providerName)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	// For Ollama, query live models
	if provider.IsOllama() {
		client := llm.NewClient(provider.BaseURL, provider.APIKey, "")
		models, err := client.ListModels(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("querying models: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, models)
		return
	}

	// For other providers, return configured models
	models := []llm.ModelInfo{}
	for key, name := range provider.Models {
		models = append(models, llm.ModelInfo{
			Name:       name,
			ModifiedAt: key,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	writeJSON(w, http.StatusOK, models)
}

// generateTitle creates a session title from the first user message.
func generateTitle(firstMessage string) string {
	t := strings.TrimSpace(firstMessage)
	if r := []rune(t); len(r) > 80 {
		t = string(r[:80]) + "..."
	}
	return t
}

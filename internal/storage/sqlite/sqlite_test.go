package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/michaelbrown/concierge/internal/llm"
	"github.com/michaelbrown/concierge/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{
		ID:       "abc12345-0000-0000-0000-000000000000",
		Title:    "test session",
		Status:   storage.StatusActive,
		Provider: "openai",
		Model:    "gpt-4-1106-preview",
		Profile:  "default",
	}

	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	if got.Title != "test session" {
		t.Errorf("title = %q, want %q", got.Title, "test session")
	}
	if got.Status != storage.StatusActive {
		t.Errorf("status = %q, want %q", got.Status, storage.StatusActive)
	}
	if got.Provider != "openai" {
		t.Errorf("provider = %q, want %q", got.Provider, "openai")
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}
}

func TestGetSessionByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{
		ID:     "abc12345-0000-0000-0000-000000000000",
		Status: storage.StatusActive,
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, "abc12345")
	if err != nil {
		t.Fatalf("GetSession by prefix: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("got ID %q, want %q", got.ID, sess.ID)
	}
}

func TestGetSessionAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc00000-0000-0000-0000-000000000000",
		"abc11111-0000-0000-0000-000000000000",
	} {
		sess := &storage.Session{ID: id, Status: storage.StatusActive}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	_, err := s.GetSession(ctx, "abc")
	if err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
}

func TestListSessions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"aaa", "bbb", "ccc"} {
		sess := &storage.Session{ID: id, Status: storage.StatusActive}
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	sessions, err := s.ListSessions(ctx, storage.SessionListOptions{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Errorf("got %d sessions, want 3", len(sessions))
	}
}

func TestListSessionsFilterByStatus(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateSession(ctx, &storage.Session{ID: "a1", Status: storage.StatusActive})
	s.CreateSession(ctx, &storage.Session{ID: "a2", Status: storage.StatusCompleted})
	s.CreateSession(ctx, &storage.Session{ID: "a3", Status: storage.StatusActive})

	sessions, err := s.ListSessions(ctx, storage.SessionListOptions{Status: storage.StatusActive})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("got %d active sessions, want 2", len(sessions))
	}
}

func TestListSessionsLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.CreateSession(ctx, &storage.Session{ID: string(rune('a' + i)), Status: storage.StatusActive})
	}

	sessions, err := s.ListSessions(ctx, storage.SessionListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("got %d sessions, want 2", len(sessions))
	}
}

func TestUpdateSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{ID: "upd1", Status: storage.StatusActive}
	s.CreateSession(ctx, sess)

	sess.Title = "updated title"
	sess.Status = storage.StatusCompleted
	if err := s.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	got, err := s.GetSession(ctx, "upd1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "updated title" {
		t.Errorf("title = %q, want %q", got.Title, "updated title")
	}
	if got.Status != storage.StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, storage.StatusCompleted)
	}
}

func TestDeleteSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{ID: "del1", Status: storage.StatusActive}
	s.CreateSession(ctx, sess)
	s.AppendMessages(ctx, "del1", []llm.Message{{Role: llm.RoleUser, Content: "hello"}})

	if err := s.DeleteSession(ctx, "del1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	_, err := s.GetSession(ctx, "del1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetSession after delete = %v, want ErrNotFound", err)
	}

	msgs, err := s.LoadMessages(ctx, "del1")
	if err != nil {
		t.Fatalf("LoadMessages after delete: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages after delete, got %d", len(msgs))
	}
}

func TestAppendAndLoadMessages(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{ID: "msg1", Status: storage.StatusActive}
	s.CreateSession(ctx, sess)

	messages := []llm.Message{
		llm.SystemMessage("You are a helpful assistant."),
		llm.UserMessage("What is the weather in Paris?"),
		{
			Role: llm.RoleAssistant,
			ToolCall: &llm.ToolCall{
				ID: "tc1", Name: "get_current_weather", Arguments: `{"location": "Paris"}`,
			},
		},
		llm.ToolResultMessage("tc1", "get_current_weather", `{"location":"Paris","temperature":"60"}`),
		llm.AssistantMessage("It is 60 degrees in Paris."),
	}

	if err := s.AppendMessages(ctx, "msg1", messages); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}

	loaded, err := s.LoadMessages(ctx, "msg1")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}

	if len(loaded) != 5 {
		t.Fatalf("got %d messages, want 5", len(loaded))
	}

	if loaded[0].Role != llm.RoleSystem {
		t.Errorf("msg[0] role = %q, want system", loaded[0].Role)
	}
	if loaded[2].ToolCall == nil || loaded[2].ToolCall.Name != "get_current_weather" {
		t.Fatalf("msg[2] tool call = %+v, want get_current_weather", loaded[2].ToolCall)
	}
	if loaded[2].ToolCall.Arguments != `{"location": "Paris"}` {
		t.Errorf("msg[2] arguments = %q, not preserved verbatim", loaded[2].ToolCall.Arguments)
	}
	if loaded[3].ToolCallID != "tc1" || loaded[3].Name != "get_current_weather" {
		t.Errorf("msg[3] = %+v, want tool result for tc1", loaded[3])
	}
	if loaded[4].ToolCall != nil {
		t.Errorf("msg[4] should have no tool call")
	}
}

func TestAppendMessagesKeepsOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := &storage.Session{ID: "ow1", Status: storage.StatusActive}
	s.CreateSession(ctx, sess)

	s.AppendMessages(ctx, "ow1", []llm.Message{llm.UserMessage("first")})
	s.AppendMessages(ctx, "ow1", []llm.Message{
		llm.AssistantMessage("second"),
		llm.UserMessage("third"),
	})
	if err := s.AppendMessages(ctx, "ow1", nil); err != nil {
		t.Fatalf("AppendMessages(nil): %v", err)
	}

	loaded, err := s.LoadMessages(ctx, "ow1")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(loaded) != len(want) {
		t.Fatalf("got %d messages, want %d", len(loaded), len(want))
	}
	for i, w := range want {
		if loaded[i].Content != w {
			t.Errorf("msg[%d] = %q, want %q", i, loaded[i].Content, w)
		}
	}
}

func TestAppendMessagesUnknownSession(t *testing.T) {
	s := testStore(t)
	err := s.AppendMessages(context.Background(), "ghost", []llm.Message{llm.UserMessage("hi")})
	if err == nil {
		t.Fatal("expected foreign key error for unknown session")
	}
}

func TestUpdateSessionNotFound(t *testing.T) {
	s := testStore(t)
	err := s.UpdateSession(context.Background(), &storage.Session{ID: "ghost", Status: storage.StatusIncomplete})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("UpdateSession = %v, want ErrNotFound", err)
	}
}

func TestLoadMessagesEmpty(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	msgs, err := s.LoadMessages(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if msgs != nil {
		t.Errorf("expected nil for nonexistent session, got %v", msgs)
	}
}

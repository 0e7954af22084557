package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/michaelbrown/concierge/internal/agent"
	"github.com/michaelbrown/concierge/internal/render"
	"github.com/michaelbrown/concierge/internal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // auth is left to the network layer
	},
}

// WebSocket event types sent to the client.
const (
	eventMessageOpen  = "message_open"
	eventToken        = "token"
	eventMessageFinal = "message_final"
	eventDone         = "done"
	eventIncomplete   = "incomplete"
	eventError        = "error"
)

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Parent  string `json:"parent,omitempty"`
	Label   string `json:"label,omitempty"`
	Content string `json:"content,omitempty"`
}

// wsRenderer streams renderer events over a WebSocket connection.
type wsRenderer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (r *wsRenderer) send(v wsOutgoing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wsWriteJSON(r.conn, v)
}

func (r *wsRenderer) OpenMessage() render.Handle {
	h := render.NewHandle()
	r.send(wsOutgoing{Type: eventMessageOpen, ID: string(h)})
	return h
}

func (r *wsRenderer) StreamToken(h render.Handle, text string) {
	r.send(wsOutgoing{Type: eventToken, ID: string(h), Content: text})
}

func (r *wsRenderer) OpenChildMessage(parent render.Handle, label string) render.Handle {
	h := render.NewHandle()
	r.send(wsOutgoing{Type: eventMessageOpen, ID: string(h), Parent: string(parent), Label: label})
	return h
}

func (r *wsRenderer) Finalize(h render.Handle) {
	r.send(wsOutgoing{Type: eventMessageFinal, ID: string(h)})
}

func (r *wsRenderer) Incomplete(err error) {
	r.send(wsOutgoing{Type: eventIncomplete, Content: err.Error()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	rr := &wsRenderer{conn: conn}

	as, err := s.sessions.GetOrCreate(r.Context(), sess, s.cfg, s.store, s.registry)
	if err != nil {
		rr.send(wsOutgoing{Type: eventError, Content: fmt.Sprintf("initializing agent: %v", err)})
		return
	}

	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Printf("websocket read error: %v", err)
			return
		}

		if msg.Type != "message" || msg.Content == "" {
			rr.send(wsOutgoing{Type: eventError, Content: "invalid message"})
			continue
		}

		s.processWebSocketMessage(r.Context(), rr, as, sess, msg.Content)
	}
}

func (s *Server) processWebSocketMessage(ctx context.Context, rr *wsRenderer, as *ActiveSession, sess *storage.Session, content string) {
	response, err := s.runTurn(ctx, as, sess, content, rr)

	switch {
	case err == nil:
		rr.send(wsOutgoing{Type: eventDone, Content: response})
	case errors.Is(err, agent.ErrIncompleteTurn):
		// already reported through Incomplete
	case ctx.Err() != nil:
		rr.send(wsOutgoing{Type: eventError, Content: "interrupted"})
	default:
		rr.send(wsOutgoing{Type: eventError, Content: err.Error()})
	}
}

func wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

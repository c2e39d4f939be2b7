// ABOUTME: Websocket side of the fake backend: per-chat hub and the close-code contract.
// ABOUTME: Sends chat_history on connect, echoes chat_message frames to every participant.

package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Close codes from the private contract with the client.
const (
	closeServerError   = 4000
	closeMissingToken  = 4001
	closeInvalidToken  = 4002
	closeChatNotFound  = 4003
	closeNotAuthorized = 4004
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub fans frames out to every connection joined to a chat.
type hub struct {
	logger *slog.Logger
	mu     sync.Mutex
	rooms  map[int64]map[uuid.UUID]*websocket.Conn
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger: logger.With("component", "hub"),
		rooms:  make(map[int64]map[uuid.UUID]*websocket.Conn),
	}
}

func (h *hub) join(chatID int64, conn *websocket.Conn) uuid.UUID {
	id := uuid.New()
	h.mu.Lock()
	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[uuid.UUID]*websocket.Conn)
	}
	h.rooms[chatID][id] = conn
	h.mu.Unlock()
	return id
}

func (h *hub) leave(chatID int64, id uuid.UUID) {
	h.mu.Lock()
	if conns, ok := h.rooms[chatID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(chatID int64, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("marshaling frame", "error", err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[chatID]))
	for _, c := range h.rooms[chatID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("broadcast write failed", "chat_id", chatID, "error", err)
		}
	}
}

// wireMessage is a message in the realtime frame shape (message_id/message,
// not id/content).
type wireMessage struct {
	MessageID int64  `json:"message_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	SenderID  int64  `json:"sender_id"`
	Sender    *user  `json:"sender"`
}

func toWire(m message) wireMessage {
	wm := wireMessage{
		MessageID: m.ID,
		Message:   m.Content,
		Timestamp: m.Timestamp.Format(time.RFC3339),
	}
	if m.Sender != nil {
		wm.SenderID = m.Sender.ID
		wm.Sender = m.Sender
	}
	return wm
}

// handleSocket is GET /ws/chat/{id}/. The connection is accepted first and
// then closed with a contract code when a precondition fails, which is how
// the real backend reports them too.
func (s *server) handleSocket(w http.ResponseWriter, r *http.Request) {
	idPart := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/chat/"), "/")
	chatID, idErr := strconv.ParseInt(idPart, 10, 64)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	if idErr != nil {
		s.rejectSocket(conn, closeChatNotFound)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		s.rejectSocket(conn, closeMissingToken)
		return
	}

	u, ok := s.userFromToken(token)
	if !ok {
		s.rejectSocket(conn, closeInvalidToken)
		return
	}

	chat, ok := s.store.chat(chatID)
	if !ok {
		s.rejectSocket(conn, closeChatNotFound)
		return
	}

	if chat.Buyer != u.ID && chat.Seller != u.ID {
		s.rejectSocket(conn, closeNotAuthorized)
		return
	}

	s.logger.Info("socket open", "chat_id", chatID, "user", u.Username)
	s.serveSocket(conn, chatID, u)
}

// rejectSocket closes a freshly upgraded connection with a contract code.
func (s *server) rejectSocket(conn *websocket.Conn, code int) {
	s.logger.Info("rejecting socket", "code", code)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
	conn.Close()
}

// serveSocket replays history, joins the hub, and pumps inbound frames.
func (s *server) serveSocket(conn *websocket.Conn, chatID int64, u user) {
	history := s.store.lastMessages(chatID, 50)
	wires := make([]wireMessage, len(history))
	for i, m := range history {
		wires[i] = toWire(m)
	}
	if err := conn.WriteJSON(map[string]any{"type": "chat_history", "messages": wires}); err != nil {
		s.logger.Warn("history replay failed", "chat_id", chatID, "error", err)
		conn.Close()
		return
	}

	id := s.hub.join(chatID, conn)
	defer func() {
		s.hub.leave(chatID, id)
		conn.Close()
		s.logger.Info("socket closed", "chat_id", chatID, "user", u.Username)
	}()

	for {
		var frame struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type != "chat_message" || strings.TrimSpace(frame.Message) == "" {
			continue
		}

		saved := s.store.appendMessage(chatID, u.ID, strings.TrimSpace(frame.Message))
		wm := toWire(saved)
		s.hub.broadcast(chatID, map[string]any{
			"type":       "chat_message",
			"message_id": wm.MessageID,
			"message":    wm.Message,
			"timestamp":  wm.Timestamp,
			"sender_id":  wm.SenderID,
			"sender":     wm.Sender,
		})
	}
}

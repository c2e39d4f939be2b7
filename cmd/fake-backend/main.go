// ABOUTME: Minimal fake of the campus marketplace backend for local development and E2E runs.
// ABOUTME: Serves the chat REST endpoints and the /ws/chat/{id}/ socket with the 4000-4004 close contract.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"

	"github.com/campusmarket/campus-chat/internal/logging"
)

func main() {
	addr := flag.String("addr", ":8800", "listen address")
	secret := flag.String("secret", "campus-dev-secret", "JWT signing secret")
	flag.Parse()

	logger := logging.New(os.Stderr, "debug", "text").With("component", "fake-backend")

	store := newStore()
	store.seed()

	srv := &server{
		logger: logger,
		secret: []byte(*secret),
		store:  store,
		hub:    newHub(logger),
	}

	printBanner(*addr, srv)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chats/", srv.handleChats)
	mux.HandleFunc("/ws/chat/", srv.handleSocket)

	logger.Info("listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// printBanner shows connection details and ready-to-paste dev tokens.
func printBanner(addr string, srv *server) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgGreen)

	title.Println("fake campus backend")
	fmt.Printf("  REST      http://localhost%s/api/chats/\n", addr)
	fmt.Printf("  realtime  ws://localhost%s/ws/chat/{id}/\n", addr)
	fmt.Println()
	fmt.Println("Dev tokens (export CAMPUS_TOKEN=...):")
	for _, u := range srv.store.usersSorted() {
		token, err := srv.mintToken(u)
		if err != nil {
			continue
		}
		label.Printf("  %-8s", u.Username)
		fmt.Printf(" %s\n", token)
	}
	fmt.Println()
}

// server holds the in-memory backend state and its handlers.
type server struct {
	logger *slog.Logger
	secret []byte
	store  *store
	hub    *hub
}

// mintToken issues an HS256 access token shaped like the real backend's:
// the client only ever looks at user_id, username, and name.
func (s *server) mintToken(u user) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  u.ID,
		"username": u.Username,
		"name":     u.Name,
		"exp":      time.Now().Add(30 * 24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// authenticate resolves the bearer token on a REST request to a user.
func (s *server) authenticate(r *http.Request) (user, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return user{}, false
	}
	return s.userFromToken(token)
}

// userFromToken verifies a token and looks up its user.
func (s *server) userFromToken(token string) (user, bool) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return user{}, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return user{}, false
	}
	id, ok := claims["user_id"].(float64)
	if !ok {
		return user{}, false
	}
	return s.store.user(int64(id))
}

// handleChats covers GET/POST /api/chats/ and GET /api/chats/{id}/messages/.
func (s *server) handleChats(w http.ResponseWriter, r *http.Request) {
	u, ok := s.authenticate(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/chats/"), "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.chatsFor(u.ID))

	case rest == "" && r.Method == http.MethodPost:
		s.handleCreateChat(w, r, u)

	case strings.HasSuffix(rest, "/messages") || strings.HasSuffix(rest, "messages"):
		idPart := strings.TrimSuffix(strings.TrimSuffix(rest, "messages"), "/")
		chatID, err := strconv.ParseInt(strings.Trim(idPart, "/"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		s.handleMessages(w, u, chatID)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

// handleCreateChat is the idempotent create-or-get: an existing chat for the
// (buyer, listing) pair is returned with 200, a fresh one with 201.
func (s *server) handleCreateChat(w http.ResponseWriter, r *http.Request, u user) {
	var body struct {
		Listing int64 `json:"listing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	record, created, err := s.store.ensureChat(u.ID, body.Listing)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid listing ID"})
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	s.logger.Info("chat ensured", "chat_id", record.ID, "buyer", u.ID, "created", created)
	writeJSON(w, code, record)
}

// handleMessages serves the durable log, newest first like the real backend.
func (s *server) handleMessages(w http.ResponseWriter, u user, chatID int64) {
	chat, ok := s.store.chat(chatID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if chat.Buyer != u.ID && chat.Seller != u.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Not authorized"})
		return
	}
	writeJSON(w, http.StatusOK, s.store.messagesNewestFirst(chatID))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ABOUTME: Reconnecting websocket channel for exactly one conversation at a time
// ABOUTME: Handles the token handshake, close-code classification, and capped exponential backoff

package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campusmarket/campus-chat/internal/session"
)

// State is the channel connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// EventType discriminates channel events.
type EventType int

const (
	// EventState reports a connection state transition.
	EventState EventType = iota
	// EventMessage carries a single new message to append.
	EventMessage
	// EventHistory carries a bulk ordered replacement of the message list.
	EventHistory
)

// Event is delivered to the single consumer in transport order.
type Event struct {
	Type   EventType
	ChatID int64

	// EventMessage
	Message WireMessage

	// EventHistory
	History []WireMessage

	// EventState
	State     State
	CloseCode int  // close code observed, 0 for a generic closure
	Fatal     bool // true when the close suppresses reconnection
	Attempt   int  // reconnect attempt just scheduled, 0 when none
}

// ErrChannelClosed is returned by Open after the channel was torn down.
var ErrChannelClosed = errors.New("realtime channel closed")

const (
	defaultBackoffBase = time.Second
	defaultBackoffCap  = 10 * time.Second
	defaultMaxAttempts = 5
	eventBuffer        = 64
)

// Option configures a Channel.
type Option func(*Channel)

// WithBackoff overrides the reconnect backoff base and cap.
func WithBackoff(base, cap time.Duration) Option {
	return func(c *Channel) {
		c.backoffBase = base
		c.backoffCap = cap
	}
}

// WithMaxAttempts overrides the reconnect attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(c *Channel) { c.maxAttempts = n }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// Channel is a reconnecting websocket connection scoped to one conversation.
// At most one underlying connection exists at any time; opening a different
// conversation closes the previous connection first.
type Channel struct {
	baseURL     string
	sess        *session.Session
	logger      *slog.Logger
	dialer      *websocket.Dialer
	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int

	events chan Event
	done   chan struct{}

	// writeMu serializes writes; gorilla connections allow one writer.
	writeMu sync.Mutex

	mu        sync.Mutex
	state     State
	chatID    int64
	conn      *websocket.Conn
	gen       int // connection generation; stale callbacks compare and bail
	attempts  int
	timer     *time.Timer
	fatalCode int
	closed    bool
}

// NewChannel creates an idle channel. It does not connect until Open.
func NewChannel(baseURL string, sess *session.Session, logger *slog.Logger, opts ...Option) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{
		baseURL:     strings.TrimRight(baseURL, "/"),
		sess:        sess,
		logger:      logger.With("component", "realtime"),
		dialer:      websocket.DefaultDialer,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
		maxAttempts: defaultMaxAttempts,
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the channel the single consumer receives on.
func (c *Channel) Events() <-chan Event { return c.events }

// Done returns a channel that closes when the Channel is torn down.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Open connects to the given conversation. A missing session token is a
// precondition failure; no connection is attempted. If a connection for a
// different conversation is open or connecting it is closed first. Calling
// Open again for the conversation already connecting or open is a no-op, so
// rapid re-selection never produces duplicate sockets. Re-opening after a
// fatal close starts fresh with the attempt counter at zero.
func (c *Channel) Open(chatID int64) error {
	if c.sess == nil || strings.TrimSpace(c.sess.Token) == "" {
		return session.ErrMissingToken
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.chatID == chatID && (c.state == StateConnecting || c.state == StateOpen) {
		c.mu.Unlock()
		return nil
	}

	c.teardownConnLocked()
	c.chatID = chatID
	c.attempts = 0
	c.fatalCode = 0
	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()

	c.emit(Event{Type: EventState, ChatID: chatID, State: StateConnecting})
	go c.dial(chatID, gen)
	return nil
}

// Send transmits one message on the open connection. Empty text after
// trimming is ignored, and sending on a channel that is not open is a quiet
// no-op: the caller's message is expected to come back through the inbound
// stream, so there is nothing sensible to do with it while disconnected.
func (c *Channel) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Debug("dropping send, channel not open")
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(outboundFrame{Type: frameChatMessage, Message: text}); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Close tears the channel down: pending reconnect timers are cancelled and
// the underlying connection is closed. Safe to call multiple times.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosing
	c.teardownConnLocked()
	c.state = StateClosed
	c.mu.Unlock()

	close(c.done)
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChatID returns the conversation this channel currently belongs to.
func (c *Channel) ChatID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// Attempts returns the current reconnect attempt count.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// LastFatal returns the close code that stopped reconnection, or 0.
func (c *Channel) LastFatal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalCode
}

// dial establishes the websocket connection for one generation. A failed
// dial is treated like a generic closure and goes through the same backoff
// path a dropped connection would.
func (c *Channel) dial(chatID int64, gen int) {
	target := fmt.Sprintf("%s/ws/chat/%d/?token=%s", c.baseURL, chatID, url.QueryEscape(c.sess.Token))

	conn, resp, err := c.dialer.Dial(target, nil)
	if err != nil && resp != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		c.logger.Warn("dial failed", "chat_id", chatID, "error", err)
		c.state = StateClosed
		ev := c.scheduleReconnectLocked(chatID, 0)
		c.mu.Unlock()
		c.emit(ev)
		return
	}

	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.stopTimerLocked()
	c.mu.Unlock()

	c.logger.Info("channel open", "chat_id", chatID)
	c.emit(Event{Type: EventState, ChatID: chatID, State: StateOpen})

	go c.readLoop(conn, chatID, gen)
}

// readLoop pumps inbound frames until the connection dies, then classifies
// the closure.
func (c *Channel) readLoop(conn *websocket.Conn, chatID int64, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := 0
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code = ce.Code
			}
			c.handleClosed(conn, chatID, gen, code)
			return
		}
		c.handleFrame(chatID, gen, data)
	}
}

// handleFrame parses and dispatches one inbound frame. Malformed payloads
// are dropped; they never crash the channel.
func (c *Channel) handleFrame(chatID int64, gen int, data []byte) {
	c.mu.Lock()
	stale := gen != c.gen || c.closed
	c.mu.Unlock()
	if stale {
		return
	}

	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("dropping malformed frame", "chat_id", chatID, "error", err)
		return
	}

	switch f.Type {
	case frameChatMessage:
		if f.MessageID == 0 {
			c.logger.Warn("dropping chat_message without message_id", "chat_id", chatID)
			return
		}
		c.emit(Event{Type: EventMessage, ChatID: chatID, Message: f.WireMessage})
	case frameChatHistory:
		c.emit(Event{Type: EventHistory, ChatID: chatID, History: f.Messages})
	default:
		c.logger.Debug("ignoring inbound frame", "chat_id", chatID, "type", f.Type)
	}
}

// handleClosed records the closure and schedules a reconnect when the close
// code allows one.
func (c *Channel) handleClosed(conn *websocket.Conn, chatID int64, gen int, code int) {
	conn.Close()

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateClosed
	ev := c.scheduleReconnectLocked(chatID, code)
	c.mu.Unlock()

	c.logger.Info("channel closed",
		"chat_id", chatID, "code", code, "reason", CloseReason(code), "reconnecting", ev.Attempt > 0)
	c.emit(ev)
}

// scheduleReconnectLocked decides whether the closure warrants a retry and
// arms the backoff timer if so. Must be called with mu held. The returned
// event describes the closure for the consumer.
func (c *Channel) scheduleReconnectLocked(chatID int64, code int) Event {
	ev := Event{Type: EventState, ChatID: chatID, State: StateClosed, CloseCode: code}

	if FatalClose(code) {
		c.fatalCode = code
		ev.Fatal = true
		return ev
	}
	if c.closed || c.attempts >= c.maxAttempts {
		return ev
	}

	c.attempts++
	ev.Attempt = c.attempts
	delay := c.backoffDelay(c.attempts)
	gen := c.gen

	c.stopTimerLocked()
	c.timer = time.AfterFunc(delay, func() { c.retry(chatID, gen) })
	return ev
}

// retry redials after a backoff delay, unless the selection has moved on.
func (c *Channel) retry(chatID int64, gen int) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.chatID != chatID || c.state != StateClosed {
		c.mu.Unlock()
		return
	}
	c.gen++
	next := c.gen
	c.state = StateConnecting
	attempt := c.attempts
	c.mu.Unlock()

	c.emit(Event{Type: EventState, ChatID: chatID, State: StateConnecting, Attempt: attempt})
	c.dial(chatID, next)
}

// backoffDelay computes min(base * 2^attempt, cap).
func (c *Channel) backoffDelay(attempt int) time.Duration {
	d := c.backoffBase << uint(attempt)
	if d > c.backoffCap || d <= 0 {
		d = c.backoffCap
	}
	return d
}

// teardownConnLocked closes the current connection and cancels any pending
// reconnect, bumping the generation so stray callbacks become no-ops. Must
// be called with mu held.
func (c *Channel) teardownConnLocked() {
	c.gen++
	c.stopTimerLocked()
	if c.conn != nil {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// emit delivers an event to the consumer, giving up if the channel is torn
// down while the consumer is away.
func (c *Channel) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// ABOUTME: Conversation view model: the single read model the presentation layer observes
// ABOUTME: Merges REST history and realtime events into one ordered, de-duplicated sequence

package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/campusmarket/campus-chat/internal/api"
	"github.com/campusmarket/campus-chat/internal/dedupe"
	"github.com/campusmarket/campus-chat/internal/realtime"
	"github.com/campusmarket/campus-chat/internal/session"
)

// HistoryAPI is what the view needs from the REST client.
type HistoryAPI interface {
	ListMessages(ctx context.Context, chatID int64) ([]api.MessageRecord, error)
}

// Channel is what the view needs from the realtime layer.
type Channel interface {
	Open(chatID int64) error
	Send(text string) error
	Close()
	Events() <-chan realtime.Event
}

// Update tells the presentation layer the view changed. ScrollToLatest is
// set when new message content arrived and the message pane should follow.
type Update struct {
	ScrollToLatest bool
}

// Status is the connection and loading state of the active conversation.
type Status struct {
	Loading    bool
	LoadFailed bool
	Conn       realtime.State
	CloseCode  int
	Fatal      bool
	Attempt    int
}

// View owns exactly one realtime channel and at most one in-flight history
// load. All message state flows through it; the presentation layer only
// reads snapshots and listens for updates.
type View struct {
	dir     *Directory
	history HistoryAPI
	channel Channel
	sess    *session.Session
	logger  *slog.Logger
	ledger  *dedupe.Ledger

	updates chan Update
	done    chan struct{}

	mu            sync.Mutex
	active        int64
	messages      map[int64][]Message
	replayApplied map[int64]bool
	status        Status
	loadCancel    context.CancelFunc
	// pendingLive buffers realtime appends that land while the REST
	// history fetch for the active conversation is still in flight, so a
	// later-arriving snapshot can re-apply them instead of erasing them.
	pendingLive []Message
	closed      bool
}

// NewView wires the view model and starts consuming channel events.
func NewView(dir *Directory, history HistoryAPI, channel Channel, sess *session.Session, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	v := &View{
		dir:           dir,
		history:       history,
		channel:       channel,
		sess:          sess,
		logger:        logger.With("component", "view"),
		ledger:        dedupe.NewLedger(),
		updates:       make(chan Update, 16),
		done:          make(chan struct{}),
		messages:      make(map[int64][]Message),
		replayApplied: make(map[int64]bool),
	}
	go v.run()
	return v
}

// Updates returns the channel the presentation layer waits on.
func (v *View) Updates() <-chan Update { return v.updates }

// Done closes when the view is torn down.
func (v *View) Done() <-chan struct{} { return v.done }

// Directory exposes the conversation directory backing the sidebar.
func (v *View) Directory() *Directory { return v.dir }

// Select makes a conversation active: any pending history load for the
// previous selection is cancelled, the previous channel connection is closed
// before the new one is dialed, and the history load and socket open proceed
// concurrently. Selecting the already-active conversation is a no-op.
func (v *View) Select(ctx context.Context, chatID int64) {
	v.mu.Lock()
	if v.closed || v.active == chatID {
		v.mu.Unlock()
		return
	}
	if v.loadCancel != nil {
		v.loadCancel()
		v.loadCancel = nil
	}
	v.active = chatID
	v.replayApplied[chatID] = false
	v.pendingLive = nil
	v.status = Status{Loading: true, Conn: realtime.StateConnecting}

	loadCtx, cancel := context.WithCancel(ctx)
	v.loadCancel = cancel
	v.mu.Unlock()

	// Channel.Open closes the previous conversation's socket before dialing,
	// preserving the one-active-channel invariant.
	if err := v.channel.Open(chatID); err != nil {
		v.logger.Error("opening channel", "chat_id", chatID, "error", err)
		v.mu.Lock()
		if v.active == chatID {
			v.status.Conn = realtime.StateClosed
			if errors.Is(err, session.ErrMissingToken) {
				// Render the same way an endpoint-side 4001 close would.
				v.status.Fatal = true
				v.status.CloseCode = realtime.CloseMissingToken
			}
		}
		v.mu.Unlock()
	}

	go v.loadHistory(loadCtx, chatID)
	v.notify(false)
}

// Send passes a message to the realtime channel. There is no local echo:
// the message comes back through the inbound stream, keeping the server the
// single source of truth for ordering and identity.
func (v *View) Send(text string) {
	if err := v.channel.Send(text); err != nil {
		v.logger.Warn("send failed", "error", err)
	}
}

// ActiveID returns the currently selected conversation id, 0 for none.
func (v *View) ActiveID() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Messages returns a snapshot of the active conversation's message sequence.
func (v *View) Messages() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	msgs := v.messages[v.active]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Status returns the active conversation's loading and connection state.
func (v *View) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Close tears the view down: the pending history load is cancelled and the
// channel is closed synchronously. Safe to call multiple times.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	if v.loadCancel != nil {
		v.loadCancel()
		v.loadCancel = nil
	}
	v.mu.Unlock()

	v.channel.Close()
	close(v.done)
}

// run is the single consumer of channel events, applying them in delivery
// order.
func (v *View) run() {
	for {
		select {
		case <-v.done:
			return
		case ev := <-v.channel.Events():
			v.handleChannelEvent(ev)
		}
	}
}

func (v *View) handleChannelEvent(ev realtime.Event) {
	switch ev.Type {
	case realtime.EventState:
		v.mu.Lock()
		if v.closed || ev.ChatID != v.active {
			v.mu.Unlock()
			return
		}
		v.status.Conn = ev.State
		v.status.CloseCode = ev.CloseCode
		v.status.Fatal = ev.Fatal
		v.status.Attempt = ev.Attempt
		v.mu.Unlock()
		v.notify(false)

	case realtime.EventHistory:
		msgs := make([]Message, 0, len(ev.History))
		for _, wm := range ev.History {
			msgs = append(msgs, messageFromWire(wm, v.sess))
		}
		v.mu.Lock()
		if v.closed || ev.ChatID != v.active {
			v.mu.Unlock()
			return
		}
		// The realtime replay is authoritative: it replaces whatever the
		// REST snapshot put here and blocks a later-arriving snapshot from
		// undoing it.
		v.replayApplied[ev.ChatID] = true
		v.pendingLive = nil
		v.status.Loading = false
		v.applySnapshotLocked(ev.ChatID, msgs)
		v.mu.Unlock()
		v.notify(true)

	case realtime.EventMessage:
		v.appendIncoming(ev.ChatID, messageFromWire(ev.Message, v.sess))
	}
}

// appendIncoming de-duplicates by message id and appends in arrival order.
func (v *View) appendIncoming(chatID int64, msg Message) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if v.ledger.CheckAndMark(chatID, msg.ID) {
		v.mu.Unlock()
		v.logger.Debug("dropping duplicate message", "chat_id", chatID, "message_id", msg.ID)
		return
	}
	v.messages[chatID] = append(v.messages[chatID], msg)
	if v.status.Loading && chatID == v.active {
		v.pendingLive = append(v.pendingLive, msg)
	}
	v.mu.Unlock()
	v.notify(true)
}

// loadHistory runs the REST history fetch for one selection. The response
// is discarded if the selection has moved on by the time it lands, keyed by
// conversation id rather than arrival order.
func (v *View) loadHistory(ctx context.Context, chatID int64) {
	records, err := v.history.ListMessages(ctx, chatID)

	v.mu.Lock()
	if v.closed || v.active != chatID {
		v.mu.Unlock()
		return
	}
	v.status.Loading = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			v.mu.Unlock()
			return
		}
		// Existing messages stay on screen; only the flag flips.
		v.status.LoadFailed = true
		v.pendingLive = nil
		v.mu.Unlock()
		v.logger.Warn("history load failed", "chat_id", chatID, "error", err)
		v.notify(false)
		return
	}

	if v.replayApplied[chatID] {
		// The channel already replayed history for this conversation; the
		// REST snapshot is stale by construction.
		v.pendingLive = nil
		v.mu.Unlock()
		return
	}

	// The log endpoint returns newest first; the view reads chronologically.
	msgs := make([]Message, len(records))
	for i, rec := range records {
		msgs[len(records)-1-i] = messageFromRecord(rec, v.sess)
	}
	v.applySnapshotLocked(chatID, msgs)
	// Realtime messages that raced the fetch go back on top of the
	// snapshot; the rebuilt ledger drops any the snapshot already holds.
	for _, m := range v.pendingLive {
		if !v.ledger.CheckAndMark(chatID, m.ID) {
			v.messages[chatID] = append(v.messages[chatID], m)
		}
	}
	v.pendingLive = nil
	v.mu.Unlock()
	v.notify(true)
}

// applySnapshotLocked replaces a conversation's materialized sequence and
// rebuilds its dedupe ledger to match. Must be called with mu held.
func (v *View) applySnapshotLocked(chatID int64, msgs []Message) {
	v.ledger.Reset(chatID)
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	v.ledger.MarkAll(chatID, ids)
	v.messages[chatID] = msgs
}

// notify wakes the presentation layer without ever blocking view mutations.
func (v *View) notify(scroll bool) {
	select {
	case v.updates <- Update{ScrollToLatest: scroll}:
	default:
	}
}

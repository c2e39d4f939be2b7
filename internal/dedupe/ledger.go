// ABOUTME: Thread-safe ledger of message ids seen per conversation.
// ABOUTME: Backs view-model deduplication across history replays and reconnects.

package dedupe

import "sync"

// Ledger records which message ids have been applied to each conversation.
// Ids are unique within a conversation, not globally, so every entry is
// scoped by conversation id. The ledger lives exactly as long as the view
// that owns it; there is no expiry.
type Ledger struct {
	mu   sync.Mutex
	seen map[int64]map[int64]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[int64]map[int64]struct{})}
}

// CheckAndMark atomically checks whether a message id was already applied to
// the conversation and marks it if not. Returns true if the id was already
// seen (duplicate), false if it is new and now marked. Check and mark are a
// single critical section so two racing deliveries cannot both pass.
func (l *Ledger) CheckAndMark(conversationID, messageID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, ok := l.seen[conversationID]
	if !ok {
		ids = make(map[int64]struct{})
		l.seen[conversationID] = ids
	}

	if _, dup := ids[messageID]; dup {
		return true
	}
	ids[messageID] = struct{}{}
	return false
}

// MarkAll records a batch of message ids, used when a history snapshot
// replaces the conversation's message list wholesale.
func (l *Ledger) MarkAll(conversationID int64, messageIDs []int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, ok := l.seen[conversationID]
	if !ok {
		ids = make(map[int64]struct{}, len(messageIDs))
		l.seen[conversationID] = ids
	}
	for _, id := range messageIDs {
		ids[id] = struct{}{}
	}
}

// Reset forgets everything recorded for a conversation. Called when a
// history replay is about to replace the message list, so the ledger mirrors
// exactly what the view displays.
func (l *Ledger) Reset(conversationID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, conversationID)
}

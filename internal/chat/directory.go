// ABOUTME: Conversation directory: the sidebar's list of chats for the current user
// ABOUTME: Normalizes buyer/seller perspective and guards idempotent create-or-get

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/campusmarket/campus-chat/internal/api"
	"github.com/campusmarket/campus-chat/internal/session"
)

// DirectoryAPI is what the directory needs from the REST client.
type DirectoryAPI interface {
	ListConversations(ctx context.Context) ([]api.ChatRecord, error)
	CreateConversation(ctx context.Context, listingID int64) (*api.ChatRecord, error)
}

// Directory maintains the set of conversations visible to the current user.
type Directory struct {
	api    DirectoryAPI
	sess   *session.Session
	logger *slog.Logger

	// creating collapses concurrent create-or-get calls for the same
	// listing into one outstanding request.
	creating singleflight.Group

	mu    sync.Mutex
	convs []Conversation
}

// NewDirectory creates an empty directory.
func NewDirectory(apiClient DirectoryAPI, sess *session.Session, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		api:    apiClient,
		sess:   sess,
		logger: logger.With("component", "directory"),
	}
}

// Refresh fetches the conversation list. A transport failure is logged and
// leaves the current list untouched: an empty directory is itself a valid
// state, so absence of data is never surfaced as a blocking error.
func (d *Directory) Refresh(ctx context.Context) {
	records, err := d.api.ListConversations(ctx)
	if err != nil {
		d.logger.Warn("refreshing conversations failed", "error", err)
		return
	}

	convs := make([]Conversation, 0, len(records))
	for _, rec := range records {
		convs = append(convs, conversationFromRecord(rec, d.sess))
	}

	d.mu.Lock()
	d.convs = convs
	d.mu.Unlock()
}

// Ensure creates or retrieves the conversation for a listing. The backend
// guarantees idempotence per (user, listing); on top of that, concurrent
// local calls for the same listing share a single outstanding request, so a
// double-tap on a listing can never produce two create calls. The result is
// merged into the directory without duplicating by id.
func (d *Directory) Ensure(ctx context.Context, listingID int64) (Conversation, error) {
	v, err, _ := d.creating.Do(strconv.FormatInt(listingID, 10), func() (any, error) {
		rec, err := d.api.CreateConversation(ctx, listingID)
		if err != nil {
			return Conversation{}, fmt.Errorf("ensuring conversation for listing %d: %w", listingID, err)
		}
		return conversationFromRecord(*rec, d.sess), nil
	})
	if err != nil {
		return Conversation{}, err
	}

	conv := v.(Conversation)
	d.merge(conv)
	return conv, nil
}

// Conversations returns a snapshot of the directory in display order.
func (d *Directory) Conversations() []Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Conversation, len(d.convs))
	copy(out, d.convs)
	return out
}

// Get looks a conversation up by id.
func (d *Directory) Get(id int64) (Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.convs {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// merge inserts a conversation unless one with the same id already exists.
func (d *Directory) merge(conv Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.convs {
		if c.ID == conv.ID {
			return
		}
	}
	d.convs = append(d.convs, conv)
}

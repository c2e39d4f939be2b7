// ABOUTME: REST client for the campus marketplace chat endpoints
// ABOUTME: Covers conversation listing, idempotent create-or-get, and message history

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/campusmarket/campus-chat/internal/session"
)

// ChatRecord is a conversation as the backend serializes it. Buyer and
// seller are raw user ids; the *_details fields carry the resolved records.
type ChatRecord struct {
	ID             int64          `json:"id"`
	Listing        int64          `json:"listing"`
	Buyer          int64          `json:"buyer"`
	Seller         int64          `json:"seller"`
	BuyerDetails   *UserRecord    `json:"buyer_details"`
	SellerDetails  *UserRecord    `json:"seller_details"`
	ListingDetails *ListingRecord `json:"listing_details"`
}

// UserRecord is the backend's user shape, as embedded in chats and messages.
type UserRecord struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

// ListingRecord is the listing summary embedded in a chat.
type ListingRecord struct {
	ID    int64       `json:"id"`
	Title string      `json:"title"`
	Price json.Number `json:"price"`
	Image string      `json:"image"`
}

// MessageRecord is one entry of the durable message log.
type MessageRecord struct {
	ID        int64       `json:"id"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
	Sender    *UserRecord `json:"sender"`
}

// Client issues authenticated requests against the campus backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	sess    *session.Session
}

// New creates a REST client for the given base URL and session. A nil
// httpClient falls back to http.DefaultClient.
func New(baseURL string, sess *session.Session, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		sess:    sess,
	}
}

// ListConversations fetches all chats visible to the current user.
func (c *Client) ListConversations(ctx context.Context) ([]ChatRecord, error) {
	var chats []ChatRecord
	if err := c.get(ctx, "/api/chats/", &chats); err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return chats, nil
}

// CreateConversation performs the idempotent create-or-get for a listing.
// The backend returns the existing chat for this (user, listing) pair if one
// already exists.
func (c *Client) CreateConversation(ctx context.Context, listingID int64) (*ChatRecord, error) {
	body, err := json.Marshal(map[string]int64{"listing": listingID})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chats/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	defer resp.Body.Close()

	// 200 = existing chat returned, 201 = freshly created.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("creating chat: server returned status %d", resp.StatusCode)
	}

	var chat ChatRecord
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &chat, nil
}

// ListMessages fetches the durable message log for one chat, in the order
// the server returns it.
func (c *Client) ListMessages(ctx context.Context, chatID int64) ([]MessageRecord, error) {
	var messages []MessageRecord
	path := fmt.Sprintf("/api/chats/%d/messages/", chatID)
	if err := c.get(ctx, path, &messages); err != nil {
		return nil, fmt.Errorf("listing messages for chat %d: %w", chatID, err)
	}
	return messages, nil
}

// get issues an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.sess != nil && c.sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.sess.Token)
	}
}

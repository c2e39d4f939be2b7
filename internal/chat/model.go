// ABOUTME: Normalized conversation and message shapes shown to the presentation layer
// ABOUTME: Collapses the REST and realtime wire formats into one identifier space

package chat

import (
	"time"

	"github.com/campusmarket/campus-chat/internal/api"
	"github.com/campusmarket/campus-chat/internal/realtime"
	"github.com/campusmarket/campus-chat/internal/session"
)

// Counterpart is the other participant of a conversation, resolved from the
// buyer/seller roles relative to the current user.
type Counterpart struct {
	DisplayName string
	AvatarRef   string
}

// Subject is the listing a conversation is about.
type Subject struct {
	ID           int64
	Title        string
	PriceDisplay string
	ImageRef     string
}

// Conversation is a persistent thread with one counterpart about one
// listing. Message state is materialized separately by the View.
type Conversation struct {
	ID          int64
	Counterpart Counterpart
	Subject     Subject
}

// Message is one display-ready chat message. ID is unique within a
// conversation and is the deduplication key regardless of which wire path
// delivered the message.
type Message struct {
	ID                int64
	Text              string
	SentAt            string
	SenderDisplayName string
	IsOwn             bool
}

// senderFallback labels a message whose sender could not be resolved.
const senderFallback = "Unknown"

// conversationFromRecord normalizes a backend chat record. The counterpart
// is the buyer when the current user is the seller and vice versa; the
// user's own identity is never shown as counterpart.
func conversationFromRecord(rec api.ChatRecord, sess *session.Session) Conversation {
	var other *api.UserRecord
	var roleFallback string
	if sess != nil && sess.UserID == rec.Seller {
		other = rec.BuyerDetails
		roleFallback = "Buyer"
	} else {
		other = rec.SellerDetails
		roleFallback = "Seller"
	}

	c := Conversation{ID: rec.ID}
	if other != nil {
		c.Counterpart.DisplayName = displayName(other.Name, other.Username, roleFallback)
		c.Counterpart.AvatarRef = other.ProfilePicture
	} else {
		c.Counterpart.DisplayName = roleFallback
	}

	c.Subject.ID = rec.Listing
	if rec.ListingDetails != nil {
		c.Subject.ID = rec.ListingDetails.ID
		c.Subject.Title = rec.ListingDetails.Title
		c.Subject.PriceDisplay = priceDisplay(rec.ListingDetails.Price.String())
		c.Subject.ImageRef = rec.ListingDetails.Image
	}
	if c.Subject.Title == "" {
		c.Subject.Title = "Item"
	}
	if c.Subject.PriceDisplay == "" {
		c.Subject.PriceDisplay = priceDisplay("")
	}
	return c
}

// messageFromRecord normalizes a REST message log entry.
func messageFromRecord(rec api.MessageRecord, sess *session.Session) Message {
	m := Message{
		ID:     rec.ID,
		Text:   rec.Content,
		SentAt: displayTime(rec.Timestamp),
	}
	if rec.Sender != nil {
		m.SenderDisplayName = displayName(rec.Sender.Name, rec.Sender.Username, senderFallback)
		m.IsOwn = sess.Owns(rec.Sender.ID)
	} else {
		m.SenderDisplayName = senderFallback
	}
	return m
}

// messageFromWire normalizes a realtime frame message into the same shape.
// The realtime path names the identifier message_id and the body message;
// both land in the identifier space the REST log uses.
func messageFromWire(wm realtime.WireMessage, sess *session.Session) Message {
	m := Message{
		ID:     wm.MessageID,
		Text:   wm.Message,
		SentAt: displayTime(wm.Timestamp),
		IsOwn:  sess.Owns(wm.SenderID),
	}
	if wm.Sender != nil {
		m.SenderDisplayName = displayName(wm.Sender.Name, wm.Sender.Username, senderFallback)
		if wm.SenderID == 0 {
			m.IsOwn = sess.Owns(wm.Sender.ID)
		}
	} else {
		m.SenderDisplayName = senderFallback
	}
	return m
}

// displayName picks the first non-empty of name, username, fallback.
func displayName(name, username, fallback string) string {
	if name != "" {
		return name
	}
	if username != "" {
		return username
	}
	return fallback
}

// priceDisplay renders a raw price value the way the listing card does.
func priceDisplay(price string) string {
	if price == "" {
		price = "0"
	}
	return "$" + price
}

// displayTime converts a server timestamp to local wall-clock time for
// display. Unparseable values pass through untouched rather than hiding the
// message.
func displayTime(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		// Timestamps from servers without timezone settings lack an offset.
		if t, err = time.Parse("2006-01-02T15:04:05", ts); err != nil {
			return ts
		}
	}
	return t.Local().Format("03:04 PM")
}

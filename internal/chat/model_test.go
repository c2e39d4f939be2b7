// ABOUTME: Tests for wire-record normalization into display shapes
// ABOUTME: Covers counterpart resolution, sender fallbacks, ownership, and price display

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campusmarket/campus-chat/internal/api"
	"github.com/campusmarket/campus-chat/internal/realtime"
	"github.com/campusmarket/campus-chat/internal/session"
)

func buyerSession() *session.Session {
	return &session.Session{UserID: 9, Username: "sam", Token: "tok"}
}

func sellerSession() *session.Session {
	return &session.Session{UserID: 7, Username: "avery", Token: "tok"}
}

func sampleRecord() api.ChatRecord {
	return api.ChatRecord{
		ID:             1,
		Listing:        101,
		Buyer:          9,
		Seller:         7,
		BuyerDetails:   &api.UserRecord{ID: 9, Name: "Sam Dorsey", Username: "sam"},
		SellerDetails:  &api.UserRecord{ID: 7, Name: "Avery Chen", Username: "avery"},
		ListingDetails: &api.ListingRecord{ID: 101, Title: "Textbook", Price: "25.00", Image: "/media/1.jpg"},
	}
}

func TestConversationFromRecord_Perspective(t *testing.T) {
	rec := sampleRecord()

	asBuyer := conversationFromRecord(rec, buyerSession())
	assert.Equal(t, "Avery Chen", asBuyer.Counterpart.DisplayName,
		"buyer sees the seller as counterpart")

	asSeller := conversationFromRecord(rec, sellerSession())
	assert.Equal(t, "Sam Dorsey", asSeller.Counterpart.DisplayName,
		"seller sees the buyer as counterpart")
}

func TestConversationFromRecord_Subject(t *testing.T) {
	conv := conversationFromRecord(sampleRecord(), buyerSession())

	assert.Equal(t, int64(101), conv.Subject.ID)
	assert.Equal(t, "Textbook", conv.Subject.Title)
	assert.Equal(t, "$25.00", conv.Subject.PriceDisplay)
	assert.Equal(t, "/media/1.jpg", conv.Subject.ImageRef)
}

func TestConversationFromRecord_MissingDetails(t *testing.T) {
	rec := sampleRecord()
	rec.SellerDetails = nil
	rec.ListingDetails = nil

	conv := conversationFromRecord(rec, buyerSession())

	assert.Equal(t, "Seller", conv.Counterpart.DisplayName, "role label stands in for a missing user")
	assert.Equal(t, "Item", conv.Subject.Title)
	assert.Equal(t, "$0", conv.Subject.PriceDisplay)
	assert.Equal(t, int64(101), conv.Subject.ID, "listing id survives without details")
}

func TestConversationFromRecord_UsernameFallback(t *testing.T) {
	rec := sampleRecord()
	rec.SellerDetails.Name = ""

	conv := conversationFromRecord(rec, buyerSession())
	assert.Equal(t, "avery", conv.Counterpart.DisplayName)
}

func TestMessageFromRecord(t *testing.T) {
	rec := api.MessageRecord{
		ID:        5,
		Content:   "still available?",
		Timestamp: "2026-02-01T10:00:00Z",
		Sender:    &api.UserRecord{ID: 9, Name: "Sam Dorsey", Username: "sam"},
	}

	msg := messageFromRecord(rec, buyerSession())
	assert.Equal(t, int64(5), msg.ID)
	assert.Equal(t, "still available?", msg.Text)
	assert.True(t, msg.IsOwn)
	assert.Equal(t, "Sam Dorsey", msg.SenderDisplayName)

	asSeller := messageFromRecord(rec, sellerSession())
	assert.False(t, asSeller.IsOwn)
}

func TestMessageFromRecord_NoSender(t *testing.T) {
	msg := messageFromRecord(api.MessageRecord{ID: 5, Content: "hi"}, buyerSession())
	assert.Equal(t, "Unknown", msg.SenderDisplayName)
	assert.False(t, msg.IsOwn)
}

func TestMessageFromWire(t *testing.T) {
	wm := realtime.WireMessage{
		MessageID: 12,
		Message:   "sold!",
		Timestamp: "2026-02-01T10:05:00Z",
		SenderID:  7,
		Sender:    &realtime.Sender{ID: 7, Name: "Avery Chen", Username: "avery"},
	}

	msg := messageFromWire(wm, sellerSession())
	assert.Equal(t, int64(12), msg.ID)
	assert.Equal(t, "sold!", msg.Text)
	assert.True(t, msg.IsOwn)
	assert.Equal(t, "Avery Chen", msg.SenderDisplayName)
}

func TestMessageFromWire_SenderIDFallback(t *testing.T) {
	// Some frames omit the top-level sender_id; ownership then comes from
	// the embedded sender object.
	wm := realtime.WireMessage{
		MessageID: 12,
		Message:   "sold!",
		Sender:    &realtime.Sender{ID: 7, Username: "avery"},
	}

	assert.True(t, messageFromWire(wm, sellerSession()).IsOwn)
	assert.False(t, messageFromWire(wm, buyerSession()).IsOwn)
}

func TestMessageFromWire_NoSender(t *testing.T) {
	msg := messageFromWire(realtime.WireMessage{MessageID: 12, Message: "?"}, buyerSession())
	assert.Equal(t, "Unknown", msg.SenderDisplayName)
}

func TestPriceDisplay(t *testing.T) {
	assert.Equal(t, "$25.00", priceDisplay("25.00"))
	assert.Equal(t, "$0", priceDisplay(""))
}

func TestDisplayTime_UnparseablePassesThrough(t *testing.T) {
	assert.Equal(t, "five past noon", displayTime("five past noon"))
	assert.Equal(t, "", displayTime(""))
}

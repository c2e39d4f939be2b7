// ABOUTME: In-memory users, listings, chats, and messages for the fake backend.
// ABOUTME: Serializes records in the exact wire shapes the real backend uses.

package main

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

type user struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

type listing struct {
	ID     int64       `json:"id"`
	Title  string      `json:"title"`
	Price  json.Number `json:"price"`
	Image  string      `json:"image"`
	Seller int64       `json:"-"`
}

type chatRecord struct {
	ID             int64    `json:"id"`
	Listing        int64    `json:"listing"`
	Buyer          int64    `json:"buyer"`
	Seller         int64    `json:"seller"`
	BuyerDetails   *user    `json:"buyer_details"`
	SellerDetails  *user    `json:"seller_details"`
	ListingDetails *listing `json:"listing_details"`
}

type message struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sender    *user     `json:"sender"`
}

type store struct {
	mu        sync.Mutex
	users     map[int64]user
	listings  map[int64]listing
	chats     []*chatRecord
	messages  map[int64][]message
	nextChat  int64
	nextMsgID int64
}

func newStore() *store {
	return &store{
		users:     make(map[int64]user),
		listings:  make(map[int64]listing),
		messages:  make(map[int64][]message),
		nextChat:  1,
		nextMsgID: 1,
	}
}

// seed installs two users, two listings, and one chat with a little history
// so the TUI has something to show immediately.
func (st *store) seed() {
	st.users[7] = user{ID: 7, Name: "Avery Chen", Username: "avery"}
	st.users[9] = user{ID: 9, Name: "Sam Dorsey", Username: "sam"}

	st.listings[101] = listing{ID: 101, Title: "Intro to Algorithms (3rd ed.)", Price: "25.00", Seller: 7}
	st.listings[102] = listing{ID: 102, Title: "Dorm mini-fridge", Price: "40.00", Seller: 9}

	chat, _, _ := st.ensureChat(9, 101)
	st.appendMessage(chat.ID, 9, "Hey, is the book still available?")
	st.appendMessage(chat.ID, 7, "Yes! Pickup at the library works for me.")
}

func (st *store) user(id int64) (user, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	u, ok := st.users[id]
	return u, ok
}

func (st *store) usersSorted() []user {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]user, 0, len(st.users))
	for _, u := range st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *store) chat(id int64) (chatRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, c := range st.chats {
		if c.ID == id {
			return *c, true
		}
	}
	return chatRecord{}, false
}

func (st *store) chatsFor(userID int64) []chatRecord {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]chatRecord, 0)
	for _, c := range st.chats {
		if c.Buyer == userID || c.Seller == userID {
			out = append(out, *c)
		}
	}
	return out
}

// ensureChat is the backend's idempotence guarantee: one chat per
// (buyer, listing) pair.
func (st *store) ensureChat(buyerID, listingID int64) (chatRecord, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	lst, ok := st.listings[listingID]
	if !ok {
		return chatRecord{}, false, errors.New("unknown listing")
	}

	for _, c := range st.chats {
		if c.Listing == listingID && c.Buyer == buyerID {
			return *c, false, nil
		}
	}

	buyer := st.users[buyerID]
	seller := st.users[lst.Seller]
	rec := &chatRecord{
		ID:             st.nextChat,
		Listing:        listingID,
		Buyer:          buyerID,
		Seller:         lst.Seller,
		BuyerDetails:   &buyer,
		SellerDetails:  &seller,
		ListingDetails: &lst,
	}
	st.nextChat++
	st.chats = append(st.chats, rec)
	return *rec, true, nil
}

func (st *store) appendMessage(chatID, senderID int64, content string) message {
	st.mu.Lock()
	defer st.mu.Unlock()

	sender := st.users[senderID]
	msg := message{
		ID:        st.nextMsgID,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Sender:    &sender,
	}
	st.nextMsgID++
	st.messages[chatID] = append(st.messages[chatID], msg)
	return msg
}

// messagesNewestFirst mirrors the real backend's order_by('-timestamp').
func (st *store) messagesNewestFirst(chatID int64) []message {
	st.mu.Lock()
	defer st.mu.Unlock()
	msgs := st.messages[chatID]
	out := make([]message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}

// lastMessages returns up to n messages in chronological order, for the
// chat_history replay sent on socket connect.
func (st *store) lastMessages(chatID int64, n int) []message {
	st.mu.Lock()
	defer st.mu.Unlock()
	msgs := st.messages[chatID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]message, len(msgs))
	copy(out, msgs)
	return out
}

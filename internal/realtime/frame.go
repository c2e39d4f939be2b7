// ABOUTME: Wire frames exchanged with the chat websocket endpoint
// ABOUTME: Inbound frames are tagged by a "type" discriminator; outbound frames send one message

package realtime

// Sender is the message author identity as the endpoint serializes it.
type Sender struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// WireMessage is a single message as carried inside realtime frames. Note
// the field names differ from the REST message log (message_id vs id,
// message vs content); normalization into one identifier space happens in
// the chat package.
type WireMessage struct {
	MessageID int64   `json:"message_id"`
	Message   string  `json:"message"`
	Timestamp string  `json:"timestamp"`
	SenderID  int64   `json:"sender_id"`
	Sender    *Sender `json:"sender"`
}

// Frame type discriminators.
const (
	frameChatMessage = "chat_message"
	frameChatHistory = "chat_history"
)

// inboundFrame is the superset of fields across inbound frame types.
// chat_message carries the WireMessage fields inline; chat_history carries
// a messages array.
type inboundFrame struct {
	Type string `json:"type"`
	WireMessage
	Messages []WireMessage `json:"messages"`
}

// outboundFrame is the only frame this client sends.
type outboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

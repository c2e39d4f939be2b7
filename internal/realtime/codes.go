// ABOUTME: Close-code table shared between this client and the chat websocket endpoint
// ABOUTME: Codes 4000-4004 are a private contract; everything else is a generic closure

package realtime

// Close codes emitted by the chat websocket endpoint.
const (
	CloseServerError   = 4000 // unexpected server error
	CloseMissingToken  = 4001 // no auth token in the connect request
	CloseInvalidToken  = 4002 // invalid token or unknown user
	CloseChatNotFound  = 4003 // conversation does not exist
	CloseNotAuthorized = 4004 // user is not a participant of this conversation
)

// FatalClose reports whether a close code suppresses automatic reconnection.
// Auth and authorization failures cannot be fixed by retrying; 4003 is kept
// reconnectable because it also fires when the chat row has not landed yet
// during create-or-get.
func FatalClose(code int) bool {
	switch code {
	case CloseMissingToken, CloseInvalidToken, CloseNotAuthorized:
		return true
	}
	return false
}

// CloseReason renders a close code as a user-facing explanation.
func CloseReason(code int) string {
	switch code {
	case CloseServerError:
		return "Unexpected error occurred"
	case CloseMissingToken:
		return "Authentication token not provided"
	case CloseInvalidToken:
		return "Invalid token or user not found"
	case CloseChatNotFound:
		return "Chat not found"
	case CloseNotAuthorized:
		return "Not authorized to access this chat"
	}
	return "Connection closed"
}

// Package realtime maintains the live websocket channel backing one
// conversation at a time.
//
// # Lifecycle
//
// A Channel owns at most one underlying connection. Open dials the
// conversation's socket with the session token in the query string; closures
// are classified against the backend's private close-code table (4000-4004)
// and reconnected with capped exponential backoff unless the code is fatal
// or the attempt ceiling is reached. Close tears everything down and is safe
// to call any number of times.
//
// # Events
//
// Inbound frames and connection state transitions are delivered, in
// transport order, to a single consumer via Events:
//
//   - EventHistory: bulk ordered replacement of the message list
//   - EventMessage: a single new message to append
//   - EventState: Connecting/Open/Closed transitions with close code detail
//
// Malformed frames are dropped and logged; they never terminate the channel.
package realtime

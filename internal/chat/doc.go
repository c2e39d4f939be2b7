// Package chat is the client-side read model for marketplace conversations.
//
// # Overview
//
// The Directory maintains the list of conversations visible to the current
// user and handles the idempotent create-or-get when navigating in from a
// listing. The View merges the REST-loaded message history with realtime
// channel events into a single ordered, de-duplicated sequence per
// conversation — the only message state the presentation layer ever reads.
//
// # Merge contract
//
// History and realtime may complete in any order; the result converges:
//
//   - a realtime history replay replaces the conversation's sequence and
//     marks the conversation replayed
//   - the REST snapshot applies only if no replay has been applied
//   - single messages append in arrival order, de-duplicated by id
//   - a stale REST response for a conversation that is no longer selected
//     is discarded, keyed by conversation id
//
// Messages are never re-sorted by timestamp; server order is authoritative.
package chat

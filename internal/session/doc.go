// Package session carries the authenticated user identity and bearer token.
// Every component receives a Session explicitly; nothing reads ambient
// credential state.
package session

// Package api is the REST client for the campus marketplace backend's chat
// endpoints: conversation listing, idempotent conversation creation, and the
// durable message log. It returns wire-shaped records; normalization into
// display shapes lives in the chat package.
package api

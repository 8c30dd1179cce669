// Package api exposes the robot controller over HTTP: action submission
// endpoints that acknowledge with a command id, status and inventory
// queries, lock control and an SSE event stream. Every error response
// uses the same structured envelope.
package api

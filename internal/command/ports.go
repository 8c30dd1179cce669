// Ports (interfaces) the command pipeline needs from its collaborators.
package command

import (
	"context"
	"time"
)

// Store retains commands and is the single synchronized owner of their
// mutable state. Reads return copies.
type Store interface {
	Add(cmd Command)
	Remove(id string)
	Get(id string) (Command, bool)
	MarkRunning(id string, at time.Time)
	MarkTerminal(id string, status Status, cerr *Error, result map[string]string, at time.Time)
	Recent(limit int) []Command
}

// AuditLogger records one line per command disposition.
type AuditLogger interface {
	LogCommand(ctx context.Context, action, commandID string, params map[string]string, result string, latency time.Duration)
}

// EventPublisher fans command lifecycle events out to subscribers.
type EventPublisher interface {
	PublishCommand(eventType, commandID string, data map[string]interface{})
}

// Audit result tokens.
const (
	auditAccepted  = "ACCEPTED"
	auditRejected  = "REJECTED"
	auditSuccess   = "SUCCESS"
	auditCancelled = "CANCELLED"
)

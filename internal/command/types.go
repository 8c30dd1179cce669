package command

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a command. Transitions are monotonic:
// QUEUED -> RUNNING -> SUCCEEDED | FAILED, with QUEUED -> FAILED allowed for
// cancellation and retry exhaustion. A status never regresses.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Command is one accepted request to operate the robot.
type Command struct {
	ID          string            `json:"id"`
	Action      string            `json:"action"`
	Params      map[string]string `json:"params"`
	Status      Status            `json:"status"`
	SubmittedAt time.Time         `json:"submittedAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	FinishedAt  *time.Time        `json:"finishedAt,omitempty"`
	Result      map[string]string `json:"result,omitempty"`
	Err         *Error            `json:"error,omitempty"`
}

// Reply acknowledges an accepted command. It echoes the request and carries
// the id to poll for the outcome; it signals queued-for-processing, not
// completion.
type Reply struct {
	ID     string            `json:"id"`
	Action string            `json:"action"`
	Params map[string]string `json:"params"`
}

// Error type tokens for terminal command failures.
const (
	ErrTypeResourceUnavailable = "RESOURCE_UNAVAILABLE"
	ErrTypeDeviceError         = "DEVICE_ERROR"
	ErrTypeTimeout             = "TIMEOUT"
	ErrTypeInvalidState        = "INVALID_STATE"
	ErrTypeCancelled           = "CANCELLED"
	ErrTypeConflict            = "CONFLICT"
)

// Error type tokens for synchronous admission failures. These reproduce the
// wire contract of the device API: parameter problems, unknown methods,
// library lock and queue saturation.
const (
	ErrTypeParameter = "parameter"
	ErrTypeMethod    = "method"
	ErrTypeLock      = "lock"
	ErrTypeTaskQueue = "taskqueue"
	ErrTypeResource  = "resource"
	ErrTypeCommand   = "command"
)

// Error is the structured error record surfaced to callers, either
// synchronously at admission or attached to a FAILED command. Immutable once
// attached.
type Error struct {
	Type        string `json:"type"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	Slot        string `json:"slot,omitempty"`
	Drive       string `json:"drive,omitempty"`
	Parameter   string `json:"parameter,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Reason, e.Description)
}

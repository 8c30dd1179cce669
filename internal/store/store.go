// Package store retains commands after admission. The in-memory store is
// the authoritative record while a command is live; terminal commands are
// evicted by age and count, spilling into an optional archive so status
// queries keep answering after eviction.
package store

import (
	"context"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
)

// Archive persists terminal commands beyond the in-memory retention window.
type Archive interface {
	Save(ctx context.Context, cmd command.Command) error
	Load(ctx context.Context, id string) (command.Command, bool, error)
	Close() error
}

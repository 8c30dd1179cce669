package api

import (
	"context"
	"net/http"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
	"github.com/martinslabber/tape-library-robot-control/internal/config"
	"github.com/martinslabber/tape-library-robot-control/internal/library"
)

// CommandPort is the command service surface the API depends on.
type CommandPort interface {
	Submit(ctx context.Context, action string, params map[string]string) (*command.Reply, error)
	Status(id string) (command.Command, error)
	Cancel(ctx context.Context, id string) error
	Recent(limit int) []command.Command
	Inventory() []library.Cell
	Sensors() map[string]interface{}
	Configuration() config.Config
	CurrentState() command.State
	Lock(ctx context.Context)
	Unlock(ctx context.Context)
}

// TelemetryPort is the event stream surface the API depends on.
type TelemetryPort interface {
	Subscribe(w http.ResponseWriter, r *http.Request) error
}

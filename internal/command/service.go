package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/martinslabber/tape-library-robot-control/internal/config"
	"github.com/martinslabber/tape-library-robot-control/internal/library"
)

// State summarizes the controller for the state endpoint.
type State struct {
	Locked  bool `json:"locked"`
	Queued  int  `json:"queued"`
	Running int  `json:"running"`
	Workers int  `json:"workers"`
}

// Service is the admission and query boundary in front of the queue and
// engine. It performs no physical action itself: a valid submission is
// acknowledged the moment it is enqueued, and its outcome is retrieved
// later by id.
type Service struct {
	cfg      *config.Config
	registry *library.Registry
	queue    *Queue
	engine   *Engine
	store    Store
	audit    AuditLogger
	events   EventPublisher
}

// NewService wires the admission boundary.
func NewService(cfg *config.Config, registry *library.Registry, queue *Queue, engine *Engine, store Store, audit AuditLogger, events EventPublisher) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		queue:    queue,
		engine:   engine,
		store:    store,
		audit:    audit,
		events:   events,
	}
}

// Submit validates a request, enqueues it and returns the acknowledgement.
// All failures are synchronous and typed *Error; nothing invalid ever
// reaches the queue.
func (s *Service) Submit(ctx context.Context, action string, params map[string]string) (*Reply, error) {
	name := normalizeAction(action)

	spec, ok := actionSpecs[name]
	if !ok {
		return nil, s.reject(ctx, name, params, &Error{
			Type:        ErrTypeMethod,
			Reason:      "nosuch",
			Description: fmt.Sprintf("no such action %q", action),
		})
	}

	if cerr := spec.validateParams(params); cerr != nil {
		return nil, s.reject(ctx, name, params, cerr)
	}
	if cerr := s.checkResources(spec, params); cerr != nil {
		return nil, s.reject(ctx, name, params, cerr)
	}

	if s.registry.Locked() {
		return nil, s.reject(ctx, name, params, &Error{
			Type:        ErrTypeLock,
			Reason:      "locked",
			Description: "library is locked",
		})
	}

	cmd := Command{
		ID:          uuid.NewString(),
		Action:      name,
		Params:      copyParams(params),
		Status:      StatusQueued,
		SubmittedAt: time.Now().UTC(),
	}

	// The store must know the command before the scheduler can see it.
	s.store.Add(cmd)

	if err := s.queue.Enqueue(cmd, spec.resources(cmd.Params)); err != nil {
		s.store.Remove(cmd.ID)
		switch err {
		case ErrDuplicate:
			return nil, s.reject(ctx, name, params, &Error{
				Type:        ErrTypeConflict,
				Reason:      "duplicate",
				Description: "an equivalent command is already queued or running",
			})
		case ErrQueueFull:
			return nil, s.reject(ctx, name, params, &Error{
				Type:        ErrTypeTaskQueue,
				Reason:      "full",
				Description: "too many requests in progress",
			})
		default:
			return nil, err
		}
	}

	// A Lock racing this submission may have cleared the queue before the
	// enqueue landed. Re-check so a locked library never dispatches it.
	if s.registry.Locked() {
		if s.queue.CancelQueued(cmd.ID) {
			s.store.Remove(cmd.ID)
		}
		return nil, s.reject(ctx, name, params, &Error{
			Type:        ErrTypeLock,
			Reason:      "locked",
			Description: "library is locked",
		})
	}

	s.audit.LogCommand(ctx, name, cmd.ID, cmd.Params, auditAccepted, 0)
	s.publish("commandQueued", cmd.ID, map[string]interface{}{"action": name})
	s.engine.Signal()

	return &Reply{ID: cmd.ID, Action: name, Params: cmd.Params}, nil
}

// Status returns a command by id. Repeated queries of a terminal command
// return the identical outcome.
func (s *Service) Status(id string) (Command, error) {
	cmd, ok := s.store.Get(id)
	if !ok {
		return Command{}, &Error{
			Type:        ErrTypeCommand,
			Reason:      "unknown",
			Description: fmt.Sprintf("no command %s", id),
		}
	}
	return cmd, nil
}

// Cancel aborts a command. A queued command fails immediately with
// CANCELLED; a running command's actuator call is signalled best-effort and
// the command completes to its natural terminal state.
func (s *Service) Cancel(ctx context.Context, id string) error {
	cmd, ok := s.store.Get(id)
	if !ok {
		return &Error{
			Type:        ErrTypeCommand,
			Reason:      "unknown",
			Description: fmt.Sprintf("no command %s", id),
		}
	}
	if cmd.Status.Terminal() {
		return &Error{
			Type:        ErrTypeCommand,
			Reason:      "terminal",
			Description: fmt.Sprintf("command %s already finished as %s", id, cmd.Status),
		}
	}

	if s.queue.CancelQueued(id) {
		s.finalizeCancelled(ctx, cmd, "cancelled before execution")
		s.engine.Signal()
		return nil
	}

	s.engine.CancelRunning(id)
	return nil
}

// Recent lists retained commands, newest first.
func (s *Service) Recent(limit int) []Command {
	return s.store.Recent(limit)
}

// Inventory returns the current cell snapshot.
func (s *Service) Inventory() []library.Cell {
	return s.registry.Snapshot()
}

// Sensors reports the device sensor readout. Bypasses the library lock,
// like the other query surfaces.
func (s *Service) Sensors() map[string]interface{} {
	return s.engine.Sensors()
}

// Configuration returns a copy of the active configuration.
func (s *Service) Configuration() config.Config {
	return *s.cfg
}

// CurrentState reports lock, queue and worker state.
func (s *Service) CurrentState() State {
	return State{
		Locked:  s.registry.Locked(),
		Queued:  s.queue.Len(),
		Running: s.engine.RunningCount(),
		Workers: s.cfg.Workers,
	}
}

// Lock stops admission and clears the pending queue; queued commands fail
// with CANCELLED. Commands already running complete normally.
func (s *Service) Lock(ctx context.Context) {
	s.registry.Lock()
	for _, id := range s.queue.Clear() {
		if cmd, ok := s.store.Get(id); ok {
			s.finalizeCancelled(ctx, cmd, "cleared by library lock")
		}
	}
	s.publish("libraryLocked", "", nil)
}

// Unlock resumes admission. No side effect when already unlocked.
func (s *Service) Unlock(ctx context.Context) {
	s.registry.Unlock()
	s.publish("libraryUnlocked", "", nil)
	s.engine.Signal()
}

// checkResources verifies that every cell parameter names an existing cell
// of the right kind. Unknown cells are misdirected requests: this instance
// cannot service them.
func (s *Service) checkResources(spec actionSpec, params map[string]string) *Error {
	for _, p := range spec.params {
		id := params[p.name]

		kind, err := s.registry.KindOf(id)
		if err != nil {
			cerr := &Error{
				Type:        ErrTypeResource,
				Reason:      "unserviceable",
				Description: fmt.Sprintf("no %s %q in this library", p.name, id),
			}
			if expectsDrive(p) {
				cerr.Drive = id
			} else {
				cerr.Slot = id
			}
			return cerr
		}

		if !kindAllowed(kind, p.kinds) {
			return &Error{
				Type:        ErrTypeParameter,
				Reason:      "kind",
				Description: fmt.Sprintf("%q is a %s, parameter %s requires a %s", id, kind, p.name, kindList(p.kinds)),
				Parameter:   p.name,
			}
		}
	}
	return nil
}

func (s *Service) finalizeCancelled(ctx context.Context, cmd Command, description string) {
	cerr := &Error{
		Type:        ErrTypeCancelled,
		Reason:      "cancelled",
		Description: description,
	}
	s.store.MarkTerminal(cmd.ID, StatusFailed, cerr, nil, time.Now().UTC())
	s.audit.LogCommand(ctx, cmd.Action, cmd.ID, cmd.Params, auditCancelled, 0)
	s.publish("commandFailed", cmd.ID, map[string]interface{}{
		"errorType":   cerr.Type,
		"errorReason": cerr.Reason,
	})
}

func (s *Service) reject(ctx context.Context, action string, params map[string]string, cerr *Error) *Error {
	s.audit.LogCommand(ctx, action, "", params, auditRejected+":"+cerr.Type, 0)
	return cerr
}

func (s *Service) publish(eventType, commandID string, data map[string]interface{}) {
	if s.events != nil {
		s.events.PublishCommand(eventType, commandID, data)
	}
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func expectsDrive(p paramSpec) bool {
	return len(p.kinds) == 1 && p.kinds[0] == library.KindDrive
}

func kindAllowed(kind library.Kind, allowed []library.Kind) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

func kindList(kinds []library.Kind) string {
	switch len(kinds) {
	case 0:
		return "cell"
	case 1:
		return string(kinds[0])
	default:
		out := string(kinds[0])
		for _, k := range kinds[1:] {
			out += " or " + string(k)
		}
		return out
	}
}

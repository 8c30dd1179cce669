package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/martinslabber/tape-library-robot-control/internal/actuator"
	"github.com/martinslabber/tape-library-robot-control/internal/config"
	"github.com/martinslabber/tape-library-robot-control/internal/library"
)

// dispatched pairs a scheduled command with the context a Cancel call can
// abort.
type dispatched struct {
	cmd QueuedCommand
	ctx context.Context
}

// Engine schedules queued commands onto a fixed pool of workers. Commands
// with disjoint resource sets run concurrently; conflicting commands are
// serialized by the registry reservation itself.
type Engine struct {
	registry *library.Registry
	act      actuator.Actuator
	queue    *Queue
	store    Store
	audit    AuditLogger
	events   EventPublisher
	cfg      *config.Config

	wake     chan struct{}
	dispatch chan dispatched
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewEngine creates an execution engine. Call Start before submitting work.
func NewEngine(registry *library.Registry, act actuator.Actuator, queue *Queue, store Store, audit AuditLogger, events EventPublisher, cfg *config.Config) *Engine {
	return &Engine{
		registry: registry,
		act:      act,
		queue:    queue,
		store:    store,
		audit:    audit,
		events:   events,
		cfg:      cfg,
		wake:     make(chan struct{}, 1),
		dispatch: make(chan dispatched),
		done:     make(chan struct{}),
		running:  make(map[string]context.CancelFunc),
	}
}

// Start launches the scheduler and worker goroutines.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.scheduleLoop()

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.workerLoop()
	}
}

// Stop aborts running commands and waits for all goroutines to exit.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)

		e.mu.Lock()
		for _, cancel := range e.running {
			cancel()
		}
		e.mu.Unlock()
	})
	e.wg.Wait()
}

// Signal requests a scheduling pass. Non-blocking; passes coalesce.
func (e *Engine) Signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// CancelRunning aborts a running command's actuator call, best-effort. If
// the physical action is already irreversible the command completes to its
// natural terminal state.
func (e *Engine) CancelRunning(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cancel, ok := e.running[id]
	if ok {
		cancel()
	}
	return ok
}

// RunningCount returns the number of commands currently executing.
func (e *Engine) RunningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// Sensors returns the device sensor readout. Actuators without a sensor
// surface report an empty readout.
func (e *Engine) Sensors() map[string]interface{} {
	if s, ok := e.act.(interface{ Sensors() map[string]interface{} }); ok {
		return s.Sensors()
	}
	return map[string]interface{}{}
}

// scheduleLoop runs a scheduling pass whenever woken by an enqueue, a
// completion, a cancellation or an unlock. The ticker is a safety net only;
// workers never busy-spin.
func (e *Engine) scheduleLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-e.wake:
		case <-ticker.C:
		}
		e.schedulePass()
	}
}

// schedulePass dispatches every command that is ready, in submission order,
// and finalizes commands whose reservation retry budget expired. While the
// library is locked nothing dispatches and no retry budget is consumed.
func (e *Engine) schedulePass() {
	if e.registry.Locked() {
		return
	}

	ready, exhausted := e.queue.DequeueReady(func(resources []string) error {
		return e.registry.Reserve(resources...)
	})

	for _, ex := range exhausted {
		e.failExhausted(ex)
	}
	for i, qc := range ready {
		if !e.startCommand(qc) {
			for _, rest := range ready[i+1:] {
				e.registry.Release(rest.Resources...)
			}
			return
		}
	}
}

// startCommand transitions a reserved command to RUNNING and hands it to a
// worker. Returns false when the engine is shutting down; the reservation is
// released so a restart sees a clean registry.
func (e *Engine) startCommand(qc QueuedCommand) bool {
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.running[qc.ID] = cancel
	e.mu.Unlock()

	now := time.Now().UTC()
	e.store.MarkRunning(qc.ID, now)
	e.publish("commandStarted", qc.ID, nil)

	select {
	case e.dispatch <- dispatched{cmd: qc, ctx: ctx}:
		return true
	case <-e.done:
		cancel()
		e.unregister(qc.ID)
		e.registry.Release(qc.Resources...)
		return false
	}
}

func (e *Engine) workerLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.done:
			return
		case d := <-e.dispatch:
			e.execute(d)
			e.Signal() // freed resources may unblock queued commands
		}
	}
}

// execute runs one command to its terminal state. Resources are released on
// every path, including device faults, timeouts and panics in bookkeeping.
func (e *Engine) execute(d dispatched) {
	cmd, ok := e.store.Get(d.cmd.ID)
	if !ok {
		e.registry.Release(d.cmd.Resources...)
		e.unregister(d.cmd.ID)
		return
	}

	defer e.registry.Release(d.cmd.Resources...)
	defer e.unregister(d.cmd.ID)
	defer e.queue.Forget(d.cmd.ID)

	start := time.Now()
	ctx, cancel := context.WithTimeout(d.ctx, e.timeoutFor(cmd.Action))
	defer cancel()

	result, cerr := e.perform(ctx, cmd)

	now := time.Now().UTC()
	latency := time.Since(start)

	// On the timeout and cancel paths ctx is already done; the audit record
	// must still reach the journal and the stream.
	auditCtx := context.WithoutCancel(ctx)

	if cerr != nil {
		e.store.MarkTerminal(cmd.ID, StatusFailed, cerr, nil, now)
		e.audit.LogCommand(auditCtx, cmd.Action, cmd.ID, cmd.Params, cerr.Type, latency)
		e.publish("commandFailed", cmd.ID, map[string]interface{}{
			"errorType":   cerr.Type,
			"errorReason": cerr.Reason,
		})
		return
	}

	e.store.MarkTerminal(cmd.ID, StatusSucceeded, nil, result, now)
	e.audit.LogCommand(auditCtx, cmd.Action, cmd.ID, cmd.Params, auditSuccess, latency)
	e.publish("commandSucceeded", cmd.ID, nil)
}

// perform validates occupancy preconditions and invokes the actuator.
func (e *Engine) perform(ctx context.Context, cmd Command) (map[string]string, *Error) {
	if src, dst, ok := route(cmd.Action, cmd.Params); ok {
		return nil, e.performMove(ctx, cmd, src, dst)
	}

	switch cmd.Action {
	case "scan":
		return e.performScan(ctx, cmd, cmd.Params["slot"])
	case "park":
		if err := e.act.Park(ctx); err != nil {
			return nil, e.actuatorError(cmd, err, "")
		}
		return nil, nil
	default:
		// Unreachable: admission only enqueues declared actions.
		return nil, &Error{
			Type:        ErrTypeDeviceError,
			Reason:      "internal",
			Description: fmt.Sprintf("no executor for action %q", cmd.Action),
		}
	}
}

func (e *Engine) performMove(ctx context.Context, cmd Command, src, dst string) *Error {
	if _, occupied, err := e.registry.Occupant(src); err == nil && !occupied {
		return e.invalidState(cmd, src, "empty", fmt.Sprintf("%s is empty", src))
	}
	if _, occupied, err := e.registry.Occupant(dst); err == nil && occupied {
		return e.invalidState(cmd, dst, "occupied", fmt.Sprintf("%s is not empty", dst))
	}

	if err := e.act.Move(ctx, src, dst); err != nil {
		return e.actuatorError(cmd, err, src)
	}

	if err := e.registry.ApplyMove(src, dst); err != nil {
		// The physical move succeeded but the registry view disagrees;
		// surface it rather than guessing at occupancy.
		return e.invalidState(cmd, src, "drift", err.Error())
	}
	return nil
}

func (e *Engine) performScan(ctx context.Context, cmd Command, cell string) (map[string]string, *Error) {
	media, present, err := e.act.Scan(ctx, cell)
	if err != nil {
		return nil, e.actuatorError(cmd, err, cell)
	}

	if err := e.registry.ApplyScan(cell, media, present); err != nil {
		return nil, e.invalidState(cmd, cell, "drift", err.Error())
	}

	result := map[string]string{"present": "false"}
	if present {
		result["present"] = "true"
		result["media"] = media
	}
	return result, nil
}

// actuatorError maps a failed actuator call to the command's terminal Error.
// Deadline expiry becomes TIMEOUT, context cancellation CANCELLED, anything
// else goes through the vendor normalization tables.
func (e *Engine) actuatorError(cmd Command, err error, cell string) *Error {
	slot, drive := e.attribute(cmd, cell)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{
			Type:        ErrTypeTimeout,
			Reason:      "deadline",
			Description: fmt.Sprintf("%s exceeded the %v timeout", cmd.Action, e.timeoutFor(cmd.Action)),
			Slot:        slot,
			Drive:       drive,
		}
	case errors.Is(err, context.Canceled):
		return &Error{
			Type:        ErrTypeCancelled,
			Reason:      "aborted",
			Description: "command aborted during execution",
			Slot:        slot,
			Drive:       drive,
		}
	}

	norm := actuator.NormalizeWithVendor(err, nil, e.vendor())
	cerr := &Error{
		Type:        ErrTypeDeviceError,
		Reason:      "device",
		Description: err.Error(),
		Slot:        slot,
		Drive:       drive,
	}
	if errors.Is(norm, actuator.ErrInvalidState) {
		cerr.Type = ErrTypeInvalidState
		cerr.Reason = "occupancy"
	}
	return cerr
}

func (e *Engine) invalidState(cmd Command, cell, reason, description string) *Error {
	slot, drive := e.attribute(cmd, cell)
	return &Error{
		Type:        ErrTypeInvalidState,
		Reason:      reason,
		Description: description,
		Slot:        slot,
		Drive:       drive,
	}
}

// attribute fills the Error's slot/drive fields from the offending cell.
func (e *Engine) attribute(cmd Command, cell string) (slot, drive string) {
	if cell == "" {
		return "", ""
	}
	if kind, err := e.registry.KindOf(cell); err == nil && kind == library.KindDrive {
		return "", cell
	}
	return cell, ""
}

// failExhausted finalizes a command whose reservation retries ran out.
func (e *Engine) failExhausted(qc *QueuedCommand) {
	cmd, ok := e.store.Get(qc.ID)
	if !ok {
		return
	}

	cerr := &Error{
		Type:        ErrTypeResourceUnavailable,
		Reason:      "contention",
		Description: fmt.Sprintf("resources still reserved after %d scheduling passes", qc.Retries),
	}
	if len(qc.Resources) > 0 {
		cerr.Slot, cerr.Drive = e.attribute(cmd, qc.Resources[0])
	}

	e.store.MarkTerminal(qc.ID, StatusFailed, cerr, nil, time.Now().UTC())
	e.audit.LogCommand(context.Background(), cmd.Action, cmd.ID, cmd.Params, cerr.Type, 0)
	e.publish("commandFailed", cmd.ID, map[string]interface{}{
		"errorType":   cerr.Type,
		"errorReason": cerr.Reason,
	})
}

func (e *Engine) timeoutFor(action string) time.Duration {
	spec, ok := actionSpecs[action]
	if !ok {
		return e.cfg.CommandTimeoutMove
	}
	switch spec.class {
	case classScan:
		return e.cfg.CommandTimeoutScan
	case classPark:
		return e.cfg.CommandTimeoutPark
	default:
		return e.cfg.CommandTimeoutMove
	}
}

func (e *Engine) vendor() string {
	if v, ok := e.act.(interface{ GetVendor() string }); ok && v.GetVendor() != "" {
		return v.GetVendor()
	}
	return "generic"
}

func (e *Engine) unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cancel, ok := e.running[id]; ok {
		cancel()
		delete(e.running, id)
	}
}

func (e *Engine) publish(eventType, commandID string, data map[string]interface{}) {
	if e.events != nil {
		e.events.PublishCommand(eventType, commandID, data)
	}
}

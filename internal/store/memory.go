package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
)

// Memory is the in-process command store. It is the single synchronized
// owner of command state: mutations go through MarkRunning/MarkTerminal and
// reads return copies. Command sub-fields (Params, Result, Err, timestamps)
// are write-once, so a struct copy is a safe snapshot.
type Memory struct {
	mu       sync.Mutex
	commands map[string]*command.Command
	order    []string // insertion order, drives retention
	maxCount int
	maxAge   time.Duration
	archive  Archive
	now      func() time.Time
}

// Compile-time assertion that Memory satisfies the pipeline's store port.
var _ command.Store = (*Memory)(nil)

// NewMemory creates a store retaining at most maxCount commands, dropping
// terminal commands older than maxAge. archive may be nil.
func NewMemory(maxCount int, maxAge time.Duration, archive Archive) *Memory {
	return &Memory{
		commands: make(map[string]*command.Command),
		maxCount: maxCount,
		maxAge:   maxAge,
		archive:  archive,
		now:      time.Now,
	}
}

// Add registers a freshly accepted command.
func (m *Memory) Add(cmd command.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commands[cmd.ID] = &cmd
	m.order = append(m.order, cmd.ID)
	m.evictLocked()
}

// Remove drops a command that failed late admission. Not used for terminal
// eviction, which goes through retention.
func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.commands, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Get returns a command by id, consulting the archive for commands already
// evicted from memory.
func (m *Memory) Get(id string) (command.Command, bool) {
	m.mu.Lock()
	if cmd, ok := m.commands[id]; ok {
		out := *cmd
		m.mu.Unlock()
		return out, true
	}
	m.mu.Unlock()

	if m.archive == nil {
		return command.Command{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cmd, ok, err := m.archive.Load(ctx, id)
	if err != nil {
		slog.Error("archive_load_failed", "command_id", id, "error", err)
		return command.Command{}, false
	}
	return cmd, ok
}

// MarkRunning transitions a command to RUNNING. Terminal commands are left
// untouched: status never regresses.
func (m *Memory) MarkRunning(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd, ok := m.commands[id]
	if !ok || cmd.Status.Terminal() {
		return
	}
	cmd.Status = command.StatusRunning
	started := at
	cmd.StartedAt = &started
}

// MarkTerminal records the final outcome. The first terminal transition
// wins; later calls are ignored so cancellation and completion cannot race
// into a double transition.
func (m *Memory) MarkTerminal(id string, status command.Status, cerr *command.Error, result map[string]string, at time.Time) {
	m.mu.Lock()

	cmd, ok := m.commands[id]
	if !ok || cmd.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	cmd.Status = status
	cmd.Err = cerr
	cmd.Result = result
	finished := at
	cmd.FinishedAt = &finished
	snapshot := *cmd
	m.evictLocked()
	m.mu.Unlock()

	if m.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.archive.Save(ctx, snapshot); err != nil {
			slog.Error("archive_save_failed", "command_id", id, "error", err)
		}
	}
}

// Recent returns retained commands, newest first.
func (m *Memory) Recent(limit int) []command.Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.order) {
		limit = len(m.order)
	}
	out := make([]command.Command, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		if cmd, ok := m.commands[m.order[i]]; ok {
			out = append(out, *cmd)
		}
	}
	return out
}

// Len reports the number of retained commands.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}

// evictLocked enforces the retention policy. Only terminal commands are
// eligible: live commands stay whatever their age.
func (m *Memory) evictLocked() {
	cutoff := m.now().Add(-m.maxAge)

	kept := m.order[:0]
	for _, id := range m.order {
		cmd, ok := m.commands[id]
		if !ok {
			continue
		}
		evict := cmd.Status.Terminal() && cmd.FinishedAt != nil && cmd.FinishedAt.Before(cutoff)
		if evict {
			delete(m.commands, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept

	if len(m.order) <= m.maxCount {
		return
	}
	// Over budget: drop oldest terminal commands first.
	excess := len(m.order) - m.maxCount
	kept = m.order[:0]
	for _, id := range m.order {
		cmd := m.commands[id]
		if excess > 0 && cmd.Status.Terminal() {
			delete(m.commands, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

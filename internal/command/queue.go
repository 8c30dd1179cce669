package command

import (
	"errors"
	"sync"
	"time"
)

// Queue admission sentinels.
var (
	ErrQueueFull = errors.New("queue full")
	ErrDuplicate = errors.New("duplicate in-flight command")
)

// queueItem is the queue's private view of a pending command.
type queueItem struct {
	id          string
	fingerprint string
	resources   []string
	submittedAt time.Time
	retries     int
}

// QueuedCommand is what the scheduler receives for a dispatchable or
// retry-exhausted command.
type QueuedCommand struct {
	ID        string
	Resources []string
	Retries   int
}

// Queue holds accepted-but-unexecuted commands in submission order and
// tracks in-flight fingerprints for duplicate rejection. It is safe for
// concurrent use.
type Queue struct {
	mu         sync.Mutex
	depth      int
	retryLimit int
	items      []*queueItem
	inflight   map[string]string // fingerprint -> command id, QUEUED or RUNNING
	fpByID     map[string]string
}

// NewQueue creates a queue bounded to depth pending commands, with
// retryLimit scheduling passes allowed per command before it fails with
// RESOURCE_UNAVAILABLE.
func NewQueue(depth, retryLimit int) *Queue {
	return &Queue{
		depth:      depth,
		retryLimit: retryLimit,
		inflight:   make(map[string]string),
		fpByID:     make(map[string]string),
	}
}

// Enqueue accepts a command. It fails with ErrDuplicate when an identical
// (action, params) command is already queued or running, and ErrQueueFull
// when the depth limit is reached.
func (q *Queue) Enqueue(cmd Command, resources []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.depth {
		return ErrQueueFull
	}
	fp := fingerprint(cmd.Action, cmd.Params)
	if _, dup := q.inflight[fp]; dup {
		return ErrDuplicate
	}

	q.items = append(q.items, &queueItem{
		id:          cmd.ID,
		fingerprint: fp,
		resources:   resources,
		submittedAt: cmd.SubmittedAt,
	})
	q.inflight[fp] = cmd.ID
	q.fpByID[cmd.ID] = fp
	return nil
}

// DequeueReady scans pending commands in submission order and removes every
// command whose reservation succeeds, along with any commands whose retry
// budget expired during the scan.
//
// A command may only overtake earlier commands whose resource sets are
// disjoint from its own: the resources of every earlier still-pending
// command are treated as blocked, so execution order equals submission order
// whenever two commands touch the same cell. A command left blocked consumes
// one unit of its retry budget per pass, however many commands the same pass
// dispatches.
func (q *Queue) DequeueReady(tryReserve func(resources []string) error) (ready []QueuedCommand, exhausted []*QueuedCommand) {
	q.mu.Lock()
	defer q.mu.Unlock()

	blocked := make(map[string]bool)
	kept := q.items[:0]

	for _, it := range q.items {
		dispatchable := !touches(it.resources, blocked)
		if dispatchable {
			if err := tryReserve(it.resources); err != nil {
				dispatchable = false
			}
		}

		if dispatchable {
			ready = append(ready, QueuedCommand{ID: it.id, Resources: it.resources, Retries: it.retries})
			continue // dropped from kept: dispatched
		}

		it.retries++
		if it.retries > q.retryLimit {
			q.forgetLocked(it.id)
			exhausted = append(exhausted, &QueuedCommand{ID: it.id, Resources: it.resources, Retries: it.retries})
			continue
		}
		for _, res := range it.resources {
			blocked[res] = true
		}
		kept = append(kept, it)
	}

	// Zero dropped tail entries so the backing array does not pin them.
	for j := len(kept); j < len(q.items); j++ {
		q.items[j] = nil
	}
	q.items = kept
	return ready, exhausted
}

// CancelQueued removes a pending command. It reports false when the command
// is not queued (already dispatched or unknown).
func (q *Queue) CancelQueued(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if it.id == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.forgetLocked(id)
			return true
		}
	}
	return false
}

// Clear removes every pending command and returns their ids. Used when the
// library is locked.
func (q *Queue) Clear() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, 0, len(q.items))
	for _, it := range q.items {
		ids = append(ids, it.id)
		q.forgetLocked(it.id)
	}
	q.items = nil
	return ids
}

// Forget releases a command's duplicate fingerprint once it reaches a
// terminal state.
func (q *Queue) Forget(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.forgetLocked(id)
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) forgetLocked(id string) {
	if fp, ok := q.fpByID[id]; ok {
		delete(q.inflight, fp)
		delete(q.fpByID, id)
	}
}

func touches(resources []string, blocked map[string]bool) bool {
	for _, res := range resources {
		if blocked[res] {
			return true
		}
	}
	return false
}

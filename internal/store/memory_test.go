package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
)

func newCmd(id string) command.Command {
	return command.Command{
		ID:          id,
		Action:      "scan",
		Params:      map[string]string{"slot": "s0000"},
		Status:      command.StatusQueued,
		SubmittedAt: time.Now().UTC(),
	}
}

func TestAddGetRemove(t *testing.T) {
	m := NewMemory(16, time.Hour, nil)

	m.Add(newCmd("c1"))
	got, ok := m.Get("c1")
	require.True(t, ok)
	assert.Equal(t, command.StatusQueued, got.Status)

	_, ok = m.Get("c2")
	assert.False(t, ok)

	m.Remove("c1")
	_, ok = m.Get("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewMemory(16, time.Hour, nil)
	m.Add(newCmd("c1"))

	got, _ := m.Get("c1")
	got.Status = command.StatusSucceeded

	again, _ := m.Get("c1")
	assert.Equal(t, command.StatusQueued, again.Status, "mutating a read copy leaked into the store")
}

func TestMarkRunningThenTerminal(t *testing.T) {
	m := NewMemory(16, time.Hour, nil)
	m.Add(newCmd("c1"))

	started := time.Now().UTC()
	m.MarkRunning("c1", started)
	got, _ := m.Get("c1")
	require.Equal(t, command.StatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)

	finished := time.Now().UTC()
	m.MarkTerminal("c1", command.StatusSucceeded, nil, map[string]string{"present": "true"}, finished)
	got, _ = m.Get("c1")
	assert.Equal(t, command.StatusSucceeded, got.Status)
	assert.Equal(t, "true", got.Result["present"])
	require.NotNil(t, got.FinishedAt)
}

func TestFirstTerminalTransitionWins(t *testing.T) {
	m := NewMemory(16, time.Hour, nil)
	m.Add(newCmd("c1"))

	cerr := &command.Error{Type: command.ErrTypeCancelled, Reason: "cancelled"}
	m.MarkTerminal("c1", command.StatusFailed, cerr, nil, time.Now().UTC())

	// A racing success must not overwrite the cancellation.
	m.MarkTerminal("c1", command.StatusSucceeded, nil, map[string]string{"present": "true"}, time.Now().UTC())
	got, _ := m.Get("c1")
	assert.Equal(t, command.StatusFailed, got.Status)
	require.NotNil(t, got.Err)
	assert.Equal(t, command.ErrTypeCancelled, got.Err.Type)
	assert.Nil(t, got.Result)

	// Nor does a late MarkRunning regress it.
	m.MarkRunning("c1", time.Now().UTC())
	got, _ = m.Get("c1")
	assert.Equal(t, command.StatusFailed, got.Status)
}

func TestRetentionCountEvictsOldestTerminal(t *testing.T) {
	m := NewMemory(2, time.Hour, nil)

	for _, id := range []string{"c1", "c2", "c3"} {
		m.Add(newCmd(id))
		m.MarkTerminal(id, command.StatusSucceeded, nil, nil, time.Now().UTC())
	}

	_, ok := m.Get("c1")
	assert.False(t, ok, "oldest terminal command survived retention")
	_, ok = m.Get("c2")
	assert.True(t, ok)
	_, ok = m.Get("c3")
	assert.True(t, ok)
}

func TestRetentionNeverEvictsLiveCommands(t *testing.T) {
	m := NewMemory(2, time.Hour, nil)

	m.Add(newCmd("live1"))
	m.Add(newCmd("live2"))
	m.Add(newCmd("live3"))

	// Over budget but nothing is terminal: all three stay.
	assert.Equal(t, 3, m.Len())

	m.MarkTerminal("live1", command.StatusSucceeded, nil, nil, time.Now().UTC())
	m.Add(newCmd("live4"))
	_, ok := m.Get("live1")
	assert.False(t, ok, "terminal command kept while over budget")
	for _, id := range []string{"live2", "live3", "live4"} {
		_, ok := m.Get(id)
		assert.True(t, ok, "live command %s evicted", id)
	}
}

func TestRetentionAgeEviction(t *testing.T) {
	m := NewMemory(16, time.Minute, nil)
	current := time.Now().UTC()
	m.now = func() time.Time { return current }

	m.Add(newCmd("old"))
	m.MarkTerminal("old", command.StatusSucceeded, nil, nil, current)

	current = current.Add(2 * time.Minute)
	m.Add(newCmd("fresh")) // triggers an eviction pass

	_, ok := m.Get("old")
	assert.False(t, ok, "aged-out terminal command survived")
	_, ok = m.Get("fresh")
	assert.True(t, ok)
}

func TestRecentNewestFirst(t *testing.T) {
	m := NewMemory(16, time.Hour, nil)
	for _, id := range []string{"c1", "c2", "c3"} {
		m.Add(newCmd(id))
	}

	recent := m.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "c3", recent[0].ID)
	assert.Equal(t, "c1", recent[2].ID)

	recent = m.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c3", recent[0].ID)
}

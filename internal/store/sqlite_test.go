package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
)

func newArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	a, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "commands.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func terminalCmd(id string, status command.Status) command.Command {
	submitted := time.Now().UTC().Truncate(time.Microsecond)
	started := submitted.Add(10 * time.Millisecond)
	finished := started.Add(250 * time.Millisecond)
	return command.Command{
		ID:          id,
		Action:      "load",
		Params:      map[string]string{"slot": "s0000", "drive": "d0000"},
		Status:      status,
		SubmittedAt: submitted,
		StartedAt:   &started,
		FinishedAt:  &finished,
	}
}

func TestArchiveSaveLoadRoundTrip(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	cmd := terminalCmd("c1", command.StatusFailed)
	cmd.Err = &command.Error{
		Type:        command.ErrTypeInvalidState,
		Reason:      "occupied",
		Description: "d0000 is not empty",
		Drive:       "d0000",
	}
	require.NoError(t, a.Save(ctx, cmd))

	got, ok, err := a.Load(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, cmd.ID, got.ID)
	assert.Equal(t, cmd.Action, got.Action)
	assert.Equal(t, cmd.Params, got.Params)
	assert.Equal(t, cmd.Status, got.Status)
	require.NotNil(t, got.Err)
	assert.Equal(t, cmd.Err.Type, got.Err.Type)
	assert.Equal(t, cmd.Err.Drive, got.Err.Drive)
	assert.True(t, cmd.SubmittedAt.Equal(got.SubmittedAt))
	require.NotNil(t, got.FinishedAt)
	assert.True(t, cmd.FinishedAt.Equal(*got.FinishedAt))
}

func TestArchiveSaveResult(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	cmd := terminalCmd("c2", command.StatusSucceeded)
	cmd.Action = "scan"
	cmd.Params = map[string]string{"slot": "s0001"}
	cmd.Result = map[string]string{"present": "true", "media": "TAPE042"}
	require.NoError(t, a.Save(ctx, cmd))

	got, ok, err := a.Load(ctx, "c2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cmd.Result, got.Result)
	assert.Nil(t, got.Err)
}

func TestArchiveRejectsLiveCommand(t *testing.T) {
	a := newArchive(t)

	cmd := terminalCmd("c3", command.StatusRunning)
	err := a.Save(context.Background(), cmd)
	require.Error(t, err)
}

func TestArchiveLoadMissing(t *testing.T) {
	a := newArchive(t)

	_, ok, err := a.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArchiveSaveIsUpsert(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	cmd := terminalCmd("c4", command.StatusSucceeded)
	require.NoError(t, a.Save(ctx, cmd))
	require.NoError(t, a.Save(ctx, cmd))

	got, ok, err := a.Load(ctx, "c4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, command.StatusSucceeded, got.Status)
}

func TestMemorySpillsToArchive(t *testing.T) {
	a := newArchive(t)
	m := NewMemory(1, time.Hour, a)

	m.Add(newCmd("spilled"))
	m.MarkTerminal("spilled", command.StatusSucceeded, nil, nil, time.Now().UTC())

	// A second terminal command pushes the first out of memory.
	m.Add(newCmd("fresh"))
	m.MarkTerminal("fresh", command.StatusSucceeded, nil, nil, time.Now().UTC())

	got, ok := m.Get("spilled")
	require.True(t, ok, "evicted command not found in archive")
	assert.Equal(t, command.StatusSucceeded, got.Status)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
)

// schema for the command archive. Terminal commands only; the live queue
// never touches disk.
const schema = `
CREATE TABLE IF NOT EXISTS commands (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    params TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('SUCCEEDED', 'FAILED')),
    error TEXT,
    result TEXT,
    submitted_at TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_commands_finished_at ON commands(finished_at);
`

// SQLiteArchive persists terminal commands in a local SQLite database.
type SQLiteArchive struct {
	db *sql.DB
}

var _ Archive = (*SQLiteArchive)(nil)

// NewSQLiteArchive opens (and if needed creates) the archive database.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	slog.Info("archive_init", "db_path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	return &SQLiteArchive{db: db}, nil
}

// Close closes the database.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// Save upserts a terminal command.
func (a *SQLiteArchive) Save(ctx context.Context, cmd command.Command) error {
	if !cmd.Status.Terminal() {
		return fmt.Errorf("refusing to archive non-terminal command %s (%s)", cmd.ID, cmd.Status)
	}

	params, err := json.Marshal(cmd.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	var errJSON, resultJSON sql.NullString
	if cmd.Err != nil {
		b, err := json.Marshal(cmd.Err)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		errJSON = sql.NullString{String: string(b), Valid: true}
	}
	if cmd.Result != nil {
		b, err := json.Marshal(cmd.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT OR REPLACE INTO commands
			(id, action, params, status, error, result, submitted_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = a.db.ExecContext(ctx, query,
		cmd.ID, cmd.Action, string(params), string(cmd.Status),
		errJSON, resultJSON,
		formatTime(&cmd.SubmittedAt), formatTimePtr(cmd.StartedAt), formatTimePtr(cmd.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert command %s: %w", cmd.ID, err)
	}
	return nil
}

// Load fetches an archived command by id.
func (a *SQLiteArchive) Load(ctx context.Context, id string) (command.Command, bool, error) {
	query := `
		SELECT id, action, params, status, error, result, submitted_at, started_at, finished_at
		FROM commands WHERE id = ?
	`

	var cmd command.Command
	var params, status, submittedAt string
	var errJSON, resultJSON, startedAt, finishedAt sql.NullString
	row := a.db.QueryRowContext(ctx, query, id)
	err := row.Scan(&cmd.ID, &cmd.Action, &params, &status, &errJSON, &resultJSON,
		&submittedAt, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return command.Command{}, false, nil
	}
	if err != nil {
		return command.Command{}, false, fmt.Errorf("query command %s: %w", id, err)
	}

	cmd.Status = command.Status(status)
	if err := json.Unmarshal([]byte(params), &cmd.Params); err != nil {
		return command.Command{}, false, fmt.Errorf("unmarshal params for %s: %w", id, err)
	}
	if errJSON.Valid {
		cmd.Err = &command.Error{}
		if err := json.Unmarshal([]byte(errJSON.String), cmd.Err); err != nil {
			return command.Command{}, false, fmt.Errorf("unmarshal error for %s: %w", id, err)
		}
	}
	if resultJSON.Valid {
		if err := json.Unmarshal([]byte(resultJSON.String), &cmd.Result); err != nil {
			return command.Command{}, false, fmt.Errorf("unmarshal result for %s: %w", id, err)
		}
	}

	if ts, err := time.Parse(time.RFC3339Nano, submittedAt); err == nil {
		cmd.SubmittedAt = ts
	}
	cmd.StartedAt = parseTimePtr(startedAt)
	cmd.FinishedAt = parseTimePtr(finishedAt)

	return cmd, true, nil
}

func formatTime(t *time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &ts
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is a single audit record, one JSON line in the journal.
type Entry struct {
	Timestamp time.Time         `json:"ts"`
	CommandID string            `json:"commandId"`
	Action    string            `json:"action"`
	Params    map[string]string `json:"params,omitempty"`
	Outcome   string            `json:"outcome"`
	LatencyMS int64             `json:"latencyMs"`
}

// Journal writes audit entries to an append-only JSONL file. When a
// Kafka producer is attached, each entry is also streamed best-effort:
// a broker outage never blocks or fails command processing.
type Journal struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	producer *Producer
	logger   *slog.Logger
}

// NewJournal opens (creating if needed) logDir/audit.jsonl for appending.
func NewJournal(logDir string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	filePath := filepath.Join(logDir, "audit.jsonl")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		filePath: filePath,
		file:     file,
		logger:   logger,
	}, nil
}

// AttachProducer enables streaming of subsequent entries to Kafka.
func (j *Journal) AttachProducer(p *Producer) {
	j.mu.Lock()
	j.producer = p
	j.mu.Unlock()
}

// LogCommand records one command event: admission (ACCEPTED, REJECTED)
// or completion (SUCCESS, an error type, CANCELLED).
func (j *Journal) LogCommand(ctx context.Context, action, commandID string, params map[string]string, result string, latency time.Duration) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		CommandID: commandID,
		Action:    action,
		Params:    params,
		Outcome:   result,
		LatencyMS: latency.Milliseconds(),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		j.logger.Error("audit marshal failed", "error", err, "commandId", commandID)
		return
	}

	j.mu.Lock()
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		j.logger.Error("audit write failed", "error", err, "path", j.filePath)
	}
	producer := j.producer
	j.mu.Unlock()

	if producer != nil {
		if err := producer.Produce(ctx, []byte(commandID), line); err != nil {
			j.logger.Warn("audit stream failed", "error", err, "commandId", commandID)
		}
	}
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the controller.
type Config struct {
	// HTTP server
	ListenAddr   string        `env:"TLR_ADDR" json:"listenAddr"`
	ReadTimeout  time.Duration `env:"TLR_HTTP_READ_TIMEOUT" json:"readTimeout"`
	WriteTimeout time.Duration `env:"TLR_HTTP_WRITE_TIMEOUT" json:"writeTimeout"`
	IdleTimeout  time.Duration `env:"TLR_HTTP_IDLE_TIMEOUT" json:"idleTimeout"`

	// Execution engine
	Workers            int `env:"TLR_WORKERS" json:"workers"`
	QueueDepth         int `env:"TLR_QUEUE_DEPTH" json:"queueDepth"`
	ReserveRetryBudget int `env:"TLR_RESERVE_RETRY_BUDGET" json:"reserveRetryBudget"`

	// Command timeout classes. Moves travel the whole library, scans stay
	// at one cell, park returns the picker home.
	CommandTimeoutMove time.Duration `env:"TLR_TIMEOUT_MOVE" json:"commandTimeoutMove"`
	CommandTimeoutScan time.Duration `env:"TLR_TIMEOUT_SCAN" json:"commandTimeoutScan"`
	CommandTimeoutPark time.Duration `env:"TLR_TIMEOUT_PARK" json:"commandTimeoutPark"`

	// Command retention
	RetentionCount int           `env:"TLR_RETENTION_COUNT" json:"retentionCount"`
	RetentionAge   time.Duration `env:"TLR_RETENTION_AGE" json:"retentionAge"`
	ArchivePath    string        `env:"TLR_ARCHIVE_PATH" json:"archivePath"`

	// Telemetry
	EventBufferSize int `env:"TLR_EVENT_BUFFER_SIZE" json:"eventBufferSize"`

	// Audit
	AuditDir     string   `env:"TLR_AUDIT_DIR" json:"auditDir"`
	KafkaBrokers []string `env:"TLR_KAFKA_BROKERS" envSeparator:"," json:"kafkaBrokers"`
	KafkaTopic   string   `env:"TLR_KAFKA_TOPIC" json:"kafkaTopic"`

	// Inventory description; empty means the built-in default layout.
	InventoryFile string `env:"TLR_INVENTORY_FILE" json:"inventoryFile"`
}

// Baseline returns the compiled-in defaults.
func Baseline() *Config {
	return &Config{
		ListenAddr:   ":8000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,

		Workers:            2,
		QueueDepth:         64,
		ReserveRetryBudget: 50,

		CommandTimeoutMove: 30 * time.Second,
		CommandTimeoutScan: 10 * time.Second,
		CommandTimeoutPark: 20 * time.Second,

		RetentionCount: 512,
		RetentionAge:   24 * time.Hour,

		EventBufferSize: 50,

		AuditDir: "logs",
	}
}

// Load merges Baseline, TLR_* environment overrides and an optional
// config.json, then validates the result.
func Load() (*Config, error) {
	cfg := Baseline()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if _, err := os.Stat("config.json"); err == nil {
		fileCfg, err := loadFromFile("config.json")
		if err != nil {
			return nil, fmt.Errorf("load config.json: %w", err)
		}
		merge(cfg, fileCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("queue depth must be at least 1, got %d", c.QueueDepth)
	}
	if c.ReserveRetryBudget < 1 {
		return fmt.Errorf("reserve retry budget must be at least 1, got %d", c.ReserveRetryBudget)
	}
	for name, d := range map[string]time.Duration{
		"move": c.CommandTimeoutMove,
		"scan": c.CommandTimeoutScan,
		"park": c.CommandTimeoutPark,
	} {
		if d <= 0 {
			return fmt.Errorf("command timeout %q must be positive, got %v", name, d)
		}
	}
	if c.RetentionCount < 1 {
		return fmt.Errorf("retention count must be at least 1, got %d", c.RetentionCount)
	}
	if c.RetentionAge <= 0 {
		return fmt.Errorf("retention age must be positive, got %v", c.RetentionAge)
	}
	if c.EventBufferSize < 1 {
		return fmt.Errorf("event buffer size must be at least 1, got %d", c.EventBufferSize)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("kafka topic required when brokers are configured")
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge overlays non-zero fields of src onto dst. File values win over
// environment values.
func merge(dst, src *Config) {
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.ReadTimeout > 0 {
		dst.ReadTimeout = src.ReadTimeout
	}
	if src.WriteTimeout > 0 {
		dst.WriteTimeout = src.WriteTimeout
	}
	if src.IdleTimeout > 0 {
		dst.IdleTimeout = src.IdleTimeout
	}
	if src.Workers > 0 {
		dst.Workers = src.Workers
	}
	if src.QueueDepth > 0 {
		dst.QueueDepth = src.QueueDepth
	}
	if src.ReserveRetryBudget > 0 {
		dst.ReserveRetryBudget = src.ReserveRetryBudget
	}
	if src.CommandTimeoutMove > 0 {
		dst.CommandTimeoutMove = src.CommandTimeoutMove
	}
	if src.CommandTimeoutScan > 0 {
		dst.CommandTimeoutScan = src.CommandTimeoutScan
	}
	if src.CommandTimeoutPark > 0 {
		dst.CommandTimeoutPark = src.CommandTimeoutPark
	}
	if src.RetentionCount > 0 {
		dst.RetentionCount = src.RetentionCount
	}
	if src.RetentionAge > 0 {
		dst.RetentionAge = src.RetentionAge
	}
	if src.ArchivePath != "" {
		dst.ArchivePath = src.ArchivePath
	}
	if src.EventBufferSize > 0 {
		dst.EventBufferSize = src.EventBufferSize
	}
	if src.AuditDir != "" {
		dst.AuditDir = src.AuditDir
	}
	if len(src.KafkaBrokers) > 0 {
		dst.KafkaBrokers = src.KafkaBrokers
	}
	if src.KafkaTopic != "" {
		dst.KafkaTopic = src.KafkaTopic
	}
	if src.InventoryFile != "" {
		dst.InventoryFile = src.InventoryFile
	}
}

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig holds the Kafka streaming settings.
type ProducerConfig struct {
	// Brokers is the list of broker addresses (host:port).
	Brokers []string

	// Topic receives one message per audit entry, keyed by command ID.
	Topic string

	// MaxAttempts bounds retries on transient produce errors. Defaults to 3.
	MaxAttempts int

	// WriteTimeout is the per-attempt write deadline. Defaults to 5s.
	WriteTimeout time.Duration
}

// Producer wraps a kafka-go Writer with bounded retries. Messages with
// the same key land on the same partition, so per-command records stay
// ordered.
type Producer struct {
	writer      *kafka.Writer
	maxAttempts int
	timeout     time.Duration
}

// NewProducer constructs a Producer. Brokers and Topic are required.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &Producer{
		writer:      w,
		maxAttempts: cfg.MaxAttempts,
		timeout:     cfg.WriteTimeout,
	}, nil
}

// Produce writes one message, retrying with exponential backoff on
// transient failures. The error returned is the last attempt's.
func (p *Producer) Produce(ctx context.Context, key, value []byte) error {
	var lastErr error
	backoff := 100 * time.Millisecond

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		msg := kafka.Message{
			Key:   key,
			Value: value,
			Time:  time.Now().UTC(),
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("kafka: produce failed after %d attempts: %w", p.maxAttempts, lastErr)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

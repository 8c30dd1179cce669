// Package audit records every command admission and outcome as append-only
// JSONL, and optionally streams the same records to a Kafka topic for
// fleet-wide collection.
package audit

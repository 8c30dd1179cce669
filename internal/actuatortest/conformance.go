// Package actuatortest provides a vendor-agnostic conformance suite for
// actuator implementations. Every backend, simulated or physical, must
// report occupancy faults with the same normalized error classes so the
// engine can attribute failures uniformly.
package actuatortest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/martinslabber/tape-library-robot-control/internal/actuator"
)

// Layout tells the suite which cells it may exercise.
type Layout struct {
	// OccupiedA and OccupiedB hold media at the start of the run.
	OccupiedA string
	OccupiedB string
	// EmptyCell holds no media at the start of the run.
	EmptyCell string
	// Vendor selects the error normalization table.
	Vendor string
}

// Run exercises one actuator against the conformance cases. newActuator
// must return a fresh instance in the declared layout for each case.
func Run(t *testing.T, newActuator func() actuator.Actuator, layout Layout) {
	t.Helper()

	t.Run("MoveRoundTrip", func(t *testing.T) {
		act := newActuator()
		ctx := context.Background()

		if err := act.Move(ctx, layout.OccupiedA, layout.EmptyCell); err != nil {
			t.Fatalf("move %s -> %s: %v", layout.OccupiedA, layout.EmptyCell, err)
		}
		if err := act.Move(ctx, layout.EmptyCell, layout.OccupiedA); err != nil {
			t.Fatalf("move back %s -> %s: %v", layout.EmptyCell, layout.OccupiedA, err)
		}
	})

	t.Run("MoveFromEmptyIsInvalidState", func(t *testing.T) {
		act := newActuator()
		err := act.Move(context.Background(), layout.EmptyCell, layout.OccupiedA)
		if err == nil {
			t.Fatalf("move from empty cell %s succeeded", layout.EmptyCell)
		}
		if norm := actuator.NormalizeWithVendor(err, nil, layout.Vendor); !errors.Is(norm, actuator.ErrInvalidState) {
			t.Fatalf("empty source normalized to %v, want INVALID_STATE", norm)
		}
	})

	t.Run("MoveToOccupiedIsInvalidState", func(t *testing.T) {
		act := newActuator()
		err := act.Move(context.Background(), layout.OccupiedA, layout.OccupiedB)
		if err == nil {
			t.Fatalf("move onto occupied cell %s succeeded", layout.OccupiedB)
		}
		if norm := actuator.NormalizeWithVendor(err, nil, layout.Vendor); !errors.Is(norm, actuator.ErrInvalidState) {
			t.Fatalf("occupied destination normalized to %v, want INVALID_STATE", norm)
		}
		// The cartridge must be back in its source after the refusal.
		media, present, err := act.Scan(context.Background(), layout.OccupiedA)
		if err != nil || !present || media == "" {
			t.Fatalf("source %s after refused move: media=%q present=%v err=%v", layout.OccupiedA, media, present, err)
		}
	})

	t.Run("ScanReportsOccupancy", func(t *testing.T) {
		act := newActuator()
		ctx := context.Background()

		media, present, err := act.Scan(ctx, layout.OccupiedA)
		if err != nil {
			t.Fatalf("scan %s: %v", layout.OccupiedA, err)
		}
		if !present || media == "" {
			t.Fatalf("scan %s: present=%v media=%q, want occupied", layout.OccupiedA, present, media)
		}

		_, present, err = act.Scan(ctx, layout.EmptyCell)
		if err != nil {
			t.Fatalf("scan %s: %v", layout.EmptyCell, err)
		}
		if present {
			t.Fatalf("scan %s reported media in an empty cell", layout.EmptyCell)
		}
	})

	t.Run("ParkIsIdempotent", func(t *testing.T) {
		act := newActuator()
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			if err := act.Park(ctx); err != nil {
				t.Fatalf("park attempt %d: %v", i+1, err)
			}
		}
	})

	t.Run("MoveHonorsContext", func(t *testing.T) {
		act := newActuator()
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		err := act.Move(ctx, layout.OccupiedA, layout.EmptyCell)
		if err == nil {
			t.Fatal("move with expired context succeeded")
		}
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			t.Fatalf("expired context returned %v", err)
		}
	})
}

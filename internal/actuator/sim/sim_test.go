package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/martinslabber/tape-library-robot-control/internal/actuator"
	"github.com/martinslabber/tape-library-robot-control/internal/actuatortest"
)

func benchCells() []Cell {
	return []Cell{
		{ID: "s0000", Media: "TAPE001"},
		{ID: "s0001", Media: "TAPE002"},
		{ID: "s0002"},
		{ID: "a0000"},
		{ID: "d0000"},
	}
}

func TestSimulatorConformance(t *testing.T) {
	actuatortest.Run(t, func() actuator.Actuator {
		return New(benchCells())
	}, actuatortest.Layout{
		OccupiedA: "s0000",
		OccupiedB: "s0001",
		EmptyCell: "s0002",
		Vendor:    "sim",
	})
}

func TestMoveTransfersMedia(t *testing.T) {
	s := New(benchCells())

	if err := s.Move(context.Background(), "s0000", "d0000"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := s.Media("d0000"); got != "TAPE001" {
		t.Fatalf("drive media %q, want TAPE001", got)
	}
	if got := s.Media("s0000"); got != "" {
		t.Fatalf("source media %q, want empty", got)
	}
}

func TestMoveUnknownCell(t *testing.T) {
	s := New(benchCells())

	err := s.Move(context.Background(), "s0000", "x9999")
	if err == nil || !strings.Contains(err.Error(), "UNKNOWN_CELL") {
		t.Fatalf("move to unknown cell: %v, want UNKNOWN_CELL", err)
	}
}

func TestInjectedFaultFiresOnce(t *testing.T) {
	s := New(benchCells())
	fault := errors.New("PICKER_JAM at column 4")
	s.SetFault(fault)

	if err := s.Move(context.Background(), "s0000", "d0000"); !errors.Is(err, fault) {
		t.Fatalf("faulted move: %v, want injected fault", err)
	}
	if got := s.Media("s0000"); got != "TAPE001" {
		t.Fatalf("source media %q after fault, want untouched", got)
	}

	// The fault is consumed; the retry goes through.
	if err := s.Move(context.Background(), "s0000", "d0000"); err != nil {
		t.Fatalf("move after fault: %v", err)
	}
}

func TestScan(t *testing.T) {
	s := New(benchCells())

	media, present, err := s.Scan(context.Background(), "s0001")
	if err != nil || !present || media != "TAPE002" {
		t.Fatalf("scan occupied: media=%q present=%v err=%v", media, present, err)
	}

	media, present, err = s.Scan(context.Background(), "s0002")
	if err != nil || present || media != "" {
		t.Fatalf("scan empty: media=%q present=%v err=%v", media, present, err)
	}

	if _, _, err := s.Scan(context.Background(), "x9999"); err == nil {
		t.Fatal("scan of unknown cell succeeded")
	}
}

func TestSensorsTrackPickerAndOccupancy(t *testing.T) {
	s := New(benchCells())

	got := s.Sensors()
	if got["pickerX"] != 0 || got["pickerY"] != 0 {
		t.Fatalf("picker not home at start: %v", got)
	}
	if got["cells"] != 5 || got["occupied"] != 2 {
		t.Fatalf("sensors %v, want 5 cells with 2 occupied", got)
	}

	if err := s.Move(context.Background(), "s0000", "s0002"); err != nil {
		t.Fatalf("move: %v", err)
	}
	got = s.Sensors()
	// s0002 sits at column 0, row 2 of the storage grid.
	if got["pickerX"] != 4 || got["pickerY"] != 2 {
		t.Fatalf("picker %v after move, want x=4 y=2", got)
	}
	if got["occupied"] != 2 {
		t.Fatalf("occupied %v after move, want unchanged", got["occupied"])
	}
}

func TestCancelledMoveReturnsCartridge(t *testing.T) {
	s := New(benchCells())
	s.StepDelay = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Move(ctx, "s0000", "d0000"); err == nil {
		t.Fatal("cancelled move succeeded")
	}
	if got := s.Media("s0000"); got != "TAPE001" {
		t.Fatalf("source media %q after abort, want TAPE001 back in place", got)
	}
}

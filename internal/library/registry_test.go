package library

import (
	"errors"
	"sync"
	"testing"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry([]Spec{
		{ID: "s0000", Kind: KindSlot, Media: "TAPE001"},
		{ID: "s0001", Kind: KindSlot},
		{ID: "a0000", Kind: KindAccess},
		{ID: "d0000", Kind: KindDrive},
		{ID: "d0001", Kind: KindDrive},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestNewRegistryRejectsBadInventory(t *testing.T) {
	tests := []struct {
		name  string
		specs []Spec
	}{
		{"empty", nil},
		{"empty id", []Spec{{ID: "", Kind: KindSlot}}},
		{"unknown kind", []Spec{{ID: "x0000", Kind: Kind("tray")}}},
		{"duplicate id", []Spec{{ID: "s0000", Kind: KindSlot}, {ID: "s0000", Kind: KindSlot}}},
		{"loaded drive", []Spec{{ID: "d0000", Kind: KindDrive, Media: "TAPE001"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.specs); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestReserveAllOrNothing(t *testing.T) {
	r := testRegistry(t)

	if err := r.Reserve("s0000", "d0000"); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	// Second claim names one free and one held cell; the free one must not
	// be claimed as a side effect.
	err := r.Reserve("s0001", "d0000")
	if !errors.Is(err, ErrAlreadyReserved) {
		t.Fatalf("overlapping reserve: %v, want ErrAlreadyReserved", err)
	}
	if r.IsReserved("s0001") {
		t.Fatal("s0001 was claimed by a failed reservation")
	}

	err = r.Reserve("nope", "s0001")
	if !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("unknown cell reserve: %v, want ErrUnknownResource", err)
	}
	if r.IsReserved("s0001") {
		t.Fatal("s0001 was claimed by a failed reservation")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := testRegistry(t)

	if err := r.Reserve("s0000"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	r.Release("s0000")
	r.Release("s0000")
	r.Release("unknown")

	if err := r.Reserve("s0000"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestConcurrentReserveNeverDoubleClaims(t *testing.T) {
	r := testRegistry(t)

	const attempts = 64
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Reserve("s0000", "d0000"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("%d concurrent reservations succeeded, want exactly 1", won)
	}
}

func TestApplyMove(t *testing.T) {
	r := testRegistry(t)

	if err := r.ApplyMove("s0000", "d0000"); err != nil {
		t.Fatalf("move: %v", err)
	}
	media, occupied, err := r.Occupant("d0000")
	if err != nil || !occupied || media != "TAPE001" {
		t.Fatalf("destination after move: media=%q occupied=%v err=%v", media, occupied, err)
	}
	if _, occupied, _ := r.Occupant("s0000"); occupied {
		t.Fatal("source still occupied after move")
	}

	if err := r.ApplyMove("s0000", "d0001"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("move from empty: %v, want ErrEmpty", err)
	}
	if err := r.ApplyMove("d0000", "d0000"); !errors.Is(err, ErrOccupied) {
		t.Fatalf("move onto occupied: %v, want ErrOccupied", err)
	}
}

func TestApplyScanCorrectsOccupancy(t *testing.T) {
	r := testRegistry(t)

	if err := r.ApplyScan("s0001", "TAPE099", true); err != nil {
		t.Fatalf("scan: %v", err)
	}
	media, occupied, _ := r.Occupant("s0001")
	if !occupied || media != "TAPE099" {
		t.Fatalf("after scan: media=%q occupied=%v", media, occupied)
	}

	if err := r.ApplyScan("s0001", "", false); err != nil {
		t.Fatalf("scan empty: %v", err)
	}
	if _, occupied, _ := r.Occupant("s0001"); occupied {
		t.Fatal("cell still occupied after empty scan")
	}
}

func TestSnapshotSortedCopies(t *testing.T) {
	r := testRegistry(t)

	cells := r.Snapshot()
	if len(cells) != 5 {
		t.Fatalf("snapshot holds %d cells, want 5", len(cells))
	}
	for i := 1; i < len(cells); i++ {
		if cells[i-1].ID >= cells[i].ID {
			t.Fatalf("snapshot not sorted: %s before %s", cells[i-1].ID, cells[i].ID)
		}
	}

	// Mutating the copy must not leak into the registry.
	cells[0].Media = "MUTATED"
	if media, _, _ := r.Occupant(cells[0].ID); media == "MUTATED" {
		t.Fatal("snapshot shares state with the registry")
	}
}

func TestLockState(t *testing.T) {
	r := testRegistry(t)

	if r.Locked() {
		t.Fatal("new registry is locked")
	}
	r.Lock()
	if !r.Locked() {
		t.Fatal("registry not locked after Lock")
	}
	// Reservations keep working while locked; only admission stops.
	if err := r.Reserve("s0000"); err != nil {
		t.Fatalf("reserve while locked: %v", err)
	}
	r.Unlock()
	r.Unlock()
	if r.Locked() {
		t.Fatal("registry locked after Unlock")
	}
}

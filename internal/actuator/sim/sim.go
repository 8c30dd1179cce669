// Package sim provides a simulated library robot for tests and bench
// deployments. It models picker travel time across the cell grid and fails
// with the same token vocabulary a real robot reports, so the error
// normalization tables are exercised end to end.
package sim

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/martinslabber/tape-library-robot-control/internal/actuator"
)

// Cell seeds one simulated cell.
type Cell struct {
	ID    string
	Media string
}

// Simulator implements actuator.Actuator against an in-memory cell grid.
type Simulator struct {
	actuator.Base

	mu     sync.Mutex
	cells  map[string]*simCell
	picker position

	// StepDelay is the travel time per grid step. Zero keeps tests fast.
	StepDelay time.Duration

	// OperationDelay is added to every operation, before any travel.
	// Tests use it to exceed command timeouts.
	OperationDelay time.Duration

	// fault, when set, fails the next operation and is then cleared.
	fault error
}

type simCell struct {
	media string
	pos   position
}

type position struct{ x, y int }

// New creates a simulator holding the given cells.
func New(cells []Cell) *Simulator {
	s := &Simulator{
		Base:  actuator.Base{DeviceID: "sim-robot", Vendor: "sim"},
		cells: make(map[string]*simCell, len(cells)),
	}
	for _, c := range cells {
		s.cells[c.ID] = &simCell{media: c.Media, pos: cellPosition(c.ID)}
	}
	return s
}

// SetFault makes the next operation fail with err. Passing nil clears it.
func (s *Simulator) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

// Move carries a cartridge from source to destination.
func (s *Simulator) Move(ctx context.Context, source, destination string) error {
	if err := s.wait(ctx, s.OperationDelay); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(); err != nil {
		return err
	}

	src, ok := s.cells[source]
	if !ok {
		return fmt.Errorf("UNKNOWN_CELL: %s", source)
	}
	dst, ok := s.cells[destination]
	if !ok {
		return fmt.Errorf("UNKNOWN_CELL: %s", destination)
	}

	if err := s.travelLocked(ctx, src.pos); err != nil {
		return err
	}
	if src.media == "" {
		return fmt.Errorf("SOURCE_EMPTY: %s has no cartridge", source)
	}
	carried := src.media
	src.media = ""

	if err := s.travelLocked(ctx, dst.pos); err != nil {
		src.media = carried // picker returns the cartridge on abort
		return err
	}
	if dst.media != "" {
		src.media = carried
		return fmt.Errorf("DESTINATION_OCCUPIED: %s is not empty", destination)
	}
	dst.media = carried
	return nil
}

// Scan reads the barcode at a cell.
func (s *Simulator) Scan(ctx context.Context, cell string) (string, bool, error) {
	if err := s.wait(ctx, s.OperationDelay); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(); err != nil {
		return "", false, err
	}

	c, ok := s.cells[cell]
	if !ok {
		return "", false, fmt.Errorf("UNKNOWN_CELL: %s", cell)
	}
	if err := s.travelLocked(ctx, c.pos); err != nil {
		return "", false, err
	}
	return c.media, c.media != "", nil
}

// Park returns the picker to its home position.
func (s *Simulator) Park(ctx context.Context) error {
	if err := s.wait(ctx, s.OperationDelay); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFault(); err != nil {
		return err
	}
	return s.travelLocked(ctx, position{})
}

// Sensors reports the picker position and occupancy counters, the readout a
// physical robot exposes on its service port.
func (s *Simulator) Sensors() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	occupied := 0
	for _, c := range s.cells {
		if c.media != "" {
			occupied++
		}
	}
	return map[string]interface{}{
		"pickerX":  s.picker.x,
		"pickerY":  s.picker.y,
		"cells":    len(s.cells),
		"occupied": occupied,
	}
}

// Media reports the cartridge currently in a cell. Test helper.
func (s *Simulator) Media(cell string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cells[cell]; ok {
		return c.media
	}
	return ""
}

func (s *Simulator) takeFault() error {
	if s.fault != nil {
		err := s.fault
		s.fault = nil
		return err
	}
	return nil
}

// travelLocked moves the picker to pos, sleeping StepDelay per grid step.
// Called with s.mu held.
func (s *Simulator) travelLocked(ctx context.Context, pos position) error {
	steps := abs(pos.x-s.picker.x) + abs(pos.y-s.picker.y)
	if err := s.wait(ctx, time.Duration(steps)*s.StepDelay); err != nil {
		return err
	}
	s.picker = pos
	return nil
}

func (s *Simulator) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cellPosition derives grid coordinates from the conventional cell naming
// (s<col><row>, a<col><row>, d<col><row>, two digits each). Drives sit near
// home, access slots next, storage slots in the main grid.
func cellPosition(id string) position {
	if len(id) != 5 {
		return position{}
	}
	col, err1 := strconv.Atoi(id[1:3])
	row, err2 := strconv.Atoi(id[3:5])
	if err1 != nil || err2 != nil {
		return position{}
	}
	switch id[0] {
	case 'd':
		return position{x: 1, y: row * 2}
	case 'a':
		return position{x: 2, y: row}
	default:
		return position{x: 4 + col, y: row}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

package library

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Kind classifies a cell.
type Kind string

const (
	KindSlot   Kind = "slot"
	KindAccess Kind = "access"
	KindDrive  Kind = "drive"
)

// Spec describes one cell at registry initialization.
type Spec struct {
	ID    string
	Kind  Kind
	Media string
}

// Cell is the registry's view of a single slot or drive.
type Cell struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Media    string `json:"media,omitempty"`
	Reserved bool   `json:"reserved"`
}

// Registry sentinel errors.
var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrAlreadyReserved = errors.New("already reserved")
	ErrEmpty           = errors.New("cell is empty")
	ErrOccupied        = errors.New("cell is occupied")
)

// Registry holds the live occupancy and reservation state of every cell.
// It is initialized once from the device inventory and mutated only through
// its methods.
type Registry struct {
	mu     sync.RWMutex
	cells  map[string]*Cell
	locked bool
}

// NewRegistry builds a registry from the discovered inventory.
func NewRegistry(specs []Spec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("inventory declares no cells")
	}

	cells := make(map[string]*Cell, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("inventory cell with empty id")
		}
		switch spec.Kind {
		case KindSlot, KindAccess, KindDrive:
		default:
			return nil, fmt.Errorf("inventory cell %s has unknown kind %q", spec.ID, spec.Kind)
		}
		if _, dup := cells[spec.ID]; dup {
			return nil, fmt.Errorf("inventory declares cell %s twice", spec.ID)
		}
		if spec.Media != "" && spec.Kind == KindDrive {
			// Drives start empty; cartridges live in slots until loaded.
			return nil, fmt.Errorf("inventory drive %s declares media %s", spec.ID, spec.Media)
		}
		cells[spec.ID] = &Cell{ID: spec.ID, Kind: spec.Kind, Media: spec.Media}
	}

	return &Registry{cells: cells}, nil
}

// Exists reports whether a cell id is part of the inventory.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cells[id]
	return ok
}

// KindOf returns the kind of a cell.
func (r *Registry) KindOf(id string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cell, ok := r.cells[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	return cell.Kind, nil
}

// Reserve claims every listed cell for one command. The claim is
// all-or-nothing: if any cell is unknown or already reserved, nothing is
// held and the caller must retry on a later scheduling pass.
func (r *Registry) Reserve(ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		cell, ok := r.cells[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownResource, id)
		}
		if cell.Reserved {
			return fmt.Errorf("%w: %s", ErrAlreadyReserved, id)
		}
	}
	for _, id := range ids {
		r.cells[id].Reserved = true
	}
	return nil
}

// Release frees the listed cells. Releasing a free cell is a no-op, so
// terminal paths can release unconditionally.
func (r *Registry) Release(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if cell, ok := r.cells[id]; ok {
			cell.Reserved = false
		}
	}
}

// IsReserved reports the reservation state of a cell.
func (r *Registry) IsReserved(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cell, ok := r.cells[id]
	return ok && cell.Reserved
}

// Occupant returns the cartridge in a cell, if any.
func (r *Registry) Occupant(id string) (media string, occupied bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cell, ok := r.cells[id]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	return cell.Media, cell.Media != "", nil
}

// ApplyMove transfers occupancy from src to dst after the actuator confirmed
// the physical move. Only the execution engine calls this.
func (r *Registry) ApplyMove(src, dst string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from, ok := r.cells[src]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, src)
	}
	to, ok := r.cells[dst]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, dst)
	}
	if from.Media == "" {
		return fmt.Errorf("%w: %s", ErrEmpty, src)
	}
	if to.Media != "" {
		return fmt.Errorf("%w: %s", ErrOccupied, dst)
	}

	to.Media = from.Media
	from.Media = ""
	return nil
}

// ApplyScan records the cartridge reported by a barcode scan.
func (r *Registry) ApplyScan(id, media string, present bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cell, ok := r.cells[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	if present {
		cell.Media = media
	} else {
		cell.Media = ""
	}
	return nil
}

// Snapshot returns a copy of every cell, sorted by id.
func (r *Registry) Snapshot() []Cell {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cells := make([]Cell, 0, len(r.cells))
	for _, cell := range r.cells {
		cells = append(cells, *cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID < cells[j].ID })
	return cells
}

// Lock stops admission of new motion commands until Unlock. Occupancy and
// reservation state are unaffected; commands already running complete.
func (r *Registry) Lock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = true
}

// Unlock resumes admission. Unlocking an unlocked registry has no effect.
func (r *Registry) Unlock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = false
}

// Locked reports whether the library is locked.
func (r *Registry) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}

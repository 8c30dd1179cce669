package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Cell kinds as they appear in inventory files.
const (
	KindSlot   = "slot"
	KindAccess = "access"
	KindDrive  = "drive"
)

// CellSpec describes one physical cell of the library.
type CellSpec struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Media string `json:"media,omitempty"`
}

// Inventory is the full cell layout discovered at install time.
type Inventory struct {
	Cells []CellSpec `json:"cells"`
}

// LoadInventory reads an inventory description from a JSON file.
func LoadInventory(path string) (Inventory, error) {
	file, err := os.Open(path)
	if err != nil {
		return Inventory{}, fmt.Errorf("open inventory file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inv Inventory
	if err := json.NewDecoder(file).Decode(&inv); err != nil {
		return Inventory{}, fmt.Errorf("decode inventory file %s: %w", path, err)
	}
	if len(inv.Cells) == 0 {
		return Inventory{}, fmt.Errorf("inventory file %s declares no cells", path)
	}
	return inv, nil
}

// DefaultInventory returns the bench layout: two drives, six access slots
// and an 11x16 grid of storage slots with a handful of cartridges in the
// first column.
func DefaultInventory() Inventory {
	var cells []CellSpec

	for d := 0; d < 2; d++ {
		cells = append(cells, CellSpec{ID: fmt.Sprintf("d%02d%02d", 0, d), Kind: KindDrive})
	}
	for a := 0; a < 6; a++ {
		cells = append(cells, CellSpec{ID: fmt.Sprintf("a%02d%02d", 0, a), Kind: KindAccess})
	}

	media := 7
	for col := 0; col < 11; col++ {
		for row := 0; row < 16; row++ {
			cell := CellSpec{ID: fmt.Sprintf("s%02d%02d", col, row), Kind: KindSlot}
			if media > 0 {
				media--
				cell.Media = fmt.Sprintf("TAPE%03d", media)
			}
			cells = append(cells, cell)
		}
	}

	return Inventory{Cells: cells}
}

// Package actuator defines the southbound contract to the library robot
// hardware. The execution engine treats implementations as opaque
// capabilities: one physical operation per call, success or a device error,
// bounded by the caller's context deadline.
package actuator

import "context"

// Actuator performs physical operations with the picker.
type Actuator interface {
	// Move carries the cartridge in source to the empty destination cell.
	// Source and destination may be any mix of slots and drives.
	Move(ctx context.Context, source, destination string) error

	// Scan positions the picker at a cell and barcode-scans it. present is
	// false when the cell holds no cartridge.
	Scan(ctx context.Context, cell string) (media string, present bool, err error)

	// Park returns the picker to its home position.
	Park(ctx context.Context) error
}

// Base carries identity fields shared by actuator implementations.
type Base struct {
	// DeviceID identifies the robot this actuator drives.
	DeviceID string

	// Vendor selects the error normalization table.
	Vendor string
}

// GetDeviceID returns the robot identifier.
func (b *Base) GetDeviceID() string {
	return b.DeviceID
}

// GetVendor returns the vendor identifier.
func (b *Base) GetVendor() string {
	return b.Vendor
}

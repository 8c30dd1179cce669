package actuator

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized actuator errors.
var (
	// ErrInvalidState: the cell is in an occupancy state incompatible with
	// the requested operation (eject from empty, enter into occupied).
	ErrInvalidState = errors.New("INVALID_STATE")

	// ErrDevice: a hardware fault (jam, servo, gripper, barcode reader).
	ErrDevice = errors.New("DEVICE_ERROR")
)

// VendorMap defines the error token mapping for a specific vendor.
type VendorMap struct {
	InvalidState []string // Tokens that map to INVALID_STATE
	Device       []string // Tokens that map to DEVICE_ERROR
}

// VendorErrorMappings contains the mapping tables for all known vendors.
// Device firmware reports faults as free-text tokens; the tables normalize
// them to the two codes above without heuristics, and unknown tokens fall
// back to DEVICE_ERROR so a new firmware revision can never silently
// succeed. To extend: add the vendor entry and map each token to exactly
// one code.
var VendorErrorMappings = map[string]VendorMap{
	"sim": {
		InvalidState: []string{
			"SOURCE_EMPTY",
			"DESTINATION_OCCUPIED",
			"CELL_EMPTY",
			"CELL_OCCUPIED",
			"NO_CARTRIDGE",
		},
		Device: []string{
			"PICKER_JAM",
			"GRIPPER_FAULT",
			"SERVO_TIMEOUT",
			"BARCODE_READ_FAILED",
			"CARRIAGE_STALL",
		},
	},
	"generic": {
		InvalidState: []string{
			"IS EMPTY",
			"IS NOT EMPTY",
			"EMPTY",
			"OCCUPIED",
			"INVALID_STATE",
			"WRONG_STATE",
		},
		Device: []string{
			"JAM",
			"FAULT",
			"STALL",
			"HARDWARE",
			"MECHANICAL",
			"SENSOR",
		},
	},
}

// DeviceError wraps a vendor error with its normalized code and the raw
// diagnostic payload.
type DeviceError struct {
	Code     error       // Normalized code
	Original error       // Vendor error
	Details  interface{} // Vendor payload (opaque)
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%v (device: %v)", e.Code, e.Original)
}

func (e *DeviceError) Unwrap() error {
	return e.Code
}

// Normalize maps a vendor error to a normalized code using the generic table.
func Normalize(vendorErr error, payload interface{}) error {
	return NormalizeWithVendor(vendorErr, payload, "generic")
}

// NormalizeWithVendor maps a vendor error using a specific vendor's table.
func NormalizeWithVendor(vendorErr error, payload interface{}, vendorID string) error {
	if vendorErr == nil {
		return nil
	}

	return &DeviceError{
		Code:     mapTokenToCode(vendorErr.Error(), vendorID),
		Original: vendorErr,
		Details:  payload,
	}
}

func mapTokenToCode(msg, vendorID string) error {
	vendorMap, ok := VendorErrorMappings[vendorID]
	if !ok {
		vendorMap = VendorErrorMappings["generic"]
	}

	upper := strings.ToUpper(msg)

	for _, token := range vendorMap.InvalidState {
		if strings.Contains(upper, token) {
			return ErrInvalidState
		}
	}
	for _, token := range vendorMap.Device {
		if strings.Contains(upper, token) {
			return ErrDevice
		}
	}

	return ErrDevice
}

// Package library tracks the physical inventory of the tape library: every
// slot, access slot and drive, which cartridge occupies it, and which
// commands currently hold a reservation on it.
//
// The Registry is the sole arbiter of cell exclusivity. Reservations are
// taken all-or-nothing across a command's full resource set, so two commands
// can never deadlock on partially acquired cells.
package library

package edma

import (
	"fmt"

	"github.com/ardnew/softdma/edma/hal"
)

// MaxChannels is the size of the controller's channel registry.
const MaxChannels = hal.MaxChannels

// TransferKind describes which side of a transfer is a fixed peripheral
// register and which side walks memory.
type TransferKind uint8

// Transfer kinds.
const (
	MemoryToMemory         TransferKind = iota // Both addresses increment
	PeripheralToMemory                         // Source fixed, destination increments
	MemoryToPeripheral                         // Source increments, destination fixed
	PeripheralToPeripheral                     // Both addresses fixed
)

// String returns a human-readable transfer kind.
func (k TransferKind) String() string {
	switch k {
	case MemoryToMemory:
		return "memory-to-memory"
	case PeripheralToMemory:
		return "peripheral-to-memory"
	case MemoryToPeripheral:
		return "memory-to-peripheral"
	case PeripheralToPeripheral:
		return "peripheral-to-peripheral"
	default:
		return fmt.Sprintf("unknown transfer kind (%d)", k)
	}
}

// LinkKind selects channel-to-channel linking.
type LinkKind uint8

// Channel link kinds.
const (
	LinkNone  LinkKind = iota // No channel link
	LinkMinor                 // Start the linked channel after each minor loop
	LinkMajor                 // Start the linked channel after the major loop
)

// String returns a human-readable link kind.
func (k LinkKind) String() string {
	switch k {
	case LinkNone:
		return "none"
	case LinkMinor:
		return "minor"
	case LinkMajor:
		return "major"
	default:
		return fmt.Sprintf("unknown link (%d)", k)
	}
}

// LinkResult is the outcome of extending a live descriptor chain.
type LinkResult uint8

// Link results. LinkNoChain and LinkMissed end in the descriptor being
// installed into the register window; the others leave the engine to load
// it through scatter/gather.
const (
	LinkNoChain  LinkResult = iota // No live chain to extend
	LinkChained                    // Window already points past the predecessor
	LinkAccepted                   // ESG landed before the engine finished
	LinkLoaded                     // Engine auto-loaded the new descriptor before the check
	LinkMissed                     // Engine finished before ESG landed
	numLinkResults
)

// String returns a short name used in logs and metric names.
func (r LinkResult) String() string {
	switch r {
	case LinkNoChain:
		return "no_chain"
	case LinkChained:
		return "chained"
	case LinkAccepted:
		return "accepted"
	case LinkLoaded:
		return "loaded"
	case LinkMissed:
		return "missed"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}

// Installed reports whether the result required writing the descriptor
// into the register window.
func (r LinkResult) Installed() bool {
	return r == LinkNoChain || r == LinkMissed
}

// StatusFlags is a bit set of per-channel status.
type StatusFlags uint8

// Channel status flags.
const (
	StatusDone      StatusFlags = 1 << 0 // Major loop complete
	StatusError     StatusFlags = 1 << 1 // Channel has an error
	StatusInterrupt StatusFlags = 1 << 2 // Interrupt pending
)

// InterruptMask selects per-descriptor interrupt sources.
type InterruptMask uint8

// Interrupt sources.
const (
	InterruptMajor InterruptMask = 1 << 0 // Major loop complete
	InterruptHalf  InterruptMask = 1 << 1 // Major loop half complete
)

// Bandwidth is the engine stall inserted after each access.
type Bandwidth uint8

// Bandwidth control settings.
const (
	BandwidthNoStall Bandwidth = 0
	BandwidthStall4  Bandwidth = 2 // Stall 4 cycles after each access
	BandwidthStall8  Bandwidth = 3 // Stall 8 cycles after each access
)

// Modulo is the number of low address bits allowed to change (0 disables),
// producing a circular buffer of 2^Modulo bytes.
type Modulo uint8

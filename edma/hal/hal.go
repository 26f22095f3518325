package hal

import (
	"context"
)

// MaxChannels is the largest channel count any engine exposes.
const MaxChannels = 32

// Config holds engine-wide settings applied at initialization.
type Config struct {
	// RoundRobin selects round-robin channel arbitration instead of fixed
	// priority.
	RoundRobin bool
	// HaltOnError stops all channels when any channel reports an error.
	HaltOnError bool
	// DebugMode stalls new channel starts while the CPU is halted by a
	// debugger.
	DebugMode bool
	// ContinuousLink lets a minor link to the same channel proceed without
	// re-arbitration.
	ContinuousLink bool
}

// EngineHAL defines the Hardware Abstraction Layer interface for an eDMA
// engine.
//
// The HAL exposes the engine's per-channel register window (the TCD the
// engine is currently executing), the request enable and status bitmaps,
// descriptor memory mapping, and the CPU's interrupt mask. The engine mutates
// the register window on its own; the driver never assumes two reads return
// the same value.
//
// Channel arguments are always below Channels().
type EngineHAL interface {
	// Init resets the engine and applies cfg.
	Init(ctx context.Context, cfg Config) error

	// Deinit disables the engine.
	Deinit() error

	// Channels returns the number of channels the engine implements.
	Channels() int

	// Descriptor Memory

	// MapDescriptors makes storage visible to the engine and returns the
	// bus address of storage[0]. Descriptor i lives at base + i*TCDSize.
	MapDescriptors(storage []TCD) (uint32, error)

	// Request Line

	// EnableRequest asserts the channel's hardware request enable.
	EnableRequest(ch uint8)
	// DisableRequest deasserts the channel's hardware request enable.
	DisableRequest(ch uint8)
	// RequestEnabled reports the channel's request enable bit.
	RequestEnabled(ch uint8) bool

	// Status

	// InterruptStatus returns the global interrupt-pending bitmap.
	InterruptStatus() uint32
	// ClearInterrupt clears the channel's interrupt-pending flag.
	ClearInterrupt(ch uint8)
	// ClearDone clears the channel's DONE status.
	ClearDone(ch uint8)
	// ErrorStatus returns the engine's error status: the error flags of the
	// most recent error and the bitmap of channels with errors.
	ErrorStatus() (flags uint32, channels uint32)
	// ClearError clears the channel's error flag.
	ClearError(ch uint8)

	// Register Window

	// WriteTCD copies tcd into the channel's register window. DONE is
	// cleared first; the engine never observes a partially written window
	// with DONE set.
	WriteTCD(ch uint8, tcd *TCD)
	// ReadTCD copies the channel's register window into out.
	ReadTCD(ch uint8, out *TCD)
	// CSR reads the window's control/status field.
	CSR(ch uint8) uint16
	// WriteCSR writes the window's control/status field in one access.
	WriteCSR(ch uint8, v uint16)
	// SetCSR sets bits in the window's control/status field in one access.
	// The engine ignores an ESG set while DONE is set.
	SetCSR(ch uint8, mask uint16)
	// ClearCSR clears bits in the window's control/status field.
	ClearCSR(ch uint8, mask uint16)
	// NextDescriptor reads the window's DLAST_SGA field.
	NextDescriptor(ch uint8) uint32
	// SetNextDescriptor writes the window's DLAST_SGA field.
	SetNextDescriptor(ch uint8, addr uint32)
	// Iterations reads the window's CITER and BITER fields.
	Iterations(ch uint8) (citer, biter uint16)
	// SetIterations writes the window's CITER and BITER fields.
	SetIterations(ch uint8, citer, biter uint16)
	// Attributes reads the window's ATTR field.
	Attributes(ch uint8) uint16
	// SetAttributes writes the window's ATTR field.
	SetAttributes(ch uint8, attr uint16)

	// Interrupt Mask

	// DisableIRQ masks the engine's interrupts on the calling CPU and
	// returns the previous mask state.
	DisableIRQ() uintptr
	// RestoreIRQ restores a mask state returned by DisableIRQ.
	RestoreIRQ(state uintptr)
}

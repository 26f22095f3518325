package pkg

import "errors"

// Driver errors.
var (
	// ErrQueueFull indicates every descriptor slot of the channel's pool is
	// reserved. Wait for a completion callback before resubmitting.
	ErrQueueFull = errors.New("descriptor queue full")

	// ErrBusy indicates a single-descriptor channel still has an active
	// transfer in its register window.
	ErrBusy = errors.New("channel busy")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidChannel indicates a channel number the engine does not have.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrNotInitialized indicates the controller has not been initialized.
	ErrNotInitialized = errors.New("not initialized")

	// ErrAlreadyRunning indicates the controller is already initialized.
	ErrAlreadyRunning = errors.New("already running")

	// ErrMisaligned indicates descriptor storage that violates the engine's
	// alignment requirement.
	ErrMisaligned = errors.New("descriptor storage misaligned")
)

// EngineError is a bit set of the engine's error status flags.
type EngineError uint32

// Engine error flags.
const (
	EngineErrorDestinationBus    EngineError = 1 << 0 // Bus error on destination write
	EngineErrorSourceBus         EngineError = 1 << 1 // Bus error on source read
	EngineErrorScatterGather     EngineError = 1 << 2 // Next descriptor address not aligned
	EngineErrorNbytes            EngineError = 1 << 3 // Minor loop byte count inconsistent with sizes
	EngineErrorDestinationOffset EngineError = 1 << 4 // DOFF inconsistent with destination size
	EngineErrorDestinationAddr   EngineError = 1 << 5 // DADDR inconsistent with destination size
	EngineErrorSourceOffset      EngineError = 1 << 6 // SOFF inconsistent with source size
	EngineErrorSourceAddr        EngineError = 1 << 7 // SADDR inconsistent with source size
	EngineErrorPriority          EngineError = 1 << 14
	EngineErrorCancelled         EngineError = 1 << 16
)

var engineErrorNames = [...]struct {
	flag EngineError
	name string
}{
	{EngineErrorDestinationBus, "destination bus"},
	{EngineErrorSourceBus, "source bus"},
	{EngineErrorScatterGather, "scatter/gather configuration"},
	{EngineErrorNbytes, "minor loop byte count"},
	{EngineErrorDestinationOffset, "destination offset"},
	{EngineErrorDestinationAddr, "destination address"},
	{EngineErrorSourceOffset, "source offset"},
	{EngineErrorSourceAddr, "source address"},
	{EngineErrorPriority, "channel priority"},
	{EngineErrorCancelled, "transfer cancelled"},
}

// String returns the names of the set flags joined by "|".
func (e EngineError) String() string {
	if e == 0 {
		return "none"
	}
	var s string
	for _, n := range engineErrorNames {
		if e&n.flag == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n.name
	}
	if s == "" {
		return "unknown"
	}
	return s
}

// Error implements the error interface so a non-zero status can be returned
// or logged directly.
func (e EngineError) Error() string {
	return "engine error: " + e.String()
}

// Package hal defines the hardware abstraction layer between the eDMA driver
// and an engine.
//
// [EngineHAL] exposes the register accesses the driver needs: per-channel
// request enable, interrupt and error status, and the fields of the
// channel's transfer control descriptor window. The driver implements every
// queueing decision; an implementation only moves values to and from
// registers.
//
// # Descriptors
//
// [TCD] is the 32-byte descriptor image shared by the register window and
// the descriptor rings in memory. [EngineHAL.MapDescriptors] returns the bus
// address the engine sees for a ring, which is what the DLAST_SGA field of a
// scatter/gather descriptor holds.
//
// # Interrupt masking
//
// [EngineHAL.DisableIRQ] and [EngineHAL.RestoreIRQ] bracket the driver's
// critical sections. They nest.
package hal

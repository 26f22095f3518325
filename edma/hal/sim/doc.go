// Package sim provides a software eDMA engine implementing [hal.EngineHAL].
//
// The engine is stepped explicitly. [Engine.Step] services one minor loop on
// the channel arbitration picks, [Engine.RunMajor] runs a channel to the end
// of its current major loop, and [Engine.Drain] runs until the engine is
// idle. Scatter/gather loads follow DLAST_SGA into descriptor storage
// registered with [Engine.MapDescriptors].
//
// Data moves through an optional [Memory]; [RAM] is a flat implementation.
//
//	ram := sim.NewRAM(0x1000_0000, 4096)
//	engine := sim.New(4).WithMemory(ram)
//	engine.SetIRQHandler(ctrl.HandleIRQ)
//
// [Hooks] run around the register writes the driver races the engine on, so
// tests can complete a major loop at exactly that point.
package sim

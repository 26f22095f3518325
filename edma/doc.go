// Package edma is a driver for an eDMA engine whose channels walk chains of
// 32-byte transfer control descriptors.
//
// A [Controller] owns the engine and hands out one [Channel] per engine
// channel. A channel runs in one of two modes:
//
//   - Single-descriptor: [Channel.Submit] writes the transfer straight into
//     the channel's register window and fails with [pkg.ErrBusy] while the
//     previous transfer is running.
//   - Scatter/gather: after [Channel.InstallPool], submitted transfers take
//     consecutive slots of a caller-provided descriptor ring and are linked
//     behind the descriptor the engine is currently executing. The engine
//     loads each successor itself.
//
// # Queueing
//
// The ring is a FIFO of reserved slots described by head, tail and used.
// Submit runs concurrently with the engine and never waits for it: the
// predecessor descriptor is updated in memory and the register window, and
// the outcome is read back from the window. Every path leaves the new
// descriptor either executing, queued behind the running one, or installed
// fresh in the window.
//
// # Completion
//
// [Controller.HandleIRQ] dispatches the channel interrupt to
// [Channel.HandleInterrupt], which recovers how many descriptors the engine
// retired from the window's next-descriptor address and reports that to the
// [Callback]. Interrupts are coalesced; one callback may retire several
// descriptors.
//
//	ctrl := edma.NewController(engine, edma.DefaultConfig())
//	if err := ctrl.Init(ctx); err != nil {
//	    return err
//	}
//	ch, _ := ctrl.Channel(0)
//	ch.InstallPool(make([]hal.TCD, 8))
//	ch.SetCallback(func(ch *edma.Channel, _ any, done bool, retired int) {
//	    // release retired buffers
//	}, nil)
//	cfg, _ := edma.PrepareTransfer(src, dst, 4, 4, 64, 1024, edma.MemoryToMemory)
//	ch.Submit(&cfg)
//	ch.Start()
//
// # Metrics
//
// Each channel registers go-metrics counters under edma.ch<N>. in the
// controller's registry.
package edma

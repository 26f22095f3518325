package edma

import (
	"log/slog"

	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// Submit queues a transfer on the channel.
//
// Without a pool the transfer is written straight into the register window,
// and Submit returns pkg.ErrBusy while a previous transfer is still running.
// With a pool the transfer takes the next ring slot and is linked behind
// the descriptor the engine is walking; Submit returns pkg.ErrQueueFull when
// every slot is outstanding, leaving the ring untouched.
//
// Submit never blocks and never waits on the engine. The transfer starts
// once the request line is asserted by Start.
func (c *Channel) Submit(cfg *TransferConfig) error {
	if c.pool == nil {
		return c.submitSingle(cfg)
	}
	_, err := c.submitLinked(cfg)
	return err
}

func (c *Channel) submitSingle(cfg *TransferConfig) error {
	csr := c.hal.CSR(c.number)
	citer, biter := c.hal.Iterations(c.number)
	// A started major loop has CITER below BITER even between minor loops.
	if csr&hal.CSRActive != 0 || hal.IterCount(citer) != hal.IterCount(biter) {
		c.metrics.busy.Inc(1)
		return pkg.ErrBusy
	}

	var tcd hal.TCD
	cfg.Apply(&tcd)
	tcd.SetFlags(hal.CSRDReq | hal.CSRIntMajor)
	c.hal.WriteTCD(c.number, &tcd)

	c.metrics.submit.Inc(1)
	pkg.LogDebug(pkg.ComponentSubmit, "transfer installed", "channel", c.number, "bytes", cfg.Bytes())
	return nil
}

// submitLinked reserves a ring slot, fills it, and publishes it to the
// engine. It returns how the descriptor reached the engine.
func (c *Channel) submitLinked(cfg *TransferConfig) (LinkResult, error) {
	p := c.pool

	state := c.hal.DisableIRQ()
	if c.used == p.Cap() {
		c.hal.RestoreIRQ(state)
		c.metrics.queueFull.Inc(1)
		return LinkNoChain, pkg.ErrQueueFull
	}
	current := c.tail
	c.used++
	c.tail = p.next(current)
	used := c.used
	c.hal.RestoreIRQ(state)

	next := p.next(current)
	previous := p.prev(current)

	// The slot is complete before anything the engine can see points at it.
	tcd := p.Slot(current)
	tcd.Reset()
	cfg.Apply(tcd)
	tcd.SetFlags(hal.CSRIntMajor)
	tcd.DLastSGA = p.Address(next)

	result := LinkNoChain
	if current != previous {
		result = c.link(previous, current, next)
	}
	if result.Installed() {
		c.install(current)
	}

	c.metrics.submit.Inc(1)
	c.metrics.link[result].Inc(1)
	c.metrics.used.Update(int64(used))
	if pkg.LogEnabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentSubmit, "descriptor queued",
			"channel", c.number, "slot", current, "used", used, "link", result.String())
	}
	return result, nil
}

// link chains slot current behind slot previous. The engine may finish
// previous at any instant, so the outcome is decided by reading the window
// back after a single CSR write rather than by locking.
func (c *Channel) link(previous, current, next int) LinkResult {
	p := c.pool

	prev := p.Slot(previous)
	prev.CSR = (prev.CSR | hal.CSRESG) &^ hal.CSRDReq

	switch window := c.hal.NextDescriptor(c.number); {
	case window == p.Address(current):
		// The window holds previous; extend it in place.
	case window != 0:
		// The engine is upstream of previous and will load the updated copy.
		return LinkChained
	default:
		// Nothing was ever loaded since reset or abort.
		return LinkNoChain
	}

	// One write: the engine ignores ESG once DONE is set.
	c.hal.SetCSR(c.number, hal.CSRESG)

	if c.hal.CSR(c.number)&hal.CSRESG != 0 {
		return LinkAccepted
	}
	if c.hal.NextDescriptor(c.number) == p.Address(next) {
		return LinkLoaded
	}
	return LinkMissed
}

// install writes slot current into the register window and re-asserts the
// request line if the channel is started.
func (c *Channel) install(current int) {
	c.hal.ClearDone(c.number)
	c.hal.WriteTCD(c.number, c.pool.Slot(current))

	state := c.hal.DisableIRQ()
	enabled := c.enabled
	c.hal.RestoreIRQ(state)
	if enabled {
		c.hal.EnableRequest(c.number)
	}
}

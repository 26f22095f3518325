package edma

import (
	"fmt"
	"log/slog"

	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// HandleInterrupt reconciles the ring after the engine signals a major loop
// completion on this channel and invokes the callback. It runs in interrupt
// context.
//
// The engine may have retired several descriptors before the handler runs;
// the count is recovered from the window's next-descriptor address. The
// recovery cannot distinguish a full ring wrap between two interrupts from
// no progress at all.
func (c *Channel) HandleInterrupt() {
	// Clear first: the source is level triggered.
	c.hal.ClearInterrupt(c.number)
	c.metrics.irq.Inc(1)

	done := c.hal.CSR(c.number)&hal.CSRDone != 0

	if c.pool == nil {
		c.invoke(done, 0)
		return
	}

	p := c.pool
	n := p.Cap()
	sga := c.hal.NextDescriptor(c.number)
	index, ok := p.Index(sga)
	if !ok {
		pkg.LogWarn(pkg.ComponentIRQ, "next descriptor outside pool",
			"channel", c.number, "address", fmt.Sprintf("%#x", sga))
		c.invoke(done, 0)
		return
	}

	// The engine has prefetched index; unless the chain is done it is still
	// executing the slot before it.
	newHead := index
	if !done {
		newHead = p.prev(index)
	}

	state := c.hal.DisableIRQ()
	var retired int
	switch {
	case newHead != c.head:
		retired = (newHead - c.head + n) % n
	case c.used == n:
		retired = c.used
	}
	c.head = newHead
	c.used -= retired
	used := c.used
	c.hal.RestoreIRQ(state)

	c.metrics.retired.Inc(int64(retired))
	c.metrics.used.Update(int64(used))
	if pkg.LogEnabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentIRQ, "descriptors retired",
			"channel", c.number, "done", done, "retired", retired, "head", newHead, "used", used)
	}

	c.invoke(done, retired)

	// A successor already loaded by scatter/gather must not read as idle.
	if done && c.hal.CSR(c.number)&hal.CSRESG != 0 {
		c.hal.ClearDone(c.number)
	}
}

package edma

import (
	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// Start enables the channel's hardware request line.
//
// With a pool, Start also records that the line should stay asserted, so
// descriptors installed later re-assert it. The line is only re-asserted here
// if a descriptor was ever loaded and the chain in the window has not
// finished.
func (c *Channel) Start() {
	if c.pool == nil {
		c.hal.EnableRequest(c.number)
		return
	}

	state := c.hal.DisableIRQ()
	defer c.hal.RestoreIRQ(state)

	c.enabled = true
	if c.hal.NextDescriptor(c.number) == 0 {
		return
	}
	if c.hal.RequestEnabled(c.number) {
		return
	}
	csr := c.hal.CSR(c.number)
	if csr&hal.CSRDone == 0 || csr&hal.CSRESG != 0 {
		c.hal.EnableRequest(c.number)
	}
}

// Stop deasserts the channel's request line. A minor loop already in
// progress completes; nothing further is serviced until Start.
func (c *Channel) Stop() {
	state := c.hal.DisableIRQ()
	c.enabled = false
	c.hal.RestoreIRQ(state)
	c.hal.DisableRequest(c.number)
}

// Abort stops the channel, severs the chain in the register window and drops
// every queued descriptor. The channel accepts a new Submit immediately.
func (c *Channel) Abort() {
	c.clearWindow()

	if c.pool != nil {
		state := c.hal.DisableIRQ()
		dropped := c.used
		c.head, c.tail, c.used = 0, 0, 0
		c.hal.RestoreIRQ(state)

		c.metrics.used.Update(0)
		if dropped > 0 {
			pkg.LogInfo(pkg.ComponentChannel, "transfers aborted", "channel", c.number, "dropped", dropped)
		}
	}
	c.metrics.abort.Inc(1)
}

// clearWindow stops the channel and leaves its register window looking like
// one that never ran.
func (c *Channel) clearWindow() {
	c.hal.DisableRequest(c.number)
	// Zero CSR clears ESG, so the engine cannot load a successor.
	c.hal.WriteCSR(c.number, 0)
	c.hal.SetNextDescriptor(c.number, 0)
	c.hal.SetIterations(c.number, 0, 0)
	c.hal.ClearInterrupt(c.number)
}

// GetRemaining returns the major iterations left in the register window, or
// 0 once the engine reports the transfer done.
func (c *Channel) GetRemaining() uint32 {
	if c.hal.CSR(c.number)&hal.CSRDone != 0 {
		return 0
	}
	citer, _ := c.hal.Iterations(c.number)
	return uint32(hal.IterCount(citer))
}

// SetChannelLink configures channel linking on the transfer in the register
// window. Minor linking narrows the iteration counters to 9 bits; the
// current count is kept within that range.
func (c *Channel) SetChannelLink(kind LinkKind, linked uint8) {
	var t hal.TCD
	citer, biter := c.hal.Iterations(c.number)
	t.CIter, t.BIter = citer, biter
	t.CSR = c.hal.CSR(c.number)
	ccount, bcount := hal.IterCount(citer), hal.IterCount(biter)

	switch kind {
	case LinkMinor:
		t.SetMinorLink(linked)
		c.hal.SetIterations(c.number, t.CIter, t.BIter)
	case LinkMajor:
		t.SetMajorLink(linked)
		c.hal.WriteCSR(c.number, t.CSR)
	default:
		t.ClearMinorLink()
		t.CIter |= ccount
		t.BIter |= bcount
		c.hal.SetIterations(c.number, t.CIter, t.BIter)
		t.ClearMajorLink()
		c.hal.WriteCSR(c.number, t.CSR)
	}
}

// SetBandwidth sets the engine stall inserted after each access of the
// transfer in the register window.
func (c *Channel) SetBandwidth(bwc Bandwidth) {
	var t hal.TCD
	t.CSR = c.hal.CSR(c.number)
	t.SetBandwidth(uint8(bwc))
	c.hal.WriteCSR(c.number, t.CSR)
}

// SetModulo sets circular-buffer address modulos on the transfer in the
// register window.
func (c *Channel) SetModulo(src, dst Modulo) {
	var t hal.TCD
	t.Attr = c.hal.Attributes(c.number)
	t.SetAttr(t.SourceSize(), t.DestSize(), uint8(src), uint8(dst))
	c.hal.SetAttributes(c.number, t.Attr)
}

// EnableAutoStopRequest controls whether the engine deasserts the request
// line when the transfer in the register window completes.
func (c *Channel) EnableAutoStopRequest(enable bool) {
	if enable {
		c.hal.SetCSR(c.number, hal.CSRDReq)
	} else {
		c.hal.ClearCSR(c.number, hal.CSRDReq)
	}
}

// EnableInterrupts enables interrupt sources on the transfer in the
// register window.
func (c *Channel) EnableInterrupts(mask InterruptMask) {
	if bits := interruptBits(mask); bits != 0 {
		c.hal.SetCSR(c.number, bits)
	}
}

// DisableInterrupts disables interrupt sources on the transfer in the
// register window.
func (c *Channel) DisableInterrupts(mask InterruptMask) {
	if bits := interruptBits(mask); bits != 0 {
		c.hal.ClearCSR(c.number, bits)
	}
}

func interruptBits(mask InterruptMask) uint16 {
	var bits uint16
	if mask&InterruptMajor != 0 {
		bits |= hal.CSRIntMajor
	}
	if mask&InterruptHalf != 0 {
		bits |= hal.CSRIntHalf
	}
	return bits
}

// Status returns the channel's done, error and interrupt flags.
func (c *Channel) Status() StatusFlags {
	var s StatusFlags
	if c.hal.CSR(c.number)&hal.CSRDone != 0 {
		s |= StatusDone
	}
	if _, chans := c.hal.ErrorStatus(); chans&(1<<c.number) != 0 {
		s |= StatusError
	}
	if c.hal.InterruptStatus()&(1<<c.number) != 0 {
		s |= StatusInterrupt
	}
	return s
}

// ClearStatus clears the given status flags.
func (c *Channel) ClearStatus(s StatusFlags) {
	if s&StatusDone != 0 {
		c.hal.ClearDone(c.number)
	}
	if s&StatusError != 0 {
		c.hal.ClearError(c.number)
	}
	if s&StatusInterrupt != 0 {
		c.hal.ClearInterrupt(c.number)
	}
}

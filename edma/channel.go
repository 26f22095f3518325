package edma

import (
	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// Callback is invoked from interrupt context after the completion handler
// reconciles the ring. done reports whether the engine finished the whole
// chain; retired is the number of descriptors released since the previous
// interrupt (always 0 without a pool).
type Callback func(ch *Channel, userData any, done bool, retired int)

// ErrorCallback is invoked from the error interrupt for each channel the
// engine flagged.
type ErrorCallback func(ch *Channel, err pkg.EngineError)

// Channel is the driver state of one engine channel.
//
// head, tail and used are shared with the completion handler; every
// read-modify-write of them runs with the engine interrupt masked.
type Channel struct {
	number uint8
	hal    hal.EngineHAL

	pool *Pool

	head int // oldest descriptor not yet retired
	tail int // next free slot
	used int // reserved, not yet retired

	enabled bool // keep the request line asserted

	callback Callback
	userData any
	onError  ErrorCallback

	metrics *channelMetrics
}

// newChannel creates the state of channel n in single-descriptor mode.
func newChannel(h hal.EngineHAL, n uint8, m *channelMetrics) *Channel {
	return &Channel{
		number:  n,
		hal:     h,
		metrics: m,
	}
}

// Number returns the engine channel number.
func (c *Channel) Number() uint8 {
	return c.number
}

// Pool returns the installed descriptor pool, or nil in single-descriptor
// mode.
func (c *Channel) Pool() *Pool {
	return c.pool
}

// InstallPool binds storage as the channel's descriptor ring and resets the
// ring indices and the enabled flag. The register window is cleared so the
// first Submit installs into it. It must be called before Submit when
// scatter/gather is wanted, and while no transfer is outstanding.
func (c *Channel) InstallPool(storage []hal.TCD) error {
	p, err := newPool(c.hal, storage)
	if err != nil {
		pkg.LogError(pkg.ComponentChannel, "install pool failed", "channel", c.number, "error", err)
		return err
	}
	for i := range storage {
		storage[i].Reset()
	}
	c.clearWindow()

	state := c.hal.DisableIRQ()
	c.pool = p
	c.head, c.tail, c.used = 0, 0, 0
	c.enabled = false
	c.hal.RestoreIRQ(state)

	c.metrics.used.Update(0)
	pkg.LogInfo(pkg.ComponentChannel, "descriptor pool installed",
		"channel", c.number, "slots", p.Cap(), "base", p.Base())
	return nil
}

// SetCallback installs the completion callback and its user data.
func (c *Channel) SetCallback(cb Callback, userData any) {
	state := c.hal.DisableIRQ()
	c.callback = cb
	c.userData = userData
	c.hal.RestoreIRQ(state)
}

// SetErrorCallback installs the error callback.
func (c *Channel) SetErrorCallback(cb ErrorCallback) {
	state := c.hal.DisableIRQ()
	c.onError = cb
	c.hal.RestoreIRQ(state)
}

// Head returns the index of the oldest outstanding descriptor.
func (c *Channel) Head() int {
	state := c.hal.DisableIRQ()
	defer c.hal.RestoreIRQ(state)
	return c.head
}

// Tail returns the index of the next free slot.
func (c *Channel) Tail() int {
	state := c.hal.DisableIRQ()
	defer c.hal.RestoreIRQ(state)
	return c.tail
}

// Used returns the number of reserved, unretired slots.
func (c *Channel) Used() int {
	state := c.hal.DisableIRQ()
	defer c.hal.RestoreIRQ(state)
	return c.used
}

// Enabled reports whether Start has been called without a following Stop.
func (c *Channel) Enabled() bool {
	state := c.hal.DisableIRQ()
	defer c.hal.RestoreIRQ(state)
	return c.enabled
}

// invoke runs the completion callback.
func (c *Channel) invoke(done bool, retired int) {
	if c.callback != nil {
		c.callback(c, c.userData, done, retired)
	}
}

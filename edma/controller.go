package edma

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/rcrowley/go-metrics"

	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// Controller owns an engine and the registry of its channels. Interrupt
// entry points dispatch through the registry.
type Controller struct {
	hal     hal.EngineHAL
	cfg     Config
	metrics metrics.Registry

	// channels is read from interrupt context without locking.
	channels [MaxChannels]atomic.Pointer[Channel]

	mutex    sync.Mutex
	initDone bool
}

// NewController creates a controller for h.
func NewController(h hal.EngineHAL, cfg Config) *Controller {
	r := cfg.Metrics
	if r == nil {
		r = metrics.NewRegistry()
	}
	return &Controller{
		hal:     h,
		cfg:     cfg,
		metrics: r,
	}
}

// Init initializes the engine with the controller configuration.
func (c *Controller) Init(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.initDone {
		return pkg.ErrAlreadyRunning
	}
	if err := c.hal.Init(ctx, c.cfg.halConfig()); err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	c.initDone = true

	pkg.LogInfo(pkg.ComponentController, "controller initialized",
		"channels", c.hal.Channels(), "roundRobin", c.cfg.RoundRobin, "haltOnError", c.cfg.HaltOnError)
	return nil
}

// Deinit aborts every registered channel and disables the engine.
func (c *Controller) Deinit() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.initDone {
		return nil
	}
	for i := range c.channels {
		if ch := c.channels[i].Load(); ch != nil {
			ch.Abort()
		}
	}
	c.initDone = false
	if err := c.hal.Deinit(); err != nil {
		return fmt.Errorf("deinit engine: %w", err)
	}
	pkg.LogInfo(pkg.ComponentController, "controller stopped")
	return nil
}

// Channel returns the handle for channel n, creating it on first use.
func (c *Controller) Channel(n uint8) (*Channel, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.initDone {
		return nil, pkg.ErrNotInitialized
	}
	if int(n) >= MaxChannels || int(n) >= c.hal.Channels() {
		return nil, fmt.Errorf("channel %d: %w", n, pkg.ErrInvalidChannel)
	}
	if ch := c.channels[n].Load(); ch != nil {
		return ch, nil
	}
	ch := newChannel(c.hal, n, newChannelMetrics(c.metrics, n))
	c.channels[n].Store(ch)
	pkg.LogDebug(pkg.ComponentController, "channel created", "channel", n)
	return ch, nil
}

// HandleIRQ is the interrupt entry point for channel n.
func (c *Controller) HandleIRQ(n uint8) {
	if int(n) >= MaxChannels {
		return
	}
	ch := c.channels[n].Load()
	if ch == nil {
		c.hal.ClearInterrupt(n)
		pkg.LogWarn(pkg.ComponentIRQ, "interrupt on unregistered channel", "channel", n)
		return
	}
	ch.HandleInterrupt()
}

// HandleIRQs is the entry point for a vector shared by several channels. It
// services every channel with a pending interrupt, lowest number first.
func (c *Controller) HandleIRQs() {
	for pending := c.hal.InterruptStatus(); pending != 0; pending &= pending - 1 {
		c.HandleIRQ(uint8(bits.TrailingZeros32(pending)))
	}
}

// HandleErrorIRQ is the error interrupt entry point. It reports the error to
// each affected channel's error callback and clears it.
func (c *Controller) HandleErrorIRQ() {
	flags, chans := c.hal.ErrorStatus()
	err := pkg.EngineError(flags)
	for ; chans != 0; chans &= chans - 1 {
		n := uint8(bits.TrailingZeros32(chans))
		pkg.LogError(pkg.ComponentIRQ, "channel error", "channel", n, "error", err.String())
		if int(n) < MaxChannels {
			if ch := c.channels[n].Load(); ch != nil && ch.onError != nil {
				ch.onError(ch, err)
			}
		}
		c.hal.ClearError(n)
	}
}

// ErrorStatus returns the engine's most recent error flags and the bitmap of
// channels in error.
func (c *Controller) ErrorStatus() (pkg.EngineError, uint32) {
	flags, chans := c.hal.ErrorStatus()
	return pkg.EngineError(flags), chans
}

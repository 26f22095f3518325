package edma

import (
	"github.com/rcrowley/go-metrics"

	"github.com/ardnew/softdma/edma/hal"
)

// Config holds controller settings.
type Config struct {
	// RoundRobin selects round-robin arbitration instead of fixed priority.
	RoundRobin bool

	// HaltOnError stops the engine when any channel reports an error.
	HaltOnError bool

	// DebugMode stalls new channel starts while a debugger halts the CPU.
	DebugMode bool

	// ContinuousLink lets a minor link to the same channel skip
	// re-arbitration.
	ContinuousLink bool

	// Metrics receives per-channel counters. A nil registry keeps them in a
	// private registry.
	Metrics metrics.Registry
}

// DefaultConfig returns the engine's reset configuration with metrics
// registered in metrics.DefaultRegistry.
func DefaultConfig() Config {
	return Config{
		Metrics: metrics.DefaultRegistry,
	}
}

func (c *Config) halConfig() hal.Config {
	return hal.Config{
		RoundRobin:     c.RoundRobin,
		HaltOnError:    c.HaltOnError,
		DebugMode:      c.DebugMode,
		ContinuousLink: c.ContinuousLink,
	}
}

package edma

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

// channelMetrics are the per-channel counters, registered as
// edma.ch<N>.<name>.
type channelMetrics struct {
	submit    metrics.Counter
	queueFull metrics.Counter
	busy      metrics.Counter
	irq       metrics.Counter
	retired   metrics.Counter
	abort     metrics.Counter
	link      [numLinkResults]metrics.Counter
	used      metrics.Gauge
}

func newChannelMetrics(r metrics.Registry, ch uint8) *channelMetrics {
	name := func(s string) string {
		return fmt.Sprintf("edma.ch%d.%s", ch, s)
	}
	m := &channelMetrics{
		submit:    metrics.GetOrRegisterCounter(name("submit"), r),
		queueFull: metrics.GetOrRegisterCounter(name("queue_full"), r),
		busy:      metrics.GetOrRegisterCounter(name("busy"), r),
		irq:       metrics.GetOrRegisterCounter(name("irq"), r),
		retired:   metrics.GetOrRegisterCounter(name("retired"), r),
		abort:     metrics.GetOrRegisterCounter(name("abort"), r),
		used:      metrics.GetOrRegisterGauge(name("used"), r),
	}
	for i := range m.link {
		m.link[i] = metrics.GetOrRegisterCounter(name("link."+LinkResult(i).String()), r)
	}
	return m
}

package edma

import (
	"fmt"

	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// Pool is a fixed-capacity ring of descriptors in engine-visible memory.
// Slots are owned by position; nothing is freed individually.
type Pool struct {
	storage []hal.TCD
	base    uint32
}

// newPool maps storage through h.
func newPool(h hal.EngineHAL, storage []hal.TCD) (*Pool, error) {
	base, err := h.MapDescriptors(storage)
	if err != nil {
		return nil, err
	}
	if base%hal.TCDAlign != 0 {
		return nil, fmt.Errorf("pool base %#x: %w", base, pkg.ErrMisaligned)
	}
	return &Pool{storage: storage, base: base}, nil
}

// Cap returns the number of slots.
func (p *Pool) Cap() int {
	return len(p.storage)
}

// Base returns the bus address of slot 0.
func (p *Pool) Base() uint32 {
	return p.base
}

// Slot returns the descriptor at index i.
func (p *Pool) Slot(i int) *hal.TCD {
	return &p.storage[i]
}

// Address returns the bus address of slot i.
func (p *Pool) Address(i int) uint32 {
	return p.base + uint32(i)*hal.TCDSize
}

// Index converts a bus address into a slot index. It returns false for
// addresses outside the pool or not on a descriptor boundary.
func (p *Pool) Index(addr uint32) (int, bool) {
	if addr < p.base {
		return 0, false
	}
	off := addr - p.base
	if off%hal.TCDSize != 0 {
		return 0, false
	}
	i := off / hal.TCDSize
	if i >= uint32(len(p.storage)) {
		return 0, false
	}
	return int(i), true
}

// next returns the slot after i.
func (p *Pool) next(i int) int {
	if i++; i == len(p.storage) {
		return 0
	}
	return i
}

// prev returns the slot before i.
func (p *Pool) prev(i int) int {
	if i == 0 {
		return len(p.storage) - 1
	}
	return i - 1
}

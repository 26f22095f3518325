package edma

import (
	"errors"
	"testing"

	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/edma/hal/sim"
	"github.com/ardnew/softdma/pkg"
)

func TestPoolIndex(t *testing.T) {
	p, err := newPool(sim.New(1), make([]hal.TCD, 4))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < p.Cap(); i++ {
		got, ok := p.Index(p.Address(i))
		if !ok || got != i {
			t.Errorf("Index(Address(%d)) = (%d, %v)", i, got, ok)
		}
	}

	tests := []struct {
		name string
		addr uint32
	}{
		{"zero", 0},
		{"below base", p.Base() - hal.TCDSize},
		{"misaligned", p.Base() + 1},
		{"mid descriptor", p.Address(2) + 16},
		{"past end", p.Address(3) + hal.TCDSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if i, ok := p.Index(tt.addr); ok {
				t.Errorf("Index(%#x) = %d, want rejected", tt.addr, i)
			}
		})
	}
}

func TestPoolRing(t *testing.T) {
	tests := []struct {
		slots      int
		i          int
		next, prev int
	}{
		{1, 0, 0, 0},
		{4, 0, 1, 3},
		{4, 3, 0, 2},
		{4, 1, 2, 0},
	}
	for _, tt := range tests {
		p := &Pool{storage: make([]hal.TCD, tt.slots)}
		if got := p.next(tt.i); got != tt.next {
			t.Errorf("cap %d: next(%d) = %d, want %d", tt.slots, tt.i, got, tt.next)
		}
		if got := p.prev(tt.i); got != tt.prev {
			t.Errorf("cap %d: prev(%d) = %d, want %d", tt.slots, tt.i, got, tt.prev)
		}
	}
}

func TestInstallPoolResets(t *testing.T) {
	r := newRig(t, 4)
	ch := r.pooled(t, 0, 4)
	for i := 0; i < 2; i++ {
		if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 4)); err != nil {
			t.Fatal(err)
		}
	}
	ch.Start()

	storage := make([]hal.TCD, 8)
	storage[5].CSR = hal.CSRESG
	if err := ch.InstallPool(storage); err != nil {
		t.Fatal(err)
	}
	if ch.Pool().Cap() != 8 || ch.Used() != 0 || ch.Head() != 0 || ch.Tail() != 0 || ch.Enabled() {
		t.Error("InstallPool did not reset the ring")
	}
	if storage[5].CSR != 0 {
		t.Error("InstallPool kept stale descriptor contents")
	}
}

func TestInstallPoolAfterRun(t *testing.T) {
	r := newRig(t, 1)
	storage := make([]hal.TCD, 4)
	ch := r.channel(t, 0)
	if err := ch.InstallPool(storage); err != nil {
		t.Fatal(err)
	}
	got := record(ch)
	for i := range r.ram.Data[:0x40] {
		r.ram.Data[i] = byte(i + 1)
	}

	if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 16)); err != nil {
		t.Fatal(err)
	}
	ch.Start()
	r.engine.Drain(0)
	if sumRetired(*got) != 1 {
		t.Fatalf("first run completions = %v", *got)
	}
	if r.engine.NextDescriptor(0) == 0 {
		t.Fatal("window next descriptor is zero after a linked run")
	}

	if err := ch.InstallPool(storage); err != nil {
		t.Fatal(err)
	}
	if addr := r.engine.NextDescriptor(0); addr != 0 {
		t.Errorf("NextDescriptor() after InstallPool = %#x, want 0", addr)
	}

	*got = nil
	ch.Start()
	if err := ch.Submit(copyConfig(t, ramBase+0x20, ramBase+0x200, 16)); err != nil {
		t.Fatal(err)
	}
	if n := r.engine.Drain(0); n == 0 {
		t.Fatal("descriptor submitted after InstallPool never ran")
	}
	if sumRetired(*got) != 1 || ch.Used() != 0 {
		t.Errorf("completions = %v, used = %d, want 1 retired and empty ring", *got, ch.Used())
	}
	for i := 0; i < 16; i++ {
		if r.ram.Data[0x200+i] != r.ram.Data[0x20+i] {
			t.Fatalf("byte %d = %#x, want %#x", i, r.ram.Data[0x200+i], r.ram.Data[0x20+i])
		}
	}
}

// offsetHAL maps descriptors off the engine's alignment.
type offsetHAL struct {
	*sim.Engine
}

func (h offsetHAL) MapDescriptors(storage []hal.TCD) (uint32, error) {
	base, err := h.Engine.MapDescriptors(storage)
	return base + 4, err
}

func TestPoolMisaligned(t *testing.T) {
	_, err := newPool(offsetHAL{sim.New(1)}, make([]hal.TCD, 2))
	if !errors.Is(err, pkg.ErrMisaligned) {
		t.Errorf("newPool() error = %v, want %v", err, pkg.ErrMisaligned)
	}
}

package sim

import (
	"context"
	"fmt"
	"io"
	"math/bits"
	"sync"

	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// DescriptorBase is the bus address of the first mapped descriptor region.
const DescriptorBase = 0x2000_0000

// regionGap separates consecutive descriptor regions so an address one past
// the end of a pool never aliases the next pool.
const regionGap = 0x100

// Memory is the data bus the engine reads and writes during minor loops.
// Offsets are bus addresses.
type Memory interface {
	io.ReaderAt
	io.WriterAt
}

// Hooks are invoked at register accesses the driver races the engine on.
// They run without the engine lock held, so they may drive the engine
// (RunMajor, Step) to model the engine advancing at that exact instant.
type Hooks struct {
	// BeforeSetCSR runs before a SetCSR access lands.
	BeforeSetCSR func(ch uint8, mask uint16)
	// AfterSetCSR runs after a SetCSR access lands.
	AfterSetCSR func(ch uint8, mask uint16)
}

// Stats counts engine activity.
type Stats struct {
	MinorLoops uint64
	MajorLoops uint64
	AutoLoads  uint64
	Interrupts uint64
	Errors     uint64
}

type region struct {
	base    uint32
	storage []hal.TCD
}

type channel struct {
	tcd   hal.TCD
	start bool // software or link-triggered start pending
}

// Engine implements hal.EngineHAL in software.
//
// Register accesses are serialized by an internal lock, so the engine may be
// inspected from any goroutine. Interrupt masking models a single CPU: drive
// the engine (Step, RunMajor, Drain) from the goroutine that calls the driver
// so that interrupt handlers preempt it the way they would on hardware.
type Engine struct {
	mu sync.Mutex

	channels []channel
	cfg      hal.Config
	initDone bool
	halted   bool
	cpuHalt  bool // debugger holds the CPU

	erq         uint32 // request enable bitmap
	intStatus   uint32 // interrupt pending bitmap
	undelivered uint32 // raised but not yet dispatched to the handler
	errFlags    uint32
	errChans    uint32
	errPending  bool

	regions  []region
	nextBase uint32

	mem   Memory
	hooks Hooks

	irqDepth   uintptr
	irqHandler func(ch uint8)
	errHandler func()

	lastServiced int
	continued    int // channel that minor-linked to itself, or -1
	stats        Stats
}

var _ hal.EngineHAL = (*Engine)(nil)

// New creates a software engine with the given number of channels.
func New(channels int) *Engine {
	if channels <= 0 || channels > hal.MaxChannels {
		channels = hal.MaxChannels
	}
	return &Engine{
		channels:     make([]channel, channels),
		nextBase:     DescriptorBase,
		lastServiced: -1,
		continued:    -1,
	}
}

// WithMemory attaches a data bus. Without one, minor loops only advance
// addresses.
func (e *Engine) WithMemory(m Memory) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mem = m
	return e
}

// WithHooks installs register access hooks.
func (e *Engine) WithHooks(h Hooks) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = h
	return e
}

// SetIRQHandler installs the function invoked for each channel interrupt.
func (e *Engine) SetIRQHandler(fn func(ch uint8)) {
	e.mu.Lock()
	e.irqHandler = fn
	e.mu.Unlock()
	e.deliver()
}

// SetErrorHandler installs the function invoked when an error is raised.
func (e *Engine) SetErrorHandler(fn func()) {
	e.mu.Lock()
	e.errHandler = fn
	e.mu.Unlock()
	e.deliver()
}

// Init resets every channel and applies cfg.
func (e *Engine) Init(ctx context.Context, cfg hal.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initDone {
		return pkg.ErrAlreadyRunning
	}
	for i := range e.channels {
		e.channels[i] = channel{}
	}
	e.cfg = cfg
	e.erq, e.intStatus, e.undelivered = 0, 0, 0
	e.errFlags, e.errChans, e.errPending = 0, 0, false
	e.halted = false
	e.lastServiced = -1
	e.continued = -1
	e.initDone = true

	pkg.LogDebug(pkg.ComponentSim, "engine initialized",
		"channels", len(e.channels), "roundRobin", cfg.RoundRobin, "haltOnError", cfg.HaltOnError,
		"debugMode", cfg.DebugMode, "continuousLink", cfg.ContinuousLink)
	return nil
}

// Deinit disables every request line.
func (e *Engine) Deinit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.erq = 0
	e.initDone = false
	return nil
}

// Channels returns the number of channels.
func (e *Engine) Channels() int {
	return len(e.channels)
}

// MapDescriptors assigns storage a bus address range. Mapping the same
// storage twice returns the same base.
func (e *Engine) MapDescriptors(storage []hal.TCD) (uint32, error) {
	if len(storage) == 0 {
		return 0, fmt.Errorf("map descriptors: %w", pkg.ErrInvalidParameter)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.regions {
		if &r.storage[0] == &storage[0] {
			if len(r.storage) != len(storage) {
				return 0, fmt.Errorf("map descriptors: remapped with %d slots, was %d: %w",
					len(storage), len(r.storage), pkg.ErrInvalidParameter)
			}
			return r.base, nil
		}
	}

	base := e.nextBase
	size := uint32(len(storage))*hal.TCDSize + regionGap
	e.nextBase = (base + size + hal.TCDAlign - 1) &^ (hal.TCDAlign - 1)
	e.regions = append(e.regions, region{base: base, storage: storage})

	pkg.LogDebug(pkg.ComponentSim, "descriptors mapped", "base", fmt.Sprintf("%#x", base), "slots", len(storage))
	return base, nil
}

// lookup returns the descriptor mapped at addr. Caller holds e.mu.
func (e *Engine) lookup(addr uint32) (*hal.TCD, bool) {
	if addr%hal.TCDAlign != 0 {
		return nil, false
	}
	for _, r := range e.regions {
		if addr < r.base {
			continue
		}
		i := (addr - r.base) / hal.TCDSize
		if i < uint32(len(r.storage)) {
			return &r.storage[i], true
		}
	}
	return nil, false
}

// EnableRequest sets the channel's request enable bit.
func (e *Engine) EnableRequest(ch uint8) {
	e.mu.Lock()
	e.erq |= 1 << ch
	e.mu.Unlock()
}

// DisableRequest clears the channel's request enable bit.
func (e *Engine) DisableRequest(ch uint8) {
	e.mu.Lock()
	e.erq &^= 1 << ch
	e.mu.Unlock()
}

// RequestEnabled reports the channel's request enable bit.
func (e *Engine) RequestEnabled(ch uint8) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.erq&(1<<ch) != 0
}

// InterruptStatus returns the interrupt pending bitmap.
func (e *Engine) InterruptStatus() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intStatus
}

// ClearInterrupt clears the channel's interrupt pending flag.
func (e *Engine) ClearInterrupt(ch uint8) {
	e.mu.Lock()
	e.intStatus &^= 1 << ch
	e.mu.Unlock()
}

// ClearDone clears the DONE bit in the channel's window.
func (e *Engine) ClearDone(ch uint8) {
	e.mu.Lock()
	e.channels[ch].tcd.CSR &^= hal.CSRDone
	e.mu.Unlock()
}

// ErrorStatus returns the last error's flags and the channels in error.
func (e *Engine) ErrorStatus() (uint32, uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errFlags, e.errChans
}

// ClearError clears the channel's error bit. Clearing the last one resumes a
// halted engine.
func (e *Engine) ClearError(ch uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errChans &^= 1 << ch
	if e.errChans == 0 {
		e.errFlags = 0
		e.halted = false
	}
}

// WriteTCD copies tcd into the channel's window.
func (e *Engine) WriteTCD(ch uint8, tcd *hal.TCD) {
	e.mu.Lock()
	c := &e.channels[ch]
	c.tcd = *tcd
	c.tcd.CSR &^= hal.CSRActive | hal.CSRDone
	c.start = tcd.CSR&hal.CSRStart != 0
	e.mu.Unlock()
}

// ReadTCD copies the channel's window into out.
func (e *Engine) ReadTCD(ch uint8, out *hal.TCD) {
	e.mu.Lock()
	*out = e.channels[ch].tcd
	e.mu.Unlock()
}

// CSR reads the window's control/status field.
func (e *Engine) CSR(ch uint8) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[ch].tcd.CSR
}

// WriteCSR writes the window's control/status field.
func (e *Engine) WriteCSR(ch uint8, v uint16) {
	e.mu.Lock()
	c := &e.channels[ch]
	if c.tcd.CSR&hal.CSRDone != 0 && v&hal.CSRDone != 0 {
		v &^= hal.CSRESG
	}
	c.tcd.CSR = v &^ hal.CSRActive
	if v&hal.CSRStart != 0 {
		c.start = true
	}
	e.mu.Unlock()
}

// SetCSR sets bits in the window's control/status field. ESG cannot be set
// while DONE is set.
func (e *Engine) SetCSR(ch uint8, mask uint16) {
	e.mu.Lock()
	before := e.hooks.BeforeSetCSR
	after := e.hooks.AfterSetCSR
	e.mu.Unlock()

	if before != nil {
		before(ch, mask)
	}

	e.mu.Lock()
	c := &e.channels[ch]
	if c.tcd.CSR&hal.CSRDone != 0 {
		mask &^= hal.CSRESG
	}
	c.tcd.CSR |= mask &^ (hal.CSRActive | hal.CSRDone)
	if mask&hal.CSRStart != 0 {
		c.start = true
	}
	e.mu.Unlock()

	if after != nil {
		after(ch, mask)
	}
}

// ClearCSR clears bits in the window's control/status field.
func (e *Engine) ClearCSR(ch uint8, mask uint16) {
	e.mu.Lock()
	e.channels[ch].tcd.CSR &^= mask
	e.mu.Unlock()
}

// NextDescriptor reads the window's DLAST_SGA field.
func (e *Engine) NextDescriptor(ch uint8) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[ch].tcd.DLastSGA
}

// SetNextDescriptor writes the window's DLAST_SGA field.
func (e *Engine) SetNextDescriptor(ch uint8, addr uint32) {
	e.mu.Lock()
	e.channels[ch].tcd.DLastSGA = addr
	e.mu.Unlock()
}

// Iterations reads the window's CITER and BITER fields.
func (e *Engine) Iterations(ch uint8) (uint16, uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &e.channels[ch].tcd
	return t.CIter, t.BIter
}

// SetIterations writes the window's CITER and BITER fields.
func (e *Engine) SetIterations(ch uint8, citer, biter uint16) {
	e.mu.Lock()
	t := &e.channels[ch].tcd
	t.CIter, t.BIter = citer, biter
	e.mu.Unlock()
}

// Attributes reads the window's ATTR field.
func (e *Engine) Attributes(ch uint8) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channels[ch].tcd.Attr
}

// SetAttributes writes the window's ATTR field.
func (e *Engine) SetAttributes(ch uint8, attr uint16) {
	e.mu.Lock()
	e.channels[ch].tcd.Attr = attr
	e.mu.Unlock()
}

// DisableIRQ masks interrupt delivery and returns the previous mask depth.
func (e *Engine) DisableIRQ() uintptr {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.irqDepth
	e.irqDepth++
	return state
}

// RestoreIRQ restores a mask depth returned by DisableIRQ. Interrupts raised
// while masked are delivered when the depth returns to zero.
func (e *Engine) RestoreIRQ(state uintptr) {
	e.mu.Lock()
	e.irqDepth = state
	e.mu.Unlock()
	e.deliver()
}

// TriggerInterrupt raises the channel's interrupt as if a major loop had
// completed.
func (e *Engine) TriggerInterrupt(ch uint8) {
	e.mu.Lock()
	e.raise(ch)
	e.mu.Unlock()
	e.deliver()
}

// InjectError records an error on ch as if the engine had detected it.
func (e *Engine) InjectError(ch uint8, flags pkg.EngineError) {
	e.mu.Lock()
	e.fail(ch, flags)
	e.mu.Unlock()
	e.deliver()
}

// SetDebugHalt models a debugger halting or resuming the CPU. With
// DebugMode configured, channels stall before starting a new major loop
// while the CPU is halted; a major loop already under way runs on.
func (e *Engine) SetDebugHalt(halted bool) {
	e.mu.Lock()
	e.cpuHalt = halted
	e.mu.Unlock()
}

// Stats returns a snapshot of the activity counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// raise marks ch's interrupt pending. Caller holds e.mu.
func (e *Engine) raise(ch uint8) {
	e.intStatus |= 1 << ch
	e.undelivered |= 1 << ch
	e.stats.Interrupts++
}

// fail records an error on ch. Caller holds e.mu.
func (e *Engine) fail(ch uint8, flags pkg.EngineError) {
	e.errFlags = uint32(flags)
	e.errChans |= 1 << ch
	e.errPending = true
	e.erq &^= 1 << ch
	e.stats.Errors++
	if e.cfg.HaltOnError {
		e.halted = true
	}
}

// deliver dispatches pending interrupts while unmasked. Handlers run with
// the mask raised, matching an interrupt that cannot preempt itself.
func (e *Engine) deliver() {
	for {
		e.mu.Lock()
		if e.irqDepth > 0 {
			e.mu.Unlock()
			return
		}
		if e.errPending && e.errHandler != nil {
			e.errPending = false
			h := e.errHandler
			e.irqDepth++
			e.mu.Unlock()
			h()
			e.mu.Lock()
			e.irqDepth--
			e.mu.Unlock()
			continue
		}
		// Level triggered: a flag cleared before dispatch is not delivered.
		e.undelivered &= e.intStatus
		if e.undelivered == 0 || e.irqHandler == nil {
			e.mu.Unlock()
			return
		}
		ch := uint8(bits.TrailingZeros32(e.undelivered))
		e.undelivered &^= 1 << ch
		h := e.irqHandler
		e.irqDepth++
		e.mu.Unlock()

		h(ch)

		e.mu.Lock()
		e.irqDepth--
		e.mu.Unlock()
	}
}

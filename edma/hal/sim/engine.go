package sim

import (
	"errors"

	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// maxBurst bounds the scratch buffer for one engine access.
const maxBurst = 32

// Step services one minor loop on the highest-priority channel with a
// pending request, then delivers any interrupts it raised. Returns false
// when no channel had work.
func (e *Engine) Step() bool {
	e.mu.Lock()
	ch, ok := e.arbitrate()
	if ok {
		e.service(ch)
	}
	e.mu.Unlock()
	e.deliver()
	return ok
}

// Service runs one minor loop on ch if it has a pending request.
func (e *Engine) Service(ch uint8) bool {
	e.mu.Lock()
	ok := e.ready(int(ch))
	if ok {
		e.service(int(ch))
	}
	e.mu.Unlock()
	e.deliver()
	return ok
}

// RunMajor services ch until the major loop in its window completes or the
// channel stops having work. Returns the number of minor loops run.
func (e *Engine) RunMajor(ch uint8) int {
	n := 0
	for {
		e.mu.Lock()
		if !e.ready(int(ch)) {
			e.mu.Unlock()
			e.deliver()
			return n
		}
		done := e.service(int(ch))
		e.mu.Unlock()
		e.deliver()
		n++
		if done {
			return n
		}
	}
}

// Drain steps the engine until no channel has work or limit minor loops
// have run (limit <= 0 means no limit). Returns the number of minor loops.
func (e *Engine) Drain(limit int) int {
	n := 0
	for limit <= 0 || n < limit {
		if !e.Step() {
			break
		}
		n++
	}
	return n
}

// Idle reports whether no channel has a pending request.
func (e *Engine) Idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.arbitrate()
	return !ok
}

// ready reports whether channel i can run a minor loop. Caller holds e.mu.
func (e *Engine) ready(i int) bool {
	if !e.initDone || e.halted || e.errChans&(1<<i) != 0 {
		return false
	}
	c := &e.channels[i]
	count := hal.IterCount(c.tcd.CIter)
	if count == 0 {
		return false
	}
	if e.cfg.DebugMode && e.cpuHalt && count == hal.IterCount(c.tcd.BIter) {
		return false
	}
	if c.start {
		return true
	}
	return e.erq&(1<<i) != 0 && c.tcd.CSR&hal.CSRDone == 0
}

// arbitrate picks the next channel to service. A channel that minor-linked
// to itself under ContinuousLink goes first. Otherwise fixed priority favors
// the highest channel number and round robin continues after the last one
// serviced. Caller holds e.mu.
func (e *Engine) arbitrate() (int, bool) {
	if i := e.continued; i >= 0 && e.ready(i) {
		return i, true
	}
	n := len(e.channels)
	if e.cfg.RoundRobin {
		for k := 1; k <= n; k++ {
			i := (e.lastServiced + k + n) % n
			if e.ready(i) {
				return i, true
			}
		}
		return 0, false
	}
	for i := n - 1; i >= 0; i-- {
		if e.ready(i) {
			return i, true
		}
	}
	return 0, false
}

// service runs one minor loop on channel i and reports whether it completed
// the major loop. Caller holds e.mu.
func (e *Engine) service(i int) bool {
	c := &e.channels[i]
	t := &c.tcd
	ch := uint8(i)

	e.lastServiced = i
	e.continued = -1
	c.start = false
	t.CSR = t.CSR&^(hal.CSRStart|hal.CSRDone) | hal.CSRActive

	if flags := e.check(t); flags != 0 {
		t.CSR &^= hal.CSRActive
		e.fail(ch, flags)
		return false
	}
	if flags := e.move(t); flags != 0 {
		t.CSR &^= hal.CSRActive
		e.fail(ch, flags)
		return false
	}
	e.stats.MinorLoops++

	count := hal.IterCount(t.CIter) - 1
	t.CIter = t.CIter&^countMask(t.CIter) | count
	t.CSR &^= hal.CSRActive

	if count != 0 {
		if t.CSR&hal.CSRIntHalf != 0 && count == hal.IterCount(t.BIter)/2 {
			e.raise(ch)
		}
		if link, ok := hal.IterLinkedChannel(t.CIter); ok {
			e.link(link)
			if e.cfg.ContinuousLink && link == ch {
				e.continued = i
			}
		}
		return false
	}

	e.complete(ch)
	return true
}

// complete finishes the major loop in channel ch's window. Caller holds e.mu.
func (e *Engine) complete(ch uint8) {
	c := &e.channels[ch]
	t := &c.tcd
	e.stats.MajorLoops++

	t.SAddr = uint32(int64(t.SAddr) + int64(t.SLast))
	if t.CSR&hal.CSRESG == 0 {
		t.DAddr = uint32(int64(t.DAddr) + int64(int32(t.DLastSGA)))
	}
	t.CIter = t.BIter

	if t.CSR&hal.CSRIntMajor != 0 {
		e.raise(ch)
	}
	if t.CSR&hal.CSRDReq != 0 {
		e.erq &^= 1 << ch
	}
	if link, ok := t.MajorLinkedChannel(); ok {
		e.link(link)
	}

	if t.CSR&hal.CSRESG == 0 {
		t.CSR |= hal.CSRDone
		return
	}

	next, ok := e.lookup(t.DLastSGA)
	if !ok {
		t.CSR |= hal.CSRDone
		e.fail(ch, pkg.EngineErrorScatterGather)
		return
	}
	*t = *next
	t.CSR &^= hal.CSRActive | hal.CSRDone
	c.start = t.CSR&hal.CSRStart != 0
	e.stats.AutoLoads++
}

// link requests one service of channel ch. Caller holds e.mu.
func (e *Engine) link(ch uint8) {
	if int(ch) < len(e.channels) {
		e.channels[ch].start = true
	}
}

// check validates the window the way the engine does before a minor loop.
func (e *Engine) check(t *hal.TCD) pkg.EngineError {
	ss, ds := t.SourceSize().Bytes(), t.DestSize().Bytes()
	var flags pkg.EngineError
	switch {
	case ss == 0 || t.NBytes%ss != 0:
		flags |= pkg.EngineErrorNbytes
	case ds == 0 || t.NBytes%ds != 0:
		flags |= pkg.EngineErrorNbytes
	}
	if ss != 0 {
		if t.SAddr%ss != 0 {
			flags |= pkg.EngineErrorSourceAddr
		}
		if uint32(abs16(t.SOff))%ss != 0 {
			flags |= pkg.EngineErrorSourceOffset
		}
	}
	if ds != 0 {
		if t.DAddr%ds != 0 {
			flags |= pkg.EngineErrorDestinationAddr
		}
		if uint32(abs16(t.DOff))%ds != 0 {
			flags |= pkg.EngineErrorDestinationOffset
		}
	}
	return flags
}

// move transfers NBYTES from source to destination, honoring access sizes,
// offsets and address modulos.
func (e *Engine) move(t *hal.TCD) pkg.EngineError {
	ss, ds := t.SourceSize().Bytes(), t.DestSize().Bytes()
	var buf [maxBurst]byte
	var pending []byte
	for moved := uint32(0); moved < t.NBytes; {
		if uint32(len(pending)) < ds {
			chunk := buf[len(pending) : len(pending)+int(ss)]
			if e.mem != nil {
				if _, err := e.mem.ReadAt(chunk, int64(t.SAddr)); err != nil {
					return pkg.EngineErrorSourceBus
				}
			}
			pending = buf[:len(pending)+int(ss)]
			t.SAddr = advance(t.SAddr, t.SOff, t.SourceModulo())
			continue
		}
		if e.mem != nil {
			if _, err := e.mem.WriteAt(pending[:ds], int64(t.DAddr)); err != nil {
				return pkg.EngineErrorDestinationBus
			}
		}
		t.DAddr = advance(t.DAddr, t.DOff, t.DestModulo())
		copy(buf[:], pending[ds:])
		pending = buf[:uint32(len(pending))-ds]
		moved += ds
	}
	return 0
}

// advance applies a signed offset to addr, keeping the low mod bits inside
// their window when mod is non-zero.
func advance(addr uint32, off int16, mod uint8) uint32 {
	next := uint32(int64(addr) + int64(off))
	if mod == 0 {
		return next
	}
	mask := uint32(1)<<mod - 1
	return addr&^mask | next&mask
}

func countMask(iter uint16) uint16 {
	if iter&hal.IterELink != 0 {
		return hal.IterLinkedMask
	}
	return hal.IterCountMask
}

func abs16(v int16) int32 {
	if v < 0 {
		return -int32(v)
	}
	return int32(v)
}

// ErrOutOfRange is returned by RAM for accesses outside its window.
var ErrOutOfRange = errors.New("bus address out of range")

// RAM is a flat byte-addressable Memory starting at Base.
type RAM struct {
	Base uint32
	Data []byte
}

// NewRAM creates size bytes of zeroed RAM at base.
func NewRAM(base uint32, size int) *RAM {
	return &RAM{Base: base, Data: make([]byte, size)}
}

// ReadAt implements io.ReaderAt with off as a bus address.
func (r *RAM) ReadAt(p []byte, off int64) (int, error) {
	b, err := r.window(off, len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, b), nil
}

// WriteAt implements io.WriterAt with off as a bus address.
func (r *RAM) WriteAt(p []byte, off int64) (int, error) {
	b, err := r.window(off, len(p))
	if err != nil {
		return 0, err
	}
	return copy(b, p), nil
}

func (r *RAM) window(off int64, n int) ([]byte, error) {
	start := off - int64(r.Base)
	if start < 0 || start+int64(n) > int64(len(r.Data)) {
		return nil, ErrOutOfRange
	}
	return r.Data[start : start+int64(n)], nil
}

package edma

import (
	"testing"

	"github.com/ardnew/softdma/edma/hal"
)

func TestAbortIdempotent(t *testing.T) {
	r := newRig(t, 4)
	ch := r.pooled(t, 0, 4)

	for i := 0; i < 2; i++ {
		ch.Abort()
		if ch.Head() != 0 || ch.Tail() != 0 || ch.Used() != 0 {
			t.Errorf("abort %d: head, tail, used = %d, %d, %d", i, ch.Head(), ch.Tail(), ch.Used())
		}
	}
	if got := r.count("edma.ch0.abort"); got != 2 {
		t.Errorf("abort = %d, want 2", got)
	}
}

func TestAbortThenFreshRing(t *testing.T) {
	r := newRig(t, 4)
	ch := r.pooled(t, 0, 4)
	got := record(ch)
	for i := 0; i < 3; i++ {
		if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 4)); err != nil {
			t.Fatal(err)
		}
	}
	ch.Start()
	r.engine.Step()

	ch.Abort()
	var window hal.TCD
	r.engine.ReadTCD(0, &window)
	if window.CSR != 0 || window.DLastSGA != 0 || window.CIter != 0 || window.BIter != 0 {
		t.Errorf("window after Abort = %+v, want chain severed", window)
	}
	if r.engine.RequestEnabled(0) {
		t.Error("request line asserted after Abort")
	}
	if r.engine.Drain(0) != 0 {
		t.Error("engine ran after Abort")
	}

	*got = (*got)[:0]
	first, err := ch.submitLinked(copyConfig(t, ramBase, ramBase+0x200, 4))
	if err != nil {
		t.Fatal(err)
	}
	if first != LinkNoChain {
		t.Errorf("first link after Abort = %v, want %v", first, LinkNoChain)
	}
	if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x204, 4)); err != nil {
		t.Fatal(err)
	}
	ch.Start()
	r.engine.Drain(0)

	if n := sumRetired(*got); n != 2 {
		t.Errorf("retired after Abort = %d, want 2 (callbacks %v)", n, *got)
	}
	if ch.Used() != 0 || ch.Head() != 2 || ch.Tail() != 2 {
		t.Errorf("head, tail, used = %d, %d, %d; want 2, 2, 0", ch.Head(), ch.Tail(), ch.Used())
	}
}

func TestGetRemaining(t *testing.T) {
	r := newRig(t, 4)
	ch := r.channel(t, 0)
	if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 16)); err != nil {
		t.Fatal(err)
	}
	if got := ch.GetRemaining(); got != 4 {
		t.Errorf("GetRemaining() = %d, want 4", got)
	}

	ch.Start()
	r.engine.Step()
	if got := ch.GetRemaining(); got != 3 {
		t.Errorf("GetRemaining() = %d, want 3", got)
	}

	ch.SetChannelLink(LinkMinor, 1)
	citer, _ := r.engine.Iterations(0)
	if citer&hal.IterELink == 0 {
		t.Fatal("minor link not enabled")
	}
	if got := ch.GetRemaining(); got != 3 {
		t.Errorf("GetRemaining() with minor link = %d, want 3", got)
	}

	r.engine.Drain(0)
	if got := ch.GetRemaining(); got != 0 {
		t.Errorf("GetRemaining() when done = %d, want 0", got)
	}
}

func TestStartStop(t *testing.T) {
	r := newRig(t, 4)
	ch := r.pooled(t, 0, 4)

	ch.Start()
	if !ch.Enabled() {
		t.Error("Enabled() = false after Start")
	}
	if r.engine.RequestEnabled(0) {
		t.Error("Start asserted the request line with nothing loaded")
	}

	if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 8)); err != nil {
		t.Fatal(err)
	}
	if !r.engine.RequestEnabled(0) {
		t.Fatal("install did not assert the request line of a started channel")
	}

	ch.Stop()
	if ch.Enabled() || r.engine.RequestEnabled(0) {
		t.Error("Stop left the channel enabled")
	}
	if r.engine.Step() {
		t.Error("engine serviced a stopped channel")
	}

	ch.Start()
	if !r.engine.RequestEnabled(0) {
		t.Error("Start did not resume an unfinished chain")
	}
	r.engine.Drain(0)

	ch.Stop()
	ch.Start()
	if r.engine.RequestEnabled(0) {
		t.Error("Start asserted the request line of a finished chain")
	}
}

func TestSetChannelLink(t *testing.T) {
	r := newRig(t, 4)
	ch := r.channel(t, 0)
	if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 32)); err != nil {
		t.Fatal(err)
	}

	ch.SetChannelLink(LinkMinor, 3)
	citer, biter := r.engine.Iterations(0)
	if link, ok := hal.IterLinkedChannel(biter); !ok || link != 3 {
		t.Errorf("minor link = (%d, %v), want (3, true)", link, ok)
	}
	if hal.IterCount(citer) != 8 {
		t.Errorf("count = %d, want 8", hal.IterCount(citer))
	}

	ch.SetChannelLink(LinkMajor, 2)
	tcd := hal.TCD{CSR: r.engine.CSR(0)}
	if link, ok := tcd.MajorLinkedChannel(); !ok || link != 2 {
		t.Errorf("major link = (%d, %v), want (2, true)", link, ok)
	}

	ch.SetChannelLink(LinkNone, 0)
	citer, biter = r.engine.Iterations(0)
	if citer != 8 || biter != 8 {
		t.Errorf("iterations = %#x, %#x; want plain 8", citer, biter)
	}
	tcd.CSR = r.engine.CSR(0)
	if _, ok := tcd.MajorLinkedChannel(); ok {
		t.Error("major link still enabled")
	}
	if !tcd.Has(hal.CSRDReq | hal.CSRIntMajor) {
		t.Errorf("CSR = %#x, link changes clobbered other bits", tcd.CSR)
	}
}

func TestWindowSettings(t *testing.T) {
	r := newRig(t, 4)
	ch := r.channel(t, 0)
	if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 16)); err != nil {
		t.Fatal(err)
	}

	ch.SetBandwidth(BandwidthStall8)
	tcd := hal.TCD{CSR: r.engine.CSR(0), Attr: r.engine.Attributes(0)}
	if tcd.Bandwidth() != uint8(BandwidthStall8) {
		t.Errorf("Bandwidth() = %d, want %d", tcd.Bandwidth(), BandwidthStall8)
	}

	ch.SetModulo(4, 5)
	tcd.Attr = r.engine.Attributes(0)
	if tcd.SourceModulo() != 4 || tcd.DestModulo() != 5 {
		t.Errorf("modulo = %d, %d; want 4, 5", tcd.SourceModulo(), tcd.DestModulo())
	}
	if tcd.SourceSize() != hal.TransferSize4 || tcd.DestSize() != hal.TransferSize4 {
		t.Error("SetModulo changed the access sizes")
	}

	ch.EnableAutoStopRequest(false)
	if r.engine.CSR(0)&hal.CSRDReq != 0 {
		t.Error("DREQ still set")
	}
	ch.EnableAutoStopRequest(true)
	if r.engine.CSR(0)&hal.CSRDReq == 0 {
		t.Error("DREQ not set")
	}

	ch.EnableInterrupts(InterruptHalf)
	if r.engine.CSR(0)&(hal.CSRIntHalf|hal.CSRIntMajor) != hal.CSRIntHalf|hal.CSRIntMajor {
		t.Error("half interrupt not enabled")
	}
	ch.DisableInterrupts(InterruptMajor | InterruptHalf)
	if r.engine.CSR(0)&(hal.CSRIntHalf|hal.CSRIntMajor) != 0 {
		t.Error("interrupts still enabled")
	}
}

func TestHalfInterrupt(t *testing.T) {
	r := newRig(t, 4)
	ch := r.channel(t, 0)
	got := record(ch)
	if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 16)); err != nil {
		t.Fatal(err)
	}
	ch.EnableInterrupts(InterruptHalf)
	ch.Start()

	r.engine.Step()
	r.engine.Step()
	if len(*got) != 1 || (*got)[0] != (completion{false, 0}) {
		t.Fatalf("callbacks = %v, want [{false 0}] at half", *got)
	}
	r.engine.Drain(0)
	if len(*got) != 2 || !(*got)[1].done {
		t.Errorf("callbacks = %v, want done at completion", *got)
	}
}

func TestStatus(t *testing.T) {
	r := newRig(t, 4)
	ch := r.channel(t, 0)
	got := record(ch)
	if err := ch.Submit(copyConfig(t, ramBase, ramBase+0x100, 4)); err != nil {
		t.Fatal(err)
	}
	ch.Start()

	state := r.engine.DisableIRQ()
	r.engine.Drain(0)
	if s := ch.Status(); s != StatusDone|StatusInterrupt {
		t.Errorf("Status() = %#x, want done and interrupt", s)
	}
	ch.ClearStatus(StatusDone | StatusInterrupt)
	if s := ch.Status(); s != 0 {
		t.Errorf("Status() after clear = %#x, want 0", s)
	}

	r.engine.InjectError(0, 0)
	if s := ch.Status(); s&StatusError == 0 {
		t.Errorf("Status() = %#x, want error", s)
	}
	ch.ClearStatus(StatusError)
	if s := ch.Status(); s != 0 {
		t.Errorf("Status() after clearing error = %#x, want 0", s)
	}
	r.engine.RestoreIRQ(state)

	if len(*got) != 0 {
		t.Errorf("callbacks = %v for a cleared interrupt", *got)
	}
}

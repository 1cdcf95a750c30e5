// Package console wires the APU, sprite-DMA controller, bus, and
// scheduler into a single runnable harness: everything a caller needs
// to drive register writes and advance time without supplying its own
// CPU, PPU, or cartridge.
package console

import (
	"fmt"

	"github.com/rng999/nesapu/internal/apu"
	"github.com/rng999/nesapu/internal/audio"
	"github.com/rng999/nesapu/internal/bus"
	"github.com/rng999/nesapu/internal/scheduler"
	"github.com/rng999/nesapu/internal/spritedma"
)

// NES register addresses on the real CPU bus.
const (
	apuMainBase      = 0x4000
	apuCtrlStatBase  = 0x4015
	apuSequencerBase = 0x4017
	spriteDMABase    = 0x4014
	cpuClockHz       = 1789773.0
	sequencerClockHz = 240.0
)

// NullIRQ is a bus.InterruptLine that only records the line's last
// level in Asserted, standing in for the CPU's real
// interrupt input when a caller has no CPU to wire up (the cmd/nesapu
// demo, most tests).
type NullIRQ struct {
	Asserted bool
}

// SetIRQ implements bus.InterruptLine.
func (n *NullIRQ) SetIRQ(asserted bool) { n.Asserted = asserted }

// loggingIRQ wraps an InterruptLine and prints edges (not every call,
// since the APU's frame sequencer re-asserts an already-set line on
// every tick).
type loggingIRQ struct {
	inner   bus.InterruptLine
	current bool
}

func (l *loggingIRQ) SetIRQ(asserted bool) {
	if asserted != l.current {
		fmt.Printf("[IRQ] line %s\n", edgeString(asserted))
		l.current = asserted
	}
	l.inner.SetIRQ(asserted)
}

func edgeString(asserted bool) string {
	if asserted {
		return "asserted"
	}
	return "cleared"
}

// Console owns one FlatBus, one Scheduler, one APU, and one sprite-DMA
// controller, wired together at their NES-standard addresses.
type Console struct {
	Bus       *bus.Bus
	Flat      *bus.FlatBus
	Scheduler *scheduler.Scheduler
	APU       *apu.APU
	SpriteDMA *spritedma.Controller
	IRQ       bus.InterruptLine

	sampleRate int
}

// New constructs a Console sampling audio through sink at sampleRate
// and reporting frame interrupts on irq. If irq is nil, a NullIRQ
// is installed so the APU always has somewhere to report to.
func New(sink audio.Sink, irq bus.InterruptLine, sampleRate int) *Console {
	if irq == nil {
		irq = &NullIRQ{}
	}
	wrappedIRQ := &loggingIRQ{inner: irq}

	flat := bus.NewFlatBus()
	busRef := bus.New(flat)
	sched := scheduler.New(cpuClockHz)
	a := apu.New(sink, wrappedIRQ)
	dma := spritedma.New(busRef, sched)

	a.MainRegion.Base = apuMainBase
	a.CtrlStatRegion.Base = apuCtrlStatBase
	a.SequencerRegion.Base = apuSequencerBase
	dma.Region.Base = spriteDMABase

	transfer := dma.Region.WriteByte
	dma.Region.WriteByte = func(addr uint16, v byte) {
		transfer(addr, v)
		fmt.Printf("[DMA] transfer #%d from page %#02x\n", dma.Transfers(), v)
	}

	flat.Attach(&a.MainRegion)
	flat.Attach(&a.CtrlStatRegion)
	flat.Attach(&a.SequencerRegion)
	flat.Attach(&dma.Region)

	sched.AddClock("apu_sample", float64(sampleRate), a.SampleClock)
	sched.AddClock("apu_sequencer", sequencerClockHz, a.SequencerClock)

	return &Console{
		Bus:        busRef,
		Flat:       flat,
		Scheduler:  sched,
		APU:        a,
		SpriteDMA:  dma,
		IRQ:        wrappedIRQ,
		sampleRate: sampleRate,
	}
}

// Init opens the audio frontend. Must be called before Step.
func (c *Console) Init() error {
	fmt.Printf("[CONSOLE] init: sample rate %d Hz\n", c.sampleRate)
	return c.APU.Init(c.sampleRate)
}

// Reset clears the APU's register and channel state. The sprite-DMA
// controller and scheduler have no persistent state to clear beyond
// their running totals.
func (c *Console) Reset() {
	fmt.Println("[CONSOLE] reset")
	c.APU.Reset()
}

// Step advances the console by cpuCycles CPU-clock cycles, firing the
// APU's sample and sequencer clocks as many times as their registered
// rates dictate.
func (c *Console) Step(cpuCycles uint64) {
	c.Scheduler.Advance(cpuCycles)
}

// Deinit releases the audio frontend.
func (c *Console) Deinit() error {
	fmt.Println("[CONSOLE] deinit")
	return c.APU.Deinit()
}

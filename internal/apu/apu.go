// Package apu implements a cycle-driven, two-channel pulse-wave audio
// processing unit: register-write side effects, the timer/duty/length/
// envelope/sweep pulse pipeline, the frame sequencer, and the linear
// mixer. Triangle/noise/DMC registers are stored for write-through
// fidelity but never sampled.
package apu

import (
	"fmt"

	"github.com/rng999/nesapu/internal/audio"
	"github.com/rng999/nesapu/internal/bus"
)

// APU owns the register file and both pulse channel states, and
// exposes three bus regions plus two clock callbacks.
type APU struct {
	regs   registers
	pulses [2]pulseState

	seqStep int
	// cycle alternates 0/1 across sample ticks; the timer/duty
	// sequencer only advances on every second tick.
	cycle int

	sink audio.Sink
	irq  bus.InterruptLine

	// MainRegion, CtrlStatRegion, and SequencerRegion are the three
	// bus-visible regions, addressed relative to each region's own
	// base (address decoding onto the real system bus is the bus
	// fabric's job, out of scope here).
	MainRegion      bus.Region
	CtrlStatRegion  bus.Region
	SequencerRegion bus.Region

	// SampleClock and SequencerClock let the scheduler drive the
	// sample-output rate and the frame sequencer independently.
	SampleClock    SampleClock
	SequencerClock SequencerClock
}

// New constructs an APU bound to the given audio sink and interrupt
// line. The sink is not opened until Init is called.
func New(sink audio.Sink, irq bus.InterruptLine) *APU {
	a := &APU{sink: sink, irq: irq}

	a.MainRegion = bus.Region{
		Base:      0,
		Size:      numRegs,
		WriteByte: func(addr uint16, v byte) { a.writeMain(byte(addr), v) },
	}
	a.CtrlStatRegion = bus.Region{
		Base:      0,
		Size:      1,
		ReadByte:  func(addr uint16) byte { return a.readStatus() },
		WriteByte: func(addr uint16, v byte) { a.writeControl(v) },
	}
	a.SequencerRegion = bus.Region{
		Base:      0,
		Size:      1,
		WriteByte: func(addr uint16, v byte) { a.writeSequencer(v) },
	}

	a.SampleClock = SampleClock{a: a}
	a.SequencerClock = SequencerClock{a: a}

	a.Reset()
	return a
}

// Init opens the audio frontend at sampleRate and returns the sink's
// Open error, wrapped, if it fails. Register accesses and ticks never
// fail; Deinit passes on the sink's Close error.
func (a *APU) Init(sampleRate int) error {
	if err := a.sink.Open(audio.Spec{Freq: sampleRate, Format: audio.FormatU8, Channels: 1}); err != nil {
		return fmt.Errorf("apu: opening audio frontend: %w", err)
	}
	return nil
}

// Reset clears all register and channel state and marks both pulses
// silenced. envStart and sweepReload are left false, so the first
// post-reset register write per channel is what primes it.
func (a *APU) Reset() {
	a.regs = registers{}
	a.pulses = [2]pulseState{}
	a.seqStep = 0
	a.cycle = 0

	for i := range a.pulses {
		a.pulses[i].lengthSilenced = true
		a.pulses[i].sweepSilenced = true
	}
}

// Deinit releases the audio frontend.
func (a *APU) Deinit() error {
	return a.sink.Close()
}

// writeMain is the main-region write path: the raw byte always lands
// in the register file first, then the timer-high/sweep side effects
// fire.
func (a *APU) writeMain(addr byte, v byte) {
	a.regs.raw[addr] = v

	switch addr {
	case pulse1TimerHigh:
		if a.regs.pulseEnabled(0) {
			a.pulses[0].lengthCounter = lengthTable[a.regs.lengthLoad(pulse1TimerHigh)]
		}
		a.pulses[0].envStart = true
	case pulse2TimerHigh:
		if a.regs.pulseEnabled(1) {
			a.pulses[1].lengthCounter = lengthTable[a.regs.lengthLoad(pulse2TimerHigh)]
		}
		a.pulses[1].envStart = true
	case pulse1Sweep:
		a.pulses[0].sweepReload = true
	case pulse2Sweep:
		a.pulses[1].sweepReload = true
	}
}

// readStatus returns the status byte and clears the frame-interrupt
// flag as a side effect, lowering the (level-sensitive) IRQ line.
func (a *APU) readStatus() byte {
	b := a.regs.stat
	a.regs.setStatBit(statFrameInterrupt, false)
	a.setIRQ(false)
	return b
}

// writeControl stores the control byte, then zeroes the length
// counter of any channel whose enable bit is now clear.
func (a *APU) writeControl(v byte) {
	a.regs.ctrl = v
	for idx := range a.pulses {
		if !a.regs.pulseEnabled(idx) {
			a.pulses[idx].lengthCounter = 0
		}
	}
}

// writeSequencer stores the byte, resets the step to zero, and clears
// the frame-interrupt flag if the inhibit bit is now set.
//
// Real hardware also resets the sequencer's internal clock divider on
// this write; that divider lives in the scheduler's clock-rate
// bookkeeping (internal/scheduler) rather than in the APU itself, so
// only the step counter is reset here.
func (a *APU) writeSequencer(v byte) {
	a.regs.seq = v
	a.seqStep = 0

	if a.regs.seqIntInhibit() {
		a.regs.setStatBit(statFrameInterrupt, false)
		a.setIRQ(false)
	}
}

func (a *APU) setIRQ(asserted bool) {
	if a.irq != nil {
		a.irq.SetIRQ(asserted)
	}
}

// sampleTick runs a single sample-clock tick: it advances the
// timer/duty pipeline every other tick, mixes the current pulse
// outputs, and enqueues the resulting sample.
func (a *APU) sampleTick() int {
	a.cycle++
	if a.cycle == 2 {
		a.stepTimerDuty(0)
		a.stepTimerDuty(1)
		a.cycle = 0
	}

	sample := mix(a.pulses[0].dutyOut, a.pulses[1].dutyOut, a.pulses[0].volume, a.pulses[1].volume)
	a.sink.Enqueue(sample)
	return 1
}

// SampleClock adapts APU.sampleTick to scheduler.Clock without this
// package needing to import internal/scheduler (Go's structural
// interfaces make the explicit dependency unnecessary).
type SampleClock struct{ a *APU }

// Tick implements scheduler.Clock.
func (c SampleClock) Tick() int { return c.a.sampleTick() }

// SequencerClock adapts APU.tickSequencer to scheduler.Clock.
type SequencerClock struct{ a *APU }

// Tick implements scheduler.Clock.
func (c SequencerClock) Tick() int { return c.a.tickSequencer() }

package apu

import (
	"testing"

	"github.com/rng999/nesapu/internal/audio"
)

type fakeIRQ struct {
	asserted bool
	history  []bool
}

func (f *fakeIRQ) SetIRQ(asserted bool) {
	f.asserted = asserted
	f.history = append(f.history, asserted)
}

func newTestAPU() (*APU, *audio.RecordingSink, *fakeIRQ) {
	sink := &audio.RecordingSink{}
	irq := &fakeIRQ{}
	return New(sink, irq), sink, irq
}

func (a *APU) writeReg(addr byte, v byte) { a.MainRegion.WriteByte(uint16(addr), v) }

// --- round trip ---

func TestMainRegionRoundTrip(t *testing.T) {
	a, _, _ := newTestAPU()
	for addr := byte(0); addr < numRegs; addr++ {
		a.writeReg(addr, 0xA5)
		if got := a.regs.raw[addr]; got != 0xA5 {
			t.Fatalf("addr %#02x: raw = %#02x, want 0xA5", addr, got)
		}
	}
}

// --- scenario 1: pulse 1 plays a square tone ---

func TestScenarioPulse1SquareTone(t *testing.T) {
	a, _, _ := newTestAPU()

	a.writeControl(0x01)
	a.writeReg(pulse1Main, 0x3F) // duty 0, halt set, constant_vol set, vol_env=15
	a.writeReg(pulse1TimerLow, 0x40)
	a.writeReg(pulse1TimerHigh, 0x08) // period 0x040, length_load index 1 -> 254

	if a.pulses[0].lengthCounter != lengthTable[1] {
		t.Fatalf("length counter = %d, want %d", a.pulses[0].lengthCounter, lengthTable[1])
	}
	if !a.pulses[0].envStart {
		t.Fatalf("env_start should be set by the timer-high write")
	}

	// Halt is set, so the length clock can never silence the channel
	// regardless of the counter value; the sweep register was never
	// written, so sweep.enabled is clear. One clock of each settles
	// both gates the way the frame sequencer would.
	a.clockLength(0)
	a.clockSweep(0)
	a.clockEnvelope(0)

	if a.pulses[0].lengthSilenced || a.pulses[0].sweepSilenced {
		t.Fatalf("channel should be unsilenced: length_silenced=%v sweep_silenced=%v",
			a.pulses[0].lengthSilenced, a.pulses[0].sweepSilenced)
	}
	if a.pulses[0].volume != 15 {
		t.Fatalf("volume = %d, want 15 (constant_vol)", a.pulses[0].volume)
	}

	// Duty sequence 0 is "0 1 0 0 0 0 0 0"; with period 64 the timer
	// reloads every 65 timer/duty steps, and the duty sequencer only
	// advances on every second sample tick, so the first "1" sample
	// needs roughly 2*65 = 130 sample ticks to appear.
	sawHigh := false
	for i := 0; i < 140; i++ {
		a.sampleTick()
		if a.pulses[0].dutyOut == 1 {
			sawHigh = true
			break
		}
	}
	if !sawHigh {
		t.Fatalf("expected duty sequencer to emit a high sample within 140 sample ticks")
	}
}

func TestScenarioDisableMidTone(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeControl(0x01)
	a.writeReg(pulse1Main, 0x0F) // halt clear, constant_vol clear, vol_env=15
	a.writeReg(pulse1TimerLow, 0x40)
	a.writeReg(pulse1TimerHigh, 0x08)
	a.clockLength(0) // settle length_silenced=false with a nonzero counter

	a.writeControl(0x00)
	if a.pulses[0].lengthCounter != 0 {
		t.Fatalf("length counter after disable = %d, want 0", a.pulses[0].lengthCounter)
	}

	a.clockLength(0)
	if !a.pulses[0].lengthSilenced {
		t.Fatalf("expected length_silenced once the length clock observes a zero counter with halt clear")
	}

	a.sampleTick()
	a.sampleTick()
	if a.pulses[0].dutyOut != 0 {
		t.Fatalf("duty_out = %d, want 0 once silenced", a.pulses[0].dutyOut)
	}
}

func TestScenarioFrameInterrupt(t *testing.T) {
	a, _, irq := newTestAPU()
	a.writeSequencer(0x00) // 4-step, inhibit clear

	for i := 0; i < 4; i++ {
		a.tickSequencer()
	}

	if a.regs.stat&statFrameInterrupt == 0 {
		t.Fatalf("frame_interrupt not set after 4 ticks in 4-step mode")
	}
	if !irq.asserted {
		t.Fatalf("IRQ line not raised")
	}

	b := a.readStatus()
	if b&statFrameInterrupt == 0 {
		t.Fatalf("status read should report bit 6 set")
	}
	if a.regs.stat&statFrameInterrupt != 0 {
		t.Fatalf("status read should clear frame_interrupt as a side effect")
	}
	if irq.asserted {
		t.Fatalf("status read should deassert IRQ")
	}

	second := a.readStatus()
	if second&statFrameInterrupt != 0 {
		t.Fatalf("second status read should report frame_interrupt clear")
	}
}

func TestScenarioSweepSilencesLowPeriod(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeReg(pulse1TimerLow, 0x05)
	a.writeReg(pulse1TimerHigh, 0x00)
	a.writeReg(pulse1Sweep, 0x81) // enabled, shift 1, period 0

	a.clockSweep(0)

	if !a.pulses[0].sweepSilenced {
		t.Fatalf("expected sweep_silenced for period 5 with sweep enabled")
	}
	a.sampleTick()
	a.sampleTick()
	if a.pulses[0].dutyOut != 0 {
		t.Fatalf("expected silent output once sweep_silenced")
	}
}

func TestScenarioEnvelopeLoop(t *testing.T) {
	a, _, _ := newTestAPU()
	// constant_vol=0, env_loop=1, vol_env=3
	a.writeReg(pulse1Main, 0x23) // 0010_0011: env_loop bit(0x20) set, vol_env=3
	a.pulses[0].envStart = true  // primed by an implicit prior write, per Open Question

	a.clockEnvelope(0) // consumes env_start: decay=15, div=vol_env(3)
	if a.pulses[0].envDecay != 15 {
		t.Fatalf("decay after consuming env_start = %d, want 15", a.pulses[0].envDecay)
	}

	// One decrement happens every (vol_env+1) = 4 envelope ticks; 15
	// decrements plus one reload needs a little over 60 ticks.
	sawReload := false
	prev := a.pulses[0].envDecay
	for tick := 0; tick < 80; tick++ {
		a.clockEnvelope(0)
		if a.pulses[0].volume != a.pulses[0].envDecay {
			t.Fatalf("tick %d: volume = %d, want envDecay %d", tick, a.pulses[0].volume, a.pulses[0].envDecay)
		}
		if prev == 0 && a.pulses[0].envDecay == 15 {
			sawReload = true
		}
		prev = a.pulses[0].envDecay
	}
	if !sawReload {
		t.Fatalf("expected decay to reload to 15 after reaching 0 in loop mode")
	}
}

// --- invariants ---

func TestInvariantControlDisableZeroesLengthImmediately(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeControl(0x03)
	a.writeReg(pulse1TimerHigh, 0x00)
	a.writeReg(pulse2TimerHigh, 0x00)
	if a.pulses[0].lengthCounter == 0 || a.pulses[1].lengthCounter == 0 {
		t.Fatalf("expected nonzero length counters after enabling with a timer-high write")
	}

	a.writeControl(0x00)
	if a.pulses[0].lengthCounter != 0 || a.pulses[1].lengthCounter != 0 {
		t.Fatalf("expected both length counters zero immediately after disabling")
	}
}

func TestInvariantStatusReadTwiceWithoutFClearsInterrupt(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeSequencer(0x40) // inhibit set, so f pulses never set frame_interrupt
	for i := 0; i < 10; i++ {
		a.tickSequencer()
	}
	_ = a.readStatus()
	second := a.readStatus()
	if second&statFrameInterrupt != 0 {
		t.Fatalf("second status read should report frame_interrupt clear")
	}
}

func TestInvariantConstantVolMatchesVolEnvAfterEnvelopeTick(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeReg(pulse1Main, 0x1C) // constant_vol set, vol_env=12, halt clear
	a.clockEnvelope(0)
	volEnv := a.regs.volEnv(pulse1Main)
	if a.pulses[0].volume != volEnv {
		t.Fatalf("volume = %d, want vol_env %d with constant_vol set", a.pulses[0].volume, volEnv)
	}
}

func TestInvariantSweepNegateAsymmetryBetweenChannels(t *testing.T) {
	a, _, _ := newTestAPU()
	const timerPeriod = 100
	const shift = 2

	a.writeReg(pulse1TimerLow, byte(timerPeriod&0xFF))
	a.writeReg(pulse1TimerHigh, byte(timerPeriod>>8))
	a.writeReg(pulse1Sweep, 0x80|0x08|shift) // enabled, negate, shift=2, divider period 0

	a.writeReg(pulse2TimerLow, byte(timerPeriod&0xFF))
	a.writeReg(pulse2TimerHigh, byte(timerPeriod>>8))
	a.writeReg(pulse2Sweep, 0x80|0x08|shift)

	// sweep_reload was set by each register write above; with the
	// divider starting at zero, a single clock both reloads and fires
	// the period-adjust.
	a.clockSweep(0)
	a.clockSweep(1)

	shifted := uint16(timerPeriod) >> shift
	wantCh2 := uint16(timerPeriod) - shifted
	wantCh1 := wantCh2 - 1 // pulse 1's one's-complement adder quirk

	gotCh1 := a.regs.timerPeriod(pulse1TimerLow, pulse1TimerHigh)
	gotCh2 := a.regs.timerPeriod(pulse2TimerLow, pulse2TimerHigh)

	if gotCh2 != wantCh2 {
		t.Fatalf("pulse 2 adjusted period = %d, want %d", gotCh2, wantCh2)
	}
	if gotCh1 != wantCh1 {
		t.Fatalf("pulse 1 adjusted period = %d, want %d (one less than pulse 2's)", gotCh1, wantCh1)
	}
}

// --- boundary behaviors ---

func TestBoundaryPeriod7AlwaysSilenced(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeReg(pulse2TimerLow, 7)
	a.writeReg(pulse2TimerHigh, 0)
	a.writeReg(pulse2Sweep, 0x80) // enabled, shift 0, period 0

	a.clockSweep(1)
	if !a.pulses[1].sweepSilenced {
		t.Fatalf("period 7 with sweep enabled must silence regardless of shift")
	}
}

func TestBoundaryTargetOverflowSilences(t *testing.T) {
	a, _, _ := newTestAPU()
	const period = 0x400
	a.writeReg(pulse2TimerLow, byte(period&0xFF))
	a.writeReg(pulse2TimerHigh, byte(period>>8))
	a.writeReg(pulse2Sweep, 0x80) // enabled, shift 0, negate 0

	a.clockSweep(1)
	if !a.pulses[1].sweepSilenced {
		t.Fatalf("target period > 0x7FF must silence the channel")
	}
}

func TestBoundaryFiveStepModeNeverSetsFrameInterrupt(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeSequencer(0x80) // 5-step mode, inhibit clear
	for i := 0; i < 50; i++ {
		a.tickSequencer()
	}
	if a.regs.stat&statFrameInterrupt != 0 {
		t.Fatalf("5-step mode must never set frame_interrupt")
	}
}

func TestBoundaryEnvelopeDecayReachesZeroAndHolds(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeReg(pulse1Main, 0x00) // env_loop=0, vol_env=0 (divider clocks every tick)
	a.pulses[0].envStart = true
	a.clockEnvelope(0) // consume start flag: decay=15, div=0

	for i := 0; i < 15; i++ {
		a.clockEnvelope(0)
	}
	if a.pulses[0].envDecay != 0 {
		t.Fatalf("decay = %d after 15 ticks from 15 with div=0, want 0", a.pulses[0].envDecay)
	}
	a.clockEnvelope(0)
	if a.pulses[0].envDecay != 0 {
		t.Fatalf("decay should stay at 0 without loop flag, got %d", a.pulses[0].envDecay)
	}
}

// --- length-counter-zero invariant, universal ---

func TestInvariantLengthZeroImpliesSilencedOrHalted(t *testing.T) {
	a, _, _ := newTestAPU()
	a.writeReg(pulse1Main, 0x00) // halt clear
	a.clockLength(0)             // length already 0, halt clear -> should silence
	if a.pulses[0].lengthCounter != 0 {
		t.Fatalf("length counter should remain 0")
	}
	if !a.pulses[0].lengthSilenced {
		t.Fatalf("length_counter==0 with halt clear must silence on clock")
	}
}

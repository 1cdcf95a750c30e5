package apu

// sequencerSchedule computes the (frameInterrupt, lengthSweep,
// envelope) pulse flags for step s of the frame sequencer. mode is
// read live from the sequencer register on every tick, not cached at
// write time, so a mode change takes effect on the very next tick.
func sequencerSchedule(mode uint8, step int) (f, l, e bool) {
	if mode == 0 {
		// 4-step: f on step 3; l on steps 1,3; e every step.
		return step == 3, step == 1 || step == 3, true
	}
	// 5-step: f never; l on steps 0,2; e on steps 0..3.
	return false, step == 0 || step == 2, step <= 3
}

func numSequencerSteps(mode uint8) int {
	if mode == 0 {
		return 4
	}
	return 5
}

// tickSequencer computes (f,l,e) on the current step, advances the
// step, raises the interrupt, then clocks length+sweep and envelope,
// in that order.
func (a *APU) tickSequencer() int {
	mode := a.regs.seqMode()
	f, l, e := sequencerSchedule(mode, a.seqStep)

	a.seqStep = (a.seqStep + 1) % numSequencerSteps(mode)

	if f && !a.regs.seqIntInhibit() {
		a.regs.setStatBit(statFrameInterrupt, true)
	}
	if a.regs.stat&statFrameInterrupt != 0 {
		if a.irq != nil {
			a.irq.SetIRQ(true)
		}
	}

	if l {
		for idx := 0; idx < 2; idx++ {
			a.clockLength(idx)
			a.clockSweep(idx)
		}
	}
	if e {
		for idx := 0; idx < 2; idx++ {
			a.clockEnvelope(idx)
		}
	}

	return 1
}

// Package scheduler drives per-device ticks at their declared rates
// and accumulates the cycles each tick consumes.
//
// Real systems (a full bus fabric driven by a CPU) would supply their
// own scheduler against the same Clock interface; this one exists so
// internal/apu and internal/spritedma can be driven and tested without
// a CPU.
package scheduler

// Clock is anything that can be advanced by one tick and reports how
// many cycles that tick consumed. apu.APU exposes two (sample,
// sequencer); spritedma.Controller's write handler charges cycles
// directly rather than through a Clock, since the DMA only runs in
// response to a bus write, not a periodic tick.
type Clock interface {
	// Tick advances the clock by one step and returns the number of
	// cycles charged to the scheduler.
	Tick() int
}

// registeredClock pairs a Clock with its declared rate (ticks per
// second) and the fractional-cycle accumulator used to interleave
// clocks running at different rates against a single cycle counter.
type registeredClock struct {
	name  string
	clock Clock
	rate  float64
	// acc accumulates fractional ticks owed to this clock as the
	// scheduler's reference cycle counter advances.
	acc float64
}

// Scheduler drives a set of named clocks, each at its own declared
// rate, and keeps a per-clock total of the cycles their ticks report
// plus a running total of reference cycles advanced and cycles
// charged directly. It is not goroutine-safe: callers are expected to drive it
// from a single goroutine, the same way register state is accessed.
type Scheduler struct {
	refRate      float64
	clocks       []*registeredClock
	totalCycles  uint64
	ticksCharged map[string]uint64
}

// New creates a Scheduler whose reference rate is refRate ticks per
// second (typically the CPU or bus clock rate that all registered
// clocks are fractions of).
func New(refRate float64) *Scheduler {
	return &Scheduler{
		refRate:      refRate,
		ticksCharged: make(map[string]uint64),
	}
}

// AddClock registers a clock that should fire at rate ticks per
// second relative to the scheduler's reference rate.
func (s *Scheduler) AddClock(name string, rate float64, clock Clock) {
	s.clocks = append(s.clocks, &registeredClock{name: name, clock: clock, rate: rate})
}

// Advance runs the scheduler forward by refCycles reference cycles,
// firing each registered clock as many times as its rate dictates and
// charging the cycles each tick reports.
func (s *Scheduler) Advance(refCycles uint64) {
	for i := uint64(0); i < refCycles; i++ {
		s.totalCycles++
		for _, rc := range s.clocks {
			rc.acc += rc.rate / s.refRate
			for rc.acc >= 1.0 {
				rc.acc -= 1.0
				charged := rc.clock.Tick()
				s.ticksCharged[rc.name] += uint64(charged)
			}
		}
	}
}

// Charge records cycles consumed outside of a registered clock's
// regular tick — the sprite DMA's 512-cycle stall being the
// motivating case.
func (s *Scheduler) Charge(cycles int) {
	s.totalCycles += uint64(cycles)
}

// TotalCycles returns the number of reference cycles advanced plus the
// cycles added by direct Charge calls. Cycles reported by clock ticks
// are counted per clock (see CyclesFor), not here.
func (s *Scheduler) TotalCycles() uint64 {
	return s.totalCycles
}

// CyclesFor returns how many cycles a specific named clock has
// charged so far; useful in tests asserting a device's tick rate.
func (s *Scheduler) CyclesFor(name string) uint64 {
	return s.ticksCharged[name]
}

// Package spritedma implements the sprite (OAM) DMA controller: a
// single-register device that, on write, copies 256 bytes from a
// chosen page to a fixed destination address and charges 512 cycles
// to the scheduler.
package spritedma

import "github.com/rng999/nesapu/internal/bus"

// destAddress is the DMA controller's hard-coded destination.
const destAddress = 0x2004

// transferLen is the fixed block size copied on every write.
const transferLen = 256

// cyclesCharged is the fixed cycle cost of one transfer: the real
// controller stalls the processor for 512 bus cycles per transfer.
const cyclesCharged = 512

// Charger is the scheduler capability the DMA controller needs:
// charging a fixed number of cycles outside of any registered clock's
// regular tick. Implemented by *scheduler.Scheduler.
type Charger interface {
	Charge(cycles int)
}

// Controller is the sprite-DMA device. Unlike apu.APU, it has no
// periodic clock of its own: all of its work happens synchronously in
// its single register's write handler.
type Controller struct {
	bus       *bus.Bus
	scheduler Charger

	// Region is the controller's one bus-visible, write-only register.
	Region bus.Region

	transfers int
}

// New constructs a Controller that reads/writes through busRef and
// charges transfer cycles to sched.
func New(busRef *bus.Bus, sched Charger) *Controller {
	c := &Controller{bus: busRef, scheduler: sched}
	c.Region = bus.Region{
		Base:      0,
		Size:      1,
		WriteByte: func(addr uint16, v byte) { c.writeByte(v) },
	}
	return c
}

// writeByte transfers 256 bytes from page b<<8 to destAddress, strictly
// ascending, then charges 512 cycles. Reads from the bus propagate
// whatever the bus returns; it is not this controller's job to
// validate them.
func (c *Controller) writeByte(b byte) {
	src := uint16(b) << 8
	for i := 0; i < transferLen; i++ {
		value := c.bus.ReadByte(src + uint16(i))
		c.bus.WriteByte(destAddress, value)
	}
	c.scheduler.Charge(cyclesCharged)
	c.transfers++
}

// Transfers reports how many DMA transfers this controller has
// performed, for tests and diagnostics.
func (c *Controller) Transfers() int {
	return c.transfers
}

// Package bus provides a register bus fabric: it routes addresses to
// device regions and dispatches byte reads/writes. This package
// defines the interfaces devices in internal/apu and internal/spritedma
// are built against, plus FlatBus, a reference flat-memory
// implementation good enough for integration tests and the cmd/nesapu
// demo.
package bus

// Bus is the minimal read/write contract a device needs from the bus
// fabric, wrapping a ReadWriter. internal/spritedma reads source bytes
// and writes its destination byte through this type; internal/apu never reads
// the bus itself (its main region is write-only).
type Bus struct {
	mem ReadWriter
}

// ReadWriter is satisfied by any byte-addressable memory the bus
// fabric routes to, including FlatBus and a real system's combined
// RAM/mapper/PPU-register address space.
type ReadWriter interface {
	ReadByte(addr uint16) byte
	WriteByte(addr uint16, v byte)
}

// New wraps a ReadWriter as a Bus.
func New(mem ReadWriter) *Bus {
	return &Bus{mem: mem}
}

// ReadByte reads a single byte from the bus.
func (b *Bus) ReadByte(addr uint16) byte {
	return b.mem.ReadByte(addr)
}

// WriteByte writes a single byte to the bus.
func (b *Bus) WriteByte(addr uint16, v byte) {
	b.mem.WriteByte(addr, v)
}

// InterruptLine is a level-sensitive CPU interrupt input: raised while
// the APU's frame-interrupt status bit is set, cleared by either a
// status read or setting the sequencer's interrupt-inhibit bit. Kept
// level-sensitive and separate from an edge-triggered NMI line, which
// this package does not model.
type InterruptLine interface {
	SetIRQ(asserted bool)
}

// Region models a device's memory-mapped register block as a capability
// object: a byte range plus the read/write operations backing it,
// instead of an inheritance hierarchy. A controller exposes one Region
// per bus-visible register block.
type Region struct {
	// Base is the first address the region occupies; Size is the
	// number of addressable bytes. FlatBus uses both to route an
	// access to this region.
	Base uint16
	Size uint16
	// ReadByte and WriteByte may be nil for write-only or read-only
	// regions respectively (the APU's main region has no ReadByte; the
	// sprite-DMA region has no ReadByte at all). Both receive the
	// address as an offset from Base.
	ReadByte  func(addr uint16) byte
	WriteByte func(addr uint16, v byte)
}

// FlatBus is a reference ReadWriter backed by a single contiguous byte
// array, sized to cover the full 16-bit address space. It exists for
// tests and the cmd/nesapu demo; it performs no address decoding or
// mirroring beyond routing attached regions.
type FlatBus struct {
	mem [1 << 16]byte
	// regions lets tests route specific addresses (e.g. 0x2004, the
	// sprite-DMA destination) to a device's Region instead of plain
	// backing memory.
	regions []*Region
}

// NewFlatBus creates an empty 64KiB FlatBus.
func NewFlatBus() *FlatBus {
	return &FlatBus{}
}

// Attach registers a Region so reads/writes within [Base, Base+Size)
// are routed to it instead of plain backing memory.
func (f *FlatBus) Attach(r *Region) {
	f.regions = append(f.regions, r)
}

func (f *FlatBus) find(addr uint16) *Region {
	for _, r := range f.regions {
		if addr >= r.Base && addr < r.Base+r.Size {
			return r
		}
	}
	return nil
}

// ReadByte implements ReadWriter.
func (f *FlatBus) ReadByte(addr uint16) byte {
	if r := f.find(addr); r != nil && r.ReadByte != nil {
		return r.ReadByte(addr - r.Base)
	}
	return f.mem[addr]
}

// WriteByte implements ReadWriter.
func (f *FlatBus) WriteByte(addr uint16, v byte) {
	if r := f.find(addr); r != nil && r.WriteByte != nil {
		r.WriteByte(addr-r.Base, v)
		return
	}
	f.mem[addr] = v
}

// SetRaw writes directly to backing memory, bypassing any attached
// Region — used by tests to pre-populate source pages for sprite DMA.
func (f *FlatBus) SetRaw(addr uint16, v byte) {
	f.mem[addr] = v
}

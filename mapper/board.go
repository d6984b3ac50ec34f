package mapper

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Registers is the register file shared by every board. Each variant gives
// the fields its own meaning.
type Registers struct {
	Latch uint16
	Regs  [16]uint8
	Outer uint8 // outer bank of a multicart
	Mode  uint8
	Dip   uint8 // dip switch, survives soft reset on boards that cycle it
}

// Handler applies a CPU write to the register file.
type Handler func(r *Registers, irq *IRQCounter, addr uint16, v uint8)

// Range routes CPU writes to addresses Lo through Hi to Write.
type Range struct {
	Lo, Hi uint16
	Write  Handler
}

// Variant describes one mapper. Boards share all state handling; a variant
// only supplies its address decoding and its register to bank formula.
type Variant struct {
	ID     int
	Name   string
	Writes []Range

	// Read optionally overrides CPU reads in $4020-$FFFF. It reports false to
	// fall through to the normal memory map.
	Read func(r *Registers, addr uint16) (uint8, bool)

	// Sync derives the memory map from the registers. It must depend on
	// nothing but its arguments.
	Sync func(r Registers, b *Banks)

	// Power initializes registers after they are zeroed at power on. Nil
	// leaves them zero.
	Power func(r *Registers)

	// Reset replaces the default soft reset, which behaves like power on.
	Reset func(r *Registers)

	IRQ IRQPolicy
}

// Board is the bank-switching state of one loaded cartridge.
type Board struct {
	variant *Variant
	ranges  []Range
	regs    Registers
	irq     IRQCounter
	banks   Banks
}

// New creates a board for v over prgSize bytes of PRG ROM and chrSize bytes of
// CHR memory, powered on. It panics if v declares overlapping write ranges.
func New(v *Variant, prgSize, chrSize int, mirror Mirroring) *Board {
	ranges := append([]Range(nil), v.Writes...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Lo < ranges[j].Lo })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Lo <= ranges[i-1].Hi {
			panic(fmt.Sprintf("mapper %s: overlapping write ranges $%04X and $%04X", v.Name, ranges[i-1].Lo, ranges[i].Lo))
		}
	}
	b := &Board{
		variant: v,
		ranges:  ranges,
		banks:   newBanks(prgSize, chrSize, mirror),
	}
	b.Power()
	return b
}

// Variant returns the mapper this board implements.
func (b *Board) Variant() *Variant {
	return b.variant
}

// Registers returns a copy of the register file.
func (b *Board) Registers() Registers {
	return b.regs
}

// IRQ returns a copy of the interrupt counter.
func (b *Board) IRQ() IRQCounter {
	return b.irq
}

// Mapping returns the memory map derived by the last Sync.
func (b *Board) Mapping() Mapping {
	return b.banks.m
}

// Write handles a CPU write. It reports whether any register decoded the
// address; unhandled writes fall through to the bus.
func (b *Board) Write(addr uint16, v uint8) bool {
	i := sort.Search(len(b.ranges), func(i int) bool { return b.ranges[i].Hi >= addr })
	if i == len(b.ranges) || addr < b.ranges[i].Lo {
		return false
	}
	b.ranges[i].Write(&b.regs, &b.irq, addr, v)
	b.Sync()
	return true
}

// Read returns a register-driven value for addr, if the board drives one.
func (b *Board) Read(addr uint16) (uint8, bool) {
	if b.variant.Read == nil {
		return 0, false
	}
	return b.variant.Read(&b.regs, addr)
}

// Sync recomputes the memory map from the registers.
func (b *Board) Sync() {
	b.banks.reset()
	if b.variant.Sync != nil {
		b.variant.Sync(b.regs, &b.banks)
	}
}

// Tick advances the IRQ counter by elapsed units of src. Ticks from a source
// the board doesn't count are ignored.
func (b *Board) Tick(src TickSource, elapsed uint32) {
	if src == TickNone || src != b.variant.IRQ.Source {
		return
	}
	b.irq.tick(b.variant.IRQ, elapsed)
}

// IRQPending reports whether the board is asserting the IRQ line.
func (b *Board) IRQPending() bool {
	return b.irq.Pending
}

// AcknowledgeIRQ releases the IRQ line.
func (b *Board) AcknowledgeIRQ() {
	b.irq.Acknowledge()
}

// Power zeroes all registers and the IRQ counter.
func (b *Board) Power() {
	b.regs = Registers{}
	b.irq = IRQCounter{}
	if b.variant.Power != nil {
		b.variant.Power(&b.regs)
	}
	b.Sync()
}

// Reset performs a soft reset.
func (b *Board) Reset() {
	if b.variant.Reset == nil {
		b.Power()
		return
	}
	b.irq = IRQCounter{}
	b.variant.Reset(&b.regs)
	b.Sync()
}

const stateVersion = 1

// stateSize is the encoded size of the board state.
const stateSize = 1 + 2 + 16 + 3 + 4 + 2

// ErrBadState is returned when restoring an unrecognized board state
var ErrBadState = errors.New("invalid mapper state")

// MarshalBinary encodes the registers and IRQ counter.
func (b *Board) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, stateSize)
	buf = append(buf, stateVersion)
	buf = binary.LittleEndian.AppendUint16(buf, b.regs.Latch)
	buf = append(buf, b.regs.Regs[:]...)
	buf = append(buf, b.regs.Outer, b.regs.Mode, b.regs.Dip)
	buf = binary.LittleEndian.AppendUint32(buf, b.irq.Counter)
	buf = append(buf, boolByte(b.irq.Enabled), boolByte(b.irq.Pending))
	return buf, nil
}

// UnmarshalBinary restores state written by MarshalBinary and rebuilds the
// memory map from it.
func (b *Board) UnmarshalBinary(data []byte) error {
	if len(data) != stateSize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrBadState, len(data), stateSize)
	}
	if data[0] != stateVersion {
		return fmt.Errorf("%w: version %d", ErrBadState, data[0])
	}
	var r Registers
	r.Latch = binary.LittleEndian.Uint16(data[1:])
	copy(r.Regs[:], data[3:19])
	r.Outer, r.Mode, r.Dip = data[19], data[20], data[21]
	b.regs = r
	b.irq = IRQCounter{
		Counter: binary.LittleEndian.Uint32(data[22:]),
		Enabled: data[26] != 0,
		Pending: data[27] != 0,
	}
	b.Sync()
	return nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

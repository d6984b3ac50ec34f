// Package mapper models cartridge bank-switching hardware. A Board holds the
// mapper's register file and derives the active memory map from it through a
// per-mapper formula, so the map can never drift from the registers.
package mapper

// Mirroring selects how the two physical nametables fill the four logical ones.
type Mirroring uint8

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorSingleA
	MirrorSingleB
)

// String returns the display name of the mirroring mode.
func (m Mirroring) String() string {
	switch m {
	case MirrorHorizontal:
		return "Horizontal"
	case MirrorVertical:
		return "Vertical"
	case MirrorSingleA:
		return "Single A"
	case MirrorSingleB:
		return "Single B"
	default:
		return "Unknown"
	}
}

// Window sizes of the mapping table.
const (
	PRGBankSize = 8 * 1024
	CHRBankSize = 1024
)

// NoBank marks the $6000-$7FFF window as backed by work RAM instead of ROM.
const NoBank = -1

// Mapping is the active memory map: which 8 KiB PRG bank backs each window of
// $8000-$FFFF, which 1 KiB CHR bank backs each window of $0000-$1FFF, and the
// nametable mirroring.
type Mapping struct {
	PRG    [4]int
	PRG6   int // 8 KiB PRG bank at $6000, or NoBank for work RAM
	CHR    [8]int
	Mirror Mirroring
}

// Banks builds a Mapping. Bank numbers are in units of the call's window size
// and wrap modulo the number of banks the cartridge has, so negative numbers
// count back from the last bank.
type Banks struct {
	prgBanks int // 8 KiB units
	chrBanks int // 1 KiB units
	mirror   Mirroring
	m        Mapping
}

func newBanks(prgSize, chrSize int, mirror Mirroring) Banks {
	b := Banks{
		prgBanks: max(prgSize/PRGBankSize, 1),
		chrBanks: max(chrSize/CHRBankSize, 1),
		mirror:   mirror,
	}
	b.reset()
	return b
}

// reset installs the power-on layout: first 32 KiB of PRG, first 8 KiB of CHR
// and the header mirroring.
func (b *Banks) reset() {
	b.m = Mapping{PRG6: NoBank, Mirror: b.mirror}
	b.PRG32(0)
	b.CHR8(0)
}

func wrap(bank, count int) int {
	bank %= count
	if bank < 0 {
		bank += count
	}
	return bank
}

// PRG8 maps an 8 KiB bank into window slot (0-3 for $8000, $A000, $C000, $E000).
func (b *Banks) PRG8(slot, bank int) {
	b.m.PRG[slot&3] = wrap(bank, b.prgBanks)
}

// PRG16 maps a 16 KiB bank at $8000 (slot 0) or $C000 (slot 1).
func (b *Banks) PRG16(slot, bank int) {
	base := (slot & 1) * 2
	b.PRG8(base, bank*2)
	b.PRG8(base+1, bank*2+1)
}

// PRG32 maps a 32 KiB bank at $8000.
func (b *Banks) PRG32(bank int) {
	for i := 0; i < 4; i++ {
		b.PRG8(i, bank*4+i)
	}
}

// PRG6 maps an 8 KiB ROM bank at $6000.
func (b *Banks) PRG6(bank int) {
	b.m.PRG6 = wrap(bank, b.prgBanks)
}

// CHR1 maps a 1 KiB bank into slot 0-7.
func (b *Banks) CHR1(slot, bank int) {
	b.m.CHR[slot&7] = wrap(bank, b.chrBanks)
}

// CHR2 maps a 2 KiB bank into slot 0-3.
func (b *Banks) CHR2(slot, bank int) {
	base := (slot & 3) * 2
	b.CHR1(base, bank*2)
	b.CHR1(base+1, bank*2+1)
}

// CHR4 maps a 4 KiB bank at $0000 (slot 0) or $1000 (slot 1).
func (b *Banks) CHR4(slot, bank int) {
	base := (slot & 1) * 4
	for i := 0; i < 4; i++ {
		b.CHR1(base+i, bank*4+i)
	}
}

// CHR8 maps an 8 KiB bank at $0000.
func (b *Banks) CHR8(bank int) {
	for i := 0; i < 8; i++ {
		b.CHR1(i, bank*8+i)
	}
}

// Mirror sets the nametable mirroring.
func (b *Banks) Mirror(m Mirroring) {
	b.m.Mirror = m
}

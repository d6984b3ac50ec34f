package mapper

// Mapper 91: HK-SF3. Four 2 KiB CHR registers at $6000-$6FFF, two 8 KiB PRG
// registers and IRQ control at $7000-$7FFF. The IRQ fires after eight
// scanlines and then disables itself.
var mapper091 = Variant{
	ID:   91,
	Name: "Mapper 91",
	Writes: []Range{
		{Lo: 0x6000, Hi: 0x6FFF, Write: func(r *Registers, _ *IRQCounter, addr uint16, v uint8) {
			r.Regs[addr&3] = v
		}},
		{Lo: 0x7000, Hi: 0x7FFF, Write: func(r *Registers, irq *IRQCounter, addr uint16, v uint8) {
			switch addr & 3 {
			case 0, 1:
				r.Regs[4+addr&1] = v
			case 2:
				irq.Enabled = false
				irq.Counter = 0
				irq.Pending = false
			case 3:
				irq.Enabled = true
				irq.Pending = false
			}
		}},
	},
	Sync: func(r Registers, b *Banks) {
		for i := 0; i < 4; i++ {
			b.CHR2(i, int(r.Regs[i]))
		}
		b.PRG8(0, int(r.Regs[4]&0xF))
		b.PRG8(1, int(r.Regs[5]&0xF))
		b.PRG8(2, -2)
		b.PRG8(3, -1)
	},
	IRQ: IRQPolicy{Source: TickScanline, Threshold: 8, Mode: IRQAutoDisable},
}

// Mapper 330: Sangochu. Namco 163-style registers where address bit 10
// separates bank registers from the 15-bit IRQ counter. Regs[0-7] are 1 KiB
// CHR banks and Regs[8-10] the switchable 8 KiB PRG banks. The counter counts
// CPU cycles up to $7FFF and holds there with the IRQ asserted.
var mapper330 = Variant{
	ID:   330,
	Name: "Mapper 330",
	Writes: []Range{
		{Lo: 0x8000, Hi: 0xBFFF, Write: func(r *Registers, irq *IRQCounter, addr uint16, v uint8) {
			if addr&0x400 == 0 {
				r.Regs[(addr>>11)&7] = v
				return
			}
			irq.Counter = irq.Counter&0x7F00 | uint32(v)
			irq.Pending = false
		}},
		{Lo: 0xC000, Hi: 0xFFFF, Write: func(r *Registers, irq *IRQCounter, addr uint16, v uint8) {
			if addr&0x400 != 0 {
				irq.Counter = irq.Counter&0xFF | uint32(v&0x7F)<<8
				irq.Enabled = v&0x80 != 0
				irq.Pending = false
				return
			}
			if addr < 0xE000 {
				r.Mode = v & 1
				return
			}
			if reg := (addr >> 11) & 3; reg < 3 {
				r.Regs[8+reg] = v
			}
		}},
	},
	Sync: func(r Registers, b *Banks) {
		for i := 0; i < 8; i++ {
			b.CHR1(i, int(r.Regs[i]))
		}
		for i := 0; i < 3; i++ {
			b.PRG8(i, int(r.Regs[8+i]))
		}
		b.PRG8(3, -1)
		if r.Mode&1 != 0 {
			b.Mirror(MirrorHorizontal)
		} else {
			b.Mirror(MirrorVertical)
		}
	},
	IRQ: IRQPolicy{Source: TickCPUCycle, Threshold: 0x7FFF, Mode: IRQClamp},
}

// smb2jBanks maps the 3-bit bank register to the 8 KiB bank at $C000 in the
// SMB2J game of mapper 357.
var smb2jBanks = [8]int{4, 3, 5, 3, 6, 3, 7, 3}

// Mapper 357: Bit Corp 4-in-1. The dip switch picks the game and advances on
// every reset. Game 0 is an SMB2J conversion with a 4096-cycle IRQ; games 1-3
// are UNROM games in 128 KiB outer blocks.
var mapper357 = Variant{
	ID:   357,
	Name: "Mapper 357",
	Writes: []Range{
		{Lo: 0x4022, Hi: 0x4022, Write: func(r *Registers, _ *IRQCounter, _ uint16, v uint8) {
			r.Regs[0] = v & 7
		}},
		{Lo: 0x4122, Hi: 0x4122, Write: func(_ *Registers, irq *IRQCounter, _ uint16, v uint8) {
			irq.Enabled = v&1 != 0
			irq.Counter = 0
			irq.Pending = false
		}},
		{Lo: 0x8000, Hi: 0xFFFF, Write: func(r *Registers, _ *IRQCounter, _ uint16, v uint8) {
			r.Latch = uint16(v)
		}},
	},
	Sync: func(r Registers, b *Banks) {
		if r.Dip == 0 {
			b.PRG6(2)
			b.PRG8(0, 1)
			b.PRG8(1, 0)
			b.PRG8(2, smb2jBanks[r.Regs[0]&7])
			b.PRG8(3, 8)
			return
		}
		outer := int(r.Dip) * 8
		b.PRG16(0, outer+int(r.Latch&7))
		b.PRG16(1, outer+7)
	},
	Reset: func(r *Registers) {
		dip := (r.Dip + 1) & 3
		*r = Registers{Dip: dip}
	},
	IRQ: IRQPolicy{Source: TickCPUCycle, Threshold: 4096, Mode: IRQAutoDisable},
}

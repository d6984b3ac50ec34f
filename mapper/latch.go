package mapper

// Address-latch boards store the CPU address of any write to $8000-$FFFF and
// derive the whole map from it.

func latchAddress(r *Registers, _ *IRQCounter, addr uint16, _ uint8) {
	r.Latch = addr
}

var romLatch = []Range{{Lo: 0x8000, Hi: 0xFFFF, Write: latchAddress}}

// mirrorBit maps a latch bit where 1 selects horizontal mirroring.
func mirrorBit(bit uint16) Mirroring {
	if bit&1 != 0 {
		return MirrorHorizontal
	}
	return MirrorVertical
}

var mapper058 = Variant{
	ID:     58,
	Name:   "Mapper 58",
	Writes: romLatch,
	Sync: func(r Registers, b *Banks) {
		l := int(r.Latch)
		if l&0x40 != 0 {
			b.PRG16(0, l&7)
			b.PRG16(1, l&7)
		} else {
			b.PRG32((l >> 1) & 3)
		}
		b.CHR8((l >> 3) & 7)
		b.Mirror(mirrorBit(r.Latch >> 7))
	},
}

var mapper061 = Variant{
	ID:     61,
	Name:   "Mapper 61",
	Writes: romLatch,
	Sync: func(r Registers, b *Banks) {
		l := int(r.Latch)
		if ((l&0x10)<<1)^(l&0x20) != 0 {
			bank := (l&0xF)<<1 | (l&0x20)>>4
			b.PRG16(0, bank)
			b.PRG16(1, bank)
		} else {
			b.PRG32(l & 0xF)
		}
		b.CHR8(0)
		b.Mirror(mirrorBit(r.Latch >> 7))
	},
}

var mapper200 = Variant{
	ID:     200,
	Name:   "Mapper 200",
	Writes: romLatch,
	Sync: func(r Registers, b *Banks) {
		bank := int(r.Latch & 7)
		b.PRG16(0, bank)
		b.PRG16(1, bank)
		b.CHR8(bank)
		b.Mirror(mirrorBit(r.Latch >> 3))
	},
	Power: func(r *Registers) { r.Latch = 0xFFFF },
}

var mapper202 = Variant{
	ID:     202,
	Name:   "Mapper 202",
	Writes: romLatch,
	Sync: func(r Registers, b *Banks) {
		mirror := int(r.Latch & 1)
		bank := int(r.Latch>>1) & 7
		if mirror&(bank>>2) != 0 {
			b.PRG16(0, bank&6)
			b.PRG16(1, bank&6|1)
		} else {
			b.PRG16(0, bank)
			b.PRG16(1, bank)
		}
		b.CHR8(bank)
		b.Mirror(mirrorBit(r.Latch))
	},
}

var mapper204 = Variant{
	ID:     204,
	Name:   "Mapper 204",
	Writes: romLatch,
	Sync: func(r Registers, b *Banks) {
		l := int(r.Latch)
		hi := l & 6
		lo := hi + l&1
		second := hi + l&1
		if hi == 6 {
			lo = hi
			second = hi + 1
		}
		b.PRG16(0, lo)
		b.PRG16(1, second)
		b.CHR8(lo)
		b.Mirror(mirrorBit(r.Latch >> 4))
	},
	Power: func(r *Registers) { r.Latch = 0xFFFF },
}

// BMC-D1038 multicarts expose a 2-bit dip switch through reads of $6000-$FFFF
// while latch bit 8 is set. Latch bit 9 locks out further writes until reset, and each reset
// advances the dip switch to select the next menu.
var mapperD1038 = Variant{
	ID:   59,
	Name: "BMC-D1038",
	Writes: []Range{{Lo: 0x8000, Hi: 0xFFFF, Write: func(r *Registers, irq *IRQCounter, addr uint16, v uint8) {
		if r.Latch&0x200 == 0 {
			latchAddress(r, irq, addr, v)
		}
	}}},
	Read: func(r *Registers, addr uint16) (uint8, bool) {
		if addr >= 0x6000 && r.Latch&0x100 != 0 {
			return r.Dip, true
		}
		return 0, false
	},
	Sync: func(r Registers, b *Banks) {
		l := int(r.Latch)
		if l&0x80 != 0 {
			b.PRG16(0, (l&0x70)>>4)
			b.PRG16(1, (l&0x70)>>4)
		} else {
			b.PRG32((l & 0x60) >> 5)
		}
		b.CHR8(l & 7)
		b.Mirror(mirrorBit(r.Latch >> 3))
	},
	Reset: func(r *Registers) {
		dip := (r.Dip + 1) & 3
		*r = Registers{Dip: dip}
	},
}

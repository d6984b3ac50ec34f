package mapper

var mapper000 = Variant{
	ID:   0,
	Name: "NROM",
	Sync: func(r Registers, b *Banks) {
		b.PRG16(0, 0)
		b.PRG16(1, -1)
	},
}

var mapper002 = Variant{
	ID:   2,
	Name: "UxROM",
	Writes: []Range{{Lo: 0x8000, Hi: 0xFFFF, Write: func(r *Registers, _ *IRQCounter, _ uint16, v uint8) {
		r.Regs[0] = v
	}}},
	Sync: func(r Registers, b *Banks) {
		b.PRG16(0, int(r.Regs[0]))
		b.PRG16(1, -1)
	},
}

package mapper

// Mapper 15: 100-in-1 Contra Function 16. The low two address bits select
// one of four PRG layouts; the data byte holds the bank and mirroring.
var mapper015 = Variant{
	ID:   15,
	Name: "100-in-1",
	Writes: []Range{{Lo: 0x8000, Hi: 0xFFFF, Write: func(r *Registers, _ *IRQCounter, addr uint16, v uint8) {
		r.Mode = uint8(addr & 3)
		r.Regs[0] = v
	}}},
	Sync: func(r Registers, b *Banks) {
		v := int(r.Regs[0])
		bank := v & 0x7F
		flip := v >> 7
		switch r.Mode {
		case 0:
			for i := 0; i < 4; i++ {
				b.PRG8(i, (bank<<1+i)^flip)
			}
		case 2:
			for i := 0; i < 4; i++ {
				b.PRG8(i, bank<<1+flip)
			}
		default:
			for i := 0; i < 4; i++ {
				n := bank
				if i >= 2 && r.Mode&2 == 0 {
					n = 0x7F
				}
				b.PRG8(i, i&1+(n<<1^flip))
			}
		}
		b.CHR8(0)
		b.Mirror(mirrorBit(uint16(v) >> 6))
	},
}

// Action 53 register numbers, selected through $5000-$5FFF.
const (
	a53CHR   = 0x00
	a53Inner = 0x01
	a53Mode  = 0x80
	a53Outer = 0x81
)

// Mapper 28: Action 53. Regs[0] is the CHR bank, Regs[1] the inner PRG bank
// and Regs[2] the selected register.
var mapper028 = Variant{
	ID:   28,
	Name: "Action 53",
	Writes: []Range{
		{Lo: 0x5000, Hi: 0x5FFF, Write: func(r *Registers, _ *IRQCounter, _ uint16, v uint8) {
			r.Regs[2] = v & 0x81
		}},
		{Lo: 0x8000, Hi: 0xFFFF, Write: func(r *Registers, _ *IRQCounter, _ uint16, v uint8) {
			switch r.Regs[2] {
			case a53CHR, a53Inner:
				if r.Regs[2] == a53CHR {
					r.Regs[0] = v & 3
				} else {
					r.Regs[1] = v & 0xF
				}
				// One-screen modes take the nametable from bit 4.
				if r.Mode&2 == 0 {
					r.Mode = r.Mode&^1 | (v>>4)&1
				}
			case a53Mode:
				r.Mode = v & 0x3F
			case a53Outer:
				r.Outer = v
			}
		}},
	},
	Sync: func(r Registers, b *Banks) {
		switch r.Mode & 3 {
		case 0:
			b.Mirror(MirrorSingleA)
		case 1:
			b.Mirror(MirrorSingleB)
		case 2:
			b.Mirror(MirrorVertical)
		case 3:
			b.Mirror(MirrorHorizontal)
		}
		b.PRG16(0, action53Bank(r, 0))
		b.PRG16(1, action53Bank(r, 1))
		b.CHR8(int(r.Regs[0] & 3))
	},
	Power: func(r *Registers) { r.Outer = 0x3F },
}

// action53Bank returns the 16 KiB bank for the $8000 (a14 = 0) or $C000
// (a14 = 1) half of the window.
func action53Bank(r Registers, a14 int) int {
	outer := int(r.Outer) << 1
	prgMode := int(r.Mode>>2) & 3
	mask := 2<<((r.Mode>>4)&3) - 1

	var inner int
	switch {
	case prgMode&2 == 0:
		inner = int(r.Regs[1])<<1 | a14
	case prgMode&1 == a14:
		return outer | a14
	default:
		inner = int(r.Regs[1])
	}
	return outer&^mask | inner&mask
}

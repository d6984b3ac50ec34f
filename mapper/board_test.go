package mapper

import (
	"errors"
	"math/rand"
	"testing"
)

const (
	kib = 1024
)

func newBoard(t *testing.T, id, prgSize, chrSize int) *Board {
	t.Helper()
	v, ok := Lookup(id)
	if !ok {
		t.Fatalf("mapper %d not registered", id)
	}
	return New(v, prgSize, chrSize, MirrorVertical)
}

func TestLatchBoardSync(t *testing.T) {
	tests := []struct {
		name   string
		id     int
		addr   uint16
		prg    [4]int
		chr0   int
		mirror Mirroring
	}{
		{"58 16K mode", 58, 0x8043, [4]int{6, 7, 6, 7}, 0, MirrorVertical},
		{"58 32K mode", 58, 0x809E, [4]int{12, 13, 14, 15}, 3 * 8, MirrorHorizontal},
		{"61 32K mode", 61, 0x8003, [4]int{12, 13, 14, 15}, 0, MirrorVertical},
		{"61 16K mode", 61, 0x8092, [4]int{8, 9, 8, 9}, 0, MirrorHorizontal},
		{"200", 200, 0x800D, [4]int{10, 11, 10, 11}, 5 * 8, MirrorHorizontal},
		{"202 mirrored pair", 202, 0x800F, [4]int{12, 13, 14, 15}, 7 * 8, MirrorHorizontal},
		{"202 single bank", 202, 0x8004, [4]int{4, 5, 4, 5}, 2 * 8, MirrorVertical},
		{"204 pair", 204, 0x8003, [4]int{6, 7, 6, 7}, 3 * 8, MirrorVertical},
		{"204 last pair", 204, 0x8016, [4]int{12, 13, 14, 15}, 6 * 8, MirrorHorizontal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newBoard(t, tc.id, 128*kib, 64*kib)
			if !b.Write(tc.addr, 0) {
				t.Fatalf("write to $%04X not handled", tc.addr)
			}
			m := b.Mapping()
			if m.PRG != tc.prg {
				t.Errorf("PRG = %v, want %v", m.PRG, tc.prg)
			}
			if m.CHR[0] != tc.chr0 {
				t.Errorf("CHR[0] = %d, want %d", m.CHR[0], tc.chr0)
			}
			if m.Mirror != tc.mirror {
				t.Errorf("mirror = %v, want %v", m.Mirror, tc.mirror)
			}
		})
	}
}

func TestPowerInitializesLatch(t *testing.T) {
	b := newBoard(t, 200, 128*kib, 64*kib)
	if b.Registers().Latch != 0xFFFF {
		t.Errorf("latch = $%04X, want $FFFF", b.Registers().Latch)
	}
	if m := b.Mapping(); m.PRG != [4]int{14, 15, 14, 15} {
		t.Errorf("PRG = %v after power on", m.PRG)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, id := range Supported() {
		b := newBoard(t, id, 512*kib, 256*kib)
		for i := 0; i < 200; i++ {
			addr := uint16(0x4020 + rng.Intn(0x10000-0x4020))
			b.Write(addr, uint8(rng.Intn(256)))

			first := b.Mapping()
			b.Sync()
			b.Sync()
			if got := b.Mapping(); got != first {
				t.Fatalf("mapper %d: Sync changed mapping %+v -> %+v", id, first, got)
			}
		}
	}
}

func TestWriteDispatch(t *testing.T) {
	b := newBoard(t, 357, 512*kib, 8*kib)
	tests := []struct {
		addr    uint16
		handled bool
	}{
		{0x4020, false},
		{0x4022, true},
		{0x4023, false},
		{0x4122, true},
		{0x5000, false},
		{0x6000, false},
		{0x7FFF, false},
		{0x8000, true},
		{0xFFFF, true},
	}
	for _, tc := range tests {
		if got := b.Write(tc.addr, 0); got != tc.handled {
			t.Errorf("Write($%04X) handled = %v, want %v", tc.addr, got, tc.handled)
		}
	}
}

func TestD1038LockAndDipSwitch(t *testing.T) {
	b := newBoard(t, 59, 128*kib, 64*kib)

	if _, ok := b.Read(0x8000); ok {
		t.Fatal("dip switch visible before latch bit 8 set")
	}
	b.Write(0x8100, 0)
	for _, addr := range []uint16{0x6000, 0x7FFF, 0x8000, 0xFFFF} {
		if v, ok := b.Read(addr); !ok || v != 0 {
			t.Errorf("Read($%04X) = %d, %v; want dip 0", addr, v, ok)
		}
	}
	if _, ok := b.Read(0x5FFF); ok {
		t.Error("dip switch visible below $6000")
	}

	b.Write(0x8285, 0)
	b.Write(0x8006, 0)
	if got := b.Registers().Latch; got != 0x8285 {
		t.Errorf("locked latch changed to $%04X", got)
	}
	if m := b.Mapping(); m.PRG != [4]int{0, 1, 0, 1} || m.CHR[0] != 5*8 {
		t.Errorf("unexpected mapping %+v", m)
	}

	for want := uint8(1); want <= 4; want++ {
		b.Reset()
		r := b.Registers()
		if r.Dip != want&3 {
			t.Errorf("after reset %d dip = %d, want %d", want, r.Dip, want&3)
		}
		if r.Latch != 0 {
			t.Errorf("latch not cleared on reset: $%04X", r.Latch)
		}
	}

	b.Write(0x8100, 0)
	if v, _ := b.Read(0x8000); v != 0 {
		t.Errorf("dip after four resets = %d, want 0", v)
	}
	b.Power()
	if b.Registers().Dip != 0 {
		t.Error("power on should clear the dip switch")
	}
}

func TestMapper91ScanlineIRQ(t *testing.T) {
	b := newBoard(t, 91, 128*kib, 128*kib)
	b.Write(0x7003, 0)

	b.Tick(TickCPUCycle, 1000)
	if b.IRQ().Counter != 0 {
		t.Fatal("CPU cycles should not clock a scanline counter")
	}
	for i := 0; i < 7; i++ {
		b.Tick(TickScanline, 1)
	}
	if b.IRQPending() {
		t.Fatal("IRQ fired before 8 scanlines")
	}
	b.Tick(TickScanline, 1)
	if !b.IRQPending() {
		t.Fatal("IRQ did not fire on the 8th scanline")
	}
	if b.IRQ().Enabled {
		t.Error("counter should disable itself after firing")
	}

	b.Write(0x7002, 0)
	if b.IRQPending() || b.IRQ().Counter != 0 {
		t.Error("$7002 should acknowledge and clear the counter")
	}
}

func TestMapper91Banks(t *testing.T) {
	b := newBoard(t, 91, 128*kib, 128*kib)
	b.Write(0x6001, 3)
	b.Write(0x7000, 5)
	b.Write(0x7001, 9)
	m := b.Mapping()
	if m.CHR[2] != 6 || m.CHR[3] != 7 {
		t.Errorf("CHR slot 1 = %d,%d; want 6,7", m.CHR[2], m.CHR[3])
	}
	if m.PRG != [4]int{5, 9, 14, 15} {
		t.Errorf("PRG = %v", m.PRG)
	}
}

func TestMapper330ClampingIRQ(t *testing.T) {
	b := newBoard(t, 330, 256*kib, 256*kib)
	b.Write(0xC400, 0xFF)
	b.Write(0x8400, 0xF0)
	if got := b.IRQ().Counter; got != 0x7FF0 {
		t.Fatalf("counter = $%04X, want $7FF0", got)
	}

	b.Tick(TickCPUCycle, 0x20)
	irq := b.IRQ()
	if !irq.Pending || irq.Counter != 0x7FFF || !irq.Enabled {
		t.Errorf("expected clamped asserted counter, got %+v", irq)
	}
	b.Tick(TickCPUCycle, 1000)
	if b.IRQ().Counter != 0x7FFF {
		t.Error("counter wrapped instead of clamping")
	}

	b.AcknowledgeIRQ()
	if b.IRQPending() {
		t.Error("IRQ still pending after acknowledge")
	}
}

func TestMapper330Banks(t *testing.T) {
	b := newBoard(t, 330, 256*kib, 256*kib)
	b.Write(0x9800, 42)
	b.Write(0xE800, 7)
	b.Write(0xC000, 1)
	m := b.Mapping()
	if m.CHR[3] != 42 {
		t.Errorf("CHR[3] = %d, want 42", m.CHR[3])
	}
	if m.PRG != [4]int{0, 7, 0, 31} {
		t.Errorf("PRG = %v", m.PRG)
	}
	if m.Mirror != MirrorHorizontal {
		t.Errorf("mirror = %v", m.Mirror)
	}
}

func TestMapper357GameSelect(t *testing.T) {
	b := newBoard(t, 357, 512*kib, 8*kib)
	m := b.Mapping()
	if m.PRG6 != 2 || m.PRG != [4]int{1, 0, 4, 8} {
		t.Fatalf("SMB2J layout = %+v", m)
	}
	b.Write(0x4022, 2)
	if got := b.Mapping().PRG[2]; got != 5 {
		t.Errorf("$C000 bank = %d, want 5", got)
	}

	b.Reset()
	b.Write(0x8000, 3)
	m = b.Mapping()
	if m.PRG6 != NoBank {
		t.Errorf("UNROM game should use work RAM at $6000")
	}
	if m.PRG != [4]int{22, 23, 30, 31} {
		t.Errorf("PRG = %v, want [22 23 30 31]", m.PRG)
	}
}

func TestMapper357CycleIRQ(t *testing.T) {
	b := newBoard(t, 357, 512*kib, 8*kib)
	b.Write(0x4122, 1)
	b.Tick(TickCPUCycle, 4095)
	if b.IRQPending() {
		t.Fatal("IRQ fired early")
	}
	b.Tick(TickCPUCycle, 1)
	if !b.IRQPending() || b.IRQ().Enabled {
		t.Errorf("expected fired and disabled counter, got %+v", b.IRQ())
	}
	b.Write(0x4122, 0)
	if b.IRQPending() {
		t.Error("write to $4122 should acknowledge")
	}
}

func TestAction53PowerMapsLastBank(t *testing.T) {
	b := newBoard(t, 28, 64*kib, 32*kib)
	m := b.Mapping()
	if m.PRG != [4]int{4, 5, 6, 7} {
		t.Errorf("PRG = %v, want last 32K", m.PRG)
	}
	if m.Mirror != MirrorSingleA {
		t.Errorf("mirror = %v", m.Mirror)
	}
}

func TestAction53UNROMMode(t *testing.T) {
	b := newBoard(t, 28, 512*kib, 32*kib)
	b.Write(0x5000, a53Outer)
	b.Write(0x8000, 1)
	b.Write(0x5000, a53Mode)
	b.Write(0x8000, 0x2F) // 128K game, fixed $C000, horizontal
	b.Write(0x5000, a53Inner)
	b.Write(0x8000, 2)

	m := b.Mapping()
	// Inner bank 2 at $8000, outer bank fixed at $C000.
	if m.PRG != [4]int{4, 5, 6, 7} {
		t.Errorf("PRG = %v", m.PRG)
	}
	if m.Mirror != MirrorHorizontal {
		t.Errorf("mirror = %v", m.Mirror)
	}
}

func TestMapper15Layouts(t *testing.T) {
	tests := []struct {
		addr uint16
		v    uint8
		prg  [4]int
	}{
		{0x8000, 0x02, [4]int{4, 5, 6, 7}},
		{0x8002, 0x82, [4]int{5, 5, 5, 5}},
		{0x8001, 0x02, [4]int{4, 5, 14, 15}},
		{0x8003, 0x02, [4]int{4, 5, 4, 5}},
	}
	for _, tc := range tests {
		b := newBoard(t, 15, 128*kib, 8*kib)
		b.Write(tc.addr, tc.v)
		if got := b.Mapping().PRG; got != tc.prg {
			t.Errorf("write $%04X=%02X: PRG = %v, want %v", tc.addr, tc.v, got, tc.prg)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	src := newBoard(t, 330, 256*kib, 256*kib)
	src.Write(0x8800, 9)
	src.Write(0xE000, 3)
	src.Write(0xC400, 0x81)
	src.Tick(TickCPUCycle, 10)

	data, err := src.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	dst := newBoard(t, 330, 256*kib, 256*kib)
	if err := dst.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if dst.Registers() != src.Registers() || dst.IRQ() != src.IRQ() {
		t.Error("restored registers differ")
	}
	if dst.Mapping() != src.Mapping() {
		t.Errorf("restored mapping %+v, want %+v", dst.Mapping(), src.Mapping())
	}

	if err := dst.UnmarshalBinary(data[:5]); !errors.Is(err, ErrBadState) {
		t.Errorf("expected ErrBadState, got %v", err)
	}
}

func TestOverlappingRangesPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for overlapping ranges")
		}
	}()
	nop := func(*Registers, *IRQCounter, uint16, uint8) {}
	New(&Variant{Name: "bad", Writes: []Range{
		{Lo: 0x9000, Hi: 0xFFFF, Write: nop},
		{Lo: 0x8000, Hi: 0x9000, Write: nop},
	}}, 32*kib, 8*kib, MirrorVertical)
}

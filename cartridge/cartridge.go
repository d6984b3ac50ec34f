// Package cartridge loads iNES and NES 2.0 images and connects them to a
// bank-switching board from the mapper package.
package cartridge

import (
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/user-none/emuframework/mapper"
)

const (
	headerSize  = 16
	trainerSize = 512
	prgUnit     = 16 * 1024
	chrUnit     = 8 * 1024
	wramSize    = 8 * 1024
	chrRAMSize  = 8 * 1024
)

// ErrInvalidHeader is returned when the image doesn't start with an iNES header
var ErrInvalidHeader = errors.New("invalid iNES header")

// ErrUnsupportedMapper is returned for mapper numbers without an implementation
var ErrUnsupportedMapper = errors.New("unsupported mapper")

// ErrTruncated is returned when the image is shorter than its header declares
var ErrTruncated = errors.New("ROM image truncated")

// Header is the decoded iNES / NES 2.0 header.
type Header struct {
	PRGSize    int
	CHRSize    int
	Mapper     int
	Submapper  int
	Mirror     mapper.Mirroring
	FourScreen bool
	Battery    bool
	Trainer    bool
	NES2       bool
}

// ParseHeader decodes the 16-byte header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < headerSize || string(data[0:4]) != "NES\x1A" {
		return h, ErrInvalidHeader
	}
	flags6, flags7 := data[6], data[7]

	h.NES2 = flags7&0x0C == 0x08
	h.Mapper = int(flags6>>4) | int(flags7&0xF0)
	prgUnits, chrUnits := int(data[4]), int(data[5])
	if h.NES2 {
		h.Mapper |= int(data[8]&0x0F) << 8
		h.Submapper = int(data[8] >> 4)
		prgUnits |= int(data[9]&0x0F) << 8
		chrUnits |= int(data[9]>>4) << 8
	}
	h.PRGSize = prgUnits * prgUnit
	h.CHRSize = chrUnits * chrUnit

	if flags6&0x01 != 0 {
		h.Mirror = mapper.MirrorVertical
	} else {
		h.Mirror = mapper.MirrorHorizontal
	}
	h.FourScreen = flags6&0x08 != 0
	h.Battery = flags6&0x02 != 0
	h.Trainer = flags6&0x04 != 0

	if h.PRGSize == 0 {
		return h, fmt.Errorf("%w: no PRG ROM", ErrInvalidHeader)
	}
	return h, nil
}

// Cartridge is a loaded game: its ROM, on-board RAM and mapper board.
type Cartridge struct {
	header Header
	prg    []byte
	chr    []byte
	chrRAM bool
	wram   []byte
	board  *mapper.Board
	bus    uint8 // last value seen on the CPU data bus
	romCRC uint32
}

// New parses an iNES image and powers on its board.
func New(rom []byte) (*Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	variant, ok := mapper.Lookup(h.Mapper)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMapper, h.Mapper)
	}

	offset := headerSize
	if h.Trainer {
		offset += trainerSize
	}
	if len(rom) < offset+h.PRGSize+h.CHRSize {
		return nil, fmt.Errorf("%w: have %d bytes, header needs %d", ErrTruncated, len(rom), offset+h.PRGSize+h.CHRSize)
	}

	c := &Cartridge{
		header: h,
		prg:    append([]byte(nil), rom[offset:offset+h.PRGSize]...),
		wram:   make([]byte, wramSize),
		romCRC: crc32.ChecksumIEEE(rom[headerSize:]),
	}
	offset += h.PRGSize
	if h.CHRSize > 0 {
		c.chr = append([]byte(nil), rom[offset:offset+h.CHRSize]...)
	} else {
		c.chr = make([]byte, chrRAMSize)
		c.chrRAM = true
	}
	c.board = mapper.New(variant, len(c.prg), len(c.chr), h.Mirror)
	return c, nil
}

// Header returns the decoded image header.
func (c *Cartridge) Header() Header {
	return c.header
}

// Board returns the mapper board.
func (c *Cartridge) Board() *mapper.Board {
	return c.board
}

// CPURead reads from $4020-$FFFF. Addresses nothing drives return the last
// value on the data bus.
func (c *Cartridge) CPURead(addr uint16) uint8 {
	if v, ok := c.board.Read(addr); ok {
		c.bus = v
		return v
	}
	m := c.board.Mapping()
	switch {
	case addr >= 0x8000:
		c.bus = c.prg[m.PRG[(addr-0x8000)/mapper.PRGBankSize]*mapper.PRGBankSize+int(addr)%mapper.PRGBankSize]
	case addr >= 0x6000:
		if m.PRG6 != mapper.NoBank {
			c.bus = c.prg[m.PRG6*mapper.PRGBankSize+int(addr-0x6000)]
		} else {
			c.bus = c.wram[addr-0x6000]
		}
	}
	return c.bus
}

// CPUWrite writes to $4020-$FFFF. Writes the board doesn't decode land in
// work RAM when it is mapped at $6000.
func (c *Cartridge) CPUWrite(addr uint16, v uint8) {
	c.bus = v
	if c.board.Write(addr, v) {
		return
	}
	if addr >= 0x6000 && addr < 0x8000 && c.board.Mapping().PRG6 == mapper.NoBank {
		c.wram[addr-0x6000] = v
	}
}

// PPURead reads pattern memory at $0000-$1FFF.
func (c *Cartridge) PPURead(addr uint16) uint8 {
	addr &= 0x1FFF
	m := c.board.Mapping()
	return c.chr[m.CHR[addr/mapper.CHRBankSize]*mapper.CHRBankSize+int(addr)%mapper.CHRBankSize]
}

// PPUWrite writes pattern memory. Only CHR RAM is writable.
func (c *Cartridge) PPUWrite(addr uint16, v uint8) {
	if !c.chrRAM {
		return
	}
	addr &= 0x1FFF
	m := c.board.Mapping()
	c.chr[m.CHR[addr/mapper.CHRBankSize]*mapper.CHRBankSize+int(addr)%mapper.CHRBankSize] = v
}

// Mirroring returns the current nametable mirroring.
func (c *Cartridge) Mirroring() mapper.Mirroring {
	return c.board.Mapping().Mirror
}

// Tick advances the board's IRQ counter.
func (c *Cartridge) Tick(src mapper.TickSource, elapsed uint32) {
	c.board.Tick(src, elapsed)
}

// IRQ reports whether the cartridge is asserting the IRQ line.
func (c *Cartridge) IRQ() bool {
	return c.board.IRQPending()
}

// AcknowledgeIRQ releases the IRQ line.
func (c *Cartridge) AcknowledgeIRQ() {
	c.board.AcknowledgeIRQ()
}

// Power cold-boots the board. Battery-backed RAM is kept.
func (c *Cartridge) Power() {
	c.bus = 0
	if !c.header.Battery {
		clear(c.wram)
	}
	c.board.Power()
}

// Reset soft-resets the board.
func (c *Cartridge) Reset() {
	c.board.Reset()
}

// HasSRAM reports whether work RAM is battery backed.
func (c *Cartridge) HasSRAM() bool {
	return c.header.Battery
}

// GetSRAM returns a copy of work RAM.
func (c *Cartridge) GetSRAM() []byte {
	return append([]byte(nil), c.wram...)
}

// SetSRAM loads work RAM. Short data leaves the remainder untouched.
func (c *Cartridge) SetSRAM(data []byte) {
	copy(c.wram, data)
}

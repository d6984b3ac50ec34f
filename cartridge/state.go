package cartridge

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Save state format constants
const (
	stateVersion    = 1
	stateMagic      = "EFCartState\x00"
	stateHeaderSize = 22 // magic(12) + version(2) + romCRC(4) + dataCRC(4)
	boardStateSize  = 28
)

// SerializeSize returns the size in bytes of a cartridge save state.
func (c *Cartridge) SerializeSize() int {
	size := stateHeaderSize + boardStateSize + wramSize + 1
	if c.chrRAM {
		size += len(c.chr)
	}
	return size
}

// Serialize captures the board registers, work RAM and CHR RAM.
func (c *Cartridge) Serialize() ([]byte, error) {
	data := make([]byte, c.SerializeSize())
	copy(data[0:12], stateMagic)
	binary.LittleEndian.PutUint16(data[12:14], stateVersion)
	binary.LittleEndian.PutUint32(data[14:18], c.romCRC)

	offset := stateHeaderSize
	board, err := c.board.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if len(board) != boardStateSize {
		return nil, errors.New("unexpected mapper state size")
	}
	offset += copy(data[offset:], board)
	offset += copy(data[offset:], c.wram)
	if c.chrRAM {
		offset += copy(data[offset:], c.chr)
	}
	data[offset] = c.bus

	binary.LittleEndian.PutUint32(data[18:22], crc32.ChecksumIEEE(data[stateHeaderSize:]))
	return data, nil
}

// Deserialize restores a state produced by Serialize for the same ROM.
func (c *Cartridge) Deserialize(data []byte) error {
	if err := c.VerifyState(data); err != nil {
		return err
	}
	offset := stateHeaderSize
	if err := c.board.UnmarshalBinary(data[offset : offset+boardStateSize]); err != nil {
		return err
	}
	offset += boardStateSize
	offset += copy(c.wram, data[offset:offset+wramSize])
	if c.chrRAM {
		offset += copy(c.chr, data[offset:offset+len(c.chr)])
	}
	c.bus = data[offset]
	return nil
}

// VerifyState checks if a save state is valid without loading it.
func (c *Cartridge) VerifyState(data []byte) error {
	if len(data) != c.SerializeSize() {
		return errors.New("save state has wrong size")
	}
	if string(data[0:12]) != stateMagic {
		return errors.New("invalid save state magic")
	}
	if binary.LittleEndian.Uint16(data[12:14]) > stateVersion {
		return errors.New("unsupported save state version")
	}
	if binary.LittleEndian.Uint32(data[14:18]) != c.romCRC {
		return errors.New("save state is for a different ROM")
	}
	if binary.LittleEndian.Uint32(data[18:22]) != crc32.ChecksumIEEE(data[stateHeaderSize:]) {
		return errors.New("save state data is corrupted")
	}
	return nil
}

package frontend

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"

	emucore "github.com/user-none/emuframework/api"
)

// zstdMagic starts every zstd frame. States without it are raw core data.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// coreState adapts a core's SaveStater to buffer writes, compressing with
// zstd unless the caller asks for an uncompressed state.
type coreState struct {
	saver   emucore.SaveStater
	rawSize int
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

// newCoreState sizes states from rawSize, or from one serialization of the
// core when rawSize is 0.
func newCoreState(saver emucore.SaveStater, rawSize int) (*coreState, error) {
	if rawSize <= 0 {
		data, err := saver.Serialize()
		if err != nil {
			return nil, fmt.Errorf("failed to size state: %w", err)
		}
		rawSize = len(data)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create state encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create state decoder: %w", err)
	}
	return &coreState{saver: saver, rawSize: rawSize, enc: enc, dec: dec}, nil
}

func (c *coreState) WriteState(buf []byte, flags emucore.SaveStateFlags) (int, error) {
	data, err := c.saver.Serialize()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize state: %w", err)
	}
	if flags.Uncompressed {
		if len(data) > len(buf) {
			return 0, fmt.Errorf("%w: %d > %d", emucore.ErrStateTooLarge, len(data), len(buf))
		}
		return copy(buf, data), nil
	}
	out := c.enc.EncodeAll(data, buf[:0:len(buf)])
	if len(out) > len(buf) {
		return 0, fmt.Errorf("%w: compressed %d > %d", emucore.ErrStateTooLarge, len(out), len(buf))
	}
	return len(out), nil
}

func (c *coreState) ReadState(buf []byte) error {
	if bytes.HasPrefix(buf, zstdMagic) {
		data, err := c.dec.DecodeAll(buf, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress state: %w", err)
		}
		buf = data
	}
	return c.saver.Deserialize(buf)
}

// MaxStateSize covers the raw state plus the zstd worst case expansion.
func (c *coreState) MaxStateSize() int {
	return c.rawSize + c.rawSize>>8 + 128
}

func (c *coreState) close() {
	c.enc.Close()
	c.dec.Close()
}

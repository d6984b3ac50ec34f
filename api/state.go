package emucore

import (
	"errors"
	"fmt"
)

// ErrStateTooLarge is returned when a serialized state does not fit the
// destination buffer.
var ErrStateTooLarge = errors.New("state larger than buffer")

// SaveStateFlags modify how a state is written.
type SaveStateFlags struct {
	// Uncompressed skips any compression so the state can be written
	// quickly into a preallocated buffer.
	Uncompressed bool
}

// StateIO is the buffer oriented state interface used by rewind and autosave.
// Implementations write into caller owned memory so snapshots can be reused
// without allocating per save.
type StateIO interface {
	// WriteState serializes into buf and returns the number of bytes used.
	WriteState(buf []byte, flags SaveStateFlags) (int, error)

	// ReadState restores from a previously written state.
	ReadState(buf []byte) error

	// MaxStateSize returns an upper bound on the size WriteState produces.
	MaxStateSize() int
}

// serializerIO adapts a SaveStater to StateIO.
type serializerIO struct {
	s       SaveStater
	maxSize int
}

// NewStateIO wraps a SaveStater whose states never exceed maxSize bytes.
func NewStateIO(s SaveStater, maxSize int) StateIO {
	return &serializerIO{s: s, maxSize: maxSize}
}

func (io *serializerIO) WriteState(buf []byte, _ SaveStateFlags) (int, error) {
	data, err := io.s.Serialize()
	if err != nil {
		return 0, err
	}
	if len(data) > len(buf) {
		return 0, fmt.Errorf("%w: %d > %d", ErrStateTooLarge, len(data), len(buf))
	}
	return copy(buf, data), nil
}

func (io *serializerIO) ReadState(buf []byte) error {
	return io.s.Deserialize(buf)
}

func (io *serializerIO) MaxStateSize() int {
	return io.maxSize
}

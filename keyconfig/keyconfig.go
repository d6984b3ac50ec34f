// Package keyconfig holds named sets of logical-key to physical-key mappings
// for one class of input device, and their binary config encoding.
package keyconfig

import (
	"errors"
	"fmt"
	"io"

	"github.com/user-none/emuframework/statecodec"
)

// Map identifies the input device class a KeyConfig applies to.
type Map uint8

const (
	MapUnknown Map = iota
	MapKeyboard
	MapGamepad
)

// Physical key code counts per device class. Codes at or above the count are
// invalid for that map.
const (
	numKeyboardKeys = 256
	numGamepadKeys  = 32
)

// MapNumKeys returns the number of valid physical key codes for m.
func MapNumKeys(m Map) int {
	switch m {
	case MapKeyboard:
		return numKeyboardKeys
	case MapGamepad:
		return numGamepadKeys
	default:
		return 0
	}
}

// String returns the display name of the map.
func (m Map) String() string {
	switch m {
	case MapKeyboard:
		return "Keyboard"
	case MapGamepad:
		return "Gamepad"
	default:
		return "Unknown"
	}
}

// MaxMappings is the most mappings a single config can encode.
const MaxMappings = 255

// ErrTooManyMappings is returned when encoding a config with more than MaxMappings entries
var ErrTooManyMappings = errors.New("too many key mappings")

// Flags modify how a logical key behaves when triggered.
type Flags uint8

const (
	FlagTurbo Flags = 1 << iota
	FlagToggle
)

// KeyInfo identifies a logical key. Up to three logical codes can be combined
// so one physical key can trigger a chord.
type KeyInfo struct {
	Codes [3]uint16
	Flags Flags
}

// MappedKeys holds up to three physical key codes, all of which must be held
// to trigger the logical key. Zero means unbound.
type MappedKeys [3]uint16

// IsZero reports whether no physical key is bound.
func (m MappedKeys) IsZero() bool {
	return m == MappedKeys{}
}

// Contains reports whether code is one of the bound physical keys.
func (m MappedKeys) Contains(code uint16) bool {
	if code == 0 {
		return false
	}
	for _, c := range m {
		if c == code {
			return true
		}
	}
	return false
}

// Mapping pairs a logical key with its physical keys.
type Mapping struct {
	Key    KeyInfo
	Mapped MappedKeys
}

// KeyConfig is a named, ordered list of mappings for one input device class.
// Each KeyInfo appears at most once.
type KeyConfig struct {
	Map      Map
	Name     string
	Mappings []Mapping
}

// Set binds key to mapped. An all-zero mapped removes the binding instead.
// Existing bindings keep their position in the list.
func (c *KeyConfig) Set(key KeyInfo, mapped MappedKeys) {
	for i := range c.Mappings {
		if c.Mappings[i].Key != key {
			continue
		}
		if mapped.IsZero() {
			c.Mappings = append(c.Mappings[:i], c.Mappings[i+1:]...)
		} else {
			c.Mappings[i].Mapped = mapped
		}
		return
	}
	if mapped.IsZero() {
		return
	}
	c.Mappings = append(c.Mappings, Mapping{Key: key, Mapped: mapped})
}

// Get returns the physical keys bound to key.
func (c *KeyConfig) Get(key KeyInfo) MappedKeys {
	for _, m := range c.Mappings {
		if m.Key == key {
			return m.Mapped
		}
	}
	return MappedKeys{}
}

// Unbind removes every binding that uses the physical key code.
func (c *KeyConfig) Unbind(code uint16) {
	kept := c.Mappings[:0]
	for _, m := range c.Mappings {
		if !m.Mapped.Contains(code) {
			kept = append(kept, m)
		}
	}
	c.Mappings = kept
}

// Encode writes the config in its binary record layout:
//
//	uint8 map | sized name | uint8 count |
//	count × (KeyInfo codes[3] uint16 | uint8 flags | MappedKeys codes[3] uint16)
func (c *KeyConfig) Encode(w io.Writer) error {
	if len(c.Mappings) > MaxMappings {
		return fmt.Errorf("%w: %d", ErrTooManyMappings, len(c.Mappings))
	}
	if len(c.Name) > statecodec.MaxSizedData {
		return fmt.Errorf("key config name: %w", statecodec.ErrSizedDataTooLong)
	}
	buf := make([]byte, 0, 2+len(c.Name)+1+len(c.Mappings)*mappingSize)
	buf = append(buf, byte(c.Map))
	buf = append(buf, byte(len(c.Name)))
	buf = append(buf, c.Name...)
	buf = append(buf, byte(len(c.Mappings)))
	for _, m := range c.Mappings {
		for _, code := range m.Key.Codes {
			buf = append(buf, byte(code), byte(code>>8))
		}
		buf = append(buf, byte(m.Key.Flags))
		for _, code := range m.Mapped {
			buf = append(buf, byte(code), byte(code>>8))
		}
	}
	_, err := w.Write(buf)
	return err
}

// mappingSize is the encoded size of one Mapping.
const mappingSize = 3*2 + 1 + 3*2

// Decode reads a config written by Encode. Physical key codes out of range for
// the config's map are reset to 0, and a mapping left with no physical keys is
// dropped, so a config saved by a build with more keys still loads.
func Decode(r io.Reader) (KeyConfig, error) {
	var c KeyConfig
	var head [1]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return c, fmt.Errorf("failed to read key config map: %w", statecodec.ErrShortRead)
	}
	c.Map = Map(head[0])

	name, err := statecodec.ReadSizedString(r)
	if err != nil {
		return c, fmt.Errorf("failed to read key config name: %w", err)
	}
	c.Name = name

	if _, err := io.ReadFull(r, head[:]); err != nil {
		return c, fmt.Errorf("failed to read key config count: %w", statecodec.ErrShortRead)
	}
	count := int(head[0])

	numKeys := MapNumKeys(c.Map)
	entry := make([]byte, mappingSize)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return c, fmt.Errorf("failed to read key mapping %d: %w", i, statecodec.ErrShortRead)
		}
		var key KeyInfo
		var mapped MappedKeys
		for j := range key.Codes {
			key.Codes[j] = uint16(entry[j*2]) | uint16(entry[j*2+1])<<8
		}
		key.Flags = Flags(entry[6])
		for j := range mapped {
			code := uint16(entry[7+j*2]) | uint16(entry[8+j*2])<<8
			if int(code) >= numKeys {
				code = 0
			}
			mapped[j] = code
		}
		c.Set(key, mapped)
	}
	return c, nil
}

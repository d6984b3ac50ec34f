package host

import (
	"github.com/hajimehoshi/ebiten/v2"

	emucore "github.com/user-none/emuframework/api"
	"github.com/user-none/emuframework/keyconfig"
)

// DefaultConfigName names the built-in key configs. A custom config saved
// under this name replaces the built-in one.
const DefaultConfigName = "Default"

// turboPeriod is the number of frames a turbo button stays in each state.
const turboPeriod = 2

// Key config codes are offset by one so zero stays free for "unbound".
// Logical codes are button bit IDs, physical codes are ebiten key or
// standard gamepad button values.

func logicalCode(bit int) uint16 { return uint16(bit) + 1 }

func keyCode(k ebiten.Key) uint16 { return uint16(k) + 1 }

func padCode(b ebiten.StandardGamepadButton) uint16 { return uint16(b) + 1 }

var keyNameMap = map[string]ebiten.Key{
	"A": ebiten.KeyA, "B": ebiten.KeyB, "C": ebiten.KeyC, "D": ebiten.KeyD,
	"E": ebiten.KeyE, "F": ebiten.KeyF, "G": ebiten.KeyG, "H": ebiten.KeyH,
	"I": ebiten.KeyI, "J": ebiten.KeyJ, "K": ebiten.KeyK, "L": ebiten.KeyL,
	"M": ebiten.KeyM, "N": ebiten.KeyN, "O": ebiten.KeyO, "P": ebiten.KeyP,
	"Q": ebiten.KeyQ, "R": ebiten.KeyR, "S": ebiten.KeyS, "T": ebiten.KeyT,
	"U": ebiten.KeyU, "V": ebiten.KeyV, "W": ebiten.KeyW, "X": ebiten.KeyX,
	"Y": ebiten.KeyY, "Z": ebiten.KeyZ,
	"0": ebiten.Key0, "1": ebiten.Key1, "2": ebiten.Key2, "3": ebiten.Key3,
	"4": ebiten.Key4, "5": ebiten.Key5, "6": ebiten.Key6, "7": ebiten.Key7,
	"8": ebiten.Key8, "9": ebiten.Key9,
	"Enter":      ebiten.KeyEnter,
	"Backspace":  ebiten.KeyBackspace,
	"Space":      ebiten.KeySpace,
	"Semicolon":  ebiten.KeySemicolon,
	"Comma":      ebiten.KeyComma,
	"Period":     ebiten.KeyPeriod,
	"Slash":      ebiten.KeySlash,
	"ArrowUp":    ebiten.KeyArrowUp,
	"ArrowDown":  ebiten.KeyArrowDown,
	"ArrowLeft":  ebiten.KeyArrowLeft,
	"ArrowRight": ebiten.KeyArrowRight,
	"[":          ebiten.KeyLeftBracket,
	"]":          ebiten.KeyRightBracket,
	"-":          ebiten.KeyMinus,
	"=":          ebiten.KeyEqual,
	"'":          ebiten.KeyApostrophe,
}

// reservedKeys drive the host itself and cannot be bound to buttons.
var reservedKeys = map[ebiten.Key]bool{
	ebiten.KeyEscape: true, // pause
	ebiten.KeyR:      true, // rewind
	ebiten.KeyF1:     true, // save state
	ebiten.KeyF2:     true, // cycle slot
	ebiten.KeyF3:     true, // load state
	ebiten.KeyF4:     true, // fast forward
	ebiten.KeyF5:     true, // autosave now
	ebiten.KeyF11:    true, // fullscreen
	ebiten.KeyF12:    true, // screenshot
	ebiten.KeyShift:  true,
}

// ParseKey converts a key name to an ebiten.Key.
func ParseKey(name string) (ebiten.Key, bool) {
	k, ok := keyNameMap[name]
	return k, ok
}

// IsReservedKey reports whether k is used by the host.
func IsReservedKey(k ebiten.Key) bool {
	return reservedKeys[k]
}

var dpadButtons = []struct {
	bit        int
	defaultKey ebiten.Key
	defaultPad ebiten.StandardGamepadButton
}{
	{emucore.ButtonUp, ebiten.KeyW, ebiten.StandardGamepadButtonLeftTop},
	{emucore.ButtonDown, ebiten.KeyS, ebiten.StandardGamepadButtonLeftBottom},
	{emucore.ButtonLeft, ebiten.KeyA, ebiten.StandardGamepadButtonLeftLeft},
	{emucore.ButtonRight, ebiten.KeyD, ebiten.StandardGamepadButtonLeftRight},
}

// Face buttons are given pad buttons in declaration order.
var defaultPadOrder = []ebiten.StandardGamepadButton{
	ebiten.StandardGamepadButtonRightBottom,
	ebiten.StandardGamepadButtonRightRight,
	ebiten.StandardGamepadButtonRightLeft,
	ebiten.StandardGamepadButtonRightTop,
	ebiten.StandardGamepadButtonCenterRight,
	ebiten.StandardGamepadButtonCenterLeft,
	ebiten.StandardGamepadButtonFrontTopLeft,
	ebiten.StandardGamepadButtonFrontTopRight,
}

// DefaultKeyboardConfig builds the keyboard config for a system: WASD for
// the d-pad plus each button's default key. Reserved or unknown keys are
// left unbound.
func DefaultKeyboardConfig(buttons []emucore.Button) keyconfig.KeyConfig {
	cfg := keyconfig.KeyConfig{Map: keyconfig.MapKeyboard, Name: DefaultConfigName}
	for _, dp := range dpadButtons {
		cfg.Set(keyconfig.KeyInfo{Codes: [3]uint16{logicalCode(dp.bit)}},
			keyconfig.MappedKeys{keyCode(dp.defaultKey)})
	}
	for _, btn := range buttons {
		k, ok := ParseKey(btn.DefaultKey)
		if !ok || reservedKeys[k] {
			continue
		}
		cfg.Set(keyconfig.KeyInfo{Codes: [3]uint16{logicalCode(btn.ID)}},
			keyconfig.MappedKeys{keyCode(k)})
	}
	return cfg
}

// DefaultGamepadConfig builds the standard gamepad config for a system.
func DefaultGamepadConfig(buttons []emucore.Button) keyconfig.KeyConfig {
	cfg := keyconfig.KeyConfig{Map: keyconfig.MapGamepad, Name: DefaultConfigName}
	for _, dp := range dpadButtons {
		cfg.Set(keyconfig.KeyInfo{Codes: [3]uint16{logicalCode(dp.bit)}},
			keyconfig.MappedKeys{padCode(dp.defaultPad)})
	}
	for i, btn := range buttons {
		if i >= len(defaultPadOrder) {
			break
		}
		cfg.Set(keyconfig.KeyInfo{Codes: [3]uint16{logicalCode(btn.ID)}},
			keyconfig.MappedKeys{padCode(defaultPadOrder[i])})
	}
	return cfg
}

// resolveConfig returns the saved custom config for m, or def when none
// exists.
func resolveConfig(set *keyconfig.Set, m keyconfig.Map, def keyconfig.KeyConfig) keyconfig.KeyConfig {
	if c, ok := set.Find(m, DefaultConfigName); ok {
		return *c
	}
	return def
}

type binding struct {
	buttons uint32
	codes   keyconfig.MappedKeys
	flags   keyconfig.Flags
}

// InputMapper turns physical key state into a button bitmask using a
// KeyConfig. Turbo bindings pulse while held and toggle bindings latch on
// each press.
type InputMapper struct {
	bindings []binding
	held     []bool
	latched  uint32
	frame    int
}

// NewInputMapper compiles cfg. Logical codes outside the 32 button bits are
// ignored.
func NewInputMapper(cfg keyconfig.KeyConfig) *InputMapper {
	m := &InputMapper{}
	for _, mp := range cfg.Mappings {
		var mask uint32
		for _, c := range mp.Key.Codes {
			if c == 0 || c > 32 {
				continue
			}
			mask |= 1 << (c - 1)
		}
		if mask == 0 {
			continue
		}
		m.bindings = append(m.bindings, binding{buttons: mask, codes: mp.Mapped, flags: mp.Key.Flags})
	}
	m.held = make([]bool, len(m.bindings))
	return m
}

// Buttons returns the bitmask for this frame. pressed reports whether a
// physical code is down. Call once per frame.
func (m *InputMapper) Buttons(pressed func(code uint16) bool) uint32 {
	m.frame++
	turboOn := (m.frame/turboPeriod)%2 == 0

	var out uint32
	for i, b := range m.bindings {
		down := chordDown(b.codes, pressed)
		wasDown := m.held[i]
		m.held[i] = down

		switch {
		case b.flags&keyconfig.FlagToggle != 0:
			if down && !wasDown {
				m.latched ^= b.buttons
			}
		case down && b.flags&keyconfig.FlagTurbo != 0:
			if turboOn {
				out |= b.buttons
			}
		case down:
			out |= b.buttons
		}
	}
	return out | m.latched
}

func chordDown(codes keyconfig.MappedKeys, pressed func(uint16) bool) bool {
	bound := false
	for _, c := range codes {
		if c == 0 {
			continue
		}
		if !pressed(c) {
			return false
		}
		bound = true
	}
	return bound
}

// keyboardPressed reports keyboard state for a keyboard config code.
func keyboardPressed(code uint16) bool {
	return ebiten.IsKeyPressed(ebiten.Key(code - 1))
}

// gamepadPressed returns a pressed func for a gamepad config code on id.
// The left stick also drives the d-pad buttons.
func gamepadPressed(id ebiten.GamepadID) func(uint16) bool {
	axisX := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal)
	axisY := ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical)
	return func(code uint16) bool {
		b := ebiten.StandardGamepadButton(code - 1)
		if ebiten.IsStandardGamepadButtonPressed(id, b) {
			return true
		}
		switch b {
		case ebiten.StandardGamepadButtonLeftLeft:
			return axisX < -0.25
		case ebiten.StandardGamepadButtonLeftRight:
			return axisX > 0.25
		case ebiten.StandardGamepadButtonLeftTop:
			return axisY < -0.25
		case ebiten.StandardGamepadButtonLeftBottom:
			return axisY > 0.25
		}
		return false
	}
}

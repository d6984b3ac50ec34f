// Package rewind keeps a fixed ring of uncompressed emulator snapshots taken
// on a periodic timer and restores them newest first.
package rewind

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	emucore "github.com/user-none/emuframework/api"
	"github.com/user-none/emuframework/statecodec"
	"github.com/user-none/emuframework/timer"
)

const (
	// DefaultMaxStates leaves rewind disabled.
	DefaultMaxStates = 0

	DefaultSaveFrequency = time.Second
	MinSaveFrequency     = time.Second
	MaxSaveFrequency     = 720 * time.Second
)

// ErrAllocation is returned by Reset when the ring cannot be allocated.
var ErrAllocation = errors.New("rewind buffer allocation failed")

// snapshot is one ring entry. size 0 means empty or already consumed.
type snapshot struct {
	data []byte
	size int
}

// Manager owns the rewind ring. It is not safe for concurrent use; the timer
// fires from Poll on the caller's thread.
type Manager struct {
	io        emucore.StateIO
	maxStates int
	stateSize int
	stateIdx  int
	states    []snapshot
	timer     *timer.Timer
}

// New creates a disabled manager using the wall clock.
func New() *Manager {
	return NewWithClock(time.Now)
}

// NewWithClock creates a disabled manager whose save timer reads time from now.
func NewWithClock(now func() time.Time) *Manager {
	m := &Manager{maxStates: DefaultMaxStates}
	m.timer = timer.NewWithClock(DefaultSaveFrequency, now, m.onTimer)
	return m
}

func (m *Manager) onTimer() {
	if err := m.SaveState(); err != nil {
		log.Printf("Rewind save failed: %v", err)
	}
}

// SetStateIO attaches the core that snapshots are taken from and sizes ring
// entries from its maximum state size. Reset must be called afterwards.
func (m *Manager) SetStateIO(sio emucore.StateIO) {
	m.io = sio
	if sio != nil {
		m.stateSize = sio.MaxStateSize()
	}
}

// MaxStates returns the configured ring capacity. 0 means disabled.
func (m *Manager) MaxStates() int {
	return m.maxStates
}

// SetMaxStates changes the ring capacity. It takes effect on the next Reset.
func (m *Manager) SetMaxStates(n int) {
	if n < 0 {
		n = 0
	}
	m.maxStates = n
}

// StateSize returns the byte size of each ring entry.
func (m *Manager) StateSize() int {
	return m.stateSize
}

// SetStateSize changes the entry size. It takes effect on the next Reset.
func (m *Manager) SetStateSize(n int) {
	if n < 0 {
		n = 0
	}
	m.stateSize = n
}

// SaveFrequency returns the interval between snapshots.
func (m *Manager) SaveFrequency() time.Duration {
	return m.timer.Interval()
}

// SetSaveFrequency changes the snapshot interval. Values <= 0 are ignored;
// others are clamped to [MinSaveFrequency, MaxSaveFrequency].
func (m *Manager) SetSaveFrequency(d time.Duration) {
	if d <= 0 {
		return
	}
	m.timer.SetInterval(min(max(d, MinSaveFrequency), MaxSaveFrequency))
}

// Enabled reports whether a ring is allocated.
func (m *Manager) Enabled() bool {
	return len(m.states) > 0
}

// StateIdx returns the index the next snapshot is written to.
func (m *Manager) StateIdx() int {
	return m.stateIdx
}

// Buffered returns the number of snapshots available to rewind to.
func (m *Manager) Buffered() int {
	n := 0
	for i := range m.states {
		if m.states[i].size > 0 {
			n++
		}
	}
	return n
}

// Reset allocates a fresh ring of MaxStates entries of StateSize bytes and
// moves the cursor to 0. A capacity of 0 releases the ring and stops the
// timer. On failure ErrAllocation is returned and the previous ring is kept.
func (m *Manager) Reset() error {
	if m.maxStates == 0 {
		m.timer.Cancel()
		m.states = nil
		m.stateIdx = 0
		return nil
	}
	states, err := allocate(m.maxStates, m.stateSize)
	if err != nil {
		return err
	}
	m.states = states
	m.stateIdx = 0
	return nil
}

// allocate backs every entry with one contiguous block.
func allocate(n, size int) (states []snapshot, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid state size %d", ErrAllocation, size)
	}
	if n > math.MaxInt/size {
		return nil, fmt.Errorf("%w: %d states of %d bytes overflows", ErrAllocation, n, size)
	}
	defer func() {
		if r := recover(); r != nil {
			states = nil
			err = fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()
	backing := make([]byte, n*size)
	states = make([]snapshot, n)
	for i := range states {
		states[i].data = backing[i*size : (i+1)*size : (i+1)*size]
	}
	return states, nil
}

// Clear stops the timer and empties every entry without freeing memory.
func (m *Manager) Clear() {
	m.timer.Cancel()
	for i := range m.states {
		m.states[i].size = 0
	}
	m.stateIdx = 0
}

// SaveState writes a snapshot at the cursor and advances it. Calling it while
// no ring is allocated is a programming error and panics.
func (m *Manager) SaveState() error {
	if !m.Enabled() {
		panic("rewind: SaveState called while disabled")
	}
	s := &m.states[m.stateIdx]
	n, err := m.io.WriteState(s.data, emucore.SaveStateFlags{Uncompressed: true})
	if err != nil {
		s.size = 0
		return fmt.Errorf("failed to write rewind state: %w", err)
	}
	s.size = n
	m.stateIdx = (m.stateIdx + 1) % len(m.states)
	return nil
}

// RewindState restores the newest unconsumed snapshot and moves the cursor
// back onto it. Each snapshot can be restored once. The save timer restarts
// its period so the restored state is not immediately saved again. It
// reports whether a snapshot was restored.
func (m *Manager) RewindState() bool {
	if !m.Enabled() {
		return false
	}
	prev := m.stateIdx - 1
	if m.stateIdx == 0 {
		prev = len(m.states) - 1
	}
	s := &m.states[prev]
	if s.size == 0 {
		return false
	}
	if err := m.io.ReadState(s.data[:s.size]); err != nil {
		log.Printf("Rewind failed: %v", err)
		return false
	}
	s.size = 0
	m.stateIdx = prev
	m.timer.Reset()
	return true
}

// StartTimer begins periodic snapshots. It does nothing without a ring.
func (m *Manager) StartTimer() {
	if !m.Enabled() || m.io == nil {
		return
	}
	m.timer.Start()
}

// PauseTimer stops periodic snapshots and keeps the ring.
func (m *Manager) PauseTimer() {
	m.timer.Pause()
}

// TimerRunning reports whether periodic snapshots are active.
func (m *Manager) TimerRunning() bool {
	return m.timer.Running()
}

// Poll takes a snapshot when the save period has elapsed.
func (m *Manager) Poll() bool {
	return m.timer.Poll()
}

// ReadConfig consumes rewind settings records.
func (m *Manager) ReadConfig(key statecodec.Key, p *statecodec.Payload) bool {
	switch key {
	case statecodec.KeyRewindStates:
		v, err := statecodec.ReadValue[uint32](p)
		if err != nil {
			log.Printf("Ignoring rewind states setting: %v", err)
			return true
		}
		m.SetMaxStates(int(min(v, math.MaxInt32)))
	case statecodec.KeyRewindTimerSecs:
		v, err := statecodec.ReadValue[int16](p)
		if err != nil {
			log.Printf("Ignoring rewind timer setting: %v", err)
			return true
		}
		m.SetSaveFrequency(time.Duration(v) * time.Second)
	default:
		return false
	}
	return true
}

// WriteConfig writes settings that differ from their defaults.
func (m *Manager) WriteConfig(w io.Writer) error {
	if err := statecodec.WriteOptional(w, statecodec.KeyRewindStates,
		uint32(m.maxStates), DefaultMaxStates); err != nil {
		return err
	}
	secs := int16(m.SaveFrequency() / time.Second)
	return statecodec.WriteOptional(w, statecodec.KeyRewindTimerSecs,
		secs, int16(DefaultSaveFrequency/time.Second))
}

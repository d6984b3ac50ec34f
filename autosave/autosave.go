// Package autosave manages the named autosave slot of the running content:
// periodic saves on a timer, restore at launch and slot switching.
package autosave

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"time"

	emucore "github.com/user-none/emuframework/api"
	"github.com/user-none/emuframework/statecodec"
	"github.com/user-none/emuframework/timer"
)

// LaunchMode selects what happens to the main slot when content loads.
type LaunchMode uint8

const (
	LaunchLoad LaunchMode = iota
	LaunchLoadNoState
	LaunchAsk
	LaunchNoSave
)

func (m LaunchMode) String() string {
	switch m {
	case LaunchLoad:
		return "Load"
	case LaunchLoadNoState:
		return "Load (No State)"
	case LaunchAsk:
		return "Ask"
	case LaunchNoSave:
		return "No Save"
	default:
		return "Unknown"
	}
}

// LoadMode selects how much of a slot Load restores.
type LoadMode uint8

const (
	// LoadNormal restores backup memory and the full core state.
	LoadNormal LoadMode = iota
	// LoadNoState restores only backup memory.
	LoadNoState
)

// State is the lifecycle state of the manager.
type State uint8

const (
	StateIdle State = iota
	StateArmed
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateArmed:
		return "Armed"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// MainSlot is the slot opened at launch by every mode but LaunchNoSave.
const MainSlot = "Main"

const (
	DefaultLaunchMode     = LaunchLoad
	DefaultTimerFrequency = 5 * time.Minute
	MinTimerFrequency     = time.Minute
	MaxTimerFrequency     = 720 * time.Minute
)

var (
	// ErrNoSlot is returned when saving or loading without an open slot.
	ErrNoSlot = errors.New("no autosave slot open")

	// ErrNoContent is returned when saving or loading without loaded content.
	ErrNoContent = errors.New("no content loaded")

	// ErrNoState is returned by Load when the slot holds nothing to restore.
	ErrNoState = errors.New("autosave slot is empty")

	// ErrSlotInUse is returned when deleting the open slot.
	ErrSlotInUse = errors.New("autosave slot in use")

	// ErrChoicePending is returned by Save while the LaunchAsk question is
	// unanswered.
	ErrChoicePending = errors.New("autosave launch choice pending")
)

// Source is the loaded content autosave reads from and writes to.
type Source struct {
	State  emucore.StateIO      // nil when the core has no save states
	Backup emucore.BatterySaver // nil when the core has no backup memory
}

func (s Source) hasBackup() bool {
	return s.Backup != nil && s.Backup.HasSRAM()
}

// Manager owns at most one open slot handle. It is not safe for concurrent
// use; the save timer fires from Poll on the caller's thread.
type Manager struct {
	store      Store
	src        Source
	loaded     bool
	handle     Handle
	state      State
	launchMode LaunchMode
	backupOnly bool
	pending    bool
	timer      *timer.Timer
	buf        []byte
}

// New creates an idle manager using the wall clock.
func New(store Store) *Manager {
	return NewWithClock(store, time.Now)
}

// NewWithClock creates an idle manager whose save timer reads time from now.
func NewWithClock(store Store, now func() time.Time) *Manager {
	m := &Manager{store: store, launchMode: DefaultLaunchMode}
	m.timer = timer.NewWithClock(DefaultTimerFrequency, now, m.onTimer)
	return m
}

func (m *Manager) onTimer() {
	if err := m.Save(); err != nil {
		log.Printf("Auto-save failed: %v", err)
	}
}

// SetStore replaces the backing store. Any open slot is closed first.
func (m *Manager) SetStore(store Store) {
	m.closeSlot()
	m.store = store
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Slot returns the open slot name, or "" when none is open.
func (m *Manager) Slot() string {
	if m.handle == nil {
		return ""
	}
	return m.handle.Name()
}

// LastSaved returns when the open slot was last written.
func (m *Manager) LastSaved() time.Time {
	if m.handle == nil {
		return time.Time{}
	}
	return m.handle.LastSaved()
}

func (m *Manager) LaunchMode() LaunchMode {
	return m.launchMode
}

func (m *Manager) SetLaunchMode(mode LaunchMode) {
	if mode > LaunchNoSave {
		return
	}
	m.launchMode = mode
}

// SaveOnlyBackupMemory reports whether saves skip the core state.
func (m *Manager) SaveOnlyBackupMemory() bool {
	return m.backupOnly
}

func (m *Manager) SetSaveOnlyBackupMemory(v bool) {
	m.backupOnly = v
}

// TimerFrequency returns the interval between periodic saves.
func (m *Manager) TimerFrequency() time.Duration {
	return m.timer.Interval()
}

// SetTimerFrequency changes the save interval. Values <= 0 are ignored;
// others are rounded to whole minutes and clamped to
// [MinTimerFrequency, MaxTimerFrequency].
func (m *Manager) SetTimerFrequency(d time.Duration) {
	if d <= 0 {
		return
	}
	d = d.Round(time.Minute)
	m.timer.SetInterval(min(max(d, MinTimerFrequency), MaxTimerFrequency))
}

// ContentLoaded attaches newly loaded content and moves to Armed. With
// LaunchLoad or LaunchLoadNoState the main slot is opened and restored; an
// empty slot is not an error. With LaunchAsk the main slot is opened and,
// if it holds a save, nothing is restored or written until ResolveLaunchChoice.
func (m *Manager) ContentLoaded(src Source) error {
	m.closeSlot()
	m.src = src
	m.loaded = true
	m.state = StateArmed

	var mode LoadMode
	switch m.launchMode {
	case LaunchLoad:
		mode = LoadNormal
	case LaunchLoadNoState:
		mode = LoadNoState
	case LaunchAsk:
		if err := m.ResetSlot(MainSlot); err != nil {
			return err
		}
		m.pending = !m.handle.LastSaved().IsZero()
		return nil
	default:
		return nil
	}
	if err := m.ResetSlot(MainSlot); err != nil {
		return err
	}
	if err := m.Load(mode); err != nil && !errors.Is(err, ErrNoState) {
		return err
	}
	return nil
}

// PendingLaunchChoice reports whether LaunchAsk is waiting for the user to
// choose between the main slot's save and a cold start, and when that save
// was written.
func (m *Manager) PendingLaunchChoice() (time.Time, bool) {
	if !m.pending || m.handle == nil {
		return time.Time{}, false
	}
	return m.handle.LastSaved(), true
}

// ResolveLaunchChoice answers a pending LaunchAsk question, restoring the main
// slot when load is set. Saving is allowed again afterwards either way; the
// caller starts the timer.
func (m *Manager) ResolveLaunchChoice(load bool) error {
	if !m.pending {
		return nil
	}
	m.pending = false
	if !load {
		return nil
	}
	if err := m.Load(LoadNormal); err != nil && !errors.Is(err, ErrNoState) {
		return err
	}
	return nil
}

// ContentUnloaded saves the open slot, closes it and returns to Idle. An
// unanswered launch question leaves the slot as it was.
func (m *Manager) ContentUnloaded() error {
	var err error
	if m.handle != nil && m.loaded && !m.pending {
		err = m.Save()
	}
	m.closeSlot()
	m.src = Source{}
	m.loaded = false
	m.state = StateIdle
	return err
}

// Save writes the open slot. Backup memory is written when the content has
// any; the core state is written unless SaveOnlyBackupMemory is set.
func (m *Manager) Save() error {
	if !m.loaded {
		return ErrNoContent
	}
	if m.handle == nil {
		return ErrNoSlot
	}
	if m.pending {
		return ErrChoicePending
	}

	if m.src.hasBackup() {
		if err := m.handle.WriteBackup(m.src.Backup.GetSRAM()); err != nil {
			return fmt.Errorf("failed to write backup memory: %w", err)
		}
	}
	if m.backupOnly || m.src.State == nil {
		return nil
	}

	size := m.src.State.MaxStateSize()
	if cap(m.buf) < size {
		m.buf = make([]byte, size)
	}
	n, err := m.src.State.WriteState(m.buf[:size], emucore.SaveStateFlags{})
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	if err := m.handle.WriteState(m.buf[:n]); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Load restores the open slot. LoadNoState restores only backup memory.
// ErrNoState is returned when nothing in the slot applies.
func (m *Manager) Load(mode LoadMode) error {
	if !m.loaded {
		return ErrNoContent
	}
	if m.handle == nil {
		return ErrNoSlot
	}

	restored := false
	if m.src.hasBackup() {
		data, err := m.handle.ReadBackup()
		switch {
		case err == nil:
			m.src.Backup.SetSRAM(data)
			restored = true
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to read backup memory: %w", err)
		}
	}

	if mode == LoadNormal && !m.backupOnly && m.src.State != nil {
		data, err := m.handle.ReadState()
		switch {
		case err == nil:
			if err := m.src.State.ReadState(data); err != nil {
				return fmt.Errorf("failed to restore state: %w", err)
			}
			restored = true
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("failed to read state: %w", err)
		}
	}

	if !restored {
		return ErrNoState
	}
	return nil
}

// closeSlot cancels the timer before closing the handle so no save can run
// against a closed handle.
func (m *Manager) closeSlot() {
	m.CancelTimer()
	m.pending = false
	if m.handle == nil {
		return
	}
	if err := m.handle.Close(); err != nil {
		log.Printf("Failed to close autosave slot %q: %v", m.handle.Name(), err)
	}
	m.handle = nil
}

// ResetSlot closes the open slot and opens name without saving or loading.
// An empty name leaves no slot open.
func (m *Manager) ResetSlot(name string) error {
	m.closeSlot()
	if name == "" {
		return nil
	}
	h, err := m.store.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open autosave slot %q: %w", name, err)
	}
	m.handle = h
	return nil
}

// SetSlot saves the open slot, switches to name and restores it. A new,
// empty slot is not an error. Switching answers a pending launch question
// without touching the main slot.
func (m *Manager) SetSlot(name string) error {
	if m.handle != nil && m.loaded && !m.pending {
		if err := m.Save(); err != nil {
			return err
		}
	}
	if err := m.ResetSlot(name); err != nil {
		return err
	}
	if name == "" || !m.loaded {
		return nil
	}
	if err := m.Load(LoadNormal); err != nil && !errors.Is(err, ErrNoState) {
		return err
	}
	return nil
}

// RenameSlot renames a stored slot. Renaming the open slot reopens it under
// the new name.
func (m *Manager) RenameSlot(oldName, newName string) error {
	reopen := m.handle != nil && m.handle.Name() == oldName
	pending := m.pending
	if reopen {
		m.closeSlot()
	}
	err := m.store.Rename(oldName, newName)
	if reopen {
		name := newName
		if err != nil {
			name = oldName
		}
		if openErr := m.ResetSlot(name); openErr != nil && err == nil {
			err = openErr
		}
		m.pending = pending && m.handle != nil
	}
	return err
}

// DeleteSlot removes a stored slot. The open slot cannot be deleted.
func (m *Manager) DeleteSlot(name string) error {
	if m.handle != nil && m.handle.Name() == name {
		return fmt.Errorf("%w: %q", ErrSlotInUse, name)
	}
	return m.store.Delete(name)
}

// Slots lists the stored slots.
func (m *Manager) Slots() ([]SlotInfo, error) {
	return m.store.List()
}

// StartTimer begins or resumes periodic saves. It does nothing without loaded
// content and an open slot, while a launch choice is pending, or when the
// launch mode disables saving.
func (m *Manager) StartTimer() {
	if m.handle == nil || !m.loaded || m.pending || m.launchMode == LaunchNoSave {
		return
	}
	m.timer.Start()
	m.state = StateRunning
}

// PauseTimer suspends periodic saves, keeping the time left in the period.
func (m *Manager) PauseTimer() {
	m.timer.Pause()
	if m.state == StateRunning {
		m.state = StatePaused
	}
}

// CancelTimer stops periodic saves and drops any partial period.
func (m *Manager) CancelTimer() {
	m.timer.Cancel()
	if m.state == StateRunning || m.state == StatePaused {
		m.state = StateArmed
	}
}

// ResetTimer restarts the current period.
func (m *Manager) ResetTimer() {
	m.timer.Reset()
}

// Poll saves when the period has elapsed.
func (m *Manager) Poll() bool {
	return m.timer.Poll()
}

// ReadConfig consumes autosave settings records.
func (m *Manager) ReadConfig(key statecodec.Key, p *statecodec.Payload) bool {
	switch key {
	case statecodec.KeyAutosaveLaunchMode:
		v, err := statecodec.ReadValue[uint8](p)
		if err != nil {
			log.Printf("Ignoring autosave launch mode: %v", err)
			return true
		}
		m.SetLaunchMode(LaunchMode(v))
	case statecodec.KeyAutosaveTimerMins:
		v, err := statecodec.ReadValue[int16](p)
		if err != nil {
			log.Printf("Ignoring autosave timer setting: %v", err)
			return true
		}
		m.SetTimerFrequency(time.Duration(v) * time.Minute)
	case statecodec.KeyAutosaveContent:
		v, err := statecodec.ReadValue[bool](p)
		if err != nil {
			log.Printf("Ignoring autosave content setting: %v", err)
			return true
		}
		m.backupOnly = v
	default:
		return false
	}
	return true
}

// WriteConfig writes settings that differ from their defaults.
func (m *Manager) WriteConfig(w io.Writer) error {
	if err := statecodec.WriteOptional(w, statecodec.KeyAutosaveLaunchMode,
		uint8(m.launchMode), uint8(DefaultLaunchMode)); err != nil {
		return err
	}
	mins := int16(m.TimerFrequency() / time.Minute)
	if err := statecodec.WriteOptional(w, statecodec.KeyAutosaveTimerMins,
		mins, int16(DefaultTimerFrequency/time.Minute)); err != nil {
		return err
	}
	return statecodec.WriteOptional(w, statecodec.KeyAutosaveContent, m.backupOnly, false)
}

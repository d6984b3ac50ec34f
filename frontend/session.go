// Package frontend ties a loaded core to the save state, autosave, rewind,
// recent content and key config layers.
package frontend

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	emucore "github.com/user-none/emuframework/api"
	"github.com/user-none/emuframework/autosave"
	"github.com/user-none/emuframework/keyconfig"
	"github.com/user-none/emuframework/rdb"
	"github.com/user-none/emuframework/recent"
	"github.com/user-none/emuframework/rewind"
	"github.com/user-none/emuframework/romloader"
	"github.com/user-none/emuframework/storage"
)

const (
	// AutoSlot is the state slot shared with autosave.
	AutoSlot = -1
	// NumSlots is the number of numbered state slots.
	NumSlots = 10
)

var (
	// ErrNoContent is returned by state operations without loaded content.
	ErrNoContent = errors.New("no content loaded")

	// ErrNoSaveStates is returned when the loaded core has no save states.
	ErrNoSaveStates = errors.New("core does not support save states")

	// ErrInvalidSlot is returned for slots outside [AutoSlot, NumSlots).
	ErrInvalidSlot = errors.New("invalid state slot")
)

// Session hosts one core and its loaded content. It is not safe for
// concurrent use; drive it from the host loop.
type Session struct {
	factory emucore.CoreFactory
	info    emucore.SystemInfo
	dirs    *storage.Dirs
	loader  *romloader.Loader

	emu     emucore.Emulator
	state   *coreState
	content *romloader.Content
	paused  bool

	autosave *autosave.Manager
	rewind   *rewind.Manager
	recent   *recent.List
	keys     keyconfig.Set
	gameDB   *rdb.DB

	forceRegion bool
	region      emucore.Region

	stateSlot        int
	confirmOverwrite bool
}

// New creates a session for the cores made by factory, storing files in dirs.
func New(factory emucore.CoreFactory, dirs *storage.Dirs) *Session {
	return newWithClock(factory, dirs, time.Now)
}

func newWithClock(factory emucore.CoreFactory, dirs *storage.Dirs, now func() time.Time) *Session {
	info := factory.SystemInfo()
	return &Session{
		factory:  factory,
		info:     info,
		dirs:     dirs,
		loader:   romloader.New(dirs.Fs(), info.Extensions),
		autosave: autosave.NewWithClock(nil, now),
		rewind:   rewind.NewWithClock(now),
		recent:   recent.New(),
	}
}

// SetGameDB sets the database used to title content and to pick a region
// the core cannot detect. Nil disables lookups.
func (s *Session) SetGameDB(db *rdb.DB) { s.gameDB = db }

// ForceRegion makes later loads use r instead of detecting the region.
// force=false restores detection.
func (s *Session) ForceRegion(r emucore.Region, force bool) {
	s.region = r
	s.forceRegion = force
}

// detectRegion asks the core first and falls back to the region tag of the
// content's database entry.
func (s *Session) detectRegion(c *romloader.Content) emucore.Region {
	if s.forceRegion {
		return s.region
	}
	region, found := s.factory.DetectRegion(c.Data)
	if found {
		return region
	}
	if g, ok := s.gameDB.Lookup(c.CRC32); ok {
		if r, ok := g.Region(); ok {
			return r
		}
	}
	return region
}

// ContentTitle returns the database title of the loaded content, or its
// file name when the content is unknown.
func (s *Session) ContentTitle() string {
	if s.content == nil {
		return ""
	}
	if g, ok := s.gameDB.Lookup(s.content.CRC32); ok && g.Title() != "" {
		return g.Title()
	}
	return s.content.Name
}

// SystemInfo returns the core's system metadata.
func (s *Session) SystemInfo() emucore.SystemInfo { return s.info }

// Emulator returns the running core, or nil.
func (s *Session) Emulator() emucore.Emulator { return s.emu }

// Content returns the loaded content, or nil.
func (s *Session) Content() *romloader.Content { return s.content }

// Autosave returns the autosave manager.
func (s *Session) Autosave() *autosave.Manager { return s.autosave }

// Rewind returns the rewind manager.
func (s *Session) Rewind() *rewind.Manager { return s.rewind }

// Recent returns the recent content list.
func (s *Session) Recent() *recent.List { return s.recent }

// KeyConfigs returns the custom key configs.
func (s *Session) KeyConfigs() *keyconfig.Set { return &s.keys }

// Running reports whether content is loaded.
func (s *Session) Running() bool { return s.emu != nil }

// Paused reports whether the session is paused.
func (s *Session) Paused() bool { return s.paused }

// LoadContent closes any running content, then loads path, creates a core
// for it and restores its autosave according to the launch mode.
func (s *Session) LoadContent(path string) error {
	s.CloseContent()

	c, err := s.loader.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}
	region := s.detectRegion(c)
	emu, err := s.factory.CreateEmulator(c.Data, region)
	if err != nil {
		return fmt.Errorf("failed to create emulator: %w", err)
	}
	log.Printf("Loaded %s (%08x) region %s", c.Name, c.CRC32, region)

	s.emu = emu
	s.content = c
	s.recent.Add(path, c.Name)

	src := autosave.Source{}
	if saver, ok := emu.(emucore.SaveStater); ok {
		st, err := newCoreState(saver, s.info.SerializeSize)
		if err != nil {
			log.Printf("Save states unavailable: %v", err)
		} else {
			s.state = st
			src.State = st
		}
	}
	if bs, ok := emu.(emucore.BatterySaver); ok {
		src.Backup = bs
	}

	s.autosave.SetStore(autosave.NewFSStore(s.dirs.Fs(), s.dirs.ContentAutosaveDir(c.CRC32)))
	if err := s.autosave.ContentLoaded(src); err != nil {
		log.Printf("Auto-load failed: %v", err)
	}

	if s.state != nil {
		s.rewind.SetStateIO(s.state)
		if err := s.rewind.Reset(); err != nil {
			log.Printf("Rewind disabled: %v", err)
		}
	}

	s.paused = true
	s.Start()
	return nil
}

// CloseContent saves the autosave slot and releases the core.
func (s *Session) CloseContent() {
	if s.emu == nil {
		return
	}
	if err := s.autosave.ContentUnloaded(); err != nil && !errors.Is(err, autosave.ErrNoSlot) {
		log.Printf("Auto-save failed: %v", err)
	}
	s.rewind.Clear()
	s.rewind.SetStateIO(nil)
	s.emu.Close()
	if s.state != nil {
		s.state.close()
	}
	s.emu = nil
	s.state = nil
	s.content = nil
	s.paused = false
}

// Pause suspends the autosave and rewind timers.
func (s *Session) Pause() {
	if s.emu == nil || s.paused {
		return
	}
	s.paused = true
	s.autosave.PauseTimer()
	s.rewind.PauseTimer()
}

// Start resumes the autosave and rewind timers.
func (s *Session) Start() {
	if s.emu == nil || !s.paused {
		return
	}
	s.paused = false
	s.autosave.StartTimer()
	s.rewind.StartTimer()
}

// ResolveAutosaveChoice answers the launch question raised by
// autosave.LaunchAsk. Loading drops rewind history taken from the cold start.
// The autosave timer starts unless the session is paused.
func (s *Session) ResolveAutosaveChoice(load bool) error {
	if _, ok := s.autosave.PendingLaunchChoice(); !ok {
		return nil
	}
	err := s.autosave.ResolveLaunchChoice(load)
	if err == nil && load {
		s.rewind.Clear()
		if !s.paused {
			s.rewind.StartTimer()
		}
	}
	if !s.paused {
		s.autosave.StartTimer()
	}
	return err
}

// Poll runs due autosave and rewind timers. Call once per host frame.
func (s *Session) Poll() {
	s.autosave.Poll()
	s.rewind.Poll()
}

// WriteState serializes the core into buf, compressed unless flags say otherwise.
func (s *Session) WriteState(buf []byte, flags emucore.SaveStateFlags) (int, error) {
	if s.state == nil {
		return 0, s.stateErr()
	}
	return s.state.WriteState(buf, flags)
}

// ReadState restores the core from a state written by WriteState.
func (s *Session) ReadState(buf []byte) error {
	if s.state == nil {
		return s.stateErr()
	}
	return s.state.ReadState(buf)
}

// MaxStateSize returns the largest state WriteState can produce.
func (s *Session) MaxStateSize() int {
	if s.state == nil {
		return 0
	}
	return s.state.MaxStateSize()
}

func (s *Session) stateErr() error {
	if s.emu == nil {
		return ErrNoContent
	}
	return ErrNoSaveStates
}

// SaveState writes a compressed state file to path.
func (s *Session) SaveState(path string) error {
	buf := make([]byte, s.MaxStateSize())
	n, err := s.WriteState(buf, emucore.SaveStateFlags{})
	if err != nil {
		return err
	}
	if err := storage.AtomicWriteFile(s.dirs.Fs(), path, buf[:n]); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// LoadState restores a state file and drops rewind history, which no longer
// leads to the restored state.
func (s *Session) LoadState(path string) error {
	if s.state == nil {
		return s.stateErr()
	}
	data, err := afero.ReadFile(s.dirs.Fs(), path)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}
	if err := s.ReadState(data); err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	s.rewind.Clear()
	if !s.paused {
		s.rewind.StartTimer()
	}
	return nil
}

// SaveStateWithSlot saves to a numbered slot or AutoSlot.
func (s *Session) SaveStateWithSlot(slot int) error {
	path, err := s.StatePath(slot)
	if err != nil {
		return err
	}
	return s.SaveState(path)
}

// LoadStateWithSlot loads from a numbered slot or AutoSlot.
func (s *Session) LoadStateWithSlot(slot int) error {
	path, err := s.StatePath(slot)
	if err != nil {
		return err
	}
	if ok, _ := afero.Exists(s.dirs.Fs(), path); !ok {
		return fmt.Errorf("no save in slot %s", StateSlotName(slot))
	}
	return s.LoadState(path)
}

// StateSlot returns the selected slot.
func (s *Session) StateSlot() int { return s.stateSlot }

// SetStateSlot selects a slot in [AutoSlot, NumSlots).
func (s *Session) SetStateSlot(slot int) error {
	if !validSlot(slot) {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	s.stateSlot = slot
	return nil
}

// NextSlot cycles forward through the numbered slots.
func (s *Session) NextSlot() int {
	s.stateSlot = (max(s.stateSlot, 0) + 1) % NumSlots
	return s.stateSlot
}

// PreviousSlot cycles backward through the numbered slots.
func (s *Session) PreviousSlot() int {
	s.stateSlot--
	if s.stateSlot < 0 {
		s.stateSlot = NumSlots - 1
	}
	return s.stateSlot
}

func validSlot(slot int) bool {
	return slot >= AutoSlot && slot < NumSlots
}

// StateSlotName returns the display name of slot.
func StateSlotName(slot int) string {
	if slot == AutoSlot {
		return "Auto"
	}
	return strconv.Itoa(slot)
}

// stateFilename names a slot file after the content: "<name>.0<c>.state",
// where c is 'a' for AutoSlot and the slot digit otherwise.
func stateFilename(contentName string, slot int) string {
	c := byte('0' + slot)
	if slot == AutoSlot {
		c = 'a'
	}
	return fmt.Sprintf("%s.0%c.state", contentName, c)
}

// StatePath returns the file path for slot of the loaded content.
func (s *Session) StatePath(slot int) (string, error) {
	if s.content == nil {
		return "", ErrNoContent
	}
	if !validSlot(slot) {
		return "", fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	name := strings.TrimSuffix(s.content.Name, filepath.Ext(s.content.Name))
	return filepath.Join(s.dirs.ContentSaveDir(s.content.CRC32), stateFilename(name, slot)), nil
}

// StateExists reports whether slot has a state file.
func (s *Session) StateExists(slot int) bool {
	path, err := s.StatePath(slot)
	if err != nil {
		return false
	}
	ok, _ := afero.Exists(s.dirs.Fs(), path)
	return ok
}

// ConfirmOverwriteState reports whether saving over a slot needs confirmation.
func (s *Session) ConfirmOverwriteState() bool { return s.confirmOverwrite }

func (s *Session) SetConfirmOverwriteState(v bool) { s.confirmOverwrite = v }

// ShouldOverwriteExistingState reports whether the selected slot can be
// saved without asking.
func (s *Session) ShouldOverwriteExistingState() bool {
	return !s.confirmOverwrite || !s.StateExists(s.stateSlot)
}

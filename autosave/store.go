package autosave

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/user-none/emuframework/storage"
)

const (
	stateExt  = ".state"
	backupExt = ".srm"
)

var (
	// ErrInvalidName is returned for slot names that cannot be used as file names.
	ErrInvalidName = errors.New("invalid autosave slot name")

	// ErrSlotExists is returned when renaming onto an existing slot.
	ErrSlotExists = errors.New("autosave slot already exists")

	// ErrHandleClosed is returned by operations on a closed Handle.
	ErrHandleClosed = errors.New("autosave handle closed")
)

// SlotInfo describes a stored slot.
type SlotInfo struct {
	Name      string
	LastSaved time.Time
}

// Store is the backing storage for autosave slots.
type Store interface {
	// Open returns a handle for the named slot, creating it if needed.
	Open(name string) (Handle, error)

	// Rename moves a slot. It fails if newName already exists.
	Rename(oldName, newName string) error

	// Delete removes a slot.
	Delete(name string) error

	// List returns the stored slots sorted by name.
	List() ([]SlotInfo, error)
}

// Handle is an open slot. Reads of data that was never written return an
// error matching fs.ErrNotExist.
type Handle interface {
	Name() string
	WriteState(data []byte) error
	ReadState() ([]byte, error)
	WriteBackup(data []byte) error
	ReadBackup() ([]byte, error)
	LastSaved() time.Time
	Close() error
}

// ValidName reports whether name can be used as a slot name.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\:`)
}

// FSStore keeps each slot as a state file and a backup memory file in one
// directory.
type FSStore struct {
	fs  afero.Fs
	dir string
}

// NewFSStore creates a store rooted at dir on fs.
func NewFSStore(fs afero.Fs, dir string) *FSStore {
	return &FSStore{fs: fs, dir: dir}
}

func (s *FSStore) path(name, ext string) string {
	return filepath.Join(s.dir, name+ext)
}

func (s *FSStore) exists(name string) bool {
	for _, ext := range []string{stateExt, backupExt} {
		if ok, _ := afero.Exists(s.fs, s.path(name, ext)); ok {
			return true
		}
	}
	return false
}

// Open returns a handle for name. Files are created on first write.
func (s *FSStore) Open(name string) (Handle, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create autosave directory: %w", err)
	}
	return &fsHandle{store: s, name: name}, nil
}

// Rename moves both files of a slot. If a file fails to move, the ones
// already moved are put back so the slot stays under oldName.
func (s *FSStore) Rename(oldName, newName string) error {
	if !ValidName(oldName) || !ValidName(newName) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidName, oldName, newName)
	}
	if s.exists(newName) {
		return fmt.Errorf("%w: %q", ErrSlotExists, newName)
	}
	if !s.exists(oldName) {
		return fmt.Errorf("autosave slot %q: %w", oldName, fs.ErrNotExist)
	}
	var moved []string
	for _, ext := range []string{stateExt, backupExt} {
		src := s.path(oldName, ext)
		if ok, _ := afero.Exists(s.fs, src); !ok {
			continue
		}
		if err := s.fs.Rename(src, s.path(newName, ext)); err != nil {
			for _, done := range moved {
				if rbErr := s.fs.Rename(s.path(newName, done), s.path(oldName, done)); rbErr != nil {
					return fmt.Errorf("failed to rename autosave slot: %w (restoring %q: %v)", err, oldName+done, rbErr)
				}
			}
			return fmt.Errorf("failed to rename autosave slot: %w", err)
		}
		moved = append(moved, ext)
	}
	return nil
}

// Delete removes both files of a slot, state first. If the backup memory file
// cannot be removed the slot is left holding only that file, and Delete can
// be retried.
func (s *FSStore) Delete(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !s.exists(name) {
		return fmt.Errorf("autosave slot %q: %w", name, fs.ErrNotExist)
	}
	for _, ext := range []string{stateExt, backupExt} {
		if err := s.fs.Remove(s.path(name, ext)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete autosave slot: %w", err)
		}
	}
	return nil
}

// List returns every slot found in the directory.
func (s *FSStore) List() ([]SlotInfo, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list autosave slots: %w", err)
	}

	byName := make(map[string]time.Time)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != stateExt && ext != backupExt {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if e.ModTime().After(byName[name]) {
			byName[name] = e.ModTime()
		}
	}

	slots := make([]SlotInfo, 0, len(byName))
	for name, t := range byName {
		slots = append(slots, SlotInfo{Name: name, LastSaved: t})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Name < slots[j].Name })
	return slots, nil
}

type fsHandle struct {
	store  *FSStore
	name   string
	saved  time.Time
	closed bool
}

func (h *fsHandle) Name() string {
	return h.name
}

func (h *fsHandle) write(ext string, data []byte) error {
	if h.closed {
		return ErrHandleClosed
	}
	if err := storage.AtomicWriteFile(h.store.fs, h.store.path(h.name, ext), data); err != nil {
		return err
	}
	h.saved = time.Now()
	return nil
}

func (h *fsHandle) read(ext string) ([]byte, error) {
	if h.closed {
		return nil, ErrHandleClosed
	}
	return afero.ReadFile(h.store.fs, h.store.path(h.name, ext))
}

func (h *fsHandle) WriteState(data []byte) error  { return h.write(stateExt, data) }
func (h *fsHandle) ReadState() ([]byte, error)    { return h.read(stateExt) }
func (h *fsHandle) WriteBackup(data []byte) error { return h.write(backupExt, data) }
func (h *fsHandle) ReadBackup() ([]byte, error)   { return h.read(backupExt) }

// LastSaved returns the newest modification time of the slot's files.
func (h *fsHandle) LastSaved() time.Time {
	latest := h.saved
	for _, ext := range []string{stateExt, backupExt} {
		if fi, err := h.store.fs.Stat(h.store.path(h.name, ext)); err == nil && fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
	}
	return latest
}

func (h *fsHandle) Close() error {
	h.closed = true
	return nil
}

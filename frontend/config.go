package frontend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"

	"github.com/spf13/afero"

	"github.com/user-none/emuframework/statecodec"
	"github.com/user-none/emuframework/storage"
)

// configReader is implemented by every component with persisted settings.
type configReader interface {
	ReadConfig(key statecodec.Key, p *statecodec.Payload) bool
}

type configWriter interface {
	WriteConfig(w io.Writer) error
}

func (s *Session) configReaders() []configReader {
	return []configReader{s.autosave, s.rewind, s.recent, &s.keys}
}

func (s *Session) configWriters() []configWriter {
	return []configWriter{s.autosave, s.rewind, s.recent, &s.keys}
}

// LoadConfig reads the config file. A missing file leaves defaults in place.
func (s *Session) LoadConfig() error {
	data, err := afero.ReadFile(s.dirs.Fs(), s.dirs.ConfigPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := statecodec.ReadRecords(bytes.NewReader(data), s.readConfig); err != nil {
		// Records read before the damage are kept.
		log.Printf("Config file truncated: %v", err)
	}
	return nil
}

func (s *Session) readConfig(key statecodec.Key, p *statecodec.Payload) bool {
	switch key {
	case statecodec.KeyConfirmOverwriteState:
		v, err := statecodec.ReadValue[bool](p)
		if err != nil {
			log.Printf("Ignoring confirm overwrite setting: %v", err)
			return true
		}
		s.confirmOverwrite = v
		return true
	case statecodec.KeyStateSlot:
		v, err := statecodec.ReadValue[int8](p)
		if err != nil || !validSlot(int(v)) {
			log.Printf("Ignoring state slot setting %d: %v", v, err)
			return true
		}
		s.stateSlot = int(v)
		return true
	}
	for _, r := range s.configReaders() {
		if r.ReadConfig(key, p) {
			return true
		}
	}
	return false
}

// SaveConfig writes every non-default setting to the config file atomically.
func (s *Session) SaveConfig() error {
	var buf bytes.Buffer
	if err := statecodec.WriteOptional(&buf, statecodec.KeyConfirmOverwriteState, s.confirmOverwrite, false); err != nil {
		return err
	}
	if err := statecodec.WriteOptional(&buf, statecodec.KeyStateSlot, int8(s.stateSlot), 0); err != nil {
		return err
	}
	for _, w := range s.configWriters() {
		if err := w.WriteConfig(&buf); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	}
	if err := storage.AtomicWriteFile(s.dirs.Fs(), s.dirs.ConfigPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

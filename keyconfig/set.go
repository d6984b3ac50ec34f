package keyconfig

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/user-none/emuframework/statecodec"
)

// Set is the collection of user-defined key configs persisted in the config
// file, one record per config.
type Set struct {
	configs []KeyConfig
}

// Configs returns the stored configs in insertion order.
func (s *Set) Configs() []KeyConfig {
	return s.configs
}

// Find returns the config with the given map and name.
func (s *Set) Find(m Map, name string) (*KeyConfig, bool) {
	for i := range s.configs {
		if s.configs[i].Map == m && s.configs[i].Name == name {
			return &s.configs[i], true
		}
	}
	return nil, false
}

// Put stores c, replacing any config with the same map and name.
func (s *Set) Put(c KeyConfig) {
	if existing, ok := s.Find(c.Map, c.Name); ok {
		*existing = c
		return
	}
	s.configs = append(s.configs, c)
}

// Remove deletes the config with the given map and name.
func (s *Set) Remove(m Map, name string) bool {
	for i := range s.configs {
		if s.configs[i].Map == m && s.configs[i].Name == name {
			s.configs = append(s.configs[:i], s.configs[i+1:]...)
			return true
		}
	}
	return false
}

// ReadConfig consumes a KeyInputKeyConfigsV2 record. A config that fails to
// decode is logged and dropped; the key is still reported as recognized.
func (s *Set) ReadConfig(key statecodec.Key, p *statecodec.Payload) bool {
	if key != statecodec.KeyInputKeyConfigsV2 {
		return false
	}
	c, err := Decode(p)
	if err != nil {
		log.Printf("Ignoring key config: %v", err)
		return true
	}
	if c.Map == MapUnknown {
		log.Printf("Ignoring key config %q with unknown map", c.Name)
		return true
	}
	s.Put(c)
	return true
}

// WriteConfig writes one record per stored config.
func (s *Set) WriteConfig(w io.Writer) error {
	var buf bytes.Buffer
	for i := range s.configs {
		buf.Reset()
		if err := s.configs[i].Encode(&buf); err != nil {
			return fmt.Errorf("failed to encode key config %q: %w", s.configs[i].Name, err)
		}
		if err := statecodec.WriteRecord(w, statecodec.KeyInputKeyConfigsV2, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

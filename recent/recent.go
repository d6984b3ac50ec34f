// Package recent keeps the most recently opened content, newest first.
package recent

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/spf13/afero"

	"github.com/user-none/emuframework/statecodec"
)

const (
	DefaultMaxEntries = 10
	MaxEntries        = 100
)

// Entry is one recently opened piece of content.
type Entry struct {
	Path string
	Name string
}

// List is a bounded most-recently-used list keyed by path.
type List struct {
	lru        *simplelru.LRU[string, Entry]
	maxEntries int
}

// New creates an empty list holding DefaultMaxEntries.
func New() *List {
	lru, err := simplelru.NewLRU[string, Entry](DefaultMaxEntries, nil)
	if err != nil {
		panic(err)
	}
	return &List{lru: lru, maxEntries: DefaultMaxEntries}
}

// Add puts content at the front, moving it there if already present. An empty
// name defaults to the path's base name.
func (l *List) Add(path, name string) {
	if name == "" {
		name = filepath.Base(path)
	}
	l.lru.Add(path, Entry{Path: path, Name: name})
}

// Remove drops path from the list.
func (l *List) Remove(path string) bool {
	return l.lru.Remove(path)
}

// Entries returns the list newest first.
func (l *List) Entries() []Entry {
	vals := l.lru.Values()
	out := make([]Entry, len(vals))
	for i, v := range vals {
		out[len(vals)-1-i] = v
	}
	return out
}

// Len returns the number of entries.
func (l *List) Len() int {
	return l.lru.Len()
}

// Clear removes every entry.
func (l *List) Clear() {
	l.lru.Purge()
}

// MaxEntries returns the list capacity.
func (l *List) MaxEntries() int {
	return l.maxEntries
}

// SetMaxEntries changes the capacity, clamped to [1, MaxEntries]. Shrinking
// drops the oldest entries.
func (l *List) SetMaxEntries(n int) {
	n = min(max(n, 1), MaxEntries)
	l.maxEntries = n
	l.lru.Resize(n)
}

// RemoveMissing drops entries whose path no longer exists on fs and returns
// how many were removed.
func (l *List) RemoveMissing(fs afero.Fs) int {
	removed := 0
	for _, path := range l.lru.Keys() {
		if ok, err := afero.Exists(fs, path); err == nil && !ok {
			l.lru.Remove(path)
			removed++
		}
	}
	return removed
}

// ReadConfig consumes recent content records. Entries are written oldest
// first so reading them back in order restores the list.
func (l *List) ReadConfig(key statecodec.Key, p *statecodec.Payload) bool {
	switch key {
	case statecodec.KeyMaxRecentContent:
		v, err := statecodec.ReadValue[uint8](p)
		if err != nil {
			log.Printf("Ignoring recent content limit: %v", err)
			return true
		}
		l.SetMaxEntries(int(v))
	case statecodec.KeyRecentContentV2:
		e, err := decodeEntry(p)
		if err != nil {
			log.Printf("Ignoring recent content entry: %v", err)
			return true
		}
		l.lru.Add(e.Path, e)
	default:
		return false
	}
	return true
}

// WriteConfig writes the limit when changed and one record per entry.
func (l *List) WriteConfig(w io.Writer) error {
	if err := statecodec.WriteOptional(w, statecodec.KeyMaxRecentContent,
		uint8(l.maxEntries), DefaultMaxEntries); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, e := range l.lru.Values() {
		buf.Reset()
		if err := encodeEntry(&buf, e); err != nil {
			log.Printf("Not saving recent content %q: %v", e.Path, err)
			continue
		}
		if err := statecodec.WriteRecord(w, statecodec.KeyRecentContentV2, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// encodeEntry writes uint16 path length | path | sized name. The whole entry
// must fit in one record.
func encodeEntry(w io.Writer, e Entry) error {
	if n := 2 + len(e.Path) + 1 + len(e.Name); n > statecodec.MaxPayload {
		return fmt.Errorf("entry is %d bytes", n)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(e.Path))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, e.Path); err != nil {
		return err
	}
	return statecodec.WriteSizedString(w, e.Name)
}

func decodeEntry(p *statecodec.Payload) (Entry, error) {
	n, err := p.Uint16()
	if err != nil {
		return Entry{}, err
	}
	path := make([]byte, n)
	if _, err := io.ReadFull(p, path); err != nil {
		return Entry{}, statecodec.ErrShortRead
	}
	if n == 0 {
		return Entry{}, fmt.Errorf("%w: empty path", statecodec.ErrMalformedRecord)
	}
	name, err := statecodec.ReadSizedString(p)
	if err != nil {
		return Entry{}, err
	}
	if name == "" {
		name = filepath.Base(string(path))
	}
	return Entry{Path: string(path), Name: name}, nil
}

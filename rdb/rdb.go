// Package rdb reads libretro RDB game databases and identifies content by
// CRC32. The database supplies a clean title and a region hint for content
// whose core cannot detect the region itself.
//
// The file layout follows github.com/libretro/ludo/rdb: a 16 byte header
// followed by one MessagePack map per game, terminated by nil.
package rdb

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	emucore "github.com/user-none/emuframework/api"
)

const headerSize = 0x10

// ErrTruncated is returned when the database ends inside a value.
var ErrTruncated = errors.New("rdb: truncated entry")

// Game is one database entry.
type Game struct {
	Name    string // full No-Intro name, e.g. "Kid Icarus (USA, Europe)"
	ROMName string
	Serial  string
	Size    uint64
	CRC32   uint32
	MD5     string
}

// DB is a parsed database indexed by CRC32.
type DB struct {
	games []Game
	byCRC map[uint32]int
}

// Load reads and parses the database at path.
func Load(fs afero.Fs, path string) (*DB, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game database: %w", err)
	}
	return Parse(data)
}

// Parse decodes an RDB image. Entries decoded before a malformed one are
// kept and returned alongside the error.
func Parse(data []byte) (*DB, error) {
	db := &DB{byCRC: make(map[uint32]int)}
	if len(data) <= headerSize {
		return db, nil
	}

	d := decoder{data: data, pos: headerSize}
	for d.pos < len(d.data) && d.data[d.pos] != mpNil {
		g, err := d.game()
		if err != nil {
			return db, err
		}
		if g.Name == "" && g.CRC32 == 0 {
			continue
		}
		db.games = append(db.games, g)
		if g.CRC32 != 0 {
			db.byCRC[g.CRC32] = len(db.games) - 1
		}
	}
	return db, nil
}

// Lookup returns the game with the given CRC32.
func (db *DB) Lookup(crc uint32) (Game, bool) {
	if db == nil {
		return Game{}, false
	}
	i, ok := db.byCRC[crc]
	if !ok {
		return Game{}, false
	}
	return db.games[i], true
}

// Len returns the number of games.
func (db *DB) Len() int {
	if db == nil {
		return 0
	}
	return len(db.games)
}

// Title returns the name with region and revision tags removed.
func (g Game) Title() string {
	if i := strings.Index(g.Name, " ("); i > 0 {
		return strings.TrimSpace(g.Name[:i])
	}
	return g.Name
}

// Region derives the video region from the No-Intro region tag. Europe
// and the PAL-only territories map to PAL, everything else to NTSC. The
// bool is false when the name carries no recognisable tag.
func (g Game) Region() (emucore.Region, bool) {
	name := strings.ToLower(g.Name)
	switch {
	case strings.Contains(name, "(usa"), strings.Contains(name, "(us)"),
		strings.Contains(name, ", usa)"), strings.Contains(name, "(world)"):
		return emucore.RegionNTSC, true
	case strings.Contains(name, "(europe"), strings.Contains(name, "(eu)"),
		strings.Contains(name, ", europe)"), strings.Contains(name, "(australia"),
		strings.Contains(name, "(germany"), strings.Contains(name, "(france"):
		return emucore.RegionPAL, true
	case strings.Contains(name, "(japan"), strings.Contains(name, "(jp)"),
		strings.Contains(name, ", japan)"):
		return emucore.RegionNTSC, true
	}
	return emucore.RegionNTSC, false
}

// MessagePack type bytes used by RDB files.
const (
	mpFixMapMin = 0x80
	mpFixMapMax = 0x8f
	mpFixStrMin = 0xa0
	mpFixStrMax = 0xbf
	mpNil       = 0xc0
	mpBin8      = 0xc4
	mpBin16     = 0xc5
	mpBin32     = 0xc6
	mpUint8     = 0xcc
	mpUint16    = 0xcd
	mpUint32    = 0xce
	mpUint64    = 0xcf
	mpStr8      = 0xd9
	mpStr16     = 0xda
	mpStr32     = 0xdb
	mpMap16     = 0xde
	mpMap32     = 0xdf
)

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, ErrTruncated
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// length reads a big-endian length of n bytes.
func (d *decoder) length(n int) (int, error) {
	b, err := d.take(n)
	if err != nil {
		return 0, err
	}
	switch n {
	case 1:
		return int(b[0]), nil
	case 2:
		return int(binary.BigEndian.Uint16(b)), nil
	default:
		return int(binary.BigEndian.Uint32(b)), nil
	}
}

// value reads one scalar and returns its raw bytes. Integers are returned
// as their big-endian encoding.
func (d *decoder) value() ([]byte, error) {
	t, err := d.take(1)
	if err != nil {
		return nil, err
	}
	switch typ := t[0]; {
	case typ < mpFixMapMin:
		return []byte{typ}, nil
	case typ >= mpFixStrMin && typ <= mpFixStrMax:
		return d.take(int(typ - mpFixStrMin))
	case typ == mpStr8 || typ == mpBin8:
		n, err := d.length(1)
		if err != nil {
			return nil, err
		}
		return d.take(n)
	case typ == mpStr16 || typ == mpBin16:
		n, err := d.length(2)
		if err != nil {
			return nil, err
		}
		return d.take(n)
	case typ == mpStr32 || typ == mpBin32:
		n, err := d.length(4)
		if err != nil {
			return nil, err
		}
		return d.take(n)
	case typ >= mpUint8 && typ <= mpUint64:
		return d.take(1 << (typ - mpUint8))
	case typ == mpNil:
		return nil, nil
	default:
		return nil, fmt.Errorf("rdb: unsupported type 0x%02x at offset %d", typ, d.pos-1)
	}
}

// game reads one map entry.
func (d *decoder) game() (Game, error) {
	t, err := d.take(1)
	if err != nil {
		return Game{}, err
	}

	var fields int
	switch typ := t[0]; {
	case typ >= mpFixMapMin && typ <= mpFixMapMax:
		fields = int(typ - mpFixMapMin)
	case typ == mpMap16:
		fields, err = d.length(2)
	case typ == mpMap32:
		fields, err = d.length(4)
	default:
		return Game{}, fmt.Errorf("rdb: expected map at offset %d, got 0x%02x", d.pos-1, typ)
	}
	if err != nil {
		return Game{}, err
	}

	var g Game
	for i := 0; i < fields; i++ {
		key, err := d.value()
		if err != nil {
			return g, err
		}
		val, err := d.value()
		if err != nil {
			return g, err
		}
		g.set(string(key), val)
	}
	return g, nil
}

func (g *Game) set(key string, val []byte) {
	switch key {
	case "name":
		g.Name = string(val)
	case "rom_name":
		g.ROMName = string(val)
	case "serial":
		g.Serial = string(val)
	case "size":
		g.Size = beUint(val)
	case "crc":
		g.CRC32 = uint32(beUint(val))
	case "md5":
		g.MD5 = hex.EncodeToString(val)
	}
}

// beUint interprets up to 8 big-endian bytes as an unsigned integer.
func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

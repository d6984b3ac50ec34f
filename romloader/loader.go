// Package romloader loads content files from an afero filesystem, including
// compressed archives (ZIP, 7z, gzip, tar.gz, RAR).
package romloader

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Magic bytes for format detection
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
)

// DefaultMaxSize is the default limit on extracted content (8MB).
const DefaultMaxSize = 8 * 1024 * 1024

// ErrNoROMFile is returned when no ROM file is found in an archive
var ErrNoROMFile = errors.New("no ROM file found in archive")

// ErrUnsupportedFormat is returned for unrecognized file formats
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrFileTooLarge is returned when extracted content exceeds size limit
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// formatType represents the detected file format
type formatType int

const (
	formatUnknown formatType = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// Content is a loaded piece of content.
type Content struct {
	Data  []byte
	Name  string // base name of the file the data came from
	Path  string // path that was opened
	CRC32 uint32
}

// Loader reads content with one of a set of extensions from a filesystem.
type Loader struct {
	fs         afero.Fs
	extensions []string
	maxSize    int64
}

// New creates a Loader accepting the given extensions (e.g. ".nes").
func New(fs afero.Fs, extensions []string) *Loader {
	return &Loader{fs: fs, extensions: extensions, maxSize: DefaultMaxSize}
}

// SetMaxSize changes the limit on extracted content.
func (l *Loader) SetMaxSize(n int64) {
	l.maxSize = n
}

// Load reads content from path. Compressed archives are detected by magic
// bytes and the first file matching one of the loader's extensions is
// extracted. A non-archive file must itself have a matching extension.
func (l *Loader) Load(path string) (*Content, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	// Read header for magic byte detection
	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	header = header[:n]

	format := detectFormat(header, path, l.extensions)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek file: %w", err)
	}

	var data []byte
	var name string
	switch format {
	case formatRaw:
		data, err = l.limitedRead(f)
		if err != nil {
			err = fmt.Errorf("failed to read ROM: %w", err)
		}
		name = filepath.Base(path)
	case formatZIP:
		data, name, err = l.extractFromZIP(f, fi.Size())
	case format7z:
		data, name, err = l.extractFrom7z(f, fi.Size())
	case formatGzip:
		data, name, err = l.extractFromGzip(f, path)
	case formatRAR:
		data, name, err = l.extractFromRAR(f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	return &Content{
		Data:  data,
		Name:  name,
		Path:  path,
		CRC32: crc32.ChecksumIEEE(data),
	}, nil
}

// detectFormat determines the file format based on magic bytes and extension.
// The extensions parameter lists valid ROM file extensions (e.g. []string{".nes"}).
func detectFormat(header []byte, path string, extensions []string) formatType {
	ext := strings.ToLower(filepath.Ext(path))

	// Check magic bytes first (more reliable)
	if len(header) >= 4 {
		if bytes.HasPrefix(header, magicZIP) || bytes.HasPrefix(header, magicZIPEnd) {
			return formatZIP
		}
		if bytes.HasPrefix(header, magicRAR) {
			return formatRAR
		}
	}
	if len(header) >= 6 && bytes.HasPrefix(header, magic7z) {
		return format7z
	}
	if len(header) >= 2 && bytes.HasPrefix(header, magicGzip) {
		return formatGzip
	}

	// Fall back to extension for archive formats
	switch ext {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	}

	for _, romExt := range extensions {
		if ext == strings.ToLower(romExt) {
			return formatRaw
		}
	}

	return formatUnknown
}

// isROMFile checks if a filename has one of the given ROM extensions (case-insensitive)
func isROMFile(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// limitedRead reads from r up to the size limit, returning an error if exceeded
func (l *Loader) limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

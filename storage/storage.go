// Package storage locates the application data directory and performs
// atomic file writes through an afero filesystem.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

const (
	configFile  = "config.bin"
	gameDBFile  = "gamedb.rdb"
	savesDir    = "saves"
	autosaveDir = "autosave"
	shotsDir    = "screenshots"
)

// GetBaseDir returns the base directory for application data. Example paths:
// - macOS: ~/Library/Application Support/<appName>
// - Linux: ~/.local/share/<appName>
// - Windows: %APPDATA%/<appName>
func GetBaseDir(appName string) (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, "Library", "Application Support", appName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		baseDir = filepath.Join(appData, appName)
	default:
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome != "" {
			baseDir = filepath.Join(dataHome, appName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			baseDir = filepath.Join(home, ".local", "share", appName)
		}
	}

	return baseDir, nil
}

// Dirs resolves the application's files under a base directory.
type Dirs struct {
	fs   afero.Fs
	base string
}

// New creates a Dirs rooted at base on fs.
func New(fs afero.Fs, base string) *Dirs {
	return &Dirs{fs: fs, base: base}
}

// Fs returns the filesystem all paths refer to.
func (d *Dirs) Fs() afero.Fs {
	return d.fs
}

// BaseDir returns the root directory.
func (d *Dirs) BaseDir() string {
	return d.base
}

// ConfigPath returns the path of the binary config file.
func (d *Dirs) ConfigPath() string {
	return filepath.Join(d.base, configFile)
}

// GameDBPath returns the path of the optional libretro game database.
func (d *Dirs) GameDBPath() string {
	return filepath.Join(d.base, gameDBFile)
}

// SavesDir returns the directory holding per-content save directories.
func (d *Dirs) SavesDir() string {
	return filepath.Join(d.base, savesDir)
}

// ContentSaveDir returns the save state directory for one piece of content,
// keyed by its CRC32.
func (d *Dirs) ContentSaveDir(crc uint32) string {
	return filepath.Join(d.SavesDir(), fmt.Sprintf("%08x", crc))
}

// ContentAutosaveDir returns the directory holding the content's autosave slots.
func (d *Dirs) ContentAutosaveDir(crc uint32) string {
	return filepath.Join(d.ContentSaveDir(crc), autosaveDir)
}

// ScreenshotDir returns the screenshot directory for one piece of content.
func (d *Dirs) ScreenshotDir(crc uint32) string {
	return filepath.Join(d.base, shotsDir, fmt.Sprintf("%08x", crc))
}

// EnsureDirectories creates the base and saves directories.
func (d *Dirs) EnsureDirectories() error {
	for _, dir := range []string{d.base, d.SavesDir()} {
		if err := d.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// AtomicWriteFile writes data to path through a temporary file in the same
// directory followed by a rename, so path is never partially written.
func AtomicWriteFile(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	if err := afero.WriteFile(fs, tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := fs.Rename(tempFile, path); err != nil {
		fs.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

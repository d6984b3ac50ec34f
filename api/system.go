package emucore

// Standard d-pad button bit positions (always bits 0-3).
const (
	ButtonUp    = 0
	ButtonDown  = 1
	ButtonLeft  = 2
	ButtonRight = 3
)

// Button describes a system-specific button with its display name
// and bit position in the input bitmask.
type Button struct {
	Name       string
	ID         int    // Bit position in the uint32 bitmask (4+)
	DefaultKey string // Default keyboard key (e.g., "J", "Enter")
}

// SystemInfo describes an emulator system for frontend configuration.
type SystemInfo struct {
	Name             string
	ConsoleName      string
	Extensions       []string
	ScreenWidth      int
	MaxScreenHeight  int
	PixelAspectRatio float64
	SampleRate       int
	Buttons          []Button
	Players          int
	DataDirName      string
	SerializeSize    int
}

// DisplayAspectRatio returns the aspect ratio of a width x height frame
// shown with the given pixel aspect ratio.
func DisplayAspectRatio(width, height int, par float64) float64 {
	if height <= 0 {
		return 0
	}
	return float64(width) / float64(height) * par
}

// CoreFactory creates emulator instances and provides system metadata.
type CoreFactory interface {
	// SystemInfo returns system metadata for frontend configuration.
	SystemInfo() SystemInfo

	// CreateEmulator creates a new emulator instance with the given ROM and region.
	CreateEmulator(rom []byte, region Region) (Emulator, error)

	// DetectRegion auto-detects the region from ROM data.
	// The bool return indicates whether the region was found in a database.
	DetectRegion(rom []byte) (Region, bool)
}

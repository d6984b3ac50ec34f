package emucore

import (
	"fmt"
	"strings"
	"time"
)

// Region is the video standard a core emulates.
type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

func (r Region) String() string {
	switch r {
	case RegionNTSC:
		return "NTSC"
	case RegionPAL:
		return "PAL"
	default:
		return "Unknown"
	}
}

// ParseRegion converts a region name to a Region. "auto" and "" report
// ok=false so the caller falls back to detection.
func ParseRegion(s string) (r Region, ok bool, err error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return RegionNTSC, false, nil
	case "ntsc":
		return RegionNTSC, true, nil
	case "pal":
		return RegionPAL, true, nil
	default:
		return RegionNTSC, false, fmt.Errorf("unknown region %q: use auto, ntsc, or pal", s)
	}
}

// Timing holds the frame rate and scanline count for the current region.
type Timing struct {
	FPS       int
	Scanlines int
}

// FrameDuration returns the wall time of one frame, or zero when FPS is
// unset.
func (t Timing) FrameDuration() time.Duration {
	if t.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(t.FPS)
}

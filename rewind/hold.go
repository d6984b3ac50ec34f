package rewind

// StepsForHold returns how many snapshots to rewind on a frame where the
// rewind key has been held for holdFrames frames. Stepping starts slow and
// speeds up the longer the key is held.
//
// Hold (frames) | Steps  | Effective rate
// 1             | 1      | single step
// 2-15          | 0 or 1 | every 4th frame
// 16-30         | 0 or 1 | every 2nd frame
// 31-60         | 1      | every frame
// 61+           | 2      | twice per frame
func StepsForHold(holdFrames int) int {
	switch {
	case holdFrames <= 0:
		return 0
	case holdFrames == 1:
		return 1
	case holdFrames <= 15:
		if holdFrames%4 == 0 {
			return 1
		}
		return 0
	case holdFrames <= 30:
		if holdFrames%2 == 0 {
			return 1
		}
		return 0
	case holdFrames <= 60:
		return 1
	default:
		return 2
	}
}

// Rewind restores up to steps snapshots, stopping early when the ring runs
// out. It returns the number restored.
func (m *Manager) Rewind(steps int) int {
	n := 0
	for ; n < steps; n++ {
		if !m.RewindState() {
			break
		}
	}
	return n
}

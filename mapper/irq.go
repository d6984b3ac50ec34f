package mapper

// TickSource identifies what drives a mapper's IRQ counter.
type TickSource uint8

const (
	TickNone TickSource = iota
	TickCPUCycle
	TickScanline
)

// IRQMode selects what the counter does once it reaches its threshold.
type IRQMode uint8

const (
	// IRQAutoDisable asserts the IRQ and turns the counter off until the game
	// re-enables it.
	IRQAutoDisable IRQMode = iota
	// IRQClamp asserts the IRQ and holds the counter at the threshold instead
	// of wrapping.
	IRQClamp
)

// IRQPolicy describes a mapper's interrupt counter.
type IRQPolicy struct {
	Source    TickSource
	Threshold uint32
	Mode      IRQMode
}

// IRQCounter is the mutable interrupt state of a board.
type IRQCounter struct {
	Counter uint32
	Enabled bool
	Pending bool
}

// Acknowledge clears a pending interrupt.
func (c *IRQCounter) Acknowledge() {
	c.Pending = false
}

func (c *IRQCounter) tick(p IRQPolicy, elapsed uint32) {
	if !c.Enabled || p.Threshold == 0 {
		return
	}
	c.Counter += elapsed
	if c.Counter < p.Threshold {
		return
	}
	c.Counter = p.Threshold
	c.Pending = true
	if p.Mode == IRQAutoDisable {
		c.Enabled = false
	}
}

// Package core drives the emulator on an akita engine, one tick per MCU
// clock cycle.
package core

import (
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/avrsim/emu"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the number of clock cycles ticked.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of cycles spent finishing multi-cycle
	// instructions.
	Stalls uint64
}

// Core is a clocked AVR core. Each instruction executes on its first cycle
// and the core then stalls for the rest of the instruction's latency.
type Core struct {
	*sim.TickingComponent

	emulator  *emu.Emulator
	maxCycles uint64

	stall  uint64
	halted bool
	err    error
	stats  Stats
}

// Emulator returns the functional model the core drives.
func (c *Core) Emulator() *emu.Emulator {
	return c.emulator
}

// Tick advances the core by one clock cycle.
func (c *Core) Tick() bool {
	if c.halted {
		return false
	}
	if c.maxCycles > 0 && c.stats.Cycles >= c.maxCycles {
		return false
	}

	c.stats.Cycles++
	if c.stall > 0 {
		c.stall--
		c.stats.Stalls++
		return true
	}

	res := c.emulator.Step()
	if res.Err != nil {
		slog.Error("core stopped", "core", c.Name(), "err", res.Err)
		c.err = res.Err
		c.halted = true
		return false
	}

	c.stats.Instructions++
	if res.Cycles > 1 {
		c.stall = res.Cycles - 1
	}
	if res.Halted {
		c.halted = true
		emu.Trace("core halted", "core", c.Name(), "pc", c.emulator.PC())
	}
	return true
}

// Start schedules the first tick.
func (c *Core) Start() {
	c.TickLater()
}

// Halted reports whether the core hit BREAK or failed.
func (c *Core) Halted() bool {
	return c.halted
}

// Err returns the error that stopped the core, if any.
func (c *Core) Err() error {
	return c.err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Reset clears the core and the emulator state.
func (c *Core) Reset() error {
	c.stall = 0
	c.halted = false
	c.err = nil
	c.stats = Stats{}
	return c.emulator.Reset()
}

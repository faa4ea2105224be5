package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/avrsim/emu"
)

// DefaultFreq is the clock of an ATmega328P on an Arduino Uno.
const DefaultFreq = 16 * sim.MHz

// Builder can create new cores.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	maxCycles uint64
}

// MakeBuilder creates a Builder with the default clock.
func MakeBuilder() Builder {
	return Builder{freq: DefaultFreq}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the MCU clock.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithMaxCycles stops ticking after the given number of cycles. Zero means
// no limit.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

// Build creates a core driving the emulator.
func (b Builder) Build(name string, emulator *emu.Emulator) *Core {
	if b.engine == nil {
		panic("core builder requires an engine")
	}

	c := &Core{
		emulator:  emulator,
		maxCycles: b.maxCycles,
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	return c
}

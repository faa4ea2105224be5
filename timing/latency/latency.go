// Package latency provides instruction cycle counts for AVR cores.
//
// The counts follow the AVR instruction set manual and differ between core
// families and between devices with a two- or three-byte program counter.
// They can be overridden via TimingConfig.
package latency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sarchlab/avrsim/insts"
)

// ErrUnsupported is returned for an instruction the core does not
// implement.
var ErrUnsupported = errors.New("instruction not supported by core")

// Core is an AVR core family.
type Core int

// Core families.
const (
	CoreAVR Core = iota
	CoreAVRe
	CoreAVRePlus
	CoreAVRxm
	CoreAVRxt
	CoreAVRrc
)

var coreNames = [...]string{"AVR", "AVRe", "AVRe+", "AVRxm", "AVRxt", "AVRrc"}

func (c Core) String() string {
	if c >= 0 && int(c) < len(coreNames) {
		return coreNames[c]
	}
	return fmt.Sprintf("Core(%d)", int(c))
}

// ParseCore maps a device descriptor's core name to a Core.
func ParseCore(name string) (Core, error) {
	for i, n := range coreNames {
		if strings.EqualFold(n, name) {
			return Core(i), nil
		}
	}
	return 0, fmt.Errorf("unknown AVR core %q", name)
}

// Outcome is what the execution of an instruction decided.
type Outcome struct {
	// Taken is set for a conditional branch that jumped.
	Taken bool

	// SkippedWords is the length of the instruction a skip jumped over.
	SkippedWords uint32
}

// Table provides instruction latency lookups.
type Table struct {
	core    Core
	pcBytes int
	config  *TimingConfig
}

// NewTable creates a latency table with the default timing of a core.
func NewTable(core Core, pcBytes int) *Table {
	return NewTableWithConfig(core, pcBytes, DefaultTimingConfig(core))
}

// NewTableWithConfig creates a latency table with custom timing.
func NewTableWithConfig(core Core, pcBytes int, config *TimingConfig) *Table {
	return &Table{core: core, pcBytes: pcBytes, config: config}
}

// Core returns the core family the table times.
func (t *Table) Core() Core {
	return t.core
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}

// Cycles returns the number of clock cycles inst takes with the given
// outcome.
func (t *Table) Cycles(inst *insts.Instruction, out Outcome) (uint64, error) {
	op := inst.Op()
	c := t.config

	var n uint64
	switch {
	case op.IsBranch():
		if out.Taken {
			return c.BranchTakenLatency, nil
		}
		return c.BranchNotTakenLatency, nil
	case op.IsSkip():
		return c.SkipLatency + uint64(out.SkippedWords), nil
	case op.IsCall() || op.IsReturn():
		n = t.callCycles(op)
	default:
		n = t.fixedCycles(op)
	}

	if n == 0 {
		return 0, fmt.Errorf("%w: %s on %s", ErrUnsupported, inst.Op(), t.core)
	}
	return n, nil
}

func (t *Table) callCycles(op insts.Op) uint64 {
	c := t.config

	var n uint64
	switch op {
	case insts.OpCALL:
		n = c.LongCallLatency
	case insts.OpEICALL:
		if t.pcBytes < 3 {
			return 0
		}
		n = c.CallLatency
	case insts.OpRET, insts.OpRETI:
		n = c.ReturnLatency
	default:
		n = c.CallLatency
	}

	if n != 0 && t.pcBytes > 2 {
		n += c.ExtraPCByteLatency
	}
	return n
}

func (t *Table) fixedCycles(op insts.Op) uint64 {
	c := t.config

	switch op {
	case insts.OpADIW, insts.OpSBIW:
		return c.WordLatency
	case insts.OpMUL, insts.OpMULS, insts.OpMULSU,
		insts.OpFMUL, insts.OpFMULS, insts.OpFMULSU:
		return c.MultiplyLatency
	case insts.OpLD, insts.OpLDD:
		return c.LoadLatency
	case insts.OpST, insts.OpSTD:
		return c.StoreLatency
	case insts.OpLDS, insts.OpSTS:
		return c.DirectLatency
	case insts.OpPUSH:
		return c.PushLatency
	case insts.OpPOP:
		return c.PopLatency
	case insts.OpCBI, insts.OpSBI:
		return c.BitIOLatency
	case insts.OpXCH, insts.OpLAS, insts.OpLAC, insts.OpLAT:
		return c.ExchangeLatency
	case insts.OpLPM, insts.OpELPM:
		if op == insts.OpELPM && t.pcBytes < 3 {
			return 0
		}
		return c.ProgramLoadLatency
	case insts.OpSPM:
		return c.ProgramStoreLatency
	case insts.OpRJMP, insts.OpIJMP:
		return c.JumpLatency
	case insts.OpEIJMP:
		if t.pcBytes < 3 {
			return 0
		}
		return c.JumpLatency
	case insts.OpJMP:
		return c.LongJumpLatency
	case insts.OpDES:
		return c.DESLatency
	case insts.OpCustom, insts.OpUnknown:
		return 0
	}
	return c.ALULatency
}

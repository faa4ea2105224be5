package emu

import (
	"fmt"

	"github.com/sarchlab/avrsim/insts"
)

// branchConditions maps the named conditional branches to the SREG flag
// they test and the value that takes the branch.
var branchConditions = map[insts.Op]struct {
	flag Flag
	set  bool
}{
	insts.OpBRCC: {FlagC, false},
	insts.OpBRCS: {FlagC, true},
	insts.OpBRSH: {FlagC, false},
	insts.OpBRLO: {FlagC, true},
	insts.OpBRNE: {FlagZ, false},
	insts.OpBREQ: {FlagZ, true},
	insts.OpBRPL: {FlagN, false},
	insts.OpBRMI: {FlagN, true},
	insts.OpBRVC: {FlagV, false},
	insts.OpBRVS: {FlagV, true},
	insts.OpBRGE: {FlagS, false},
	insts.OpBRLT: {FlagS, true},
	insts.OpBRHC: {FlagH, false},
	insts.OpBRHS: {FlagH, true},
	insts.OpBRTC: {FlagT, false},
	insts.OpBRTS: {FlagT, true},
	insts.OpBRID: {FlagI, false},
	insts.OpBRIE: {FlagI, true},
}

// BranchUnit handles jumps, calls, returns and the stack.
type BranchUnit struct {
	regFile *RegFile
	memory  *Memory
	pcBytes int
}

// NewBranchUnit creates a branch unit. pcBytes is the number of bytes a
// call pushes, 2 or 3.
func NewBranchUnit(regFile *RegFile, memory *Memory, pcBytes int) *BranchUnit {
	return &BranchUnit{regFile: regFile, memory: memory, pcBytes: pcBytes}
}

// PCBytes returns the width of a pushed return address.
func (b *BranchUnit) PCBytes() int {
	return b.pcBytes
}

// CheckCondition evaluates a conditional branch. BRBS and BRBC take the
// SREG bit from their first operand.
func (b *BranchUnit) CheckCondition(inst *insts.Instruction) (bool, error) {
	switch op := inst.Op(); op {
	case insts.OpBRBS, insts.OpBRBC:
		bit := inst.Operand(0)
		if bit < 0 || bit > 7 {
			return false, fmt.Errorf("%w: SREG bit %d", ErrInvalidOperand, bit)
		}
		set := b.regFile.SREG()&(1<<bit) != 0
		return set == (op == insts.OpBRBS), nil
	default:
		c, ok := branchConditions[op]
		if !ok {
			return false, fmt.Errorf("%w: %s is not a conditional branch", ErrUnsupportedInstruction, op)
		}
		return b.regFile.Flag(c.flag) == c.set, nil
	}
}

// RelativeTarget returns the word address reached by a relative jump of
// offset bytes from the instruction at pc.
func (b *BranchUnit) RelativeTarget(pc uint32, offset int64) uint32 {
	target := int64(pc) + 1 + offset/2
	size := int64(len(b.memory.Flash))
	if size > 0 {
		target = ((target % size) + size) % size
	}
	return uint32(target)
}

// Jump sets the PC to a word address.
func (b *BranchUnit) Jump(target uint32) error {
	if target >= uint32(len(b.memory.Flash)) {
		return fmt.Errorf("%w: jump to flash %#x (size %#x)",
			ErrInvalidAddress, target, len(b.memory.Flash))
	}
	b.memory.PC = target
	return nil
}

// Call pushes the return address, low byte first, and jumps.
func (b *BranchUnit) Call(target, ret uint32) error {
	for i := 0; i < b.pcBytes; i++ {
		if err := b.Push(uint8(ret >> (8 * i))); err != nil {
			return err
		}
	}
	return b.Jump(target)
}

// Return pops a return address and jumps to it.
func (b *BranchUnit) Return() error {
	var ret uint32
	for i := 0; i < b.pcBytes; i++ {
		v, err := b.Pop()
		if err != nil {
			return err
		}
		ret = ret<<8 | uint32(v)
	}
	return b.Jump(ret)
}

// IndirectTarget returns the word address held in Z, extended with EIND
// when extended is set.
func (b *BranchUnit) IndirectTarget(extended bool) (uint32, error) {
	z, err := b.regFile.ReadWord(RegZ)
	if err != nil {
		return 0, err
	}
	target := uint32(z)
	if extended {
		eind, err := b.regFile.ReadSpecial(EIND)
		if err != nil {
			return 0, err
		}
		target |= uint32(eind) << 16
	}
	return target, nil
}

// Push stores a byte at SP and decrements SP. The stack must stay inside
// SRAM.
func (b *BranchUnit) Push(v uint8) error {
	sp := b.regFile.SP()
	data := b.memory.Data
	if sp < uint32(len(data.Registers)+len(data.IO)) || sp >= data.Len() {
		return fmt.Errorf("%w: SP %#x", ErrStackOverflow, sp)
	}
	if err := data.Write(sp, v); err != nil {
		return err
	}
	return b.regFile.SetSP(sp - 1)
}

// Pop increments SP and reads the byte it points at.
func (b *BranchUnit) Pop() (uint8, error) {
	sp := b.regFile.SP() + 1
	if sp >= b.memory.Data.Len() {
		return 0, fmt.Errorf("%w: SP %#x", ErrStackUnderflow, sp-1)
	}
	v, err := b.memory.Data.Read(sp)
	if err != nil {
		return 0, err
	}
	return v, b.regFile.SetSP(sp)
}

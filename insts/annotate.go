package insts

import (
	"encoding/json"
	"strconv"

	"github.com/sarchlab/avrsim/device"
)

// Annotate sets the comment of a relative jump, call or branch to the byte
// address it targets, displayed in hex.
func Annotate(inst *Instruction) {
	op := inst.Op()
	if op != OpRJMP && op != OpRCALL && !op.IsBranch() {
		return
	}
	for _, o := range inst.Operands {
		if !o.Constraint.IsRelative() || o.Invalid() {
			continue
		}
		target := int64(inst.Address)*2 + o.Int() + 2
		inst.Comment = strconv.FormatInt(target, 10)
		inst.CommentDisplay = DisplayHex
		return
	}
}

// ResolveOperandInfo attaches register metadata to the I/O port operands of
// inst. ioBase is the data address of I/O location 0.
func ResolveOperandInfo(inst *Instruction, regs map[uint64]*device.Register, ioBase uint64) {
	for i := range inst.Operands {
		o := &inst.Operands[i]
		if o.Invalid() || (o.Constraint != ConstraintPort6 && o.Constraint != ConstraintPort5) {
			continue
		}
		reg, ok := regs[uint64(o.Int())+ioBase]
		if !ok {
			continue
		}
		mask, err := json.Marshal(reg.Bitfields)
		if err != nil {
			continue
		}
		o.Info = &OperandInfo{
			Register: reg.Name,
			Mask:     string(mask),
			Caption:  reg.Caption,
		}
	}
}

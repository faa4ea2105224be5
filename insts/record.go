package insts

import (
	"encoding/json"
	"fmt"
)

// Record is the persisted form of an instruction.
type Record struct {
	Address        uint32   `json:"address"`
	OpcodeID       OpcodeID `json:"opcode_id"`
	RawOpcode      uint32   `json:"raw_opcode"`
	Operands       string   `json:"operands"` // JSON array
	Comment        string   `json:"comment"`
	CommentDisplay Display  `json:"comment_display"`
}

type operandRecord struct {
	Name       string       `json:"name,omitempty"`
	Constraint string       `json:"constraint"`
	Kind       ValueKind    `json:"kind"`
	Value      int64        `json:"value"`
	Info       *OperandInfo `json:"info,omitempty"`
}

// ToRecord converts the instruction to its persisted form.
func (i *Instruction) ToRecord() (Record, error) {
	ops := make([]operandRecord, len(i.Operands))
	for k, o := range i.Operands {
		ops[k] = operandRecord{
			Name:       o.Name,
			Constraint: o.Constraint.String(),
			Kind:       o.Value.Kind(),
			Value:      o.Int(),
			Info:       o.Info,
		}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Address:        i.Address,
		OpcodeID:       i.ID,
		RawOpcode:      i.Raw,
		Operands:       string(data),
		Comment:        i.Comment,
		CommentDisplay: i.CommentDisplay,
	}, nil
}

// FromRecord restores an instruction from its persisted form. Operands
// that are not diagnostic sentinels are range-checked again.
func FromRecord(r Record) (*Instruction, error) {
	def, err := Lookup(r.OpcodeID)
	if err != nil {
		return nil, err
	}

	var ops []operandRecord
	if r.Operands != "" {
		if err := json.Unmarshal([]byte(r.Operands), &ops); err != nil {
			return nil, fmt.Errorf("record at %#x: %w", r.Address, err)
		}
	}
	if len(ops) != len(def.Operands) {
		return nil, fmt.Errorf("%w: record at %#x has %d operands, %s takes %d",
			ErrInvalidOperandCount, r.Address, len(ops), def.Name, len(def.Operands))
	}

	inst := &Instruction{
		ID:             r.OpcodeID,
		Address:        r.Address,
		Raw:            r.RawOpcode,
		Comment:        r.Comment,
		CommentDisplay: r.CommentDisplay,
	}
	for k, o := range ops {
		if len(o.Constraint) != 1 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownConstraint, o.Constraint)
		}
		c, err := ParseConstraint(o.Constraint[0])
		if err != nil {
			return nil, err
		}
		if c != def.Operands[k].Constraint {
			return nil, fmt.Errorf("record at %#x: operand %d is %s, %s expects %s",
				r.Address, k, c, def.Name, def.Operands[k].Constraint)
		}
		if o.Name == "" {
			if err := CheckRange(o.Value, c); err != nil {
				return nil, err
			}
		}
		inst.Operands = append(inst.Operands, Operand{
			Name:       o.Name,
			Constraint: c,
			Value:      Value{kind: o.Kind, v: o.Value},
			Info:       o.Info,
		})
	}
	return inst, nil
}

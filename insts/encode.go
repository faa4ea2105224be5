package insts

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Encode builds the raw encoding of an entry from final operand values.
// Two-word encodings carry the first word in the high half.
func Encode(def *RawInst, values []int64) (uint32, error) {
	if len(values) != len(def.Operands) {
		return 0, fmt.Errorf("%w: %s takes %d operands, got %d",
			ErrInvalidOperandCount, def.Name, len(def.Operands), len(values))
	}

	raw := uint32(def.BinOpcode)
	if def.Len == 2 {
		raw <<= 16
	}

	for i, desc := range def.Operands {
		if err := CheckRange(values[i], desc.Constraint); err != nil {
			return 0, err
		}
		field, err := removeBias(values[i], desc.Constraint)
		if err != nil {
			return 0, err
		}
		width := bits.OnesCount32(desc.Mask)
		if width < 32 && field>>width != 0 {
			return 0, &ConstraintError{
				Constraint: desc.Constraint,
				Value:      values[i],
				Rule:       fmt.Sprintf("fits %d encoded bits", width),
			}
		}
		raw |= DepositBits(desc.Mask, field)
		if desc.Mirror != 0 {
			raw |= DepositBits(desc.Mirror, field)
		}
	}
	return raw, nil
}

// FromText rebuilds an instruction from one string per declared operand, as
// stored in a persisted record.
func FromText(id OpcodeID, address uint32, texts []string) (*Instruction, error) {
	def, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	if len(texts) != len(def.Operands) {
		return nil, fmt.Errorf("%w: %s takes %d operands, got %d",
			ErrInvalidOperandCount, def.Name, len(def.Operands), len(texts))
	}

	values := make([]Value, len(texts))
	for i, t := range texts {
		v, err := ParseOperand(t, def.Operands[i].Constraint)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return assemble(def, address, values)
}

func assemble(def *RawInst, address uint32, values []Value) (*Instruction, error) {
	ints := make([]int64, len(values))
	for i, v := range values {
		ints[i] = v.Int64()
	}
	raw, err := Encode(def, ints)
	if err != nil {
		return nil, err
	}

	inst := &Instruction{ID: def.ID, Address: address, Raw: raw}
	for i, v := range values {
		inst.Operands = append(inst.Operands, Operand{
			Constraint: def.Operands[i].Constraint,
			Value:      v,
		})
	}
	return inst, nil
}

// ParseLine assembles one line of AVR assembler, e.g. "ldd r5, Y+3". Text
// after ';' is ignored. Entries sharing the mnemonic are tried in table
// order.
func ParseLine(line string, address uint32) (*Instruction, error) {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(strings.ReplaceAll(line, "\t", " "))
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrInvalidOperandText)
	}

	mnemonic, rest, _ := strings.Cut(line, " ")
	var texts []string
	if rest = strings.TrimSpace(rest); rest != "" {
		for _, t := range strings.Split(rest, ",") {
			texts = append(texts, strings.TrimSpace(t))
		}
	}

	ids := FindMnemonic(mnemonic)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: mnemonic %q", ErrOpcodeNotFound, mnemonic)
	}

	var firstErr error
	for _, id := range ids {
		def, _ := Lookup(id)
		values, err := parseOperandTexts(def, texts)
		if err == nil {
			var inst *Instruction
			inst, err = assemble(def, address, values)
			if err == nil {
				return inst, nil
			}
		}
		if firstErr == nil || errors.Is(firstErr, ErrInvalidOperandCount) {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("%q: %w", line, firstErr)
}

func parseOperandTexts(def *RawInst, texts []string) ([]Value, error) {
	var values []Value
	j := 0
	descs := def.Operands
	for k := 0; k < len(descs); k++ {
		if j >= len(texts) {
			return nil, fmt.Errorf("%w: %s needs more operands", ErrInvalidOperandCount, def.Name)
		}
		text := texts[j]
		j++

		c := descs[k].Constraint
		var next Constraint
		if k+1 < len(descs) {
			next = descs[k+1].Constraint
		}

		switch {
		case c == ConstraintPointer && next == ConstraintDirection:
			ptr, dir := splitPointer(text)
			pv, err := ParseOperand(ptr, c)
			if err != nil {
				return nil, err
			}
			dv, err := ParseOperand(dir, next)
			if err != nil {
				return nil, err
			}
			values = append(values, pv, dv)
			k++
		case c == ConstraintBasePointer && next == ConstraintDisp6:
			base, disp, ok := strings.Cut(text, "+")
			if !ok {
				return nil, fmt.Errorf("%w: %q is not a displacement", ErrInvalidOperandText, text)
			}
			bv, err := ParseOperand(base, c)
			if err != nil {
				return nil, err
			}
			ov, err := ParseOperand(disp, next)
			if err != nil {
				return nil, err
			}
			values = append(values, bv, ov)
			k++
		default:
			v, err := ParseOperand(text, c)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
	}
	if j != len(texts) {
		return nil, fmt.Errorf("%w: %s takes fewer operands", ErrInvalidOperandCount, def.Name)
	}
	return values, nil
}

// splitPointer splits "-X", "X+" or "X" into pointer and direction text.
func splitPointer(text string) (string, string) {
	text = strings.TrimSpace(text)
	dir := ""
	if strings.HasPrefix(text, "-") {
		dir = "-"
		text = text[1:]
	}
	if strings.HasSuffix(text, "+") {
		dir += "+"
		text = text[:len(text)-1]
	}
	return text, dir
}

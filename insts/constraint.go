package insts

import "fmt"

// Constraint is the single-character code that classifies an operand field.
type Constraint byte

// Operand constraint codes.
const (
	ConstraintReg         Constraint = 'r' // any register r0..r31
	ConstraintRegHigh     Constraint = 'd' // r16..r31
	ConstraintRegPair     Constraint = 'v' // even register for MOVW
	ConstraintRegMul      Constraint = 'a' // r16..r23 for the fractional multiplies
	ConstraintRegWord     Constraint = 'w' // r24, r26, r28, r30 for ADIW/SBIW
	ConstraintPointer     Constraint = 'e' // X, Y or Z
	ConstraintBasePointer Constraint = 'b' // Y or Z with displacement
	ConstraintZIncrement  Constraint = 'z' // Z or Z+
	ConstraintImm8        Constraint = 'M'
	ConstraintImm8Inv     Constraint = 'n'
	ConstraintImm8Reloc   Constraint = 'N'
	ConstraintBit         Constraint = 's'
	ConstraintPort6       Constraint = 'P'
	ConstraintPort5       Constraint = 'p'
	ConstraintImm6        Constraint = 'K'
	ConstraintImm         Constraint = 'i'
	ConstraintTinyAddr    Constraint = 'j'
	ConstraintRel7        Constraint = 'l'
	ConstraintRel12       Constraint = 'L'
	ConstraintAbsAddr     Constraint = 'h'
	ConstraintSREGBit     Constraint = 'S'
	ConstraintImm4        Constraint = 'E'
	ConstraintDisp6       Constraint = 'o'
	ConstraintDirection   Constraint = 'c'
)

const allConstraints = "rdvawebzMnNsPpKijlLhSEoc"

func (c Constraint) String() string {
	return string(rune(c))
}

// ParseConstraint maps a constraint character to its Constraint.
func ParseConstraint(ch byte) (Constraint, error) {
	for i := 0; i < len(allConstraints); i++ {
		if allConstraints[i] == ch {
			return Constraint(ch), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownConstraint, ch)
}

// IsRegister reports whether the constraint names a general purpose register.
func (c Constraint) IsRegister() bool {
	switch c {
	case ConstraintReg, ConstraintRegHigh, ConstraintRegPair,
		ConstraintRegMul, ConstraintRegWord:
		return true
	}
	return false
}

// IsRelative reports whether the constraint is a PC-relative offset.
func (c Constraint) IsRelative() bool {
	return c == ConstraintRel7 || c == ConstraintRel12
}

// Pointer selector values.
const (
	PointerZ int64 = 0
	PointerY int64 = 2
	PointerX int64 = 3
)

// Increment direction values.
const (
	DirectionNone    int64 = 0
	DirectionPostInc int64 = 1
	DirectionPreDec  int64 = 2
)

// CheckRange validates a final (biased) operand value against its constraint.
func CheckRange(value int64, c Constraint) error {
	fail := func(rule string) error {
		return &ConstraintError{Constraint: c, Value: value, Rule: rule}
	}

	switch c {
	case ConstraintReg:
		if value < 0 || value > 31 {
			return fail("0 <= r <= 31")
		}
	case ConstraintRegHigh:
		if value < 16 || value > 31 {
			return fail("16 <= r <= 31")
		}
	case ConstraintRegPair:
		if value < 0 || value > 30 || value%2 != 0 {
			return fail("even 0 <= r <= 30")
		}
	case ConstraintRegMul:
		if value < 16 || value > 23 {
			return fail("16 <= r <= 23")
		}
	case ConstraintRegWord:
		if value < 24 || value > 30 || value%2 != 0 {
			return fail("r in {24, 26, 28, 30}")
		}
	case ConstraintPointer:
		if value != PointerX && value != PointerY && value != PointerZ {
			return fail("pointer in {X=3, Y=2, Z=0}")
		}
	case ConstraintBasePointer, ConstraintZIncrement:
		if value < 0 || value > 1 {
			return fail("0 <= v <= 1")
		}
	case ConstraintImm8, ConstraintImm8Inv, ConstraintImm8Reloc:
		if value < 0 || value > 255 {
			return fail("0 <= v <= 255")
		}
	case ConstraintBit, ConstraintSREGBit:
		if value < 0 || value > 7 {
			return fail("0 <= v <= 7")
		}
	case ConstraintPort6, ConstraintDisp6, ConstraintImm6:
		if value < 0 || value > 63 {
			return fail("0 <= v <= 63")
		}
	case ConstraintPort5:
		if value < 0 || value > 31 {
			return fail("0 <= v <= 31")
		}
	case ConstraintImm, ConstraintAbsAddr:
		// unconstrained
	case ConstraintTinyAddr:
		if value < 0 || value >= 0xBF {
			return fail("v < 0xBF")
		}
	case ConstraintRel7:
		if value < -64 || value >= 64 {
			return fail("-64 <= v < 64")
		}
	case ConstraintRel12:
		if value < -2048 || value >= 2048 {
			return fail("-2048 <= v < 2048")
		}
	case ConstraintImm4:
		if value < 0 || value > 15 {
			return fail("0 <= v <= 15")
		}
	case ConstraintDirection:
		if value < 0 || value > 3 {
			return fail("0 <= v <= 3")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConstraint, byte(c))
	}
	return nil
}

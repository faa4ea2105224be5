package insts

import (
	"errors"
	"fmt"
)

var (
	// ErrOpcodeNotFound is returned when no table entry matches a word or an
	// opcode id does not name a table entry or synthetic instruction.
	ErrOpcodeNotFound = errors.New("opcode not found")

	// ErrInvalidConstraintValue is matched by every *ConstraintError.
	ErrInvalidConstraintValue = errors.New("invalid constraint value")

	// ErrInvalidRead is returned when an operand value is read with a kind
	// other than the one it was boxed with.
	ErrInvalidRead = errors.New("invalid read")

	// ErrInvalidOperandCount is returned when textual reconstruction gets a
	// different number of operand strings than the opcode declares.
	ErrInvalidOperandCount = errors.New("invalid operand count")

	// ErrInvalidOperandText is returned when operand text cannot be parsed.
	ErrInvalidOperandText = errors.New("invalid operand text")

	// ErrUnknownConstraint is returned for a constraint code outside the
	// supported set.
	ErrUnknownConstraint = errors.New("unknown constraint")

	// ErrNeedMoreData is returned when a two-word instruction is decoded
	// from a single word.
	ErrNeedMoreData = errors.New("two-word instruction needs a second word")
)

// ConstraintError describes an operand value that violates its constraint.
type ConstraintError struct {
	Constraint Constraint
	Value      int64
	Rule       string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s: value %d violates %s",
		e.Constraint, e.Value, e.Rule)
}

// Is makes errors.Is(err, ErrInvalidConstraintValue) hold.
func (e *ConstraintError) Is(target error) bool {
	return target == ErrInvalidConstraintValue
}

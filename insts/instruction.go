package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// Display selects how a numeric comment is rendered.
type Display uint8

// Comment display radixes.
const (
	DisplayNone Display = iota
	DisplayBin
	DisplayDec
	DisplayOct
	DisplayHex
	DisplayString
)

var displayNames = [...]string{"none", "bin", "dec", "oct", "hex", "string"}

func (d Display) String() string {
	if int(d) < len(displayNames) {
		return displayNames[d]
	}
	return "none"
}

// MarshalText implements encoding.TextMarshaler.
func (d Display) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Display) UnmarshalText(text []byte) error {
	for i, name := range displayNames {
		if strings.EqualFold(name, string(text)) {
			*d = Display(i)
			return nil
		}
	}
	return fmt.Errorf("unknown comment display %q", text)
}

// Instruction is a decoded AVR instruction placed at a flash word address.
type Instruction struct {
	ID       OpcodeID
	Operands []Operand
	Address  uint32 // word address
	// Raw holds the first word in the high half for two-word instructions.
	Raw            uint32
	Comment        string
	CommentDisplay Display
}

// Def returns the opcode table entry of the instruction.
func (i *Instruction) Def() (*RawInst, error) {
	return Lookup(i.ID)
}

// Op returns the mnemonic, or OpUnknown if the id is not valid.
func (i *Instruction) Op() Op {
	def, err := Lookup(i.ID)
	if err != nil {
		return OpUnknown
	}
	return def.Op
}

// Len returns the length in words.
func (i *Instruction) Len() uint32 {
	def, err := Lookup(i.ID)
	if err != nil {
		return 1
	}
	return def.Len
}

// Operand returns the value of operand n, or 0 if it does not exist.
func (i *Instruction) Operand(n int) int64 {
	if n < 0 || n >= len(i.Operands) {
		return 0
	}
	return i.Operands[n].Int()
}

// Diagnostics returns the validation messages of sentinel operands.
func (i *Instruction) Diagnostics() []string {
	var out []string
	for _, op := range i.Operands {
		if op.Invalid() {
			out = append(out, op.Name)
		}
	}
	return out
}

// FlashWords returns the words the instruction occupies in flash.
func (i *Instruction) FlashWords() []uint16 {
	if i.Len() == 2 {
		return []uint16{uint16(i.Raw >> 16), uint16(i.Raw)}
	}
	return []uint16{uint16(i.Raw)}
}

// OperandTexts renders operands in assembler syntax, merging a pointer with
// its increment direction (-X, Z+) and a base pointer with its displacement
// (Y+3).
func (i *Instruction) OperandTexts() []string {
	var out []string
	ops := i.Operands
	for k := 0; k < len(ops); k++ {
		op := ops[k]
		var next *Operand
		if k+1 < len(ops) {
			next = &ops[k+1]
		}
		switch {
		case op.Constraint == ConstraintPointer && next != nil &&
			next.Constraint == ConstraintDirection:
			out = append(out, joinPointer(op.Render(), next.Render()))
			k++
		case op.Constraint == ConstraintBasePointer && next != nil &&
			next.Constraint == ConstraintDisp6:
			out = append(out, op.Render()+"+"+next.Render())
			k++
		default:
			out = append(out, op.Render())
		}
	}
	return out
}

func joinPointer(ptr, dir string) string {
	switch dir {
	case "+":
		return ptr + "+"
	case "-":
		return "-" + ptr
	case "-+":
		return "-" + ptr + "+"
	}
	return ptr
}

func (i *Instruction) String() string {
	def, err := Lookup(i.ID)
	if err != nil {
		return fmt.Sprintf("<id %d>", i.ID)
	}
	texts := i.OperandTexts()
	if len(texts) == 0 {
		return def.Name
	}
	return def.Name + " " + strings.Join(texts, ", ")
}

// FormattedComment renders a numeric comment in its display radix. Other
// comments are returned as they are.
func (i *Instruction) FormattedComment() string {
	n, err := strconv.ParseInt(i.Comment, 10, 64)
	if err != nil {
		return i.Comment
	}
	switch i.CommentDisplay {
	case DisplayBin:
		return "0b" + strconv.FormatInt(n, 2)
	case DisplayOct:
		return "0o" + strconv.FormatInt(n, 8)
	case DisplayHex:
		return fmt.Sprintf("%#x", n)
	}
	return i.Comment
}

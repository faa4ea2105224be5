package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the width and signedness an operand value was boxed with.
type ValueKind uint8

// Operand value kinds.
const (
	KindU16 ValueKind = iota
	KindU32
	KindI16
	KindI32
)

var kindNames = [...]string{KindU16: "u16", KindU32: "u32", KindI16: "i16", KindI32: "i32"}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ValueKind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown value kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ValueKind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = ValueKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown value kind %q", text)
}

// Value is a tagged operand value. The canonical form is a signed 64-bit
// integer; the kind records how the value was produced so that typed reads
// can detect a mismatch.
type Value struct {
	kind ValueKind
	v    int64
}

// U16Value boxes an unsigned 16-bit value.
func U16Value(v uint16) Value { return Value{kind: KindU16, v: int64(v)} }

// U32Value boxes an unsigned 32-bit value.
func U32Value(v uint32) Value { return Value{kind: KindU32, v: int64(v)} }

// I16Value boxes a signed 16-bit value.
func I16Value(v int16) Value { return Value{kind: KindI16, v: int64(v)} }

// I32Value boxes a signed 32-bit value.
func I32Value(v int32) Value { return Value{kind: KindI32, v: int64(v)} }

// Kind returns the tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

// Int64 returns the canonical value regardless of its tag.
func (v Value) Int64() int64 { return v.v }

func (v Value) read(want ValueKind) (int64, error) {
	if v.kind != want {
		return 0, fmt.Errorf("%w: value is %s, read as %s", ErrInvalidRead, v.kind, want)
	}
	return v.v, nil
}

// U16 reads a value boxed as KindU16.
func (v Value) U16() (uint16, error) {
	x, err := v.read(KindU16)
	return uint16(x), err
}

// U32 reads a value boxed as KindU32.
func (v Value) U32() (uint32, error) {
	x, err := v.read(KindU32)
	return uint32(x), err
}

// I16 reads a value boxed as KindI16.
func (v Value) I16() (int16, error) {
	x, err := v.read(KindI16)
	return int16(x), err
}

// I32 reads a value boxed as KindI32.
func (v Value) I32() (int32, error) {
	x, err := v.read(KindI32)
	return int32(x), err
}

func kindFor(c Constraint) ValueKind {
	if c.IsRelative() {
		return KindI32
	}
	return KindU32
}

// OperandInfo is device metadata resolved for an I/O operand.
type OperandInfo struct {
	Register string `json:"register"`
	Mask     string `json:"mask"`
	Caption  string `json:"caption"`
}

// Operand is one decoded operand of an instruction.
type Operand struct {
	// Name is empty for a valid operand. When validation failed it holds
	// the diagnostic and Value holds the sentinel 1.
	Name       string
	Constraint Constraint
	Value      Value
	Info       *OperandInfo
}

// Int returns the canonical operand value.
func (o Operand) Int() int64 { return o.Value.Int64() }

// Invalid reports whether the operand is a validation sentinel.
func (o Operand) Invalid() bool { return o.Name != "" }

func sentinelOperand(raw uint32, c Constraint, err error) Operand {
	return Operand{
		Name:       fmt.Sprintf("opcode:%#x error: %v", raw, err),
		Constraint: c,
		Value:      U32Value(1),
	}
}

// DecodeBits gathers the bits of raw selected by mask, lowest first, into a
// contiguous value.
func DecodeBits(mask, raw uint32) uint32 {
	var out uint32
	pos := uint(0)
	for bit := uint(0); bit < 32; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		if raw&(1<<bit) != 0 {
			out |= 1 << pos
		}
		pos++
	}
	return out
}

// DepositBits scatters the low bits of value into the positions selected by
// mask. It is the inverse of DecodeBits.
func DepositBits(mask, value uint32) uint32 {
	var out uint32
	pos := uint(0)
	for bit := uint(0); bit < 32; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		if value&(1<<pos) != 0 {
			out |= 1 << bit
		}
		pos++
	}
	return out
}

// UnsignedToSigned interprets the low bits of value as a two's complement
// number of the given width.
func UnsignedToSigned(value uint32, bits uint) int64 {
	if bits == 0 || bits > 32 {
		return int64(value)
	}
	v := int64(value) & (int64(1)<<bits - 1)
	if v&(int64(1)<<(bits-1)) != 0 {
		v -= int64(1) << bits
	}
	return v
}

// ApplyRegisterBias turns a raw field into the register number, byte
// address or immediate it encodes. The CBR mask is stored complemented.
func ApplyRegisterBias(value uint32, c Constraint) uint32 {
	switch c {
	case ConstraintRegHigh, ConstraintRegMul:
		return value + 16
	case ConstraintRegPair, ConstraintAbsAddr:
		return value * 2
	case ConstraintRegWord:
		return value*2 + 24
	case ConstraintImm8Inv:
		return ^value & 0xFF
	}
	return value
}

// Box validates a biased field value and tags it. Relative offsets are sign
// extended and doubled first; the tiny LDS/STS address is offset by 0x40.
func Box(value uint32, c Constraint) (Value, error) {
	var v int64
	switch c {
	case ConstraintRel7:
		v = UnsignedToSigned(value, 7) * 2
	case ConstraintRel12:
		v = UnsignedToSigned(value, 12) * 2
	case ConstraintTinyAddr:
		v = int64(value) + 0x40
	default:
		v = int64(value)
	}
	if err := CheckRange(v, c); err != nil {
		return Value{}, err
	}
	return Value{kind: kindFor(c), v: v}, nil
}

// removeBias is the encoder side of ApplyRegisterBias and Box.
func removeBias(v int64, c Constraint) (uint32, error) {
	odd := func() error {
		return &ConstraintError{Constraint: c, Value: v, Rule: "even value"}
	}
	switch c {
	case ConstraintRegHigh, ConstraintRegMul:
		return uint32(v - 16), nil
	case ConstraintRegPair:
		return uint32(v / 2), nil
	case ConstraintRegWord:
		return uint32((v - 24) / 2), nil
	case ConstraintAbsAddr:
		if v%2 != 0 {
			return 0, odd()
		}
		return uint32(v / 2), nil
	case ConstraintTinyAddr:
		return uint32(v - 0x40), nil
	case ConstraintRel7:
		if v%2 != 0 {
			return 0, odd()
		}
		return uint32(v/2) & 0x7F, nil
	case ConstraintRel12:
		if v%2 != 0 {
			return 0, odd()
		}
		return uint32(v/2) & 0xFFF, nil
	case ConstraintImm8Inv:
		return uint32(^v) & 0xFF, nil
	}
	if v < 0 {
		return 0, &ConstraintError{Constraint: c, Value: v, Rule: "non-negative value"}
	}
	return uint32(v), nil
}

var pointerNames = map[int64]string{PointerX: "X", PointerY: "Y", PointerZ: "Z"}

var directionNames = [...]string{"", "+", "-", "-+"}

// RenderValue renders a value in assembler syntax for the constraint.
func RenderValue(v int64, c Constraint) string {
	switch {
	case c.IsRegister():
		return "r" + strconv.FormatInt(v, 10)
	case c.IsRelative():
		if v >= 0 {
			return ".+" + strconv.FormatInt(v, 10)
		}
		return "." + strconv.FormatInt(v, 10)
	}

	switch c {
	case ConstraintPointer:
		if name, ok := pointerNames[v]; ok {
			return name
		}
	case ConstraintBasePointer:
		if v == 1 {
			return "Y"
		}
		return "Z"
	case ConstraintZIncrement:
		if v == 1 {
			return "Z+"
		}
		return "Z"
	case ConstraintDirection:
		if v >= 0 && int(v) < len(directionNames) {
			return directionNames[v]
		}
	case ConstraintBit, ConstraintSREGBit, ConstraintImm4,
		ConstraintDisp6, ConstraintImm6:
		return strconv.FormatInt(v, 10)
	}
	return fmt.Sprintf("%#x", v)
}

// Render renders an operand in assembler syntax.
func (o Operand) Render() string {
	return RenderValue(o.Int(), o.Constraint)
}

// ParseOperand parses assembler text into a validated value for the
// constraint. It accepts everything RenderValue produces.
func ParseOperand(text string, c Constraint) (Value, error) {
	v, err := parseOperandValue(strings.TrimSpace(text), c)
	if err != nil {
		return Value{}, err
	}
	if err := CheckRange(v, c); err != nil {
		return Value{}, err
	}
	return Value{kind: kindFor(c), v: v}, nil
}

func parseOperandValue(text string, c Constraint) (int64, error) {
	bad := func() (int64, error) {
		return 0, fmt.Errorf("%w: %q for constraint %s", ErrInvalidOperandText, text, c)
	}
	upper := strings.ToUpper(text)

	switch {
	case c.IsRegister():
		if len(text) < 2 || (text[0] != 'r' && text[0] != 'R') {
			return bad()
		}
		n, err := strconv.ParseInt(text[1:], 10, 64)
		if err != nil {
			return bad()
		}
		return n, nil
	case c.IsRelative():
		if !strings.HasPrefix(text, ".") {
			return bad()
		}
		n, err := strconv.ParseInt(text[1:], 10, 64)
		if err != nil {
			return bad()
		}
		return n, nil
	}

	switch c {
	case ConstraintPointer:
		for v, name := range pointerNames {
			if upper == name {
				return v, nil
			}
		}
		return bad()
	case ConstraintBasePointer:
		switch upper {
		case "Y":
			return 1, nil
		case "Z":
			return 0, nil
		}
		return bad()
	case ConstraintZIncrement:
		switch upper {
		case "Z":
			return 0, nil
		case "Z+":
			return 1, nil
		}
		return bad()
	case ConstraintDirection:
		for v, name := range directionNames {
			if text == name {
				return int64(v), nil
			}
		}
		return bad()
	}

	n, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return bad()
	}
	return n, nil
}

package emu

import (
	"github.com/sarchlab/avrsim/expr"
)

// flagFormula computes one flag. Formulas are evaluated in order and each
// result is bound by its flag letter, so later formulas can read earlier
// flags (S reads N and V).
type flagFormula struct {
	flag Flag
	e    *expr.Expr
}

func formula(flag Flag, src string) flagFormula {
	return flagFormula{flag: flag, e: expr.MustCompile(src)}
}

var (
	resNegative = formula(FlagN, "res7")
	resZero     = formula(FlagZ, "!res")
	resSign     = formula(FlagS, "N ^ V")
)

// Flag formulas per instruction family, from the AVR instruction set
// manual. ra and rb are the operands, res the result.
var (
	addFlags = []flagFormula{
		formula(FlagH, "ra3&rb3 | rb3&!res3 | !res3&ra3"),
		formula(FlagV, "ra7&rb7&!res7 | !ra7&!rb7&res7"),
		resNegative,
		resZero,
		formula(FlagC, "ra7&rb7 | rb7&!res7 | !res7&ra7"),
		resSign,
	}

	subFlags = []flagFormula{
		formula(FlagH, "!ra3&rb3 | rb3&res3 | res3&!ra3"),
		formula(FlagV, "ra7&!rb7&!res7 | !ra7&rb7&res7"),
		resNegative,
		resZero,
		formula(FlagC, "!ra7&rb7 | rb7&res7 | res7&!ra7"),
		resSign,
	}

	// Z only stays set when the previous Z was set, for multi-byte
	// comparisons.
	subCarryFlags = []flagFormula{
		subFlags[0],
		subFlags[1],
		resNegative,
		formula(FlagZ, "!res & Z"),
		subFlags[4],
		resSign,
	}

	logicFlags = []flagFormula{
		formula(FlagV, "0"),
		resNegative,
		resZero,
		resSign,
	}

	comFlags = []flagFormula{
		formula(FlagV, "0"),
		resNegative,
		resZero,
		formula(FlagC, "1"),
		resSign,
	}

	negFlags = []flagFormula{
		formula(FlagH, "res3 | ra3"),
		formula(FlagV, "res7 & !res6 & !res5 & !res4 & !res3 & !res2 & !res1 & !res0"),
		resNegative,
		resZero,
		formula(FlagC, "res"),
		resSign,
	}

	incFlags = []flagFormula{
		formula(FlagV, "res7 & !res6 & !res5 & !res4 & !res3 & !res2 & !res1 & !res0"),
		resNegative,
		resZero,
		resSign,
	}

	decFlags = []flagFormula{
		formula(FlagV, "!res7 & res6 & res5 & res4 & res3 & res2 & res1 & res0"),
		resNegative,
		resZero,
		resSign,
	}

	shiftRightFlags = []flagFormula{
		formula(FlagC, "ra0"),
		resNegative,
		resZero,
		formula(FlagV, "N ^ C"),
		resSign,
	}

	// rdh is the high byte of the word operand; resl and resh are the
	// bytes of the word result.
	addWordFlags = []flagFormula{
		formula(FlagV, "!rdh7 & resh7"),
		formula(FlagN, "resh7"),
		formula(FlagZ, "!resl & !resh"),
		formula(FlagC, "!resh7 & rdh7"),
		resSign,
	}

	subWordFlags = []flagFormula{
		formula(FlagV, "rdh7 & !resh7"),
		formula(FlagN, "resh7"),
		formula(FlagZ, "!resl & !resh"),
		formula(FlagC, "resh7 & !rdh7"),
		resSign,
	}

	// ph is the high byte of the unshifted product; resl and resh are the
	// bytes of the result written to r1:r0.
	mulFlags = []flagFormula{
		formula(FlagC, "ph7"),
		formula(FlagZ, "!resl & !resh"),
	}
)

// ALU implements AVR arithmetic and logic. Its operations are pure: they
// return the result and the flag update, and the caller writes both back.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

func (a *ALU) eval(env expr.Env, formulas []flagFormula) (Flags, error) {
	var f Flags
	for _, ff := range formulas {
		v, err := ff.e.Eval(env)
		if err != nil {
			return Flags{}, err
		}
		env[ff.flag.String()] = v
		f = f.With(ff.flag, v)
	}
	return f, nil
}

func (a *ALU) byteOp(ra, rb, res uint8, formulas []flagFormula) (uint8, Flags, error) {
	f, err := a.eval(expr.Env{"ra": ra, "rb": rb, "res": res}, formulas)
	return res, f, err
}

// Add computes ra + rb + carry (ADD, ADC).
func (a *ALU) Add(ra, rb uint8, carry bool) (uint8, Flags, error) {
	sum := uint16(ra) + uint16(rb) + uint16(b2u(carry))
	return a.byteOp(ra, rb, uint8(sum), addFlags)
}

// Sub computes ra - rb (SUB, SUBI, CP, CPI).
func (a *ALU) Sub(ra, rb uint8) (uint8, Flags, error) {
	return a.byteOp(ra, rb, ra-rb, subFlags)
}

// SubCarry computes ra - rb - carry with a sticky zero flag (SBC, SBCI,
// CPC).
func (a *ALU) SubCarry(ra, rb uint8, carry, zero bool) (uint8, Flags, error) {
	res := ra - rb - b2u(carry)
	f, err := a.eval(expr.Env{"ra": ra, "rb": rb, "res": res, "Z": zero}, subCarryFlags)
	return res, f, err
}

// And computes ra & rb.
func (a *ALU) And(ra, rb uint8) (uint8, Flags, error) {
	return a.byteOp(ra, rb, ra&rb, logicFlags)
}

// Or computes ra | rb.
func (a *ALU) Or(ra, rb uint8) (uint8, Flags, error) {
	return a.byteOp(ra, rb, ra|rb, logicFlags)
}

// Eor computes ra ^ rb.
func (a *ALU) Eor(ra, rb uint8) (uint8, Flags, error) {
	return a.byteOp(ra, rb, ra^rb, logicFlags)
}

// Com computes the one's complement.
func (a *ALU) Com(ra uint8) (uint8, Flags, error) {
	return a.byteOp(ra, 0, ^ra, comFlags)
}

// Neg computes the two's complement.
func (a *ALU) Neg(ra uint8) (uint8, Flags, error) {
	return a.byteOp(ra, 0, -ra, negFlags)
}

// Inc computes ra + 1. C is not affected.
func (a *ALU) Inc(ra uint8) (uint8, Flags, error) {
	return a.byteOp(ra, 0, ra+1, incFlags)
}

// Dec computes ra - 1. C is not affected.
func (a *ALU) Dec(ra uint8) (uint8, Flags, error) {
	return a.byteOp(ra, 0, ra-1, decFlags)
}

// Asr shifts right keeping the sign bit.
func (a *ALU) Asr(ra uint8) (uint8, Flags, error) {
	return a.byteOp(ra, 0, ra>>1|ra&0x80, shiftRightFlags)
}

// Lsr shifts right inserting zero.
func (a *ALU) Lsr(ra uint8) (uint8, Flags, error) {
	return a.byteOp(ra, 0, ra>>1, shiftRightFlags)
}

// Ror rotates right through carry.
func (a *ALU) Ror(ra uint8, carry bool) (uint8, Flags, error) {
	return a.byteOp(ra, 0, ra>>1|b2u(carry)<<7, shiftRightFlags)
}

// Swap exchanges the nibbles. No flags are affected.
func (a *ALU) Swap(ra uint8) uint8 {
	return ra<<4 | ra>>4
}

func (a *ALU) wordOp(rd, res uint16, formulas []flagFormula) (uint16, Flags, error) {
	f, err := a.eval(expr.Env{
		"rdh":  uint8(rd >> 8),
		"resl": uint8(res),
		"resh": uint8(res >> 8),
	}, formulas)
	return res, f, err
}

// AddWord computes rd + k on a register pair (ADIW).
func (a *ALU) AddWord(rd uint16, k uint8) (uint16, Flags, error) {
	return a.wordOp(rd, rd+uint16(k), addWordFlags)
}

// SubWord computes rd - k on a register pair (SBIW).
func (a *ALU) SubWord(rd uint16, k uint8) (uint16, Flags, error) {
	return a.wordOp(rd, rd-uint16(k), subWordFlags)
}

// MulKind selects the signedness of a multiply.
type MulKind int

// Multiply kinds.
const (
	MulUnsigned MulKind = iota
	MulSigned
	MulSignedUnsigned
)

// Mul multiplies two bytes. A fractional multiply shifts the product left
// by one; C still reports bit 15 of the unshifted product.
func (a *ALU) Mul(ra, rb uint8, kind MulKind, fractional bool) (uint16, Flags, error) {
	var p uint16
	switch kind {
	case MulSigned:
		p = uint16(int16(int8(ra)) * int16(int8(rb)))
	case MulSignedUnsigned:
		p = uint16(int16(int8(ra)) * int16(rb))
	default:
		p = uint16(ra) * uint16(rb)
	}

	res := p
	if fractional {
		res = p << 1
	}
	f, err := a.eval(expr.Env{
		"ph":   uint8(p >> 8),
		"resl": uint8(res),
		"resh": uint8(res >> 8),
	}, mulFlags)
	return res, f, err
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

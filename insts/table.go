package insts

import (
	"fmt"
	"strings"
	"sync"
)

// OpcodeID identifies an opcode table entry by index, or one of the
// synthetic pseudo-instructions.
type OpcodeID uint16

// Synthetic opcode ids. They lie beyond the real table.
const (
	IDContinuation OpcodeID = 998  // second word of a two-word instruction
	IDWord         OpcodeID = 999  // raw data word
	IDEmpty        OpcodeID = 1000 // unprogrammed flash cell
)

// OperandDesc describes where an operand lives in the raw encoding.
type OperandDesc struct {
	Constraint Constraint
	Mask       uint32
	// Mirror receives a copy of the field on encode (CLR, LSL, ROL, TST).
	Mirror uint32
}

// RawInst is one opcode table entry.
type RawInst struct {
	ID        OpcodeID
	Op        Op
	Name      string
	Pattern   string
	Len       uint32 // in 16-bit words
	BinMask   uint16
	BinOpcode uint16
	Operands  []OperandDesc

	Action      string
	Description string
}

// Matches reports whether the first word of an encoding selects this entry.
func (r *RawInst) Matches(word uint16) bool {
	return word&r.BinMask == r.BinOpcode
}

type def struct {
	pattern  string
	op       Op
	operands string
	action   string
	desc     string
}

// Operand tokens are a constraint code followed by the pattern letter that
// holds the field ('-' for none) and an optional mirror letter. Order
// matters: the first entry that matches a word wins, so aliases that share
// an encoding follow their canonical form.
var definitions = []def{
	{"1001010010001000", OpCLC, "", "C ← 0", "Clear Carry Flag"},
	{"1001010011011000", OpCLH, "", "H ← 0", "Clear Half Carry Flag"},
	{"1001010011111000", OpCLI, "", "I ← 0", "Global Interrupt Disable"},
	{"1001010010101000", OpCLN, "", "N ← 0", "Clear Negative Flag"},
	{"1001010011001000", OpCLS, "", "S ← 0", "Clear Sign Flag"},
	{"1001010011101000", OpCLT, "", "T ← 0", "Clear T Flag"},
	{"1001010010111000", OpCLV, "", "V ← 0", "Clear Overflow Flag"},
	{"1001010010011000", OpCLZ, "", "Z ← 0", "Clear Zero Flag"},
	{"1001010000001000", OpSEC, "", "C ← 1", "Set Carry Flag"},
	{"1001010001011000", OpSEH, "", "H ← 1", "Set Half Carry Flag"},
	{"1001010001111000", OpSEI, "", "I ← 1", "Global Interrupt Enable"},
	{"1001010000101000", OpSEN, "", "N ← 1", "Set Negative Flag"},
	{"1001010001001000", OpSES, "", "S ← 1", "Set Sign Flag"},
	{"1001010001101000", OpSET, "", "T ← 1", "Set T Flag"},
	{"1001010000111000", OpSEV, "", "V ← 1", "Set Overflow Flag"},
	{"1001010000011000", OpSEZ, "", "Z ← 1", "Set Zero Flag"},
	{"100101001sss1000", OpBCLR, "Ss", "SREG(s) ← 0", "Bit Clear in SREG"},
	{"100101000sss1000", OpBSET, "Ss", "SREG(s) ← 1", "Bit Set in SREG"},

	{"1001010100001001", OpICALL, "", "PC ← Z", "Indirect Call to Subroutine"},
	{"1001010000001001", OpIJMP, "", "PC ← Z", "Indirect Jump"},
	{"1001010100011001", OpEICALL, "", "PC ← EIND:Z", "Extended Indirect Call to Subroutine"},
	{"1001010000011001", OpEIJMP, "", "PC ← EIND:Z", "Extended Indirect Jump"},

	{"1001010111001000", OpLPM, "", "R0 ← (Z)", "Load Program Memory"},
	{"1001010111011000", OpELPM, "", "R0 ← (RAMPZ:Z)", "Extended Load Program Memory"},
	{"0000000000000000", OpNOP, "", "", "No Operation"},
	{"1001010100001000", OpRET, "", "PC ← STACK", "Subroutine Return"},
	{"1001010100011000", OpRETI, "", "PC ← STACK, I ← 1", "Interrupt Return"},
	{"1001010110001000", OpSLEEP, "", "", "Sleep"},
	{"1001010110011000", OpBREAK, "", "", "Break"},
	{"1001010110101000", OpWDR, "", "", "Watchdog Reset"},
	{"1001010111101000", OpSPM, "", "(RAMPZ:Z) ← R1:R0", "Store Program Memory"},
	{"10010101111z1000", OpSPM, "zz", "(RAMPZ:Z) ← R1:R0", "Store Program Memory"},

	{"000111rdddddrrrr", OpADC, "rd rr", "Rd ← Rd + Rr + C", "Add with Carry"},
	{"000011rdddddrrrr", OpADD, "rd rr", "Rd ← Rd + Rr", "Add without Carry"},
	{"001000rdddddrrrr", OpAND, "rd rr", "Rd ← Rd • Rr", "Logical AND"},
	{"000101rdddddrrrr", OpCP, "rd rr", "Rd - Rr", "Compare"},
	{"000001rdddddrrrr", OpCPC, "rd rr", "Rd - Rr - C", "Compare with Carry"},
	{"000100rdddddrrrr", OpCPSE, "rd rr", "if (Rd = Rr) PC ← PC + 2 or 3", "Compare, Skip if Equal"},
	{"001001rdddddrrrr", OpEOR, "rd rr", "Rd ← Rd ⊕ Rr", "Exclusive OR"},
	{"001011rdddddrrrr", OpMOV, "rd rr", "Rd ← Rr", "Copy Register"},
	{"100111rdddddrrrr", OpMUL, "rd rr", "R1:R0 ← Rd × Rr", "Multiply Unsigned"},
	{"001010rdddddrrrr", OpOR, "rd rr", "Rd ← Rd v Rr", "Logical OR"},
	{"000010rdddddrrrr", OpSBC, "rd rr", "Rd ← Rd - Rr - C", "Subtract with Carry"},
	{"000110rdddddrrrr", OpSUB, "rd rr", "Rd ← Rd - Rr", "Subtract without Carry"},
	{"001001rdddddrrrr", OpCLR, "rdr", "Rd ← Rd ⊕ Rd", "Clear Register"},
	{"000011rdddddrrrr", OpLSL, "rdr", "Rd ← Rd << 1", "Logical Shift Left"},
	{"000111rdddddrrrr", OpROL, "rdr", "Rd ← Rd << 1 | C", "Rotate Left through Carry"},
	{"001000rdddddrrrr", OpTST, "rdr", "Rd ← Rd • Rd", "Test for Zero or Minus"},

	{"0111KKKKddddKKKK", OpANDI, "dd MK", "Rd ← Rd • K", "Logical AND with Immediate"},
	{"0111KKKKddddKKKK", OpCBR, "dd nK", "Rd ← Rd • (0xFF - K)", "Clear Bits in Register"},
	{"1110KKKKddddKKKK", OpLDI, "dd MK", "Rd ← K", "Load Immediate"},
	{"11101111dddd1111", OpSER, "dd", "Rd ← 0xFF", "Set all Bits in Register"},
	{"0110KKKKddddKKKK", OpORI, "dd MK", "Rd ← Rd v K", "Logical OR with Immediate"},
	{"0110KKKKddddKKKK", OpSBR, "dd MK", "Rd ← Rd v K", "Set Bits in Register"},
	{"0011KKKKddddKKKK", OpCPI, "dd MK", "Rd - K", "Compare with Immediate"},
	{"0100KKKKddddKKKK", OpSBCI, "dd MK", "Rd ← Rd - K - C", "Subtract Immediate with Carry"},
	{"0101KKKKddddKKKK", OpSUBI, "dd MK", "Rd ← Rd - K", "Subtract Immediate"},

	{"1111110rrrrr0sss", OpSBRC, "rr ss", "if (Rr(b) = 0) PC ← PC + 2 or 3", "Skip if Bit in Register is Cleared"},
	{"1111111rrrrr0sss", OpSBRS, "rr ss", "if (Rr(b) = 1) PC ← PC + 2 or 3", "Skip if Bit in Register is Set"},
	{"1111100ddddd0sss", OpBLD, "rd ss", "Rd(b) ← T", "Bit Load from T to Register"},
	{"1111101ddddd0sss", OpBST, "rd ss", "T ← Rd(b)", "Bit Store from Register to T"},

	{"10110PPdddddPPPP", OpIN, "rd PP", "Rd ← I/O(A)", "Load an I/O Location to Register"},
	{"10111PPrrrrrPPPP", OpOUT, "PP rr", "I/O(A) ← Rr", "Store Register to I/O Location"},

	{"10010110KKddKKKK", OpADIW, "wd KK", "Rd+1:Rd ← Rd+1:Rd + K", "Add Immediate to Word"},
	{"10010111KKddKKKK", OpSBIW, "wd KK", "Rd+1:Rd ← Rd+1:Rd - K", "Subtract Immediate from Word"},

	{"10011000pppppsss", OpCBI, "pp ss", "I/O(A, b) ← 0", "Clear Bit in I/O Register"},
	{"10011010pppppsss", OpSBI, "pp ss", "I/O(A, b) ← 1", "Set Bit in I/O Register"},
	{"10011001pppppsss", OpSBIC, "pp ss", "if (I/O(A, b) = 0) PC ← PC + 2 or 3", "Skip if Bit in I/O Register is Cleared"},
	{"10011011pppppsss", OpSBIS, "pp ss", "if (I/O(A, b) = 1) PC ← PC + 2 or 3", "Skip if Bit in I/O Register is Set"},

	{"111101kkkkkkk000", OpBRCC, "lk", "if (C = 0) PC ← PC + k + 1", "Branch if Carry Cleared"},
	{"111100kkkkkkk000", OpBRCS, "lk", "if (C = 1) PC ← PC + k + 1", "Branch if Carry Set"},
	{"111100kkkkkkk001", OpBREQ, "lk", "if (Z = 1) PC ← PC + k + 1", "Branch if Equal"},
	{"111101kkkkkkk100", OpBRGE, "lk", "if (S = 0) PC ← PC + k + 1", "Branch if Greater or Equal, Signed"},
	{"111101kkkkkkk101", OpBRHC, "lk", "if (H = 0) PC ← PC + k + 1", "Branch if Half Carry Flag Cleared"},
	{"111100kkkkkkk101", OpBRHS, "lk", "if (H = 1) PC ← PC + k + 1", "Branch if Half Carry Flag Set"},
	{"111101kkkkkkk111", OpBRID, "lk", "if (I = 0) PC ← PC + k + 1", "Branch if Global Interrupt Disabled"},
	{"111100kkkkkkk111", OpBRIE, "lk", "if (I = 1) PC ← PC + k + 1", "Branch if Global Interrupt Enabled"},
	{"111100kkkkkkk000", OpBRLO, "lk", "if (C = 1) PC ← PC + k + 1", "Branch if Lower"},
	{"111100kkkkkkk100", OpBRLT, "lk", "if (S = 1) PC ← PC + k + 1", "Branch if Less Than, Signed"},
	{"111100kkkkkkk010", OpBRMI, "lk", "if (N = 1) PC ← PC + k + 1", "Branch if Minus"},
	{"111101kkkkkkk001", OpBRNE, "lk", "if (Z = 0) PC ← PC + k + 1", "Branch if Not Equal"},
	{"111101kkkkkkk010", OpBRPL, "lk", "if (N = 0) PC ← PC + k + 1", "Branch if Plus"},
	{"111101kkkkkkk000", OpBRSH, "lk", "if (C = 0) PC ← PC + k + 1", "Branch if Same or Higher"},
	{"111101kkkkkkk110", OpBRTC, "lk", "if (T = 0) PC ← PC + k + 1", "Branch if T Flag Cleared"},
	{"111100kkkkkkk110", OpBRTS, "lk", "if (T = 1) PC ← PC + k + 1", "Branch if T Flag Set"},
	{"111101kkkkkkk011", OpBRVC, "lk", "if (V = 0) PC ← PC + k + 1", "Branch if Overflow Cleared"},
	{"111100kkkkkkk011", OpBRVS, "lk", "if (V = 1) PC ← PC + k + 1", "Branch if Overflow Set"},
	{"111101kkkkkkksss", OpBRBC, "ss lk", "if (SREG(s) = 0) PC ← PC + k + 1", "Branch if Bit in SREG is Cleared"},
	{"111100kkkkkkksss", OpBRBS, "ss lk", "if (SREG(s) = 1) PC ← PC + k + 1", "Branch if Bit in SREG is Set"},

	{"1101kkkkkkkkkkkk", OpRCALL, "Lk", "PC ← PC + k + 1", "Relative Call to Subroutine"},
	{"1100kkkkkkkkkkkk", OpRJMP, "Lk", "PC ← PC + k + 1", "Relative Jump"},
	{"1001010kkkkk111kkkkkkkkkkkkkkkkk", OpCALL, "hk", "PC ← k", "Long Call to a Subroutine"},
	{"1001010kkkkk110kkkkkkkkkkkkkkkkk", OpJMP, "hk", "PC ← k", "Jump"},

	{"1001010ddddd0101", OpASR, "rd", "Rd(n) ← Rd(n+1), n=0:6", "Arithmetic Shift Right"},
	{"1001010ddddd0000", OpCOM, "rd", "Rd ← 0xFF - Rd", "One's Complement"},
	{"1001010ddddd1010", OpDEC, "rd", "Rd ← Rd - 1", "Decrement"},
	{"1001010ddddd0011", OpINC, "rd", "Rd ← Rd + 1", "Increment"},
	{"1001010ddddd0110", OpLSR, "rd", "Rd(n) ← Rd(n+1), Rd(7) ← 0", "Logical Shift Right"},
	{"1001010ddddd0001", OpNEG, "rd", "Rd ← 0x00 - Rd", "Two's Complement"},
	{"1001010ddddd0111", OpROR, "rd", "Rd(7) ← C, Rd(n) ← Rd(n+1), C ← Rd(0)", "Rotate Right through Carry"},
	{"1001010ddddd0010", OpSWAP, "rd", "Rd(7:4) ↔ Rd(3:0)", "Swap Nibbles"},

	{"1001000ddddd0000kkkkkkkkkkkkkkkk", OpLDS, "rd ik", "Rd ← (k)", "Load Direct from Data Space"},
	{"1001000ddddd010z", OpLPM, "rd zz", "Rd ← (Z)", "Load Program Memory"},
	{"1001000ddddd011z", OpELPM, "rd zz", "Rd ← (RAMPZ:Z)", "Extended Load Program Memory"},
	{"1001000ddddd1111", OpPOP, "rd", "Rd ← STACK", "Pop Register from Stack"},
	{"1001000dddddeecc", OpLD, "rd ee cc", "Rd ← (ptr)", "Load Indirect from Data Space"},
	{"1001001rrrrr0000kkkkkkkkkkkkkkkk", OpSTS, "ik rr", "(k) ← Rr", "Store Direct to Data Space"},
	{"1001001ddddd0100", OpXCH, "z- rd", "(Z) ↔ Rd", "Exchange"},
	{"1001001ddddd0101", OpLAS, "z- rd", "(Z) ← Rd v (Z), Rd ← (Z)", "Load and Set"},
	{"1001001ddddd0110", OpLAC, "z- rd", "(Z) ← (0xFF - Rd) • (Z), Rd ← (Z)", "Load and Clear"},
	{"1001001ddddd0111", OpLAT, "z- rd", "(Z) ← Rd ⊕ (Z), Rd ← (Z)", "Load and Toggle"},
	{"1001001rrrrr1111", OpPUSH, "rr", "STACK ← Rr", "Push Register on Stack"},
	{"1001001rrrrreecc", OpST, "ee cc rr", "(ptr) ← Rr", "Store Indirect to Data Space"},

	{"00000001ddddrrrr", OpMOVW, "vd vr", "Rd+1:Rd ← Rr+1:Rr", "Copy Register Word"},
	{"00000010ddddrrrr", OpMULS, "dd dr", "R1:R0 ← Rd × Rr", "Multiply Signed"},
	{"000000110ddd0rrr", OpMULSU, "ad ar", "R1:R0 ← Rd × Rr", "Multiply Signed with Unsigned"},
	{"000000110ddd1rrr", OpFMUL, "ad ar", "R1:R0 ← Rd × Rr << 1", "Fractional Multiply Unsigned"},
	{"000000111ddd0rrr", OpFMULS, "ad ar", "R1:R0 ← Rd × Rr << 1", "Fractional Multiply Signed"},
	{"000000111ddd1rrr", OpFMULSU, "ad ar", "R1:R0 ← Rd × Rr << 1", "Fractional Multiply Signed with Unsigned"},

	{"10q0qq0dddddbqqq", OpLDD, "rd bb oq", "Rd ← (ptr + q)", "Load Indirect with Displacement"},
	{"10q0qq1rrrrrbqqq", OpSTD, "bb oq rr", "(ptr + q) ← Rr", "Store Indirect with Displacement"},
	{"10100kkkddddkkkk", OpLDS, "dd jk", "Rd ← (k)", "Load Direct from Data Space"},
	{"10101kkkddddkkkk", OpSTS, "jk dd", "(k) ← Rd", "Store Direct to Data Space"},

	{"10010100KKKK1011", OpDES, "EK", "", "Data Encryption Standard round"},
}

var synthetic = map[OpcodeID]*RawInst{
	IDContinuation: {ID: IDContinuation, Op: OpCustom, Name: ".cont", Len: 1,
		Description: "Second word of a two-word instruction"},
	IDWord: {ID: IDWord, Op: OpCustom, Name: ".word", Len: 1,
		Operands:    []OperandDesc{{Constraint: ConstraintImm, Mask: 0xFFFF}},
		Description: "Data word"},
	IDEmpty: {ID: IDEmpty, Op: OpCustom, Name: ".empty", Len: 1,
		Description: "Unprogrammed flash"},
}

var opcodeTable = sync.OnceValue(func() []RawInst {
	table := make([]RawInst, len(definitions))
	for i, d := range definitions {
		table[i] = buildRawInst(OpcodeID(i), d)
	}
	return table
})

func buildRawInst(id OpcodeID, d def) RawInst {
	n := len(d.pattern)
	if n != 16 && n != 32 {
		panic(fmt.Sprintf("insts: pattern %q has %d bits", d.pattern, n))
	}

	r := RawInst{
		ID:          id,
		Op:          d.op,
		Name:        d.op.Mnemonic(),
		Pattern:     d.pattern,
		Len:         uint32(n / 16),
		Action:      d.action,
		Description: d.desc,
	}

	for i := 0; i < 16; i++ {
		bit := uint16(1) << (15 - i)
		switch d.pattern[i] {
		case '0':
			r.BinMask |= bit
		case '1':
			r.BinMask |= bit
			r.BinOpcode |= bit
		}
	}

	fieldMask := func(letter byte) uint32 {
		var mask uint32
		for i := 0; i < n; i++ {
			if d.pattern[i] == letter {
				mask |= 1 << (n - 1 - i)
			}
		}
		if mask == 0 {
			panic(fmt.Sprintf("insts: field %q missing from %q", letter, d.pattern))
		}
		return mask
	}

	for _, tok := range strings.Fields(d.operands) {
		c, err := ParseConstraint(tok[0])
		if err != nil {
			panic(fmt.Sprintf("insts: %s: %v", d.op, err))
		}
		desc := OperandDesc{Constraint: c}
		if tok[1] != '-' {
			desc.Mask = fieldMask(tok[1])
		}
		if len(tok) > 2 {
			desc.Mirror = fieldMask(tok[2])
		}
		r.Operands = append(r.Operands, desc)
	}
	return r
}

// Table returns the opcode table. Callers must not modify it.
func Table() []RawInst {
	return opcodeTable()
}

// Lookup returns the table entry or synthetic pseudo-entry for an id.
func Lookup(id OpcodeID) (*RawInst, error) {
	table := opcodeTable()
	if int(id) < len(table) {
		return &table[id], nil
	}
	if r, ok := synthetic[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: id %d", ErrOpcodeNotFound, id)
}

// Match returns the first table entry whose mask and pattern select word.
func Match(word uint16) (OpcodeID, bool) {
	table := opcodeTable()
	for i := range table {
		if table[i].Matches(word) {
			return OpcodeID(i), true
		}
	}
	return 0, false
}

// FindMnemonic returns the ids of all entries with the given mnemonic, in
// table order.
func FindMnemonic(name string) []OpcodeID {
	name = strings.ToLower(name)
	var ids []OpcodeID
	for i, r := range opcodeTable() {
		if r.Name == name {
			ids = append(ids, OpcodeID(i))
		}
	}
	if name == synthetic[IDWord].Name {
		ids = append(ids, IDWord)
	}
	return ids
}

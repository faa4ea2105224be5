package insts

import "strings"

// Op represents an AVR mnemonic.
type Op uint16

// AVR opcodes.
const (
	OpUnknown Op = iota
	OpADC
	OpADD
	OpADIW
	OpAND
	OpANDI
	OpASR
	OpBCLR
	OpBLD
	OpBRBC
	OpBRBS
	OpBRCC
	OpBRCS
	OpBREAK
	OpBREQ
	OpBRGE
	OpBRHC
	OpBRHS
	OpBRID
	OpBRIE
	OpBRLO
	OpBRLT
	OpBRMI
	OpBRNE
	OpBRPL
	OpBRSH
	OpBRTC
	OpBRTS
	OpBRVC
	OpBRVS
	OpBSET
	OpBST
	OpCALL
	OpCBI
	OpCBR
	OpCLC
	OpCLH
	OpCLI
	OpCLN
	OpCLR
	OpCLS
	OpCLT
	OpCLV
	OpCLZ
	OpCOM
	OpCP
	OpCPC
	OpCPI
	OpCPSE
	OpDEC
	OpDES
	OpEICALL
	OpEIJMP
	OpELPM
	OpEOR
	OpFMUL
	OpFMULS
	OpFMULSU
	OpICALL
	OpIJMP
	OpIN
	OpINC
	OpJMP
	OpLAC
	OpLAS
	OpLAT
	OpLD
	OpLDD
	OpLDI
	OpLDS
	OpLPM
	OpLSL
	OpLSR
	OpMOV
	OpMOVW
	OpMUL
	OpMULS
	OpMULSU
	OpNEG
	OpNOP
	OpOR
	OpORI
	OpOUT
	OpPOP
	OpPUSH
	OpRCALL
	OpRET
	OpRETI
	OpRJMP
	OpROL
	OpROR
	OpSBC
	OpSBCI
	OpSBI
	OpSBIC
	OpSBIS
	OpSBIW
	OpSBR
	OpSBRC
	OpSBRS
	OpSEC
	OpSEH
	OpSEI
	OpSEN
	OpSER
	OpSES
	OpSET
	OpSEV
	OpSEZ
	OpSLEEP
	OpSPM
	OpST
	OpSTD
	OpSTS
	OpSUB
	OpSUBI
	OpSWAP
	OpTST
	OpWDR
	OpXCH

	// OpCustom marks the synthetic pseudo-instructions that do not come
	// from the opcode table.
	OpCustom
)

var opNames = [...]string{
	OpUnknown: "UNKNOWN",
	OpADC:     "ADC", OpADD: "ADD", OpADIW: "ADIW", OpAND: "AND",
	OpANDI: "ANDI", OpASR: "ASR", OpBCLR: "BCLR", OpBLD: "BLD",
	OpBRBC: "BRBC", OpBRBS: "BRBS", OpBRCC: "BRCC", OpBRCS: "BRCS",
	OpBREAK: "BREAK", OpBREQ: "BREQ", OpBRGE: "BRGE", OpBRHC: "BRHC",
	OpBRHS: "BRHS", OpBRID: "BRID", OpBRIE: "BRIE", OpBRLO: "BRLO",
	OpBRLT: "BRLT", OpBRMI: "BRMI", OpBRNE: "BRNE", OpBRPL: "BRPL",
	OpBRSH: "BRSH", OpBRTC: "BRTC", OpBRTS: "BRTS", OpBRVC: "BRVC",
	OpBRVS: "BRVS", OpBSET: "BSET", OpBST: "BST", OpCALL: "CALL",
	OpCBI: "CBI", OpCBR: "CBR", OpCLC: "CLC", OpCLH: "CLH",
	OpCLI: "CLI", OpCLN: "CLN", OpCLR: "CLR", OpCLS: "CLS",
	OpCLT: "CLT", OpCLV: "CLV", OpCLZ: "CLZ", OpCOM: "COM",
	OpCP: "CP", OpCPC: "CPC", OpCPI: "CPI", OpCPSE: "CPSE",
	OpDEC: "DEC", OpDES: "DES", OpEICALL: "EICALL", OpEIJMP: "EIJMP",
	OpELPM: "ELPM", OpEOR: "EOR", OpFMUL: "FMUL", OpFMULS: "FMULS",
	OpFMULSU: "FMULSU", OpICALL: "ICALL", OpIJMP: "IJMP", OpIN: "IN",
	OpINC: "INC", OpJMP: "JMP", OpLAC: "LAC", OpLAS: "LAS",
	OpLAT: "LAT", OpLD: "LD", OpLDD: "LDD", OpLDI: "LDI",
	OpLDS: "LDS", OpLPM: "LPM", OpLSL: "LSL", OpLSR: "LSR",
	OpMOV: "MOV", OpMOVW: "MOVW", OpMUL: "MUL", OpMULS: "MULS",
	OpMULSU: "MULSU", OpNEG: "NEG", OpNOP: "NOP", OpOR: "OR",
	OpORI: "ORI", OpOUT: "OUT", OpPOP: "POP", OpPUSH: "PUSH",
	OpRCALL: "RCALL", OpRET: "RET", OpRETI: "RETI", OpRJMP: "RJMP",
	OpROL: "ROL", OpROR: "ROR", OpSBC: "SBC", OpSBCI: "SBCI",
	OpSBI: "SBI", OpSBIC: "SBIC", OpSBIS: "SBIS", OpSBIW: "SBIW",
	OpSBR: "SBR", OpSBRC: "SBRC", OpSBRS: "SBRS", OpSEC: "SEC",
	OpSEH: "SEH", OpSEI: "SEI", OpSEN: "SEN", OpSER: "SER",
	OpSES: "SES", OpSET: "SET", OpSEV: "SEV", OpSEZ: "SEZ",
	OpSLEEP: "SLEEP", OpSPM: "SPM", OpST: "ST", OpSTD: "STD",
	OpSTS: "STS", OpSUB: "SUB", OpSUBI: "SUBI", OpSWAP: "SWAP",
	OpTST: "TST", OpWDR: "WDR", OpXCH: "XCH",
	OpCustom: "CUSTOM",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "UNKNOWN"
}

// Mnemonic returns the lower-case assembler mnemonic.
func (o Op) Mnemonic() string {
	return strings.ToLower(o.String())
}

// IsBranch reports whether the op is a conditional relative branch.
func (o Op) IsBranch() bool {
	return o >= OpBRBC && o <= OpBRVS && o != OpBREAK
}

// IsSkip reports whether the op may skip the following instruction.
func (o Op) IsSkip() bool {
	switch o {
	case OpCPSE, OpSBRC, OpSBRS, OpSBIC, OpSBIS:
		return true
	}
	return false
}

// IsCall reports whether the op pushes a return address.
func (o Op) IsCall() bool {
	switch o {
	case OpCALL, OpRCALL, OpICALL, OpEICALL:
		return true
	}
	return false
}

// IsReturn reports whether the op pops a return address.
func (o Op) IsReturn() bool {
	return o == OpRET || o == OpRETI
}

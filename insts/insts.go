// Package insts provides AVR instruction definitions and decoding.
//
// This package implements decoding of AVR machine code into structured
// instruction representations. It supports:
//   - A mask/pattern opcode table covering the AVR 8-bit instruction set,
//     including the two-word CALL, JMP, LDS and STS encodings
//   - Operand extraction with register bias, sign extension and range checks
//   - Synthetic pseudo-instructions for data words, continuation words and
//     empty flash cells
//   - Textual rendering and parsing of instructions and their operands
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x0C01, 0) // ADD r0, r1
//	fmt.Printf("%s (%d operands)\n", inst, len(inst.Operands))
package insts

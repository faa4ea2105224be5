package emu

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrInvalidAddress is returned for a flash or data access outside the
	// device's memories.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidRegister is returned for a register number outside r0..r31.
	ErrInvalidRegister = errors.New("invalid register")

	// ErrRegisterAbsent is returned when a special register the device
	// does not implement is read or written.
	ErrRegisterAbsent = errors.New("register not present on device")

	// ErrStackOverflow is returned when a push would leave SRAM.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrStackUnderflow is returned when a pop would read past the end of
	// the data space.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrNotExecutable is returned when the PC reaches a data word, an empty
	// cell or the second word of a two-word instruction.
	ErrNotExecutable = errors.New("flash cell is not executable")

	// ErrUnsupportedInstruction is returned for instructions the emulator
	// does not execute.
	ErrUnsupportedInstruction = errors.New("unsupported instruction")

	// ErrInvalidOperand is returned when an operand is a decode sentinel or
	// holds a reserved encoding.
	ErrInvalidOperand = errors.New("invalid operand")

	// ErrMaxInstructions is returned once the instruction limit is reached.
	ErrMaxInstructions = errors.New("max instructions reached")
)

// LevelTrace is the log level of per-instruction records. It sits below
// debug so that ordinary debug output stays readable.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Trace logs at LevelTrace.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

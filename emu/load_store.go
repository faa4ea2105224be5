package emu

import (
	"fmt"

	"github.com/sarchlab/avrsim/insts"
)

// LoadStoreUnit handles data space, I/O and program memory transfers.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

func pointerRegister(ptr int64) (int64, error) {
	switch ptr {
	case insts.PointerX:
		return RegX, nil
	case insts.PointerY:
		return RegY, nil
	case insts.PointerZ:
		return RegZ, nil
	}
	return 0, fmt.Errorf("%w: pointer %d", ErrInvalidOperand, ptr)
}

// Indirect resolves a pointer access with optional post-increment or
// pre-decrement and writes the updated pointer back.
func (lsu *LoadStoreUnit) Indirect(ptr, dir int64) (uint32, error) {
	reg, err := pointerRegister(ptr)
	if err != nil {
		return 0, err
	}
	p, err := lsu.regFile.ReadWord(reg)
	if err != nil {
		return 0, err
	}

	switch dir {
	case insts.DirectionNone:
		return uint32(p), nil
	case insts.DirectionPostInc:
		return uint32(p), lsu.regFile.WriteWord(reg, p+1)
	case insts.DirectionPreDec:
		p--
		return uint32(p), lsu.regFile.WriteWord(reg, p)
	}
	return 0, fmt.Errorf("%w: increment direction %d", ErrInvalidOperand, dir)
}

// Displaced returns Y+q (base 1) or Z+q (base 0).
func (lsu *LoadStoreUnit) Displaced(base, q int64) (uint32, error) {
	reg := int64(RegZ)
	if base == 1 {
		reg = RegY
	}
	p, err := lsu.regFile.ReadWord(reg)
	if err != nil {
		return 0, err
	}
	return uint32(p) + uint32(q), nil
}

// Load copies a data space byte into register rd.
func (lsu *LoadStoreUnit) Load(rd int64, addr uint32) error {
	v, err := lsu.memory.Data.Read(addr)
	if err != nil {
		return err
	}
	return lsu.regFile.WriteReg(rd, v)
}

// Store copies register rr to a data space byte.
func (lsu *LoadStoreUnit) Store(addr uint32, rr int64) error {
	v, err := lsu.regFile.ReadReg(rr)
	if err != nil {
		return err
	}
	return lsu.memory.Data.Write(addr, v)
}

// IOAddress maps an I/O port number to its data space address.
func (lsu *LoadStoreUnit) IOAddress(port int64) uint32 {
	return uint32(port) + uint32(len(lsu.memory.Data.Registers))
}

// In reads an I/O port into rd.
func (lsu *LoadStoreUnit) In(rd, port int64) error {
	return lsu.Load(rd, lsu.IOAddress(port))
}

// Out writes rr to an I/O port.
func (lsu *LoadStoreUnit) Out(port, rr int64) error {
	return lsu.Store(lsu.IOAddress(port), rr)
}

// IOBit returns one bit of an I/O port.
func (lsu *LoadStoreUnit) IOBit(port, bit int64) (bool, error) {
	v, err := lsu.memory.Data.Read(lsu.IOAddress(port))
	if err != nil {
		return false, err
	}
	return v&(1<<bit) != 0, nil
}

// SetIOBit sets or clears one bit of an I/O port.
func (lsu *LoadStoreUnit) SetIOBit(port, bit int64, set bool) error {
	addr := lsu.IOAddress(port)
	v, err := lsu.memory.Data.Read(addr)
	if err != nil {
		return err
	}
	if set {
		v |= 1 << bit
	} else {
		v &^= 1 << bit
	}
	return lsu.memory.Data.Write(addr, v)
}

// programPointer returns Z, extended with RAMPZ when extended is set.
func (lsu *LoadStoreUnit) programPointer(extended bool) (uint32, error) {
	z, err := lsu.regFile.ReadWord(RegZ)
	if err != nil {
		return 0, err
	}
	addr := uint32(z)
	if extended {
		addr |= uint32(lsu.regFile.TryReadSpecial(RAMPZ)) << 16
	}
	return addr, nil
}

func (lsu *LoadStoreUnit) advanceProgramPointer(addr uint32, extended bool) error {
	if err := lsu.regFile.WriteWord(RegZ, uint16(addr)); err != nil {
		return err
	}
	if extended && lsu.regFile.Has(RAMPZ) {
		return lsu.regFile.WriteSpecial(RAMPZ, uint8(addr>>16))
	}
	return nil
}

// LoadProgram reads a flash byte at Z (LPM) or RAMPZ:Z (ELPM) into rd and
// optionally increments the pointer.
func (lsu *LoadStoreUnit) LoadProgram(rd int64, extended, increment bool) error {
	addr, err := lsu.programPointer(extended)
	if err != nil {
		return err
	}
	v, err := lsu.memory.FlashByte(addr)
	if err != nil {
		return err
	}
	if err := lsu.regFile.WriteReg(rd, v); err != nil {
		return err
	}
	if increment {
		return lsu.advanceProgramPointer(addr+1, extended)
	}
	return nil
}

// StoreProgram writes r1:r0 to the flash word at RAMPZ:Z.
func (lsu *LoadStoreUnit) StoreProgram(increment bool) error {
	addr, err := lsu.programPointer(true)
	if err != nil {
		return err
	}
	word, err := lsu.regFile.ReadWord(0)
	if err != nil {
		return err
	}
	if err := lsu.memory.ProgramWord(addr/2, word); err != nil {
		return err
	}
	if increment {
		return lsu.advanceProgramPointer(addr+2, true)
	}
	return nil
}

// Exchange performs the read-modify-write instructions on (Z): XCH stores
// rd, LAS sets, LAC clears and LAT toggles the bits of rd. rd receives the
// old memory value.
func (lsu *LoadStoreUnit) Exchange(op insts.Op, rd int64) error {
	z, err := lsu.regFile.ReadWord(RegZ)
	if err != nil {
		return err
	}
	addr := uint32(z)
	old, err := lsu.memory.Data.Read(addr)
	if err != nil {
		return err
	}
	r, err := lsu.regFile.ReadReg(rd)
	if err != nil {
		return err
	}

	var v uint8
	switch op {
	case insts.OpXCH:
		v = r
	case insts.OpLAS:
		v = old | r
	case insts.OpLAC:
		v = old &^ r
	case insts.OpLAT:
		v = old ^ r
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, op)
	}

	if err := lsu.memory.Data.Write(addr, v); err != nil {
		return err
	}
	return lsu.regFile.WriteReg(rd, old)
}

// Package emu provides functional AVR emulation.
package emu

import (
	"fmt"

	"github.com/sarchlab/avrsim/device"
)

// SpecialReg names a CPU register that lives in the I/O space.
type SpecialReg int

// Special registers.
const (
	SREG SpecialReg = iota
	SPL
	SPH
	EIND
	RAMPX
	RAMPY
	RAMPZ
	RAMPD
	MCUCR
)

var specialNames = [...]string{"SREG", "SPL", "SPH", "EIND", "RAMPX", "RAMPY", "RAMPZ", "RAMPD", "MCUCR"}

func (s SpecialReg) String() string {
	if s >= 0 && int(s) < len(specialNames) {
		return specialNames[s]
	}
	return fmt.Sprintf("SpecialReg(%d)", int(s))
}

// Pointer register pairs.
const (
	RegX = 26
	RegY = 28
	RegZ = 30
)

// RegFile gives named access to the general purpose registers and the
// special registers of a device. All state lives in the data memory.
type RegFile struct {
	data   *DataMemory
	common device.CommonRegisters
}

// NewRegFile binds a register file view to a data memory. SREG and SPL
// must be present.
func NewRegFile(data *DataMemory, common device.CommonRegisters) (*RegFile, error) {
	r := &RegFile{data: data, common: common}
	for _, s := range []SpecialReg{SREG, SPL} {
		if !r.Has(s) {
			return nil, fmt.Errorf("%w: %s", ErrRegisterAbsent, s)
		}
	}
	return r, nil
}

// ReadReg reads general purpose register n.
func (r *RegFile) ReadReg(n int64) (uint8, error) {
	if n < 0 || n >= int64(len(r.data.Registers)) {
		return 0, fmt.Errorf("%w: r%d", ErrInvalidRegister, n)
	}
	return r.data.Registers[n], nil
}

// WriteReg writes general purpose register n.
func (r *RegFile) WriteReg(n int64, v uint8) error {
	if n < 0 || n >= int64(len(r.data.Registers)) {
		return fmt.Errorf("%w: r%d", ErrInvalidRegister, n)
	}
	return r.data.Write(uint32(n), v)
}

// ReadWord reads the register pair r(n+1):r(n).
func (r *RegFile) ReadWord(n int64) (uint16, error) {
	lo, err := r.ReadReg(n)
	if err != nil {
		return 0, err
	}
	hi, err := r.ReadReg(n + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// WriteWord writes the register pair r(n+1):r(n).
func (r *RegFile) WriteWord(n int64, v uint16) error {
	if err := r.WriteReg(n, uint8(v)); err != nil {
		return err
	}
	return r.WriteReg(n+1, uint8(v>>8))
}

func (r *RegFile) alias(s SpecialReg) device.Alias {
	switch s {
	case SREG:
		return r.common.SREG
	case SPL:
		return r.common.SPL
	case SPH:
		return r.common.SPH
	case EIND:
		return r.common.EIND
	case RAMPX:
		return r.common.RAMPX
	case RAMPY:
		return r.common.RAMPY
	case RAMPZ:
		return r.common.RAMPZ
	case RAMPD:
		return r.common.RAMPD
	case MCUCR:
		return r.common.MCUCR
	}
	return device.Alias{}
}

// Has reports whether the device implements a special register.
func (r *RegFile) Has(s SpecialReg) bool {
	return r.alias(s).Present
}

// Address returns the data address of a special register.
func (r *RegFile) Address(s SpecialReg) (uint32, error) {
	a := r.alias(s)
	if !a.Present {
		return 0, fmt.Errorf("%w: %s", ErrRegisterAbsent, s)
	}
	return a.Address, nil
}

// ReadSpecial reads a special register.
func (r *RegFile) ReadSpecial(s SpecialReg) (uint8, error) {
	addr, err := r.Address(s)
	if err != nil {
		return 0, err
	}
	return r.data.Read(addr)
}

// WriteSpecial writes a special register.
func (r *RegFile) WriteSpecial(s SpecialReg, v uint8) error {
	addr, err := r.Address(s)
	if err != nil {
		return err
	}
	return r.data.Write(addr, v)
}

// TryReadSpecial reads a special register, or 0 if the device lacks it.
func (r *RegFile) TryReadSpecial(s SpecialReg) uint8 {
	v, err := r.ReadSpecial(s)
	if err != nil {
		return 0
	}
	return v
}

// SREG returns the status register.
func (r *RegFile) SREG() uint8 {
	return r.TryReadSpecial(SREG)
}

// SetSREG writes the status register.
func (r *RegFile) SetSREG(v uint8) error {
	return r.WriteSpecial(SREG, v)
}

// Flag reads one status flag.
func (r *RegFile) Flag(f Flag) bool {
	return r.SREG()&uint8(f) != 0
}

// SetFlag writes one status flag.
func (r *RegFile) SetFlag(f Flag, set bool) error {
	return r.ApplyFlags(Flags{}.With(f, set))
}

// ApplyFlags merges a flag update into SREG.
func (r *RegFile) ApplyFlags(f Flags) error {
	if f.mask == 0 {
		return nil
	}
	return r.SetSREG(f.Apply(r.SREG()))
}

// SP returns the stack pointer. A device without SPH has an 8-bit SP.
func (r *RegFile) SP() uint32 {
	return uint32(r.TryReadSpecial(SPH))<<8 | uint32(r.TryReadSpecial(SPL))
}

// SetSP writes the stack pointer.
func (r *RegFile) SetSP(sp uint32) error {
	if err := r.WriteSpecial(SPL, uint8(sp)); err != nil {
		return err
	}
	if r.Has(SPH) {
		return r.WriteSpecial(SPH, uint8(sp>>8))
	}
	return nil
}

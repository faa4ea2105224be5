package emu

import (
	"fmt"

	"github.com/sarchlab/avrsim/device"
	"github.com/sarchlab/avrsim/insts"
)

// Region names a part of the data space.
type Region int

// Data space regions, in address order.
const (
	RegionRegisters Region = iota
	RegionIO
	RegionSRAM
)

func (r Region) String() string {
	switch r {
	case RegionRegisters:
		return "registers"
	case RegionIO:
		return "io"
	case RegionSRAM:
		return "sram"
	}
	return fmt.Sprintf("region(%d)", int(r))
}

type journalEntry struct {
	addr uint32
	old  uint8
}

// DataMemory is the unified data space: the register file, the
// memory-mapped I/O registers and SRAM, addressed contiguously in that
// order.
type DataMemory struct {
	Registers []byte
	IO        []byte
	RAM       []byte

	watch         map[uint32]bool
	writeObserved bool

	journaling   bool
	journal      []journalEntry
	observedMark bool
}

// NewDataMemory allocates a zeroed data space.
func NewDataMemory(registers, io, sram uint32) *DataMemory {
	return &DataMemory{
		Registers: make([]byte, registers),
		IO:        make([]byte, io),
		RAM:       make([]byte, sram),
	}
}

// Len returns the size of the data space.
func (m *DataMemory) Len() uint32 {
	return uint32(len(m.Registers) + len(m.IO) + len(m.RAM))
}

// Region maps a data address to its region and the offset within it.
func (m *DataMemory) Region(addr uint32) (Region, uint32, error) {
	regs := uint32(len(m.Registers))
	io := uint32(len(m.IO))
	switch {
	case addr < regs:
		return RegionRegisters, addr, nil
	case addr < regs+io:
		return RegionIO, addr - regs, nil
	case addr < m.Len():
		return RegionSRAM, addr - regs - io, nil
	}
	return 0, 0, fmt.Errorf("%w: data %#x (size %#x)", ErrInvalidAddress, addr, m.Len())
}

func (m *DataMemory) cell(addr uint32) (*byte, Region, error) {
	region, off, err := m.Region(addr)
	if err != nil {
		return nil, 0, err
	}
	switch region {
	case RegionRegisters:
		return &m.Registers[off], region, nil
	case RegionIO:
		return &m.IO[off], region, nil
	}
	return &m.RAM[off], region, nil
}

// Read returns the byte at a data address.
func (m *DataMemory) Read(addr uint32) (uint8, error) {
	p, _, err := m.cell(addr)
	if err != nil {
		return 0, err
	}
	return *p, nil
}

// Write stores a byte at a data address. A write to a watched I/O address
// raises the write-observed flag.
func (m *DataMemory) Write(addr uint32, v uint8) error {
	p, region, err := m.cell(addr)
	if err != nil {
		return err
	}
	if m.journaling {
		m.journal = append(m.journal, journalEntry{addr: addr, old: *p})
	}
	*p = v
	if region == RegionIO && m.watch[addr] {
		m.writeObserved = true
	}
	return nil
}

// SetWatchList replaces the watched I/O data addresses.
func (m *DataMemory) SetWatchList(addrs []uint32) {
	m.watch = make(map[uint32]bool, len(addrs))
	for _, a := range addrs {
		m.watch[a] = true
	}
}

// WatchList returns the watched addresses in no particular order.
func (m *DataMemory) WatchList() []uint32 {
	out := make([]uint32, 0, len(m.watch))
	for a := range m.watch {
		out = append(out, a)
	}
	return out
}

// WriteObserved reports whether a watched address was written since the
// last reset.
func (m *DataMemory) WriteObserved() bool {
	return m.writeObserved
}

// ResetWriteObserved clears the write-observed flag.
func (m *DataMemory) ResetWriteObserved() {
	m.writeObserved = false
}

// begin starts recording writes so that a failed step can be undone.
func (m *DataMemory) begin() {
	m.journaling = true
	m.journal = m.journal[:0]
	m.observedMark = m.writeObserved
}

func (m *DataMemory) commit() {
	m.journaling = false
	m.journal = m.journal[:0]
}

func (m *DataMemory) rollback() {
	for i := len(m.journal) - 1; i >= 0; i-- {
		e := m.journal[i]
		p, _, _ := m.cell(e.addr)
		*p = e.old
	}
	m.writeObserved = m.observedMark
	m.commit()
}

// Memory holds the flash, data and EEPROM memories of a device and the
// program counter.
type Memory struct {
	// Flash has one cell per program word. The second word of a two-word
	// instruction is a continuation cell.
	Flash  []*insts.Instruction
	Data   *DataMemory
	EEPROM []byte

	// PC is a word address into Flash.
	PC uint32
}

// NewMemory creates erased memories sized for a device layout.
func NewMemory(layout device.Layout) *Memory {
	m := &Memory{
		Flash:  make([]*insts.Instruction, layout.FlashWords),
		Data:   NewDataMemory(layout.Registers, layout.IO, layout.SRAM),
		EEPROM: make([]byte, layout.EEPROM),
	}
	m.EraseFlash()
	for i := range m.EEPROM {
		m.EEPROM[i] = 0xFF
	}
	return m
}

// EraseFlash fills the flash with empty cells.
func (m *Memory) EraseFlash() {
	for i := range m.Flash {
		m.Flash[i] = insts.Empty(uint32(i))
	}
}

// LoadFlash places decoded instructions at their addresses.
func (m *Memory) LoadFlash(program []*insts.Instruction) error {
	for _, inst := range program {
		n := inst.Len()
		if uint64(inst.Address)+uint64(n) > uint64(len(m.Flash)) {
			return fmt.Errorf("%w: %s at flash %#x (size %#x)",
				ErrInvalidAddress, inst, inst.Address, len(m.Flash))
		}
		m.Flash[inst.Address] = inst
		if n == 2 {
			m.Flash[inst.Address+1] = insts.Continuation(uint16(inst.Raw), inst.Address+1)
		}
	}
	return nil
}

// Fetch returns the instruction at a word address.
func (m *Memory) Fetch(addr uint32) (*insts.Instruction, error) {
	if addr >= uint32(len(m.Flash)) {
		return nil, fmt.Errorf("%w: flash %#x (size %#x)", ErrInvalidAddress, addr, len(m.Flash))
	}
	return m.Flash[addr], nil
}

// FlashWord returns the raw program word at a word address.
func (m *Memory) FlashWord(addr uint32) (uint16, error) {
	inst, err := m.Fetch(addr)
	if err != nil {
		return 0, err
	}
	if inst.Len() == 2 {
		return uint16(inst.Raw >> 16), nil
	}
	return uint16(inst.Raw), nil
}

// FlashByte returns a program byte. The low byte of a word sits at the
// even address.
func (m *Memory) FlashByte(byteAddr uint32) (uint8, error) {
	w, err := m.FlashWord(byteAddr / 2)
	if err != nil {
		return 0, err
	}
	if byteAddr%2 == 1 {
		return uint8(w >> 8), nil
	}
	return uint8(w), nil
}

// ProgramWord replaces a program word and re-decodes the instructions it
// belongs to. Words that decode to nothing become data words.
func (m *Memory) ProgramWord(addr uint32, word uint16) error {
	size := uint32(len(m.Flash))
	if addr >= size {
		return fmt.Errorf("%w: flash %#x (size %#x)", ErrInvalidAddress, addr, size)
	}

	start := addr
	if start > 0 && m.Flash[start].ID == insts.IDContinuation {
		start--
	}
	end := addr + 2
	if end > size {
		end = size
	}

	words := make([]uint16, 0, end-start)
	for a := start; a < end; a++ {
		w, _ := m.FlashWord(a)
		if a == addr {
			w = word
		}
		words = append(words, w)
	}

	decoder := insts.NewDecoder(insts.WithLenientDecoding())
	i := uint32(0)
	for start+i <= addr {
		inst, n, err := decoder.DecodeWords(words[i:], start+i)
		if err != nil {
			return err
		}
		if n == 0 {
			inst, n = insts.DataWord(words[i], start+i), 1
		}
		m.Flash[start+i] = inst
		if n == 2 {
			m.Flash[start+i+1] = insts.Continuation(words[i+1], start+i+1)
		}
		i += uint32(n)
	}

	// A continuation left behind by a two-word instruction that no longer
	// exists becomes an instruction of its own.
	next := start + i
	if next < size && m.Flash[next].ID == insts.IDContinuation &&
		m.Flash[next-1].Len() != 2 {
		w := uint16(m.Flash[next].Raw)
		inst, n, err := decoder.DecodeWords([]uint16{w}, next)
		if err != nil {
			return err
		}
		if n == 0 {
			inst = insts.DataWord(w, next)
		}
		m.Flash[next] = inst
	}
	return nil
}

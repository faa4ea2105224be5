package emu

import (
	"fmt"
	"strings"

	"github.com/sarchlab/avrsim/device"
	"github.com/sarchlab/avrsim/insts"
	"github.com/sarchlab/avrsim/timing/latency"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true if a BREAK instruction stopped execution.
	Halted bool

	// Cycles is the number of clock cycles the instruction took.
	Cycles uint64

	// Err is set if an error occurred during execution. The state is
	// unchanged by a failed step.
	Err error
}

// outcome is what executing one instruction decided beyond its register
// and memory writes.
type outcome struct {
	halted bool
	// jumped means the PC was set by the instruction.
	jumped bool
	timing latency.Outcome
}

// Emulator executes AVR instructions functionally.
type Emulator struct {
	device  *device.DeviceFile
	regFile *RegFile
	memory  *Memory
	latency *latency.Table

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// Execution state
	instructionCount uint64
	cycleCount       uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithLatencyTable sets the table used to count cycles.
func WithLatencyTable(t *latency.Table) EmulatorOption {
	return func(e *Emulator) {
		e.latency = t
	}
}

// NewEmulator creates an emulator for a device with erased flash and the
// stack pointer at the end of the data space.
func NewEmulator(dev *device.DeviceFile, opts ...EmulatorOption) (*Emulator, error) {
	common, err := dev.CommonRegisters()
	if err != nil {
		return nil, err
	}

	memory := NewMemory(dev.Layout())
	regFile, err := NewRegFile(memory.Data, common)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dev.Name, err)
	}

	e := &Emulator{
		device:  dev,
		regFile: regFile,
		memory:  memory,
		alu:     NewALU(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.latency == nil {
		core, err := latency.ParseCore(dev.Core)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dev.Name, err)
		}
		e.latency = latency.NewTable(core, dev.PCBytes())
	}

	e.lsu = NewLoadStoreUnit(regFile, memory)
	e.branchUnit = NewBranchUnit(regFile, memory, dev.PCBytes())

	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// Device returns the emulated device.
func (e *Emulator) Device() *device.DeviceFile {
	return e.device
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// BranchUnit returns the unit that owns the stack.
func (e *Emulator) BranchUnit() *BranchUnit {
	return e.branchUnit
}

// LatencyTable returns the table used to count cycles.
func (e *Emulator) LatencyTable() *latency.Table {
	return e.latency
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// CycleCount returns the number of clock cycles executed.
func (e *Emulator) CycleCount() uint64 {
	return e.cycleCount
}

// PC returns the program counter as a word address.
func (e *Emulator) PC() uint32 {
	return e.memory.PC
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint32) {
	e.memory.PC = pc
}

// LoadProgram erases the flash, places the instructions and resets the
// CPU.
func (e *Emulator) LoadProgram(program []*insts.Instruction) error {
	e.memory.EraseFlash()
	if err := e.memory.LoadFlash(program); err != nil {
		return err
	}
	return e.Reset()
}

// LoadEEPROM copies an image to the start of the EEPROM.
func (e *Emulator) LoadEEPROM(image []byte) error {
	if len(image) > len(e.memory.EEPROM) {
		return fmt.Errorf("%w: EEPROM image of %d bytes (size %d)",
			ErrInvalidAddress, len(image), len(e.memory.EEPROM))
	}
	copy(e.memory.EEPROM, image)
	return nil
}

// Reset clears the data space and the counters, sets SP to the last data
// address and the PC to 0. Flash and EEPROM are kept.
func (e *Emulator) Reset() error {
	data := e.memory.Data
	for _, region := range [][]byte{data.Registers, data.IO, data.RAM} {
		for i := range region {
			region[i] = 0
		}
	}
	data.ResetWriteObserved()

	e.memory.PC = 0
	e.instructionCount = 0
	e.cycleCount = 0
	return e.regFile.SetSP(data.Len() - 1)
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.memory.PC
	inst, err := e.memory.Fetch(pc)
	if err != nil {
		return StepResult{Err: err}
	}
	Trace("step", "pc", pc, "inst", inst)

	data := e.memory.Data
	data.begin()
	out, err := e.execute(inst)
	if err != nil {
		data.rollback()
		e.memory.PC = pc
		return StepResult{Err: fmt.Errorf("pc %#x: %s: %w", pc, inst, err)}
	}
	data.commit()

	if !out.jumped {
		e.memory.PC = pc + inst.Len()
	}

	cycles, err := e.latency.Cycles(inst, out.timing)
	if err != nil {
		Trace("no latency", "pc", pc, "inst", inst, "err", err)
		cycles = 1
	}

	e.instructionCount++
	e.cycleCount += cycles
	return StepResult{Halted: out.halted, Cycles: cycles}
}

// Run executes until a BREAK, an error or the instruction limit.
func (e *Emulator) Run() error {
	for {
		r := e.Step()
		if r.Err != nil {
			return r.Err
		}
		if r.Halted {
			return nil
		}
	}
}

func (e *Emulator) execute(inst *insts.Instruction) (outcome, error) {
	op := inst.Op()
	if op == insts.OpCustom {
		def, _ := inst.Def()
		return outcome{}, fmt.Errorf("%w: %s", ErrNotExecutable, def.Name)
	}
	if diags := inst.Diagnostics(); len(diags) > 0 {
		return outcome{}, fmt.Errorf("%w: %s", ErrInvalidOperand, strings.Join(diags, "; "))
	}

	switch {
	case op.IsBranch():
		return e.executeBranchCond(inst)
	case op.IsSkip():
		return e.executeSkip(inst)
	}

	switch op {
	case insts.OpADD, insts.OpADC, insts.OpSUB, insts.OpSBC,
		insts.OpAND, insts.OpOR, insts.OpEOR, insts.OpCP, insts.OpCPC,
		insts.OpMOV:
		return outcome{}, e.executeRegReg(inst)
	case insts.OpLSL, insts.OpROL, insts.OpCLR, insts.OpTST:
		return outcome{}, e.executeRegSelf(inst)
	case insts.OpSUBI, insts.OpSBCI, insts.OpANDI, insts.OpORI, insts.OpSBR,
		insts.OpCBR, insts.OpCPI, insts.OpLDI, insts.OpSER:
		return outcome{}, e.executeImmediate(inst)
	case insts.OpCOM, insts.OpNEG, insts.OpINC, insts.OpDEC,
		insts.OpASR, insts.OpLSR, insts.OpROR, insts.OpSWAP:
		return outcome{}, e.executeUnary(inst)
	case insts.OpADIW, insts.OpSBIW:
		return outcome{}, e.executeWord(inst)
	case insts.OpMOVW:
		return outcome{}, e.executeMovw(inst)
	case insts.OpMUL, insts.OpMULS, insts.OpMULSU,
		insts.OpFMUL, insts.OpFMULS, insts.OpFMULSU:
		return outcome{}, e.executeMultiply(inst)
	case insts.OpBSET, insts.OpBCLR, insts.OpSEC, insts.OpCLC, insts.OpSEZ,
		insts.OpCLZ, insts.OpSEN, insts.OpCLN, insts.OpSEV, insts.OpCLV,
		insts.OpSES, insts.OpCLS, insts.OpSEH, insts.OpCLH, insts.OpSET,
		insts.OpCLT, insts.OpSEI, insts.OpCLI:
		return outcome{}, e.executeFlag(inst)
	case insts.OpBLD, insts.OpBST:
		return outcome{}, e.executeBitTransfer(inst)
	case insts.OpRJMP, insts.OpJMP, insts.OpIJMP, insts.OpEIJMP,
		insts.OpRCALL, insts.OpCALL, insts.OpICALL, insts.OpEICALL,
		insts.OpRET, insts.OpRETI:
		return e.executeControl(inst)
	case insts.OpLD, insts.OpST, insts.OpLDD, insts.OpSTD, insts.OpLDS,
		insts.OpSTS, insts.OpPUSH, insts.OpPOP:
		return outcome{}, e.executeLoadStore(inst)
	case insts.OpLPM, insts.OpELPM, insts.OpSPM:
		return outcome{}, e.executeProgramMemory(inst)
	case insts.OpXCH, insts.OpLAS, insts.OpLAC, insts.OpLAT:
		return outcome{}, e.lsu.Exchange(op, inst.Operand(1))
	case insts.OpIN:
		return outcome{}, e.lsu.In(inst.Operand(0), inst.Operand(1))
	case insts.OpOUT:
		return outcome{}, e.lsu.Out(inst.Operand(0), inst.Operand(1))
	case insts.OpCBI, insts.OpSBI:
		return outcome{}, e.lsu.SetIOBit(inst.Operand(0), inst.Operand(1), op == insts.OpSBI)
	case insts.OpNOP, insts.OpSLEEP, insts.OpWDR:
		return outcome{}, nil
	case insts.OpBREAK:
		return outcome{halted: true}, nil
	}
	return outcome{}, fmt.Errorf("%w: %s", ErrUnsupportedInstruction, op)
}

// compareResult only updates flags.
func (e *Emulator) compareResult(_ uint8, f Flags, err error) error {
	if err != nil {
		return err
	}
	return e.regFile.ApplyFlags(f)
}

func (e *Emulator) executeRegReg(inst *insts.Instruction) error {
	rd := inst.Operand(0)
	ra, err := e.regFile.ReadReg(rd)
	if err != nil {
		return err
	}
	rb, err := e.regFile.ReadReg(inst.Operand(1))
	if err != nil {
		return err
	}
	rf := e.regFile

	switch inst.Op() {
	case insts.OpADD:
		return e.writeALU(rd, wrap(e.alu.Add(ra, rb, false)))
	case insts.OpADC:
		return e.writeALU(rd, wrap(e.alu.Add(ra, rb, rf.Flag(FlagC))))
	case insts.OpSUB:
		return e.writeALU(rd, wrap(e.alu.Sub(ra, rb)))
	case insts.OpSBC:
		return e.writeALU(rd, wrap(e.alu.SubCarry(ra, rb, rf.Flag(FlagC), rf.Flag(FlagZ))))
	case insts.OpAND:
		return e.writeALU(rd, wrap(e.alu.And(ra, rb)))
	case insts.OpOR:
		return e.writeALU(rd, wrap(e.alu.Or(ra, rb)))
	case insts.OpEOR:
		return e.writeALU(rd, wrap(e.alu.Eor(ra, rb)))
	case insts.OpCP:
		return e.compareResult(e.alu.Sub(ra, rb))
	case insts.OpCPC:
		return e.compareResult(e.alu.SubCarry(ra, rb, rf.Flag(FlagC), rf.Flag(FlagZ)))
	case insts.OpMOV:
		return rf.WriteReg(rd, rb)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op())
}

// aluResult bundles the three ALU return values so they can be passed on
// together.
type aluResult struct {
	res uint8
	f   Flags
	err error
}

func wrap(res uint8, f Flags, err error) aluResult {
	return aluResult{res: res, f: f, err: err}
}

// writeALU stores an ALU result and its flags.
func (e *Emulator) writeALU(rd int64, r aluResult) error {
	if r.err != nil {
		return r.err
	}
	if err := e.regFile.WriteReg(rd, r.res); err != nil {
		return err
	}
	return e.regFile.ApplyFlags(r.f)
}

// executeRegSelf runs the aliases that use one register as both operands.
func (e *Emulator) executeRegSelf(inst *insts.Instruction) error {
	rd := inst.Operand(0)
	v, err := e.regFile.ReadReg(rd)
	if err != nil {
		return err
	}

	switch inst.Op() {
	case insts.OpLSL:
		return e.writeALU(rd, wrap(e.alu.Add(v, v, false)))
	case insts.OpROL:
		return e.writeALU(rd, wrap(e.alu.Add(v, v, e.regFile.Flag(FlagC))))
	case insts.OpCLR:
		return e.writeALU(rd, wrap(e.alu.Eor(v, v)))
	case insts.OpTST:
		return e.writeALU(rd, wrap(e.alu.And(v, v)))
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op())
}

func (e *Emulator) executeImmediate(inst *insts.Instruction) error {
	rd := inst.Operand(0)
	k := uint8(inst.Operand(1))
	rf := e.regFile

	switch inst.Op() {
	case insts.OpLDI:
		return rf.WriteReg(rd, k)
	case insts.OpSER:
		return rf.WriteReg(rd, 0xFF)
	}

	v, err := rf.ReadReg(rd)
	if err != nil {
		return err
	}

	switch inst.Op() {
	case insts.OpSUBI:
		return e.writeALU(rd, wrap(e.alu.Sub(v, k)))
	case insts.OpSBCI:
		return e.writeALU(rd, wrap(e.alu.SubCarry(v, k, rf.Flag(FlagC), rf.Flag(FlagZ))))
	case insts.OpANDI:
		return e.writeALU(rd, wrap(e.alu.And(v, k)))
	case insts.OpORI, insts.OpSBR:
		return e.writeALU(rd, wrap(e.alu.Or(v, k)))
	case insts.OpCBR:
		return e.writeALU(rd, wrap(e.alu.And(v, ^k)))
	case insts.OpCPI:
		return e.compareResult(e.alu.Sub(v, k))
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op())
}

func (e *Emulator) executeUnary(inst *insts.Instruction) error {
	rd := inst.Operand(0)
	v, err := e.regFile.ReadReg(rd)
	if err != nil {
		return err
	}

	switch inst.Op() {
	case insts.OpCOM:
		return e.writeALU(rd, wrap(e.alu.Com(v)))
	case insts.OpNEG:
		return e.writeALU(rd, wrap(e.alu.Neg(v)))
	case insts.OpINC:
		return e.writeALU(rd, wrap(e.alu.Inc(v)))
	case insts.OpDEC:
		return e.writeALU(rd, wrap(e.alu.Dec(v)))
	case insts.OpASR:
		return e.writeALU(rd, wrap(e.alu.Asr(v)))
	case insts.OpLSR:
		return e.writeALU(rd, wrap(e.alu.Lsr(v)))
	case insts.OpROR:
		return e.writeALU(rd, wrap(e.alu.Ror(v, e.regFile.Flag(FlagC))))
	case insts.OpSWAP:
		return e.regFile.WriteReg(rd, e.alu.Swap(v))
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op())
}

func (e *Emulator) executeWord(inst *insts.Instruction) error {
	rd := inst.Operand(0)
	k := uint8(inst.Operand(1))
	v, err := e.regFile.ReadWord(rd)
	if err != nil {
		return err
	}

	var (
		res uint16
		f   Flags
	)
	if inst.Op() == insts.OpADIW {
		res, f, err = e.alu.AddWord(v, k)
	} else {
		res, f, err = e.alu.SubWord(v, k)
	}
	if err != nil {
		return err
	}
	if err := e.regFile.WriteWord(rd, res); err != nil {
		return err
	}
	return e.regFile.ApplyFlags(f)
}

func (e *Emulator) executeMovw(inst *insts.Instruction) error {
	v, err := e.regFile.ReadWord(inst.Operand(1))
	if err != nil {
		return err
	}
	return e.regFile.WriteWord(inst.Operand(0), v)
}

func (e *Emulator) executeMultiply(inst *insts.Instruction) error {
	ra, err := e.regFile.ReadReg(inst.Operand(0))
	if err != nil {
		return err
	}
	rb, err := e.regFile.ReadReg(inst.Operand(1))
	if err != nil {
		return err
	}

	kind, fractional := MulUnsigned, false
	switch inst.Op() {
	case insts.OpMULS:
		kind = MulSigned
	case insts.OpMULSU:
		kind = MulSignedUnsigned
	case insts.OpFMUL:
		fractional = true
	case insts.OpFMULS:
		kind, fractional = MulSigned, true
	case insts.OpFMULSU:
		kind, fractional = MulSignedUnsigned, true
	}

	res, f, err := e.alu.Mul(ra, rb, kind, fractional)
	if err != nil {
		return err
	}
	if err := e.regFile.WriteWord(0, res); err != nil {
		return err
	}
	return e.regFile.ApplyFlags(f)
}

var flagOps = map[insts.Op]struct {
	flag Flag
	set  bool
}{
	insts.OpSEC: {FlagC, true}, insts.OpCLC: {FlagC, false},
	insts.OpSEZ: {FlagZ, true}, insts.OpCLZ: {FlagZ, false},
	insts.OpSEN: {FlagN, true}, insts.OpCLN: {FlagN, false},
	insts.OpSEV: {FlagV, true}, insts.OpCLV: {FlagV, false},
	insts.OpSES: {FlagS, true}, insts.OpCLS: {FlagS, false},
	insts.OpSEH: {FlagH, true}, insts.OpCLH: {FlagH, false},
	insts.OpSET: {FlagT, true}, insts.OpCLT: {FlagT, false},
	insts.OpSEI: {FlagI, true}, insts.OpCLI: {FlagI, false},
}

func (e *Emulator) executeFlag(inst *insts.Instruction) error {
	switch op := inst.Op(); op {
	case insts.OpBSET, insts.OpBCLR:
		return e.regFile.SetFlag(Flag(1)<<inst.Operand(0), op == insts.OpBSET)
	default:
		f := flagOps[op]
		return e.regFile.SetFlag(f.flag, f.set)
	}
}

func (e *Emulator) executeBitTransfer(inst *insts.Instruction) error {
	rd := inst.Operand(0)
	mask := uint8(1) << inst.Operand(1)
	v, err := e.regFile.ReadReg(rd)
	if err != nil {
		return err
	}

	if inst.Op() == insts.OpBST {
		return e.regFile.SetFlag(FlagT, v&mask != 0)
	}
	if e.regFile.Flag(FlagT) {
		v |= mask
	} else {
		v &^= mask
	}
	return e.regFile.WriteReg(rd, v)
}

func (e *Emulator) executeBranchCond(inst *insts.Instruction) (outcome, error) {
	taken, err := e.branchUnit.CheckCondition(inst)
	if err != nil {
		return outcome{}, err
	}
	out := outcome{timing: latency.Outcome{Taken: taken}}
	if !taken {
		return out, nil
	}

	offset := inst.Operand(len(inst.Operands) - 1)
	out.jumped = true
	return out, e.branchUnit.Jump(e.branchUnit.RelativeTarget(inst.Address, offset))
}

// executeSkip evaluates a skip condition and jumps over the next
// instruction, one or two words long, when it holds.
func (e *Emulator) executeSkip(inst *insts.Instruction) (outcome, error) {
	var (
		skip bool
		err  error
	)
	switch inst.Op() {
	case insts.OpCPSE:
		var a, b uint8
		if a, err = e.regFile.ReadReg(inst.Operand(0)); err != nil {
			return outcome{}, err
		}
		if b, err = e.regFile.ReadReg(inst.Operand(1)); err != nil {
			return outcome{}, err
		}
		skip = a == b
	case insts.OpSBRC, insts.OpSBRS:
		var v uint8
		if v, err = e.regFile.ReadReg(inst.Operand(0)); err != nil {
			return outcome{}, err
		}
		set := v&(1<<inst.Operand(1)) != 0
		skip = set == (inst.Op() == insts.OpSBRS)
	case insts.OpSBIC, insts.OpSBIS:
		var set bool
		if set, err = e.lsu.IOBit(inst.Operand(0), inst.Operand(1)); err != nil {
			return outcome{}, err
		}
		skip = set == (inst.Op() == insts.OpSBIS)
	}

	if !skip {
		return outcome{}, nil
	}

	next := inst.Address + inst.Len()
	words := uint32(1)
	if n, err := e.memory.Fetch(next); err == nil {
		words = n.Len()
	}
	e.memory.PC = next + words
	return outcome{jumped: true, timing: latency.Outcome{SkippedWords: words}}, nil
}

func (e *Emulator) executeControl(inst *insts.Instruction) (outcome, error) {
	bu := e.branchUnit
	pc := inst.Address
	ret := pc + inst.Len()
	out := outcome{jumped: true}

	switch inst.Op() {
	case insts.OpRJMP:
		return out, bu.Jump(bu.RelativeTarget(pc, inst.Operand(0)))
	case insts.OpRCALL:
		return out, bu.Call(bu.RelativeTarget(pc, inst.Operand(0)), ret)
	case insts.OpJMP:
		return out, bu.Jump(uint32(inst.Operand(0) / 2))
	case insts.OpCALL:
		return out, bu.Call(uint32(inst.Operand(0)/2), ret)
	case insts.OpIJMP, insts.OpEIJMP:
		target, err := bu.IndirectTarget(inst.Op() == insts.OpEIJMP)
		if err != nil {
			return out, err
		}
		return out, bu.Jump(target)
	case insts.OpICALL, insts.OpEICALL:
		target, err := bu.IndirectTarget(inst.Op() == insts.OpEICALL)
		if err != nil {
			return out, err
		}
		return out, bu.Call(target, ret)
	case insts.OpRET:
		return out, bu.Return()
	case insts.OpRETI:
		if err := bu.Return(); err != nil {
			return out, err
		}
		return out, e.regFile.SetFlag(FlagI, true)
	}
	return out, fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op())
}

func (e *Emulator) executeLoadStore(inst *insts.Instruction) error {
	lsu := e.lsu

	switch inst.Op() {
	case insts.OpLD:
		addr, err := lsu.Indirect(inst.Operand(1), inst.Operand(2))
		if err != nil {
			return err
		}
		return lsu.Load(inst.Operand(0), addr)
	case insts.OpST:
		addr, err := lsu.Indirect(inst.Operand(0), inst.Operand(1))
		if err != nil {
			return err
		}
		return lsu.Store(addr, inst.Operand(2))
	case insts.OpLDD:
		addr, err := lsu.Displaced(inst.Operand(1), inst.Operand(2))
		if err != nil {
			return err
		}
		return lsu.Load(inst.Operand(0), addr)
	case insts.OpSTD:
		addr, err := lsu.Displaced(inst.Operand(0), inst.Operand(1))
		if err != nil {
			return err
		}
		return lsu.Store(addr, inst.Operand(2))
	case insts.OpLDS:
		return lsu.Load(inst.Operand(0), uint32(inst.Operand(1)))
	case insts.OpSTS:
		return lsu.Store(uint32(inst.Operand(0)), inst.Operand(1))
	case insts.OpPUSH:
		v, err := e.regFile.ReadReg(inst.Operand(0))
		if err != nil {
			return err
		}
		return e.branchUnit.Push(v)
	case insts.OpPOP:
		v, err := e.branchUnit.Pop()
		if err != nil {
			return err
		}
		return e.regFile.WriteReg(inst.Operand(0), v)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, inst.Op())
}

// executeProgramMemory runs LPM, ELPM and SPM. The operand-less forms
// use r0 and Z.
func (e *Emulator) executeProgramMemory(inst *insts.Instruction) error {
	op := inst.Op()
	if op == insts.OpSPM {
		increment := len(inst.Operands) == 1 && inst.Operand(0) == 1
		return e.lsu.StoreProgram(increment)
	}

	extended := op == insts.OpELPM
	if extended && !e.regFile.Has(RAMPZ) {
		return fmt.Errorf("%w: ELPM without RAMPZ", ErrUnsupportedInstruction)
	}
	if len(inst.Operands) == 0 {
		return e.lsu.LoadProgram(0, extended, false)
	}
	return e.lsu.LoadProgram(inst.Operand(0), extended, inst.Operand(1) == 1)
}

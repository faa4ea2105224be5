package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/insts"
)

var _ = Describe("Emulator", func() {
	var (
		e  *emu.Emulator
		rf *emu.RegFile
	)

	load := func(lines ...string) {
		ExpectWithOffset(1, e.LoadProgram(assemble(lines...))).To(Succeed())
	}

	setReg := func(n int64, v uint8) {
		ExpectWithOffset(1, rf.WriteReg(n, v)).To(Succeed())
	}

	reg := func(n int64) uint8 {
		v, err := rf.ReadReg(n)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return v
	}

	step := func() emu.StepResult {
		r := e.Step()
		ExpectWithOffset(1, r.Err).NotTo(HaveOccurred())
		return r
	}

	BeforeEach(func() {
		e = newEmulator("ATmega328P")
		rf = e.RegFile()
	})

	Describe("NewEmulator", func() {
		It("should start with SP at the end of the data space", func() {
			Expect(rf.SP()).To(Equal(uint32(0x8FF)))
			Expect(e.PC()).To(Equal(uint32(0)))
			Expect(rf.SREG()).To(Equal(uint8(0)))
		})

		It("should erase flash and EEPROM", func() {
			Expect(e.Memory().Flash[0].ID).To(Equal(insts.IDEmpty))
			Expect(e.Memory().EEPROM[0]).To(Equal(uint8(0xFF)))
		})

		It("should refuse to execute an empty cell", func() {
			r := e.Step()
			Expect(r.Err).To(MatchError(emu.ErrNotExecutable))
			Expect(e.InstructionCount()).To(BeZero())
		})
	})

	Describe("arithmetic", func() {
		It("should add two registers", func() {
			load("add r0, r1")
			setReg(0, 10)
			setReg(1, 20)

			r := step()

			Expect(reg(0)).To(Equal(uint8(30)))
			Expect(rf.Flag(emu.FlagC)).To(BeFalse())
			Expect(rf.Flag(emu.FlagZ)).To(BeFalse())
			Expect(rf.Flag(emu.FlagN)).To(BeFalse())
			Expect(r.Cycles).To(Equal(uint64(1)))
			Expect(e.PC()).To(Equal(uint32(1)))
		})

		It("should add an immediate to a register pair", func() {
			load("adiw r24, 10")
			setReg(24, 0xFE)
			setReg(25, 0x40)

			r := step()

			w, err := rf.ReadWord(24)
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(Equal(uint16(0x4108)))
			Expect(reg(24)).To(Equal(uint8(0x08)))
			Expect(reg(25)).To(Equal(uint8(0x41)))
			Expect(r.Cycles).To(Equal(uint64(2)))
		})

		It("should chain a 16-bit add through the carry", func() {
			load("add r24, r26", "adc r25, r27")
			setReg(24, 0xF0)
			setReg(25, 0x01)
			setReg(26, 0x20)
			setReg(27, 0x02)

			step()
			Expect(rf.Flag(emu.FlagC)).To(BeTrue())
			step()

			w, _ := rf.ReadWord(24)
			Expect(w).To(Equal(uint16(0x0410)))
			Expect(rf.Flag(emu.FlagC)).To(BeFalse())
		})

		It("should keep Z across a multi-byte compare", func() {
			load("cp r16, r18", "cpc r17, r19")
			setReg(16, 0x00)
			setReg(17, 0x12)
			setReg(18, 0x01)
			setReg(19, 0x11)

			step()
			step()

			Expect(rf.Flag(emu.FlagZ)).To(BeFalse())
			Expect(reg(16)).To(Equal(uint8(0x00)))
		})

		It("should subtract with the immediate forms", func() {
			load("ldi r16, 0x10", "subi r16, 0x11", "sbci r17, 0")
			step()
			step()
			Expect(reg(16)).To(Equal(uint8(0xFF)))
			Expect(rf.Flag(emu.FlagC)).To(BeTrue())
			Expect(rf.Flag(emu.FlagN)).To(BeTrue())

			step()
			Expect(reg(17)).To(Equal(uint8(0xFF)))
		})

		It("should run the register aliases", func() {
			load("ser r16", "lsl r16", "rol r17", "tst r17", "clr r16")

			step()
			Expect(reg(16)).To(Equal(uint8(0xFF)))
			step()
			Expect(reg(16)).To(Equal(uint8(0xFE)))
			Expect(rf.Flag(emu.FlagC)).To(BeTrue())
			step()
			Expect(reg(17)).To(Equal(uint8(0x01)))
			step()
			Expect(rf.Flag(emu.FlagZ)).To(BeFalse())
			step()
			Expect(reg(16)).To(BeZero())
			Expect(rf.Flag(emu.FlagZ)).To(BeTrue())
		})

		It("should clear bits with cbr", func() {
			load("cbr r16, 0x0f")
			setReg(16, 0xAB)
			step()
			Expect(reg(16)).To(Equal(uint8(0xA0)))
		})

		It("should multiply into r1:r0", func() {
			load("mul r16, r17", "muls r18, r19")
			setReg(16, 200)
			setReg(17, 3)
			setReg(18, 0xFF)
			setReg(19, 2)

			r := step()
			w, _ := rf.ReadWord(0)
			Expect(w).To(Equal(uint16(600)))
			Expect(r.Cycles).To(Equal(uint64(2)))

			step()
			w, _ = rf.ReadWord(0)
			Expect(w).To(Equal(uint16(0xFFFE)))
			Expect(rf.Flag(emu.FlagC)).To(BeTrue())
		})

		It("should copy register pairs and swap nibbles", func() {
			load("movw r2, r30", "swap r2", "mov r4, r3")
			setReg(30, 0x12)
			setReg(31, 0x34)

			step()
			step()
			step()
			Expect(reg(2)).To(Equal(uint8(0x21)))
			Expect(reg(3)).To(Equal(uint8(0x34)))
			Expect(reg(4)).To(Equal(uint8(0x34)))
		})
	})

	Describe("status flags", func() {
		It("should set and clear SREG bits", func() {
			load("sec", "bset 6", "set", "clc", "bclr 6")
			step()
			Expect(rf.Flag(emu.FlagC)).To(BeTrue())
			step()
			step()
			Expect(rf.Flag(emu.FlagT)).To(BeTrue())
			step()
			Expect(rf.Flag(emu.FlagC)).To(BeFalse())
			step()
			Expect(rf.SREG()).To(BeZero())
		})

		It("should move bits through T", func() {
			load("bst r16, 3", "bld r17, 7")
			setReg(16, 0x08)
			step()
			step()
			Expect(reg(17)).To(Equal(uint8(0x80)))
		})
	})

	Describe("control flow", func() {
		It("should skip a one-word instruction when CPSE matches", func() {
			load("cpse r16, r17", "nop", "nop")
			setReg(16, 5)
			setReg(17, 5)

			r := step()

			Expect(e.PC()).To(Equal(uint32(2)))
			Expect(r.Cycles).To(Equal(uint64(2)))
		})

		It("should not skip when CPSE does not match", func() {
			load("cpse r16, r17", "nop")
			setReg(16, 5)
			setReg(17, 6)

			r := step()

			Expect(e.PC()).To(Equal(uint32(1)))
			Expect(r.Cycles).To(Equal(uint64(1)))
		})

		It("should skip both words of a two-word instruction", func() {
			load("sbrs r16, 0", "jmp 0x100", "nop")
			setReg(16, 1)

			r := step()

			Expect(e.PC()).To(Equal(uint32(3)))
			Expect(r.Cycles).To(Equal(uint64(3)))
		})

		It("should skip on an I/O bit", func() {
			load("sbi 0x05, 2", "sbic 0x05, 2", "nop", "sbis 0x05, 2", "nop", "nop")
			step()
			Expect(e.Memory().Data.Read(0x25)).To(Equal(uint8(0x04)))
			step()
			Expect(e.PC()).To(Equal(uint32(2)))
			step()
			step()
			Expect(e.PC()).To(Equal(uint32(5)))
		})

		It("should call and return", func() {
			prog := assembleAt(0x10, "call 0x200")
			prog = append(prog, assembleAt(0x100, "ret")...)
			Expect(e.LoadProgram(prog)).To(Succeed())
			e.SetPC(0x10)
			sp := rf.SP()

			r := step()

			Expect(e.PC()).To(Equal(uint32(0x100)))
			Expect(rf.SP()).To(Equal(sp - 2))
			Expect(e.Memory().Data.Read(sp)).To(Equal(uint8(0x12)))
			Expect(e.Memory().Data.Read(sp - 1)).To(Equal(uint8(0x00)))
			Expect(r.Cycles).To(Equal(uint64(4)))

			step()

			Expect(e.PC()).To(Equal(uint32(0x12)))
			Expect(rf.SP()).To(Equal(sp))
		})

		It("should push a three-byte return address on large devices", func() {
			e = newEmulator("ATmega2560")
			rf = e.RegFile()
			prog := assembleAt(0x10, "rcall .+8")
			prog = append(prog, assembleAt(0x15, "reti")...)
			Expect(e.LoadProgram(prog)).To(Succeed())
			e.SetPC(0x10)
			sp := rf.SP()

			r := step()
			Expect(e.PC()).To(Equal(uint32(0x15)))
			Expect(rf.SP()).To(Equal(sp - 3))
			Expect(r.Cycles).To(Equal(uint64(4)))

			step()
			Expect(e.PC()).To(Equal(uint32(0x11)))
			Expect(rf.SP()).To(Equal(sp))
			Expect(rf.Flag(emu.FlagI)).To(BeTrue())
		})

		It("should jump through Z", func() {
			load("ldi r30, 4", "ldi r31, 0", "ijmp")
			step()
			step()
			step()
			Expect(e.PC()).To(Equal(uint32(4)))
		})

		It("should time taken and untaken branches", func() {
			load("sez", "breq .+2", "nop", "brne .+2")
			step()

			r := step()
			Expect(r.Cycles).To(Equal(uint64(2)))
			Expect(e.PC()).To(Equal(uint32(3)))

			r = step()
			Expect(r.Cycles).To(Equal(uint64(1)))
			Expect(e.PC()).To(Equal(uint32(4)))
		})

		It("should run a loop until BREAK", func() {
			load("ldi r16, 3", "dec r16", "brne .-4", "break")

			Expect(e.Run()).To(Succeed())

			Expect(reg(16)).To(BeZero())
			Expect(e.InstructionCount()).To(Equal(uint64(8)))
			Expect(e.PC()).To(Equal(uint32(4)))
		})

		It("should report BREAK as a halt, not an error", func() {
			load("break")
			r := e.Step()
			Expect(r.Err).NotTo(HaveOccurred())
			Expect(r.Halted).To(BeTrue())
		})

		It("should stop at the instruction limit", func() {
			e = newEmulator("ATmega328P", emu.WithMaxInstructions(2))
			Expect(e.LoadProgram(assemble("nop", "nop", "nop"))).To(Succeed())

			Expect(e.Run()).To(MatchError(emu.ErrMaxInstructions))
			Expect(e.InstructionCount()).To(Equal(uint64(2)))
		})
	})

	Describe("data transfer", func() {
		It("should load and store through pointers", func() {
			load("ldi r26, 0x00", "ldi r27, 0x01", "st X+, r16", "st X, r17",
				"ld r18, -X", "ldd r19, Y+1")
			setReg(16, 0xAA)
			setReg(17, 0xBB)
			setReg(28, 0xFF)

			for i := 0; i < 6; i++ {
				step()
			}

			Expect(e.Memory().Data.Read(0x100)).To(Equal(uint8(0xAA)))
			Expect(e.Memory().Data.Read(0x101)).To(Equal(uint8(0xBB)))
			Expect(reg(18)).To(Equal(uint8(0xAA)))
			Expect(reg(19)).To(Equal(uint8(0xAA)))
			x, _ := rf.ReadWord(emu.RegX)
			Expect(x).To(Equal(uint16(0x100)))
		})

		It("should load and store direct addresses", func() {
			load("sts 0x200, r16", "lds r17, 0x200")
			setReg(16, 0x5A)
			r := step()
			Expect(r.Cycles).To(Equal(uint64(2)))
			step()
			Expect(reg(17)).To(Equal(uint8(0x5A)))
			Expect(e.PC()).To(Equal(uint32(4)))
		})

		It("should transfer I/O registers", func() {
			load("out 0x3f, r16", "in r17, 0x3f")
			setReg(16, 0x83)
			step()
			step()
			Expect(rf.SREG()).To(Equal(uint8(0x83)))
			Expect(reg(17)).To(Equal(uint8(0x83)))
		})

		It("should observe writes to watched I/O registers", func() {
			e.Memory().Data.SetWatchList([]uint32{0x25})
			load("out 0x05, r16", "out 0x06, r16")

			step()
			Expect(e.Memory().Data.WriteObserved()).To(BeTrue())

			e.Memory().Data.ResetWriteObserved()
			step()
			Expect(e.Memory().Data.WriteObserved()).To(BeFalse())
		})

		It("should push and pop", func() {
			load("push r16", "pop r17")
			setReg(16, 0x42)
			sp := rf.SP()

			step()
			Expect(rf.SP()).To(Equal(sp - 1))
			step()
			Expect(rf.SP()).To(Equal(sp))
			Expect(reg(17)).To(Equal(uint8(0x42)))
		})

		It("should exchange with memory at Z", func() {
			load("xch Z, r16", "lat Z, r17")
			Expect(rf.WriteWord(emu.RegZ, 0x300)).To(Succeed())
			Expect(e.Memory().Data.Write(0x300, 0x0F)).To(Succeed())
			setReg(16, 0xF0)
			setReg(17, 0xFF)

			step()
			Expect(reg(16)).To(Equal(uint8(0x0F)))
			Expect(e.Memory().Data.Read(0x300)).To(Equal(uint8(0xF0)))

			step()
			Expect(reg(17)).To(Equal(uint8(0xF0)))
			Expect(e.Memory().Data.Read(0x300)).To(Equal(uint8(0x0F)))
		})
	})

	Describe("program memory", func() {
		It("should read flash bytes with LPM", func() {
			load("ldi r30, 4", "ldi r31, 0", "lpm r2, Z+")

			step()
			step()
			r := step()

			Expect(reg(2)).To(Equal(uint8(0x25)))
			z, _ := rf.ReadWord(emu.RegZ)
			Expect(z).To(Equal(uint16(5)))
			Expect(r.Cycles).To(Equal(uint64(3)))
		})

		It("should write flash words with SPM", func() {
			load("spm")
			Expect(rf.WriteWord(0, 0x0C01)).To(Succeed())
			Expect(rf.WriteWord(emu.RegZ, 8)).To(Succeed())

			step()

			Expect(e.Memory().Flash[4].String()).To(Equal("add r0, r1"))
		})

		It("should reject ELPM without RAMPZ", func() {
			load("elpm")
			r := e.Step()
			Expect(r.Err).To(MatchError(emu.ErrUnsupportedInstruction))
		})
	})

	Describe("failures", func() {
		It("should roll back a step that fails part way", func() {
			load("ld r5, X+")
			Expect(rf.WriteWord(emu.RegX, 0x1000)).To(Succeed())

			r := e.Step()

			Expect(r.Err).To(MatchError(emu.ErrInvalidAddress))
			x, _ := rf.ReadWord(emu.RegX)
			Expect(x).To(Equal(uint16(0x1000)))
			Expect(e.PC()).To(Equal(uint32(0)))
			Expect(e.InstructionCount()).To(BeZero())
		})

		It("should undo the watch flag of a rolled back step", func() {
			load("call 0x10")
			Expect(rf.SetSP(0x100)).To(Succeed())
			spl, err := rf.Address(emu.SPL)
			Expect(err).NotTo(HaveOccurred())
			sph, err := rf.Address(emu.SPH)
			Expect(err).NotTo(HaveOccurred())

			data := e.Memory().Data
			data.SetWatchList([]uint32{spl, sph})
			data.ResetWriteObserved()

			r := e.Step()

			Expect(r.Err).To(MatchError(emu.ErrStackOverflow))
			Expect(rf.SP()).To(Equal(uint32(0x100)))
			Expect(data.WriteObserved()).To(BeFalse())
		})

		It("should keep the state of earlier steps", func() {
			load("ldi r16, 7", "ld r5, X+")
			Expect(rf.WriteWord(emu.RegX, 0x1000)).To(Succeed())

			step()
			r := e.Step()

			Expect(r.Err).To(HaveOccurred())
			Expect(reg(16)).To(Equal(uint8(7)))
			Expect(e.PC()).To(Equal(uint32(1)))
		})

		It("should detect stack overflow", func() {
			load("push r0")
			Expect(rf.SetSP(0xFF)).To(Succeed())

			r := e.Step()

			Expect(r.Err).To(MatchError(emu.ErrStackOverflow))
			Expect(rf.SP()).To(Equal(uint32(0xFF)))
		})

		It("should detect stack underflow", func() {
			load("pop r0")
			r := e.Step()
			Expect(r.Err).To(MatchError(emu.ErrStackUnderflow))
		})

		It("should reject instructions with invalid operands", func() {
			id := insts.FindMnemonic("lds")[1]
			inst := &insts.Instruction{ID: id, Raw: 0xA70F}
			Expect(insts.NewDecoder().DecodeOperands(inst)).To(Succeed())
			Expect(e.LoadProgram([]*insts.Instruction{inst})).To(Succeed())

			r := e.Step()

			Expect(r.Err).To(MatchError(emu.ErrInvalidOperand))
		})

		It("should reject DES", func() {
			load("des 3")
			r := e.Step()
			Expect(r.Err).To(MatchError(emu.ErrUnsupportedInstruction))
		})
	})

	Describe("Reset", func() {
		It("should clear data but keep the program", func() {
			load("ldi r16, 1")
			step()

			Expect(e.Reset()).To(Succeed())

			Expect(reg(16)).To(BeZero())
			Expect(e.PC()).To(BeZero())
			Expect(e.CycleCount()).To(BeZero())
			Expect(e.Memory().Flash[0].Op()).To(Equal(insts.OpLDI))
		})
	})

	Describe("LoadEEPROM", func() {
		It("should copy the image", func() {
			Expect(e.LoadEEPROM([]byte{1, 2, 3})).To(Succeed())
			Expect(e.Memory().EEPROM[:4]).To(Equal([]byte{1, 2, 3, 0xFF}))
		})

		It("should reject oversized images", func() {
			Expect(e.LoadEEPROM(make([]byte, 0x401))).To(MatchError(emu.ErrInvalidAddress))
		})
	})
})

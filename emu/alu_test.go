package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/emu"
)

func flag(f emu.Flags, which emu.Flag) bool {
	v, ok := f.Get(which)
	ExpectWithOffset(1, ok).To(BeTrue(), "flag %s not affected", which)
	return v
}

var _ = Describe("ALU", func() {
	var alu *emu.ALU

	BeforeEach(func() {
		alu = emu.NewALU()
	})

	It("should compute ADD flags for every operand pair", func() {
		for a := 0; a < 256; a++ {
			for b := 0; b < 256; b++ {
				res, f, err := alu.Add(uint8(a), uint8(b), false)
				Expect(err).NotTo(HaveOccurred())

				sum := a + b
				signed := int(int8(a)) + int(int8(b))
				Expect(res).To(Equal(uint8(sum)))
				if flag(f, emu.FlagC) != (sum > 255) ||
					flag(f, emu.FlagH) != ((a&0xF)+(b&0xF) > 0xF) ||
					flag(f, emu.FlagV) != (signed < -128 || signed > 127) ||
					flag(f, emu.FlagN) != (sum&0x80 != 0) ||
					flag(f, emu.FlagZ) != (sum&0xFF == 0) ||
					flag(f, emu.FlagS) != (signed < 0) {
					Fail("ADD flags wrong for " + f.String())
				}
			}
		}
	})

	It("should compute SUB flags for every operand pair", func() {
		for a := 0; a < 256; a++ {
			for b := 0; b < 256; b++ {
				res, f, err := alu.Sub(uint8(a), uint8(b))
				Expect(err).NotTo(HaveOccurred())

				signed := int(int8(a)) - int(int8(b))
				Expect(res).To(Equal(uint8(a - b)))
				if flag(f, emu.FlagC) != (b > a) ||
					flag(f, emu.FlagH) != (b&0xF > a&0xF) ||
					flag(f, emu.FlagV) != (signed < -128 || signed > 127) ||
					flag(f, emu.FlagZ) != (a == b) ||
					flag(f, emu.FlagS) != (signed < 0) {
					Fail("SUB flags wrong for " + f.String())
				}
			}
		}
	})

	It("should only keep Z in SBC when it was set", func() {
		_, f, err := alu.SubCarry(5, 5, false, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(flag(f, emu.FlagZ)).To(BeFalse())

		_, f, _ = alu.SubCarry(5, 5, false, true)
		Expect(flag(f, emu.FlagZ)).To(BeTrue())

		res, f, _ := alu.SubCarry(5, 5, true, true)
		Expect(res).To(Equal(uint8(0xFF)))
		Expect(flag(f, emu.FlagC)).To(BeTrue())
		Expect(flag(f, emu.FlagZ)).To(BeFalse())
	})

	It("should add the carry in ADC", func() {
		res, f, _ := alu.Add(0x0F, 0x00, true)
		Expect(res).To(Equal(uint8(0x10)))
		Expect(flag(f, emu.FlagH)).To(BeTrue())
	})

	DescribeTable("single operand flags",
		func(op func(*emu.ALU) (uint8, emu.Flags, error), want uint8, flags string) {
			res, f, err := op(alu)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(want))
			Expect(f.String()).To(Equal(flags))
		},
		Entry("INC to 0x80 overflows", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.Inc(0x7F)
		}, uint8(0x80), "sVNz"),
		Entry("DEC to 0x7F overflows", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.Dec(0x80)
		}, uint8(0x7F), "SVnz"),
		Entry("NEG of 0x80", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.Neg(0x80)
		}, uint8(0x80), "hsVNzC"),
		Entry("NEG of 0", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.Neg(0)
		}, uint8(0), "hsvnZc"),
		Entry("COM", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.Com(0x0F)
		}, uint8(0xF0), "SvNzC"),
		Entry("AND clears V", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.And(0xF0, 0x0F)
		}, uint8(0), "svnZ"),
		Entry("LSR shifts into C", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.Lsr(0x01)
		}, uint8(0), "SVnZC"),
		Entry("ASR keeps the sign", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.Asr(0x82)
		}, uint8(0xC1), "sVNzc"),
		Entry("ROR rotates C in", func(a *emu.ALU) (uint8, emu.Flags, error) {
			return a.Ror(0x02, true)
		}, uint8(0x81), "sVNzc"),
	)

	It("should swap nibbles", func() {
		Expect(alu.Swap(0xA5)).To(Equal(uint8(0x5A)))
	})

	It("should compute word arithmetic flags", func() {
		res, f, err := alu.AddWord(0x7FFF, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(uint16(0x8000)))
		Expect(f.String()).To(Equal("sVNzc"))

		res, f, _ = alu.AddWord(0xFFFF, 1)
		Expect(res).To(BeZero())
		Expect(f.String()).To(Equal("svnZC"))

		res, f, _ = alu.SubWord(0x0000, 1)
		Expect(res).To(Equal(uint16(0xFFFF)))
		Expect(f.String()).To(Equal("SvNzC"))

		res, f, _ = alu.SubWord(0x8000, 1)
		Expect(res).To(Equal(uint16(0x7FFF)))
		Expect(f.String()).To(Equal("SVnzc"))
	})

	DescribeTable("multiplies",
		func(a, b uint8, kind emu.MulKind, fractional bool, want uint16, carry bool) {
			res, f, err := alu.Mul(a, b, kind, fractional)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(want))
			Expect(flag(f, emu.FlagC)).To(Equal(carry))
			Expect(flag(f, emu.FlagZ)).To(Equal(want == 0))
		},
		Entry("MUL", uint8(0xFF), uint8(0xFF), emu.MulUnsigned, false, uint16(0xFE01), true),
		Entry("MULS", uint8(0xFE), uint8(0x03), emu.MulSigned, false, uint16(0xFFFA), true),
		Entry("MULSU", uint8(0xFF), uint8(0xFF), emu.MulSignedUnsigned, false, uint16(0xFF01), true),
		Entry("FMUL", uint8(0x80), uint8(0x80), emu.MulUnsigned, true, uint16(0x8000), false),
		Entry("FMULS", uint8(0x80), uint8(0x80), emu.MulSigned, true, uint16(0x8000), false),
		Entry("FMULSU zero product", uint8(0x80), uint8(0x00), emu.MulSignedUnsigned, true, uint16(0), false),
	)
})

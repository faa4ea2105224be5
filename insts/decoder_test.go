package insts_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("determinism", func() {
		decodeAll := func(d *insts.Decoder, words [][]uint16) ([]*insts.Instruction, []error) {
			out := make([]*insts.Instruction, len(words))
			errs := make([]error, len(words))
			for i, w := range words {
				out[i], _, errs[i] = d.DecodeWords(w, uint32(i))
			}
			return out, errs
		}

		It("should decode the same words to the same instructions", func() {
			words := make([][]uint16, 0, 0x10002)
			for w := 0; w <= 0xFFFF; w++ {
				words = append(words, []uint16{uint16(w), 0x1234})
			}
			// CALL 0x100 and LDS r16, 0x200
			words = append(words, []uint16{0x940E, 0x0100}, []uint16{0x9100, 0x0200})

			first, firstErrs := decodeAll(decoder, words)
			again, againErrs := decodeAll(decoder, words)
			fresh, freshErrs := decodeAll(insts.NewDecoder(), words)

			Expect(again).To(Equal(first))
			Expect(fresh).To(Equal(first))
			Expect(againErrs).To(Equal(firstErrs))
			Expect(freshErrs).To(Equal(firstErrs))

			lds := first[len(first)-1]
			Expect(lds.Op()).To(Equal(insts.OpLDS))
			Expect(lds.Raw).To(Equal(uint32(0x91000200)))
		})
	})

	Describe("single-word instructions", func() {
		// ADD r0, r1 -> 0x0C01
		It("should decode ADD r0, r1", func() {
			inst, err := decoder.Decode(0x0C01, 0x10)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op()).To(Equal(insts.OpADD))
			Expect(inst.Address).To(Equal(uint32(0x10)))
			Expect(inst.Raw).To(Equal(uint32(0x0C01)))
			Expect(inst.Operands).To(HaveLen(2))
			Expect(inst.Operand(0)).To(Equal(int64(0)))
			Expect(inst.Operand(1)).To(Equal(int64(1)))
			Expect(inst.String()).To(Equal("add r0, r1"))
		})

		// LDI r16, 0xFF -> 0xEF0F, register field biased by 16
		It("should bias the ldi-class register", func() {
			inst, err := decoder.Decode(0xEF0F, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op()).To(Equal(insts.OpLDI))
			Expect(inst.Operand(0)).To(Equal(int64(16)))
			Expect(inst.Operand(1)).To(Equal(int64(0xFF)))
		})

		// ADIW r30, 63 -> 0x96FF
		It("should bias the adiw-class register", func() {
			inst, err := decoder.Decode(0x96FF, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op()).To(Equal(insts.OpADIW))
			Expect(inst.Operand(0)).To(Equal(int64(30)))
			Expect(inst.Operand(1)).To(Equal(int64(63)))
		})

		// RJMP .-2 -> 0xCFFF
		It("should sign-extend and double relative offsets", func() {
			inst, err := decoder.Decode(0xCFFF, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op()).To(Equal(insts.OpRJMP))
			Expect(inst.Operand(0)).To(Equal(int64(-2)))
			v, err := inst.Operands[0].Value.I32()
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(int32(-2)))
		})

		// BREQ .+4 -> 0xF011
		It("should decode a conditional branch", func() {
			inst, err := decoder.Decode(0xF011, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op()).To(Equal(insts.OpBREQ))
			Expect(inst.String()).To(Equal("breq .+4"))
		})

		It("should fail on words no opcode matches", func() {
			_, err := decoder.Decode(0xFFFF, 0)
			Expect(err).To(MatchError(insts.ErrOpcodeNotFound))
		})

		It("should decode unknown words as data when lenient", func() {
			lenient := insts.NewDecoder(insts.WithLenientDecoding())
			inst, err := lenient.Decode(0xFFFF, 4)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.ID).To(Equal(insts.IDWord))
			Expect(inst.String()).To(Equal(".word 0xffff"))
		})
	})

	Describe("two-word instructions", func() {
		It("should combine both words of CALL", func() {
			inst, n, err := decoder.DecodeWords([]uint16{0x940E, 0x0100}, 0x10)

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(inst.Op()).To(Equal(insts.OpCALL))
			Expect(inst.Raw).To(Equal(uint32(0x940E0100)))
			Expect(inst.Operand(0)).To(Equal(int64(0x200)))
			Expect(inst.Len()).To(Equal(uint32(2)))
		})

		It("should include the high address bits of the first word", func() {
			// JMP to word 0x1FFFF: k bit 16 lives in bit 0 of the first word.
			inst, _, err := decoder.DecodeWords([]uint16{0x940D, 0xFFFF}, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op()).To(Equal(insts.OpJMP))
			Expect(inst.Operand(0)).To(Equal(int64(0x1FFFF * 2)))
		})

		It("should consume nothing when the second word is missing", func() {
			inst, n, err := decoder.DecodeWords([]uint16{0x940E}, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst).To(BeNil())
			Expect(n).To(BeZero())

			_, err = decoder.Decode(0x940E, 0)
			Expect(err).To(MatchError(insts.ErrNeedMoreData))
		})
	})

	Describe("DecodeOperands", func() {
		It("should substitute a sentinel for an out-of-range operand", func() {
			ids := insts.FindMnemonic("lds")
			Expect(ids).To(HaveLen(2))
			// Reduced-core LDS with k=0x7F, biased to 0xBF.
			inst := &insts.Instruction{ID: ids[1], Raw: 0xA70F}

			Expect(decoder.DecodeOperands(inst)).To(Succeed())
			Expect(inst.Operands).To(HaveLen(2))
			Expect(inst.Operands[0].Invalid()).To(BeFalse())
			Expect(inst.Operand(0)).To(Equal(int64(16)))
			Expect(inst.Operands[1].Invalid()).To(BeTrue())
			Expect(inst.Operand(1)).To(Equal(int64(1)))
			Expect(inst.Operands[1].Name).To(ContainSubstring("opcode:0xa70f"))
			Expect(inst.Diagnostics()).To(HaveLen(1))
		})

		It("should reject ids outside the table", func() {
			inst := &insts.Instruction{ID: 777}
			Expect(decoder.DecodeOperands(inst)).To(MatchError(insts.ErrOpcodeNotFound))
		})
	})

	Describe("Stream", func() {
		It("should complete a two-word instruction across chunks", func() {
			s := decoder.NewStream()

			out, err := s.Feed(0, []uint16{0x0000, 0x940E})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(s.Pending()).To(BeTrue())

			out, err = s.Feed(2, []uint16{0x0100, 0x9508})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
			Expect(out[0].Op()).To(Equal(insts.OpCALL))
			Expect(out[0].Address).To(Equal(uint32(1)))
			Expect(out[1].Op()).To(Equal(insts.OpRET))
			Expect(out[1].Address).To(Equal(uint32(3)))
			Expect(s.Pending()).To(BeFalse())
		})

		It("should emit a held word as data when the next chunk is not contiguous", func() {
			s := decoder.NewStream()
			_, err := s.Feed(0, []uint16{0x940E})
			Expect(err).NotTo(HaveOccurred())

			out, err := s.Feed(8, []uint16{0x0000})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
			Expect(out[0].ID).To(Equal(insts.IDWord))
			Expect(out[1].Op()).To(Equal(insts.OpNOP))
		})

		It("should flush a truncated instruction as data", func() {
			s := decoder.NewStream()
			_, err := s.Feed(0, []uint16{0x940C})
			Expect(err).NotTo(HaveOccurred())

			out := s.Flush()
			Expect(out).To(HaveLen(1))
			Expect(out[0].ID).To(Equal(insts.IDWord))
			Expect(s.Flush()).To(BeEmpty())
		})

		It("should surface unmatched words", func() {
			s := decoder.NewStream()
			out, err := s.Feed(0, []uint16{0x0000, 0xFFFF})
			Expect(err).To(MatchError(insts.ErrOpcodeNotFound))
			Expect(out).To(HaveLen(1))
		})
	})

	Describe("bit helpers", func() {
		It("should convert unsigned fields to signed values", func() {
			Expect(insts.UnsignedToSigned(0b010101101110, 12)).To(Equal(int64(1390)))
			Expect(insts.UnsignedToSigned(0b1001010111101110, 16)).To(Equal(int64(-27154)))
			Expect(insts.UnsignedToSigned(0, 14)).To(Equal(int64(0)))
			Expect(insts.UnsignedToSigned(0b1111, 4)).To(Equal(int64(-1)))
		})

		It("should gather masked bits into a contiguous value", func() {
			Expect(insts.DecodeBits(0x020F, 0x0F01)).To(Equal(uint32(0x11)))
			Expect(insts.DecodeBits(0x01F0, 0x0F01)).To(Equal(uint32(0x10)))
		})

		It("should reproduce the masked bits after re-insertion", func() {
			rng := rand.New(rand.NewSource(42))
			for i := 0; i < 2000; i++ {
				var mask uint32
				nbits := rng.Intn(17)
				for bitsSet := 0; bitsSet < nbits; {
					bit := uint32(1) << rng.Intn(32)
					if mask&bit == 0 {
						mask |= bit
						bitsSet++
					}
				}
				raw := rng.Uint32()

				field := insts.DecodeBits(mask, raw)
				Expect(insts.DepositBits(mask, field)).To(Equal(raw & mask))
			}
		})

		It("should apply register bias per constraint", func() {
			Expect(insts.ApplyRegisterBias(0, insts.ConstraintRegHigh)).To(Equal(uint32(16)))
			Expect(insts.ApplyRegisterBias(7, insts.ConstraintRegMul)).To(Equal(uint32(23)))
			Expect(insts.ApplyRegisterBias(15, insts.ConstraintRegPair)).To(Equal(uint32(30)))
			Expect(insts.ApplyRegisterBias(3, insts.ConstraintRegWord)).To(Equal(uint32(30)))
			Expect(insts.ApplyRegisterBias(0x100, insts.ConstraintAbsAddr)).To(Equal(uint32(0x200)))
			Expect(insts.ApplyRegisterBias(9, insts.ConstraintReg)).To(Equal(uint32(9)))
			Expect(insts.ApplyRegisterBias(0xF0, insts.ConstraintImm8Inv)).To(Equal(uint32(0x0F)))
		})

		It("should decode an assembled cbr back to its mask", func() {
			inst, err := insts.ParseLine("cbr r16, 0x0f", 0)
			Expect(err).NotTo(HaveOccurred())

			decoded := &insts.Instruction{ID: inst.ID, Address: inst.Address, Raw: inst.Raw}
			Expect(decoder.DecodeOperands(decoded)).To(Succeed())

			Expect(decoded.Operand(0)).To(Equal(int64(16)))
			Expect(decoded.Operand(1)).To(Equal(int64(0x0F)))
			Expect(decoded.String()).To(Equal(inst.String()))
		})
	})
})

package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/insts"
)

var _ = Describe("Opcode Table", func() {
	It("should keep fixed bits inside the mask", func() {
		for _, r := range insts.Table() {
			Expect(r.BinOpcode &^ r.BinMask).To(BeZero(), r.Name)
		}
	})

	It("should mark exactly CALL, JMP and the long LDS/STS as two words", func() {
		twoWord := map[insts.Op]bool{}
		for _, r := range insts.Table() {
			if r.Len == 2 {
				twoWord[r.Op] = true
			}
		}
		Expect(twoWord).To(Equal(map[insts.Op]bool{
			insts.OpCALL: true, insts.OpJMP: true, insts.OpLDS: true, insts.OpSTS: true,
		}))
	})

	It("should give every operand of a real entry a field", func() {
		for _, r := range insts.Table() {
			for _, o := range r.Operands {
				if r.Op == insts.OpXCH || r.Op == insts.OpLAS ||
					r.Op == insts.OpLAC || r.Op == insts.OpLAT {
					continue
				}
				Expect(o.Mask).NotTo(BeZero(), r.Name)
			}
		}
	})

	Describe("Match", func() {
		It("should prefer the flag mnemonic over BCLR", func() {
			id, ok := insts.Match(0x9488)
			Expect(ok).To(BeTrue())
			r, err := insts.Lookup(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Op).To(Equal(insts.OpCLC))
		})

		It("should prefer ADD over its LSL alias", func() {
			id, ok := insts.Match(0x0C00)
			Expect(ok).To(BeTrue())
			r, _ := insts.Lookup(id)
			Expect(r.Op).To(Equal(insts.OpADD))
		})

		It("should prefer LDD over the reduced-core LDS", func() {
			id, ok := insts.Match(0xA00F)
			Expect(ok).To(BeTrue())
			r, _ := insts.Lookup(id)
			Expect(r.Op).To(Equal(insts.OpLDD))
		})

		It("should report words no entry matches", func() {
			_, ok := insts.Match(0xFFFF)
			Expect(ok).To(BeFalse())
			_, ok = insts.Match(0x0001)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Lookup", func() {
		It("should synthesize the pseudo-instructions", func() {
			for _, id := range []insts.OpcodeID{insts.IDContinuation, insts.IDWord, insts.IDEmpty} {
				r, err := insts.Lookup(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(r.Op).To(Equal(insts.OpCustom))
				Expect(r.Len).To(Equal(uint32(1)))
			}
		})

		It("should fail for ids outside the table", func() {
			_, err := insts.Lookup(500)
			Expect(err).To(MatchError(insts.ErrOpcodeNotFound))
		})
	})

	Describe("Op", func() {
		It("should classify control flow", func() {
			Expect(insts.OpBREQ.IsBranch()).To(BeTrue())
			Expect(insts.OpBRBS.IsBranch()).To(BeTrue())
			Expect(insts.OpBREAK.IsBranch()).To(BeFalse())
			Expect(insts.OpSBIS.IsSkip()).To(BeTrue())
			Expect(insts.OpRCALL.IsCall()).To(BeTrue())
			Expect(insts.OpRETI.IsReturn()).To(BeTrue())
			Expect(insts.OpADD.Mnemonic()).To(Equal("add"))
		})
	})
})

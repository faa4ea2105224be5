package loader_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/insts"
	"github.com/sarchlab/avrsim/loader"
)

var _ = Describe("Loader", func() {
	Describe("LoadReader", func() {
		It("should decode big-endian words by default", func() {
			prog, err := loader.LoadReader(strings.NewReader(
				":04000000E1020C12FB\n:00000001FF\n"))
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Instructions).To(HaveLen(2))
			Expect(prog.Instructions[0].String()).To(Equal("ldi r16, 0x12"))
			Expect(prog.Instructions[0].Address).To(BeZero())
			Expect(prog.Instructions[1].String()).To(Equal("add r1, r2"))
			Expect(prog.Instructions[1].Address).To(Equal(uint32(1)))
		})

		It("should pair bytes low first when asked", func() {
			prog, err := loader.LoadReader(strings.NewReader(
				":0400000002E1120CFB\n:00000001FF\n"),
				loader.WithByteOrder(loader.LittleEndian))
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Instructions).To(HaveLen(2))
			Expect(prog.Instructions[0].String()).To(Equal("ldi r16, 0x12"))
			Expect(prog.Instructions[1].String()).To(Equal("add r1, r2"))
		})

		It("should join a two-word instruction split across records", func() {
			prog, err := loader.LoadReader(strings.NewReader(
				":02000000940C5E\n:020002000000FC\n:00000001FF\n"))
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Instructions).To(HaveLen(1))
			Expect(prog.Instructions[0].Op()).To(Equal(insts.OpJMP))
			Expect(prog.Instructions[0].Len()).To(Equal(uint32(2)))
			Expect(prog.Instructions[0].Operand(0)).To(BeZero())
		})

		It("should keep a truncated two-word instruction as data", func() {
			prog, err := loader.LoadReader(strings.NewReader(
				":02000000940C5E\n:00000001FF\n"))
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Instructions).To(HaveLen(1))
			Expect(prog.Instructions[0].ID).To(Equal(insts.IDWord))
		})

		It("should pad an odd record with 0xff", func() {
			prog, err := loader.LoadReader(strings.NewReader(
				":03000000E1020C0E\n:00000001FF\n"))
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.Instructions).To(HaveLen(2))
			Expect(prog.Instructions[1].Raw).To(Equal(uint32(0x0CFF)))
		})

		It("should place words at the extended segment address", func() {
			prog, err := loader.LoadReader(strings.NewReader(
				":020000020010EC\n:02000000E0120C\n:00000001FF\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Instructions[0].Address).To(Equal(uint32(0x80)))
		})

		It("should fail on words that match no opcode", func() {
			_, err := loader.LoadReader(strings.NewReader(
				":02000000FFFF00\n:00000001FF\n"))
			Expect(err).To(MatchError(insts.ErrOpcodeNotFound))
		})

		It("should keep unknown words as data when lenient", func() {
			prog, err := loader.LoadReader(strings.NewReader(
				":02000000FFFF00\n:00000001FF\n"), loader.WithLenientDecoding())
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Instructions[0].ID).To(Equal(insts.IDWord))
		})

		It("should surface checksum errors", func() {
			_, err := loader.LoadReader(strings.NewReader(":04000000E0120C12ED\n"))
			Expect(err).To(MatchError(loader.ErrChecksum))
		})
	})

	DescribeTable("byte order names",
		func(name string, want loader.ByteOrder) {
			order, err := loader.ParseByteOrder(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal(want))
			Expect(order.String()).To(Equal(map[loader.ByteOrder]string{
				loader.BigEndian: "big", loader.LittleEndian: "little",
			}[want]))
		},
		Entry("default", "", loader.BigEndian),
		Entry("big", "big", loader.BigEndian),
		Entry("little", "little", loader.LittleEndian),
	)

	It("should reject unknown byte orders", func() {
		_, err := loader.ParseByteOrder("middle")
		Expect(err).To(HaveOccurred())
	})

	Describe("files", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "hex-loader-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should load a flash image from disk", func() {
			path := filepath.Join(tempDir, "prog.hex")
			Expect(os.WriteFile(path, []byte(":04000000E1020C12FB\n:00000001FF\n"), 0o644)).To(Succeed())

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Instructions).To(HaveLen(2))
			Expect(prog.Segments).To(HaveLen(1))
		})

		It("should name the file in decode errors", func() {
			path := filepath.Join(tempDir, "bad.hex")
			Expect(os.WriteFile(path, []byte(":04000000E0120C12ED\n"), 0o644)).To(Succeed())

			_, err := loader.Load(path)
			Expect(err).To(MatchError(loader.ErrChecksum))
			Expect(err.Error()).To(ContainSubstring("bad.hex"))
		})

		It("should fail on a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.hex"))
			Expect(err).To(HaveOccurred())
			_, err = loader.LoadEEPROMFile(filepath.Join(tempDir, "missing.eep"))
			Expect(err).To(HaveOccurred())
		})

		It("should fill EEPROM gaps with 0xff", func() {
			path := filepath.Join(tempDir, "data.eep")
			Expect(os.WriteFile(path, []byte(":020002000102F9\n:00000001FF\n"), 0o644)).To(Succeed())

			image, err := loader.LoadEEPROMFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(image).To(Equal([]byte{0xFF, 0xFF, 0x01, 0x02}))
		})
	})
})

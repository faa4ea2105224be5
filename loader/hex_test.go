package loader_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/loader"
)

var _ = Describe("Intel HEX records", func() {
	It("should parse a data record", func() {
		rec, err := loader.ParseRecord(":04000000E0120C12EC")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Type).To(Equal(loader.RecordData))
		Expect(rec.Address).To(BeZero())
		Expect(rec.Data).To(Equal([]byte{0xE0, 0x12, 0x0C, 0x12}))
	})

	DescribeTable("rejected records",
		func(line string, want error) {
			_, err := loader.ParseRecord(line)
			Expect(err).To(MatchError(want))
		},
		Entry("missing start code", "04000000E0120C12EC", loader.ErrMalformedRecord),
		Entry("not hex", ":04000000E0120C1ZEC", loader.ErrMalformedRecord),
		Entry("short", ":0000", loader.ErrMalformedRecord),
		Entry("count mismatch", ":05000000E0120C12EB", loader.ErrMalformedRecord),
		Entry("bad checksum", ":04000000E0120C12ED", loader.ErrChecksum),
		Entry("unknown type", ":00000006FA", loader.ErrInvalidRecordType),
	)

	It("should report the line of a bad checksum", func() {
		src := ":04000000E0120C12EC\n:02000000940C5F\n:00000001FF\n"
		_, err := loader.ReadRecords(strings.NewReader(src))

		var lineErr *loader.LineError
		Expect(errors.As(err, &lineErr)).To(BeTrue())
		Expect(lineErr.Line).To(Equal(2))
		Expect(err).To(MatchError(loader.ErrChecksum))
		Expect(err.Error()).To(HavePrefix("line 2:"))
	})

	It("should stop at the end of file record and skip blank lines", func() {
		src := "\n:02000000E0120C\n\n:00000001FF\n:garbage\n"
		records, err := loader.ReadRecords(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].Line).To(Equal(2))
		Expect(records[1].Type).To(Equal(loader.RecordEOF))
	})

	DescribeTable("unimplemented address records",
		func(line string) {
			records, err := loader.ReadRecords(strings.NewReader(line + "\n:00000001FF\n"))
			Expect(err).NotTo(HaveOccurred())
			_, err = loader.Segments(records)
			Expect(err).To(MatchError(loader.ErrNotImplemented))
			Expect(err.Error()).To(ContainSubstring("not implemented"))
		},
		Entry("start segment", ":0400000300000000F9"),
		Entry("extended linear", ":020000040000FA"),
		Entry("start linear", ":0400000500000000F7"),
	)

	It("should apply the extended segment address", func() {
		src := ":020000020010EC\n:02000000E0120C\n:00000001FF\n"
		records, err := loader.ReadRecords(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())

		segments, err := loader.Segments(records)
		Expect(err).NotTo(HaveOccurred())
		Expect(segments).To(HaveLen(1))
		Expect(segments[0].Address).To(Equal(uint32(0x100)))
	})

	It("should write records that read back", func() {
		in := []loader.Segment{
			{Address: 0, Data: bytes.Repeat([]byte{0xAB}, 20)},
			{Address: 0x1FFF0, Data: []byte{1, 2, 3, 4}},
		}
		var buf bytes.Buffer
		Expect(loader.WriteRecords(&buf, in)).To(Succeed())
		Expect(buf.String()).To(HaveSuffix(":00000001FF\n"))

		records, err := loader.ReadRecords(&buf)
		Expect(err).NotTo(HaveOccurred())
		out, err := loader.Segments(records)
		Expect(err).NotTo(HaveOccurred())

		Expect(out).To(HaveLen(3))
		Expect(out[0].Data).To(HaveLen(16))
		Expect(out[1].Address).To(Equal(uint32(16)))
		Expect(out[1].Data).To(HaveLen(4))
		Expect(out[2].Address).To(Equal(uint32(0x1FFF0)))
		Expect(out[2].Data).To(Equal([]byte{1, 2, 3, 4}))
	})
})

// Package loader reads Intel HEX images into decoded flash contents and
// EEPROM byte images.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sarchlab/avrsim/insts"
)

// ByteOrder selects how record payload bytes pair into 16-bit words.
type ByteOrder int

const (
	// BigEndian takes the first byte of a pair as the high byte.
	BigEndian ByteOrder = iota
	// LittleEndian takes the first byte of a pair as the low byte, as
	// avr-objcopy lays out flash images.
	LittleEndian
)

// ParseByteOrder maps "big" and "little" to a ByteOrder.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "", "big":
		return BigEndian, nil
	case "little":
		return LittleEndian, nil
	}
	return BigEndian, fmt.Errorf("unknown byte order %q", s)
}

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

func (o ByteOrder) word(hi, lo byte) uint16 {
	if o == LittleEndian {
		return uint16(lo)<<8 | uint16(hi)
	}
	return uint16(hi)<<8 | uint16(lo)
}

// Program is a flash image decoded from an Intel HEX file.
type Program struct {
	// Instructions are the decoded instructions in load order, each at its
	// flash word address.
	Instructions []*insts.Instruction
	// Segments are the raw data records at their absolute byte addresses.
	Segments []Segment
}

// Option configures a load.
type Option func(*options)

type options struct {
	order   ByteOrder
	lenient bool
}

// WithByteOrder sets how payload bytes pair into words.
func WithByteOrder(order ByteOrder) Option {
	return func(o *options) {
		o.order = order
	}
}

// WithLenientDecoding keeps words that match no opcode as .word data
// instead of failing the load.
func WithLenientDecoding() Option {
	return func(o *options) {
		o.lenient = true
	}
}

// Load reads and decodes the Intel HEX file at path.
func Load(path string, opts ...Option) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hex file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := LoadReader(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// LoadReader reads and decodes an Intel HEX stream. Data records are fed
// through a streaming decoder so that a two-word instruction split across
// records decodes as one instruction.
func LoadReader(r io.Reader, opts ...Option) (*Program, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}
	segments, err := Segments(records)
	if err != nil {
		return nil, err
	}

	var decoderOpts []insts.DecoderOption
	if o.lenient {
		decoderOpts = append(decoderOpts, insts.WithLenientDecoding())
	}
	stream := insts.NewDecoder(decoderOpts...).NewStream()

	prog := &Program{Segments: segments}
	for _, seg := range segments {
		words := o.order.words(seg)
		decoded, err := stream.Feed(seg.Address/2, words)
		prog.Instructions = append(prog.Instructions, decoded...)
		if err != nil {
			return nil, fmt.Errorf("failed to decode segment at %#x: %w", seg.Address, err)
		}
	}
	prog.Instructions = append(prog.Instructions, stream.Flush()...)

	return prog, nil
}

func (o ByteOrder) words(seg Segment) []uint16 {
	data := seg.Data
	if seg.Address%2 != 0 {
		slog.Warn("data record starts at an odd address", "address", seg.Address)
	}
	if len(data)%2 != 0 {
		slog.Warn("odd data record length, padding with 0xff",
			"address", seg.Address, "length", len(data))
		data = append(append([]byte(nil), data...), 0xFF)
	}

	words := make([]uint16, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		words = append(words, o.word(data[i], data[i+1]))
	}
	return words
}

// LoadEEPROM reads an Intel HEX EEPROM image. Bytes not covered by any
// record read as 0xFF.
func LoadEEPROM(r io.Reader) ([]byte, error) {
	records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}
	segments, err := Segments(records)
	if err != nil {
		return nil, err
	}

	size := uint32(0)
	for _, seg := range segments {
		if end := seg.Address + uint32(len(seg.Data)); end > size {
			size = end
		}
	}

	image := make([]byte, size)
	for i := range image {
		image[i] = 0xFF
	}
	for _, seg := range segments {
		copy(image[seg.Address:], seg.Data)
	}
	return image, nil
}

// LoadEEPROMFile reads the EEPROM image at path.
func LoadEEPROMFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open eeprom file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadEEPROM(f)
}

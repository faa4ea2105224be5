package insts

import (
	"fmt"
	"log/slog"
)

// Decoder decodes AVR machine code into instructions.
type Decoder struct {
	lenient bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLenientDecoding makes words that match no opcode decode to .word
// pseudo-instructions instead of failing.
func WithLenientDecoding() DecoderOption {
	return func(d *Decoder) {
		d.lenient = true
	}
}

// NewDecoder creates a new AVR instruction decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode decodes a single-word instruction at the given word address.
func (d *Decoder) Decode(word uint16, address uint32) (*Instruction, error) {
	inst, n, err := d.DecodeWords([]uint16{word}, address)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("word %#04x at %#x: %w", word, address, ErrNeedMoreData)
	}
	return inst, nil
}

// DecodeWords decodes the instruction starting at words[0] and reports how
// many words it consumed. It consumes nothing when words holds only the
// first half of a two-word instruction.
func (d *Decoder) DecodeWords(words []uint16, address uint32) (*Instruction, int, error) {
	if len(words) == 0 {
		return nil, 0, nil
	}

	id, ok := Match(words[0])
	if !ok {
		if d.lenient {
			return DataWord(words[0], address), 1, nil
		}
		return nil, 0, fmt.Errorf("word %#04x at %#x: %w", words[0], address, ErrOpcodeNotFound)
	}

	def, _ := Lookup(id)
	if def.Len == 2 {
		if len(words) < 2 {
			return nil, 0, nil
		}
		raw := uint32(words[0])<<16 | uint32(words[1])
		return d.build(def, raw, address), 2, nil
	}
	return d.build(def, uint32(words[0]), address), 1, nil
}

func (d *Decoder) build(def *RawInst, raw uint32, address uint32) *Instruction {
	inst := &Instruction{ID: def.ID, Address: address, Raw: raw}
	// The id came from the table, so the lookup inside cannot fail.
	_ = d.DecodeOperands(inst)
	return inst
}

// DecodeOperands derives the operands of inst from its raw encoding. An
// operand that fails validation becomes a sentinel; decoding continues.
func (d *Decoder) DecodeOperands(inst *Instruction) error {
	def, err := Lookup(inst.ID)
	if err != nil {
		return err
	}

	inst.Operands = inst.Operands[:0]
	for _, desc := range def.Operands {
		field := ApplyRegisterBias(DecodeBits(desc.Mask, inst.Raw), desc.Constraint)
		v, err := Box(field, desc.Constraint)
		if err != nil {
			inst.Operands = append(inst.Operands, sentinelOperand(inst.Raw, desc.Constraint, err))
			continue
		}
		inst.Operands = append(inst.Operands, Operand{Constraint: desc.Constraint, Value: v})
	}
	return nil
}

// DataWord builds a .word pseudo-instruction holding a raw word.
func DataWord(word uint16, address uint32) *Instruction {
	return &Instruction{
		ID:       IDWord,
		Address:  address,
		Raw:      uint32(word),
		Operands: []Operand{{Constraint: ConstraintImm, Value: U32Value(uint32(word))}},
	}
}

// Continuation builds the placeholder for the second word of a two-word
// instruction.
func Continuation(word uint16, address uint32) *Instruction {
	return &Instruction{ID: IDContinuation, Address: address, Raw: uint32(word)}
}

// Empty builds an unprogrammed flash cell.
func Empty(address uint32) *Instruction {
	return &Instruction{ID: IDEmpty, Address: address, Raw: 0xFFFF}
}

// Stream decodes words arriving in chunks. A two-word instruction whose
// second word is missing from a chunk is held until the next chunk.
type Stream struct {
	decoder *Decoder
	pending *pendingWord
}

type pendingWord struct {
	word    uint16
	address uint32
}

// NewStream creates a streaming decoder that shares the decoder's options.
func (d *Decoder) NewStream() *Stream {
	return &Stream{decoder: d}
}

// Pending reports whether a partial two-word instruction is held.
func (s *Stream) Pending() bool {
	return s.pending != nil
}

// Feed decodes words placed at consecutive word addresses starting at
// address. It returns the instructions completed so far.
func (s *Stream) Feed(address uint32, words []uint16) ([]*Instruction, error) {
	var out []*Instruction
	i := 0

	if s.pending != nil && len(words) > 0 {
		p := s.pending
		s.pending = nil
		if address == p.address+1 {
			inst, _, err := s.decoder.DecodeWords([]uint16{p.word, words[0]}, p.address)
			if err != nil {
				return out, err
			}
			out = append(out, inst)
			i = 1
		} else {
			slog.Warn("two-word instruction not continued",
				"address", p.address, "next", address)
			out = append(out, DataWord(p.word, p.address))
		}
	}

	for i < len(words) {
		addr := address + uint32(i)
		inst, n, err := s.decoder.DecodeWords(words[i:], addr)
		if err != nil {
			return out, err
		}
		if n == 0 {
			s.pending = &pendingWord{word: words[i], address: addr}
			break
		}
		out = append(out, inst)
		i += n
	}
	return out, nil
}

// Flush ends the stream. A held partial instruction is returned as a data
// word.
func (s *Stream) Flush() []*Instruction {
	if s.pending == nil {
		return nil
	}
	p := s.pending
	s.pending = nil
	slog.Warn("truncated two-word instruction at end of data", "address", p.address)
	return []*Instruction{DataWord(p.word, p.address)}
}

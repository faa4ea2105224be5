package loader

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrMalformedRecord is returned for a line that is not a well-formed
	// Intel HEX record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrChecksum is returned when a record's checksum does not match the
	// two's complement of the sum of its bytes.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrInvalidRecordType is returned for a record type above 5.
	ErrInvalidRecordType = errors.New("invalid record type")

	// ErrNotImplemented is returned for the start segment, extended linear
	// and start linear address records.
	ErrNotImplemented = errors.New("record type not implemented")
)

// LineError attaches the 1-based line number to a record error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// RecordType is the type field of an Intel HEX record.
type RecordType uint8

// Record types.
const (
	RecordData RecordType = iota
	RecordEOF
	RecordExtendedSegment
	RecordStartSegment
	RecordExtendedLinear
	RecordStartLinear
)

func (t RecordType) String() string {
	switch t {
	case RecordData:
		return "data"
	case RecordEOF:
		return "eof"
	case RecordExtendedSegment:
		return "extended segment address"
	case RecordStartSegment:
		return "start segment address"
	case RecordExtendedLinear:
		return "extended linear address"
	case RecordStartLinear:
		return "start linear address"
	}
	return fmt.Sprintf("type %d", uint8(t))
}

// Record is one decoded line of an Intel HEX file.
type Record struct {
	Line    int
	Type    RecordType
	Address uint16
	Data    []byte
}

// ParseRecord decodes one ":BBAAAATT[DD...]CC" line and verifies its
// checksum.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ":") {
		return Record{}, fmt.Errorf("%w: missing ':' start code", ErrMalformedRecord)
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if len(raw) < 5 {
		return Record{}, fmt.Errorf("%w: %d bytes is too short", ErrMalformedRecord, len(raw))
	}

	count := int(raw[0])
	if len(raw) != count+5 {
		return Record{}, fmt.Errorf("%w: byte count %d, line holds %d data bytes",
			ErrMalformedRecord, count, len(raw)-5)
	}

	var sum uint8
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}
	if want := -sum; want != raw[len(raw)-1] {
		return Record{}, fmt.Errorf("%w: got %#02x, want %#02x", ErrChecksum, raw[len(raw)-1], want)
	}

	rec := Record{
		Type:    RecordType(raw[3]),
		Address: uint16(raw[1])<<8 | uint16(raw[2]),
		Data:    raw[4 : 4+count],
	}
	if rec.Type > RecordStartLinear {
		return Record{}, fmt.Errorf("%w: %d", ErrInvalidRecordType, rec.Type)
	}
	return rec, nil
}

// ReadRecords reads records up to and including the end-of-file record.
// Blank lines are skipped.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := ParseRecord(text)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		rec.Line = line
		records = append(records, rec)
		if rec.Type == RecordEOF {
			return records, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Segment is a run of bytes at a byte address.
type Segment struct {
	Address uint32
	Data    []byte
}

// Segments applies the extended segment address records and returns the
// data records at their absolute byte addresses.
func Segments(records []Record) ([]Segment, error) {
	var (
		base uint32
		out  []Segment
	)
	for _, rec := range records {
		switch rec.Type {
		case RecordData:
			out = append(out, Segment{Address: base + uint32(rec.Address), Data: rec.Data})
		case RecordEOF:
			return out, nil
		case RecordExtendedSegment:
			if len(rec.Data) != 2 {
				return nil, &LineError{Line: rec.Line, Err: fmt.Errorf(
					"%w: %s record with %d data bytes", ErrMalformedRecord, rec.Type, len(rec.Data))}
			}
			base = (uint32(rec.Data[0])<<8 | uint32(rec.Data[1])) * 16
		default:
			return nil, &LineError{Line: rec.Line, Err: fmt.Errorf("%w: %s", ErrNotImplemented, rec.Type)}
		}
	}
	return out, nil
}

// WriteRecords writes segments as data records of at most 16 bytes,
// switching the extended segment address when a record would not fit in
// 16 bits, and ends with an end-of-file record.
func WriteRecords(w io.Writer, segments []Segment) error {
	const recordSize = 16

	base := uint32(0)
	for _, seg := range segments {
		for off := 0; off < len(seg.Data); off += recordSize {
			end := off + recordSize
			if end > len(seg.Data) {
				end = len(seg.Data)
			}
			addr := seg.Address + uint32(off)
			if addr-base+uint32(end-off) > 0x10000 || addr < base {
				base = addr &^ 0xF
				seg := uint16(base >> 4)
				if err := writeRecord(w, RecordExtendedSegment, 0, []byte{byte(seg >> 8), byte(seg)}); err != nil {
					return err
				}
			}
			if err := writeRecord(w, RecordData, uint16(addr-base), seg.Data[off:end]); err != nil {
				return err
			}
		}
	}
	return writeRecord(w, RecordEOF, 0, nil)
}

func writeRecord(w io.Writer, t RecordType, addr uint16, data []byte) error {
	raw := make([]byte, 0, len(data)+5)
	raw = append(raw, byte(len(data)), byte(addr>>8), byte(addr), byte(t))
	raw = append(raw, data...)
	var sum uint8
	for _, b := range raw {
		sum += b
	}
	raw = append(raw, -sum)
	_, err := fmt.Fprintf(w, ":%s\n", strings.ToUpper(hex.EncodeToString(raw)))
	return err
}

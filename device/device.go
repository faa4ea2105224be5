// Package device provides the read-only table of AVR device descriptors:
// address-space geometry, core family, and the register maps used to
// resolve I/O operands and the CPU's common registers.
//
// The table is parsed once, on first use, from an embedded YAML document
// and never modified afterwards, so it may be shared between goroutines.
package device

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed devices.yaml
var devicesYAML []byte

var (
	// ErrInvalidMCU is returned for a device name missing from the table.
	ErrInvalidMCU = errors.New("invalid mcu")

	// ErrNoCPUModule is returned when a descriptor has no CPU module.
	ErrNoCPUModule = errors.New("device has no CPU module")

	// ErrBadDescriptor is returned when a descriptor is inconsistent.
	ErrBadDescriptor = errors.New("bad device descriptor")
)

// Data segment names.
const (
	SegmentRegisters = "REGISTERS"
	SegmentIO        = "MAPPED_IO"
	SegmentSRAM      = "IRAM"
)

// Bitfield is a named group of bits within a register.
type Bitfield struct {
	Name    string `yaml:"name" json:"name"`
	Caption string `yaml:"caption" json:"caption"`
	Mask    uint8  `yaml:"mask" json:"mask"`
}

// Register is a memory-mapped register. Offset is a data-space address.
type Register struct {
	Name      string     `yaml:"name"`
	Caption   string     `yaml:"caption"`
	Offset    uint64     `yaml:"offset"`
	Size      int        `yaml:"size"`
	Bitfields []Bitfield `yaml:"bitfields"`
}

// Module groups the registers of one peripheral.
type Module struct {
	Name      string     `yaml:"name"`
	Registers []Register `yaml:"registers"`
}

// Segment is a region of the data address space.
type Segment struct {
	Name  string `yaml:"name"`
	Start uint32 `yaml:"start"`
	Size  uint32 `yaml:"size"`
}

// DeviceFile is the descriptor of one MCU.
type DeviceFile struct {
	Name       string    `yaml:"name"`
	Family     string    `yaml:"family"`
	Core       string    `yaml:"core"`
	ProgSize   uint32    `yaml:"prog_size"`
	EEPROMSize uint32    `yaml:"eeprom_size"`
	Data       []Segment `yaml:"data"`
	Modules    []Module  `yaml:"modules"`

	layout      Layout
	registerMap map[uint64]*Register
}

// Layout is the geometry of a device's memories.
type Layout struct {
	Registers  uint32 // register file bytes
	IO         uint32 // memory-mapped I/O bytes
	SRAM       uint32 // internal SRAM bytes
	FlashWords uint32
	EEPROM     uint32
}

// DataSize returns the size of the unified data space.
func (l Layout) DataSize() uint32 {
	return l.Registers + l.IO + l.SRAM
}

// Layout returns the memory geometry.
func (d *DeviceFile) Layout() Layout {
	return d.layout
}

// PCBytes returns the width of the program counter pushed on calls.
func (d *DeviceFile) PCBytes() int {
	if d.ProgSize > 128*1024 {
		return 3
	}
	return 2
}

// RegisterMap returns the flattened register map keyed by data address.
// 16-bit registers appear as two byte registers named NAME(L) and NAME(H).
func (d *DeviceFile) RegisterMap() map[uint64]*Register {
	return d.registerMap
}

// FindRegister looks a register up by name, case-insensitively.
func (d *DeviceFile) FindRegister(name string) (*Register, bool) {
	for _, r := range d.registerMap {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return nil, false
}

type table struct {
	devices map[string]*DeviceFile
	names   []string
}

var loadTable = sync.OnceValues(func() (*table, error) {
	return parseTable(devicesYAML)
})

func parseTable(doc []byte) (*table, error) {
	var files []*DeviceFile
	if err := yaml.Unmarshal(doc, &files); err != nil {
		return nil, fmt.Errorf("parsing device table: %w", err)
	}

	t := &table{devices: make(map[string]*DeviceFile, len(files))}
	for _, f := range files {
		if err := f.init(); err != nil {
			return nil, err
		}
		t.devices[strings.ToLower(f.Name)] = f
		t.names = append(t.names, f.Name)
	}
	sort.Strings(t.names)
	return t, nil
}

func (d *DeviceFile) init() error {
	seg := func(name string) (Segment, error) {
		for _, s := range d.Data {
			if s.Name == name {
				return s, nil
			}
		}
		return Segment{}, fmt.Errorf("%w: %s has no %s segment", ErrBadDescriptor, d.Name, name)
	}

	regs, err := seg(SegmentRegisters)
	if err != nil {
		return err
	}
	io, err := seg(SegmentIO)
	if err != nil {
		return err
	}
	sram, err := seg(SegmentSRAM)
	if err != nil {
		return err
	}
	if regs.Start != 0 || io.Start != regs.Size || sram.Start != io.Start+io.Size {
		return fmt.Errorf("%w: %s data segments are not contiguous", ErrBadDescriptor, d.Name)
	}
	if d.ProgSize%2 != 0 {
		return fmt.Errorf("%w: %s program size is odd", ErrBadDescriptor, d.Name)
	}

	d.layout = Layout{
		Registers:  regs.Size,
		IO:         io.Size,
		SRAM:       sram.Size,
		FlashWords: d.ProgSize / 2,
		EEPROM:     d.EEPROMSize,
	}

	d.registerMap = make(map[uint64]*Register)
	for _, m := range d.Modules {
		for i := range m.Registers {
			for _, r := range flatten(&m.Registers[i]) {
				d.registerMap[r.Offset] = r
			}
		}
	}
	return nil
}

func flatten(r *Register) []*Register {
	if r.Size != 2 {
		return []*Register{r}
	}
	low := &Register{
		Name:      r.Name + "(L)",
		Caption:   r.Caption + " Low Byte",
		Offset:    r.Offset,
		Size:      1,
		Bitfields: r.Bitfields,
	}
	high := &Register{
		Name:    r.Name + "(H)",
		Caption: r.Caption + " High Byte",
		Offset:  r.Offset + 1,
		Size:    1,
	}
	return []*Register{low, high}
}

// MCUList returns the names of all known devices, sorted.
func MCUList() []string {
	t, err := loadTable()
	if err != nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

// Lookup returns the descriptor of a device by case-insensitive name.
func Lookup(name string) (*DeviceFile, error) {
	t, err := loadTable()
	if err != nil {
		return nil, err
	}
	d, ok := t.devices[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMCU, name)
	}
	return d, nil
}

// RegisterMap returns the flattened register map of a device.
func RegisterMap(name string) (map[uint64]*Register, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.RegisterMap(), nil
}

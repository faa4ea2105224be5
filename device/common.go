package device

import (
	"fmt"
	"strings"
)

// Alias locates one CPU register in the data space.
type Alias struct {
	Name    string
	Address uint32
	Present bool
}

// CommonRegisters holds the CPU registers the execution engine addresses
// by role rather than by number.
type CommonRegisters struct {
	SREG  Alias
	SPL   Alias
	SPH   Alias
	EIND  Alias
	RAMPX Alias
	RAMPY Alias
	RAMPZ Alias
	RAMPD Alias
	MCUCR Alias
}

// CommonRegisters resolves the common registers by name from the CPU module.
func (d *DeviceFile) CommonRegisters() (CommonRegisters, error) {
	var cpu *Module
	for i := range d.Modules {
		if strings.EqualFold(d.Modules[i].Name, "CPU") {
			cpu = &d.Modules[i]
			break
		}
	}
	if cpu == nil {
		return CommonRegisters{}, fmt.Errorf("%w: %s", ErrNoCPUModule, d.Name)
	}

	byName := make(map[string]*Register)
	for i := range cpu.Registers {
		for _, r := range flatten(&cpu.Registers[i]) {
			byName[strings.ToUpper(r.Name)] = r
		}
	}

	find := func(names ...string) Alias {
		for _, n := range names {
			if r, ok := byName[n]; ok {
				return Alias{Name: r.Name, Address: uint32(r.Offset), Present: true}
			}
		}
		return Alias{Name: names[0]}
	}

	return CommonRegisters{
		SREG:  find("SREG"),
		SPL:   find("SPL", "SP(L)"),
		SPH:   find("SPH", "SP(H)"),
		EIND:  find("EIND"),
		RAMPX: find("RAMPX"),
		RAMPY: find("RAMPY"),
		RAMPZ: find("RAMPZ"),
		RAMPD: find("RAMPD"),
		MCUCR: find("MCUCR"),
	}, nil
}

// CommonRegistersOf resolves the common registers of a named device.
func CommonRegistersOf(name string) (CommonRegisters, error) {
	d, err := Lookup(name)
	if err != nil {
		return CommonRegisters{}, err
	}
	return d.CommonRegisters()
}

package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/avrsim/device"
	"github.com/sarchlab/avrsim/emu"
)

// printState writes the register file and the special registers of e.
func printState(w io.Writer, e *emu.Emulator) {
	rf := e.RegFile()
	printRegisters(w, e.Memory().Data.Registers, e.PC(), rf.SP(), rf.SREG())
}

func printRegisters(w io.Writer, regs []uint8, pc, sp uint32, sreg uint8) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Registers")
	t.AppendHeader(table.Row{"", "+0", "+1", "+2", "+3", "+4", "+5", "+6", "+7"})

	for base := 0; base < len(regs); base += 8 {
		row := table.Row{fmt.Sprintf("r%d", base)}
		for i := base; i < base+8 && i < len(regs); i++ {
			row = append(row, fmt.Sprintf("%02x", regs[i]))
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{
		"PC", fmt.Sprintf("%#x", pc*2),
		"SP", fmt.Sprintf("%#x", sp),
		"SREG", emu.FormatSREG(sreg),
	})
	t.Render()
}

func printMCUs(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"MCU", "Core", "Flash", "SRAM", "EEPROM"})
	for _, name := range device.MCUList() {
		dev, err := device.Lookup(name)
		if err != nil {
			continue
		}
		l := dev.Layout()
		t.AppendRow(table.Row{dev.Name, dev.Core, l.FlashWords * 2, l.SRAM, l.EEPROM})
	}
	t.Render()
}

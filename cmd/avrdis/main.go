// Package main provides the avrdis command, which disassembles an Intel HEX
// flash image for an AVR device.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/k0kubun/pp/v3"

	"github.com/sarchlab/avrsim/device"
	"github.com/sarchlab/avrsim/insts"
	"github.com/sarchlab/avrsim/loader"
)

var (
	mcu       = flag.String("mcu", "ATmega328P", "MCU whose register names annotate I/O operands")
	byteOrder = flag.String("byte-order", "big", "How hex payload bytes pair into words: big or little")
	lenient   = flag.Bool("lenient", false, "Keep undecodable words as .word data")
	dump      = flag.Bool("dump", false, "Pretty-print the decoded instruction structures")
	records   = flag.Bool("records", false, "Write persisted instruction records as JSON")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: avrdis [options] <program.hex>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	prog, err := load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *dump:
		for _, inst := range prog {
			pp.Println(inst)
		}
	case *records:
		err = writeRecords(prog)
	default:
		writeListing(prog)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func load(path string) ([]*insts.Instruction, error) {
	dev, err := device.Lookup(*mcu)
	if err != nil {
		return nil, err
	}
	order, err := loader.ParseByteOrder(*byteOrder)
	if err != nil {
		return nil, err
	}

	opts := []loader.Option{loader.WithByteOrder(order)}
	if *lenient {
		opts = append(opts, loader.WithLenientDecoding())
	}
	prog, err := loader.Load(path, opts...)
	if err != nil {
		return nil, err
	}

	regs := dev.RegisterMap()
	ioBase := uint64(dev.Layout().Registers)
	for _, inst := range prog.Instructions {
		insts.Annotate(inst)
		insts.ResolveOperandInfo(inst, regs, ioBase)
	}
	return prog.Instructions, nil
}

func writeListing(prog []*insts.Instruction) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.AppendHeader(table.Row{"Address", "Words", "Instruction", "Comment"})

	for _, inst := range prog {
		if inst.ID == insts.IDContinuation {
			continue
		}

		words := make([]string, 0, 2)
		for _, w := range inst.FlashWords() {
			words = append(words, fmt.Sprintf("%04x", w))
		}

		comment := inst.FormattedComment()
		for _, o := range inst.Operands {
			if o.Info != nil {
				comment = strings.TrimSpace(comment + " " + o.Info.Register)
			}
		}
		for _, d := range inst.Diagnostics() {
			comment = strings.TrimSpace(comment + " ; " + d)
		}

		t.AppendRow(table.Row{
			fmt.Sprintf("%#06x", inst.Address*2),
			strings.Join(words, " "),
			inst.String(),
			comment,
		})
	}
	t.Render()
}

func writeRecords(prog []*insts.Instruction) error {
	out := make([]insts.Record, 0, len(prog))
	for _, inst := range prog {
		r, err := inst.ToRecord()
		if err != nil {
			return fmt.Errorf("%#x: %w", inst.Address*2, err)
		}
		out = append(out, r)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

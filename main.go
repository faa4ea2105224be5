// Package main provides the entry point for avrsim.
// avrsim is an AVR 8-bit microcontroller emulator with a clocked core
// built on Akita.
//
// For the full CLI, use: go run ./cmd/avrsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("avrsim - AVR 8-bit Microcontroller Emulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: avrsim [options] <program.hex>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -mcu       MCU to simulate (default ATmega328P)")
	fmt.Println("  -timing    Run on the clocked core and report cycles")
	fmt.Println("  -config    Path to a project configuration JSON file")
	fmt.Println("  -i         Start the interactive debugger")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/avrsim' for the full CLI and")
	fmt.Println("'go run ./cmd/avrdis' to disassemble an image.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/avrsim' instead.")
	}
}

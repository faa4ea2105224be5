package benchmarks

import (
	"fmt"

	"github.com/sarchlab/avrsim/emu"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets an instruction class and states its cycle count from the AVR
// instruction set manual.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		countdownLoop(),
		memoryCopy(),
		functionCalls(),
		multiplyAccumulate(),
		skipHeavy(),
		longCall(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		countdownLoop(),
		functionCalls(),
		skipHeavy(),
	}
}

func expectReg(e *emu.Emulator, n int64, want uint8) error {
	got, err := e.RegFile().ReadReg(n)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("r%d = %#x, want %#x", n, got, want)
	}
	return nil
}

func expectWord(e *emu.Emulator, n int64, want uint16) error {
	got, err := e.RegFile().ReadWord(n)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("r%d:r%d = %#x, want %#x", n+1, n, got, want)
	}
	return nil
}

func arithmeticSequential() Benchmark {
	var prog []string
	for i := 0; i < 4; i++ {
		for r := 16; r <= 20; r++ {
			prog = append(prog, fmt.Sprintf("inc r%d", r))
		}
	}
	prog = append(prog, "break")

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 single-cycle INCs over five registers",
		MCU:         "ATmega328P",
		Program:     prog,
		Check: func(e *emu.Emulator) error {
			return expectReg(e, 20, 4)
		},
		ExpectedCycles: 21,
	}
}

func countdownLoop() Benchmark {
	return Benchmark{
		Name:        "countdown_loop",
		Description: "256 iterations of SBIW/BRNE on a register pair",
		MCU:         "ATmega328P",
		Program: []string{
			"ldi r24, 0x00",
			"ldi r25, 0x01",
			"sbiw r24, 1",
			"brne .-4",
			"break",
		},
		Check: func(e *emu.Emulator) error {
			return expectWord(e, 24, 0)
		},
		ExpectedCycles: 1026,
	}
}

func memoryCopy() Benchmark {
	src := []uint8{1, 2, 3, 4, 5, 6, 7, 8}

	return Benchmark{
		Name:        "memory_copy",
		Description: "copies 8 bytes with LD X+ and ST Z+",
		MCU:         "ATmega328P",
		Program: []string{
			"ldi r26, 0x00",
			"ldi r27, 0x01",
			"ldi r30, 0x00",
			"ldi r31, 0x02",
			"ldi r18, 8",
			"ld r0, X+",
			"st Z+, r0",
			"dec r18",
			"brne .-8",
			"break",
		},
		Setup: func(e *emu.Emulator) error {
			for i, b := range src {
				if err := e.Memory().Data.Write(0x100+uint32(i), b); err != nil {
					return err
				}
			}
			return nil
		},
		Check: func(e *emu.Emulator) error {
			for i, want := range src {
				got, err := e.Memory().Data.Read(0x200 + uint32(i))
				if err != nil {
					return err
				}
				if got != want {
					return fmt.Errorf("byte %d = %d, want %d", i, got, want)
				}
			}
			return nil
		},
		ExpectedCycles: 61,
	}
}

func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "three RCALL/RET round trips",
		MCU:         "ATmega328P",
		Program: []string{
			"ldi r16, 0",
			"rcall .+6",
			"rcall .+4",
			"rcall .+2",
			"break",
			"inc r16",
			"ret",
		},
		Check: func(e *emu.Emulator) error {
			if sp := e.RegFile().SP(); sp != e.Memory().Data.Len()-1 {
				return fmt.Errorf("stack not balanced, sp = %#x", sp)
			}
			return expectReg(e, 16, 3)
		},
		ExpectedCycles: 26,
	}
}

func multiplyAccumulate() Benchmark {
	return Benchmark{
		Name:        "multiply_accumulate",
		Description: "two 8x8 MULs summed into a 16-bit accumulator",
		MCU:         "ATmega328P",
		Program: []string{
			"ldi r16, 10",
			"ldi r17, 20",
			"mul r16, r17",
			"movw r2, r0",
			"mul r17, r17",
			"add r2, r0",
			"adc r3, r1",
			"break",
		},
		Check: func(e *emu.Emulator) error {
			return expectWord(e, 2, 600)
		},
		ExpectedCycles: 10,
	}
}

func skipHeavy() Benchmark {
	return Benchmark{
		Name:        "skip_heavy",
		Description: "SBRS skipping every other INC in a loop",
		MCU:         "ATmega328P",
		Program: []string{
			"ldi r16, 0",
			"ldi r17, 4",
			"sbrs r17, 0",
			"inc r16",
			"dec r17",
			"brne .-8",
			"break",
		},
		Check: func(e *emu.Emulator) error {
			return expectReg(e, 16, 2)
		},
		ExpectedCycles: 22,
	}
}

func longCall() Benchmark {
	return Benchmark{
		Name:        "long_call",
		Description: "CALL/RET pushing a three-byte PC",
		MCU:         "ATmega2560",
		Program: []string{
			"call 0x6",
			"break",
			"inc r16",
			"ret",
		},
		Check: func(e *emu.Emulator) error {
			return expectReg(e, 16, 1)
		},
		ExpectedCycles: 12,
	}
}

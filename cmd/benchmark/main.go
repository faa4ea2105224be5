// Command benchmark runs the avrsim timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv    Output results in CSV format (default: human-readable)
//	-json   Output results as a JSON report
//	-core   Run only the core benchmark set
//	-freq   MCU clock in MHz
//
// Every benchmark states the cycle count the AVR instruction set manual
// gives for it; a run whose simulated cycles differ is reported as a
// mismatch.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/avrsim/benchmarks"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	coreOnly := flag.Bool("core", false, "Run only the core benchmark set")
	freqMHz := flag.Float64("freq", 16, "MCU clock in MHz")
	verbose := flag.Bool("v", false, "Print each benchmark as it finishes")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Freq = sim.Freq(*freqMHz) * sim.MHz
	config.Verbose = *verbose
	config.Output = os.Stdout

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		fmt.Println("avrsim Timing Benchmark Harness")
		fmt.Println("===============================")
		fmt.Printf("Clock: %.1f MHz\n\n", *freqMHz)
		harness.PrintResults(results)
	}

	for _, r := range results {
		if r.Error != "" || (r.ExpectedCycles != 0 && r.ExpectedCycles != r.SimulatedCycles) {
			os.Exit(1)
		}
	}
}

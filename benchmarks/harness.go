// Package benchmarks runs small AVR programs on the clocked core and
// reports their cycle counts.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/avrsim/device"
	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/insts"
	"github.com/sarchlab/avrsim/timing/core"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MCU         string `json:"mcu"`

	// SimulatedCycles is the number of clock cycles ticked until BREAK.
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// ExpectedCycles is the count from the instruction set manual, if
	// the benchmark states one.
	ExpectedCycles uint64 `json:"expected_cycles,omitempty"`

	InstructionsRetired uint64  `json:"instructions_retired"`
	CPI                 float64 `json:"cpi"`
	StallCycles         uint64  `json:"stall_cycles"`

	// SimulatedTime is the run time on the MCU at the harness clock.
	SimulatedTime time.Duration `json:"simulated_time_ns"`

	// Error is set when the benchmark failed to run or its check failed.
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation.
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	Name        string
	Description string

	// MCU is the device to run on.
	MCU string

	// Program is assembly text, one instruction per line, placed from
	// word address 0. It must end in BREAK.
	Program []string

	// Setup prepares the emulator state after the program is loaded.
	Setup func(e *emu.Emulator) error

	// Check validates the architectural state after the run.
	Check func(e *emu.Emulator) error

	ExpectedCycles uint64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Freq is the MCU clock.
	Freq sim.Freq

	// MaxCycles bounds each run. Zero means no limit.
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout).
	Output io.Writer

	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Freq:      core.DefaultFreq,
		MaxCycles: 1_000_000,
		Output:    os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Freq == 0 {
		config.Freq = core.DefaultFreq
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))
	for _, bench := range h.benchmarks {
		results = append(results, h.runBenchmark(bench))
	}
	return results
}

// Assemble assembles one instruction per line from word address 0.
func Assemble(lines ...string) ([]*insts.Instruction, error) {
	var prog []*insts.Instruction
	addr := uint32(0)
	for _, l := range lines {
		inst, err := insts.ParseLine(l, addr)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", l, err)
		}
		prog = append(prog, inst)
		addr += inst.Len()
	}
	return prog, nil
}

func (h *Harness) prepare(bench Benchmark) (*emu.Emulator, error) {
	dev, err := device.Lookup(bench.MCU)
	if err != nil {
		return nil, err
	}
	e, err := emu.NewEmulator(dev)
	if err != nil {
		return nil, err
	}

	prog, err := Assemble(bench.Program...)
	if err != nil {
		return nil, err
	}
	if err := e.LoadProgram(prog); err != nil {
		return nil, err
	}

	if bench.Setup != nil {
		if err := bench.Setup(e); err != nil {
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return e, nil
}

// runBenchmark executes a single benchmark on a fresh engine.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:           bench.Name,
		Description:    bench.Description,
		MCU:            bench.MCU,
		ExpectedCycles: bench.ExpectedCycles,
	}

	e, err := h.prepare(bench)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	engine := sim.NewSerialEngine()
	c := core.MakeBuilder().
		WithEngine(engine).
		WithFreq(h.config.Freq).
		WithMaxCycles(h.config.MaxCycles).
		Build(bench.Name, e)

	start := time.Now()
	c.Start()
	err = engine.Run()
	result.WallTime = time.Since(start)

	stats := c.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.StallCycles = stats.Stalls
	if stats.Instructions > 0 {
		result.CPI = float64(stats.Cycles) / float64(stats.Instructions)
	}
	result.SimulatedTime = time.Duration(float64(stats.Cycles) / float64(h.config.Freq) * float64(time.Second))

	switch {
	case err != nil:
		result.Error = err.Error()
	case c.Err() != nil:
		result.Error = c.Err().Error()
	case !c.Halted():
		result.Error = fmt.Sprintf("no BREAK within %d cycles", h.config.MaxCycles)
	case bench.Check != nil:
		if err := bench.Check(e); err != nil {
			result.Error = err.Error()
		}
	}

	if h.config.Verbose {
		_, _ = fmt.Fprintf(h.config.Output, "%s: %d cycles, %d instructions\n",
			bench.Name, result.SimulatedCycles, result.InstructionsRetired)
	}
	return result
}

// PrintResults outputs benchmark results as a table.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	t := table.NewWriter()
	t.SetOutputMirror(h.config.Output)
	t.SetTitle("AVR Timing Benchmark Results")
	t.AppendHeader(table.Row{"Benchmark", "MCU", "Cycles", "Expected", "Insts", "CPI", "Stalls", "Time", "Status"})

	for _, r := range results {
		status := "ok"
		if r.Error != "" {
			status = r.Error
		} else if r.ExpectedCycles != 0 && r.ExpectedCycles != r.SimulatedCycles {
			status = "cycle mismatch"
		}
		t.AppendRow(table.Row{
			r.Name, r.MCU, r.SimulatedCycles, r.ExpectedCycles, r.InstructionsRetired,
			fmt.Sprintf("%.3f", r.CPI), r.StallCycles, r.SimulatedTime, status,
		})
	}
	t.Render()
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "name,mcu,cycles,expected_cycles,instructions,cpi,stalls,error")
	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%.3f,%d,%q\n",
			r.Name, r.MCU, r.SimulatedCycles, r.ExpectedCycles,
			r.InstructionsRetired, r.CPI, r.StallCycles, r.Error)
	}
}

// BenchmarkReport is the JSON document written by PrintJSON.
type BenchmarkReport struct {
	Timestamp string            `json:"timestamp"`
	ClockHz   float64           `json:"clock_hz"`
	Results   []BenchmarkResult `json:"results"`
	Summary   ReportSummary     `json:"summary"`
}

// ReportSummary aggregates a report's results.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	Failed            int           `json:"failed"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated
// comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var summary ReportSummary
	summary.TotalBenchmarks = len(results)
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
		if r.Error != "" {
			summary.Failed++
		}
	}
	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	report := BenchmarkReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ClockHz:   float64(h.config.Freq),
		Results:   results,
		Summary:   summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// Package main provides the avrsim command, which runs an Intel HEX image on
// an emulated AVR microcontroller.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/avrsim/config"
	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/loader"
	"github.com/sarchlab/avrsim/timing/core"
	"github.com/sarchlab/avrsim/timing/latency"
)

var (
	configPath   = flag.String("config", "", "Path to a project configuration JSON file")
	mcu          = flag.String("mcu", "", "MCU to simulate (overrides the configuration)")
	eepPath      = flag.String("eep", "", "Intel HEX EEPROM image to preload")
	maxInsts     = flag.Uint64("max", 0, "Stop after this many instructions (0: no limit)")
	logLevel     = flag.String("log-level", "", "Log level: trace, debug, info, warn or error")
	logJSON      = flag.Bool("log-json", false, "Write logs as JSON")
	timing       = flag.Bool("timing", false, "Run on the clocked core and report cycles")
	timingConfig = flag.String("timing-config", "", "Path to an instruction timing JSON file")
	interactive  = flag.Bool("i", false, "Start the interactive debugger")
	listMCUs     = flag.Bool("list", false, "List the supported MCUs and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *listMCUs {
		printMCUs(os.Stdout)
		atexit.Exit(0)
	}

	if flag.NArg() < 1 {
		usage()
		atexit.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		fail("configuration", err)
	}

	if err := setupLogging(cfg); err != nil {
		fail("logging", err)
	}

	build := emulatorFactory(cfg, flag.Arg(0))

	if *interactive {
		atexit.Exit(runInteractive(cfg, build))
	}

	e, err := build()
	if err != nil {
		fail("setup", err)
	}

	if *timing {
		atexit.Exit(runTiming(cfg, e))
	}
	atexit.Exit(runEmulation(e))
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: avrsim [options] <program.hex>\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "Error in %s: %v\n", what, err)
	atexit.Exit(1)
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}

	if *mcu != "" {
		cfg.MCU = *mcu
	}
	if *maxInsts != 0 {
		cfg.MaxInstructions = *maxInsts
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) error {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if *logJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// emulatorFactory returns a function that builds a fresh emulator with the
// image, and the EEPROM image if one is given, loaded.
func emulatorFactory(cfg *config.Config, hexPath string) func() (*emu.Emulator, error) {
	return func() (*emu.Emulator, error) {
		dev, err := cfg.Device()
		if err != nil {
			return nil, err
		}

		opts := []emu.EmulatorOption{emu.WithMaxInstructions(cfg.MaxInstructions)}
		if *timingConfig != "" {
			c, err := latency.ParseCore(dev.Core)
			if err != nil {
				return nil, err
			}
			tc, err := latency.LoadConfig(*timingConfig, c)
			if err != nil {
				return nil, err
			}
			opts = append(opts, emu.WithLatencyTable(latency.NewTableWithConfig(c, dev.PCBytes(), tc)))
		}

		e, err := emu.NewEmulator(dev, opts...)
		if err != nil {
			return nil, err
		}

		loaderOpts, err := cfg.LoaderOptions()
		if err != nil {
			return nil, err
		}
		prog, err := loader.Load(hexPath, loaderOpts...)
		if err != nil {
			return nil, err
		}
		if err := e.LoadProgram(prog.Instructions); err != nil {
			return nil, err
		}

		if *eepPath != "" {
			image, err := loader.LoadEEPROMFile(*eepPath)
			if err != nil {
				return nil, err
			}
			if err := e.LoadEEPROM(image); err != nil {
				return nil, err
			}
		}

		slog.Info("program loaded",
			"mcu", dev.Name, "path", hexPath, "instructions", len(prog.Instructions))
		return e, nil
	}
}

// runEmulation runs the program functionally until BREAK.
func runEmulation(e *emu.Emulator) int {
	start := time.Now()
	err := e.Run()
	wall := time.Since(start)

	printState(os.Stdout, e)
	fmt.Printf("Instructions: %d\n", e.InstructionCount())
	fmt.Printf("Cycles:       %d\n", e.CycleCount())
	fmt.Printf("Wall time:    %v\n", wall)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Execution stopped: %v\n", err)
		return 1
	}
	return 0
}

// runTiming runs the program on the clocked core at the configured clock.
func runTiming(cfg *config.Config, e *emu.Emulator) int {
	engine := sim.NewSerialEngine()
	c := core.MakeBuilder().
		WithEngine(engine).
		WithFreq(sim.Freq(cfg.ClockHz)).
		Build("Core", e)

	c.Start()
	if err := engine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Engine error: %v\n", err)
		return 1
	}

	stats := c.Stats()
	printState(os.Stdout, e)
	fmt.Printf("Instructions: %d\n", stats.Instructions)
	fmt.Printf("Cycles:       %d\n", stats.Cycles)
	fmt.Printf("Stalls:       %d\n", stats.Stalls)
	if stats.Instructions > 0 {
		fmt.Printf("CPI:          %.3f\n", float64(stats.Cycles)/float64(stats.Instructions))
	}
	simulated := time.Duration(float64(stats.Cycles) / float64(cfg.ClockHz) * float64(time.Second))
	fmt.Printf("MCU time:     %v at %d Hz\n", simulated, cfg.ClockHz)

	if err := c.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Execution stopped: %v\n", err)
		return 1
	}
	return 0
}

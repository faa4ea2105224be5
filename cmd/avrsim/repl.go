package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tebeka/atexit"
	"golang.org/x/term"

	"github.com/sarchlab/avrsim/config"
	"github.com/sarchlab/avrsim/driver"
)

const helpText = `Commands:
  run, r              run until BREAK or a breakpoint
  pause, p            pause a run
  step, s             execute one instruction
  next, n             step over calls
  break, b <addr>     toggle a breakpoint at a flash byte address
  watch, w <reg>      toggle a watched I/O register
  auto on|off         report watched registers while running
  regs                print the registers
  reset               reload the program on a new worker
  quit, q             stop the simulation and exit`

// consoleSink prints driver events. Its methods are called from the
// worker and the controller goroutines.
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *consoleSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *consoleSink) StateChanged(state driver.State, err error) {
	if err != nil {
		s.printf("simulation %s: %v\n", state, err)
		return
	}
	slog.Debug("simulation state", "state", state)
}

func (s *consoleSink) Status(action driver.Action) {
	s.printf("[%s]\n", action)
}

func (s *consoleSink) Location(pc uint32) {
	s.printf("pc = %#x\n", pc*2)
}

func (s *consoleSink) Registers([]uint8) {}

func (s *consoleSink) WatchList(values map[string]uint8) {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		fmt.Fprintf(s.out, "  %-8s = %#04x\n", n, values[n])
	}
}

func (s *consoleSink) Breakpoints(addrs []uint32) {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = fmt.Sprintf("%#x", a*2)
	}
	s.printf("breakpoints: [%s]\n", strings.Join(parts, " "))
}

func (s *consoleSink) AutoUpdate(enabled bool) {
	s.printf("auto update: %v\n", enabled)
}

func (s *consoleSink) Snapshot(snap driver.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	printRegisters(s.out, snap.Registers, snap.PC, snap.SP, snap.SREG)
	fmt.Fprintf(s.out, "instructions: %d, cycles: %d\n", snap.Instructions, snap.Cycles)
}

func (s *consoleSink) Halted(pc uint32) {
	s.printf("BREAK at %#x\n", (pc-1)*2)
}

// runInteractive reads debugger commands from stdin until quit or EOF.
func runInteractive(cfg *config.Config, build driver.EmulatorFactory) int {
	sink := &consoleSink{out: os.Stdout}
	interval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	ctrl := driver.NewController(sink, build, driver.WithPollInterval(interval))
	atexit.Register(func() {
		if err := ctrl.Stop(); err != nil {
			slog.Warn("failed to stop simulation", "err", err)
		}
	})

	if err := ctrl.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting simulation: %v\n", err)
		return 1
	}

	done := make(chan struct{})
	defer close(done)
	go pump(ctrl, interval, done)

	prompt := term.IsTerminal(int(os.Stdin.Fd()))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if prompt {
			sink.printf("(avrsim) ")
		}
		if !scanner.Scan() {
			return 0
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if strings.EqualFold(fields[0], "reset") {
			if err := ctrl.Restart(); err != nil {
				sink.printf("reset: %v\n", err)
			}
			continue
		}

		cmd, quit, err := parseCommand(fields)
		switch {
		case quit:
			return 0
		case err != nil:
			sink.printf("%v\n", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = ctrl.DoAndWait(ctx, cmd)
		cancel()
		if err != nil {
			sink.printf("%s: %v\n", cmd.Action, err)
		}
	}
}

// pump drains worker responses so a failed run is reported while the
// user is not typing.
func pump(ctrl *driver.Controller, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ctrl.Update(); err != nil {
				slog.Warn("simulation update failed", "err", err)
			}
		}
	}
}

func parseCommand(fields []string) (cmd driver.Command, quit bool, err error) {
	arg := func() (string, error) {
		if len(fields) < 2 {
			return "", fmt.Errorf("%s needs an argument", fields[0])
		}
		return fields[1], nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "q", "exit":
		return cmd, true, nil
	case "help", "h", "?":
		return cmd, false, errors.New(helpText)
	case "run", "r", "c":
		return driver.Run(), false, nil
	case "pause", "p":
		return driver.Pause(), false, nil
	case "step", "s":
		return driver.Step(), false, nil
	case "next", "n":
		return driver.StepOver(), false, nil
	case "regs", "snap":
		return driver.TakeSnapshot(), false, nil
	case "break", "b":
		a, err := arg()
		if err != nil {
			return cmd, false, err
		}
		addr, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			return cmd, false, fmt.Errorf("bad address %q", a)
		}
		return driver.ToggleBreakpoint(uint32(addr / 2)), false, nil
	case "watch", "w":
		name, err := arg()
		if err != nil {
			return cmd, false, err
		}
		return driver.ToggleWatch(name), false, nil
	case "auto":
		a, err := arg()
		if err != nil {
			return cmd, false, err
		}
		return driver.WatchUpdate(a == "on"), false, nil
	}
	return cmd, false, fmt.Errorf("unknown command %q\n%s", fields[0], helpText)
}

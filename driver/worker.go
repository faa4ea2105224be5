package driver

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sarchlab/avrsim/emu"
)

type responseKind int

const (
	responseReady responseKind = iota
	responseFailed
	responseResult
	responseJoin
)

type response struct {
	kind responseKind
	// id is the command a result answers.
	id  uint64
	err error
}

// worker owns the emulator. It runs on its own goroutine and is only
// reached through its command channel.
type worker struct {
	sink      EventSink
	build     EmulatorFactory
	commands  <-chan Command
	responses chan<- response
	interval  time.Duration

	emulator *emu.Emulator
	buildErr error

	action   Action
	prev     Action
	cmd      Command
	executed bool

	breakpoints []uint32
	watch       map[string]uint32
	autoUpdate  bool
	lastWatch   time.Time
}

func newWorker(
	sink EventSink,
	build EmulatorFactory,
	commands <-chan Command,
	responses chan<- response,
	interval time.Duration,
) *worker {
	return &worker{
		sink:      sink,
		build:     build,
		commands:  commands,
		responses: responses,
		interval:  interval,
		watch:     make(map[string]uint32),
	}
}

// loop runs the worker until it is stopped or its command channel closes.
func (w *worker) loop() {
	defer close(w.responses)

	w.init()
	for !w.runOnce() {
	}
	slog.Info("worker finished")
}

func (w *worker) init() {
	e, err := w.build()
	if err != nil {
		w.action = ActionPause
		w.buildErr = fmt.Errorf("failed to build emulator: %w", err)
		w.responses <- response{kind: responseFailed, err: w.buildErr}
		return
	}

	w.emulator = e
	w.responses <- response{kind: responseReady}
}

// idle reports whether the worker has nothing to do until the next
// command.
func (w *worker) idle() bool {
	return w.action == ActionPause && w.executed
}

// runOnce takes at most one command and performs one unit of the current
// action. It returns true once the worker should exit.
func (w *worker) runOnce() bool {
	var (
		cmd      Command
		ok       bool
		received bool
	)
	if w.idle() {
		cmd, ok = <-w.commands
		received = true
	} else {
		select {
		case cmd, ok = <-w.commands:
			received = true
		default:
		}
	}

	if received {
		if ok {
			w.prev = w.action
			w.action = cmd.Action
			w.cmd = cmd
			w.executed = false
		} else {
			slog.Info("worker disconnected")
			w.action = ActionStop
			received = false
		}
	}

	stop, err := w.handle()
	switch {
	case err != nil:
		w.action = ActionPause
		w.responses <- response{kind: responseResult, id: w.cmd.id, err: err}
	case stop:
		w.responses <- response{kind: responseJoin}
		return true
	case received:
		w.responses <- response{kind: responseResult, id: w.cmd.id}
	}
	return false
}

func (w *worker) handle() (bool, error) {
	switch w.action {
	case ActionRun:
		return false, w.run()
	case ActionPause:
		w.pause()
		return false, nil
	case ActionStop:
		return true, nil
	case ActionStep:
		w.action = ActionPause
		_, err := w.step()
		return false, err
	case ActionStepOver:
		w.action = ActionPause
		return false, w.stepOver()
	case ActionToggleBreakpoint:
		w.action = w.prev
		w.toggleBreakpoint(w.cmd.Address)
		return false, nil
	case ActionToggleWatch:
		w.action = w.prev
		return false, w.toggleWatch(w.cmd.Register)
	case ActionWatchUpdate:
		w.action = w.prev
		w.autoUpdate = w.cmd.Enabled
		w.sink.AutoUpdate(w.autoUpdate)
		return false, nil
	case ActionSnapshot:
		w.action = w.prev
		return false, w.snapshot()
	}

	a := w.action
	w.action = w.prev
	return false, fmt.Errorf("%w: %s", ErrUnknownAction, a)
}

// run executes one instruction. The first instruction after a resume is
// executed even when it sits on a breakpoint.
func (w *worker) run() error {
	if w.emulator == nil {
		return w.notInitialized()
	}

	if w.prev != ActionRun {
		w.prev = ActionRun
		w.sink.Status(ActionRun)
		halted, err := w.step()
		if err != nil || halted {
			return err
		}
	}

	if w.atBreakpoint() {
		w.action = ActionPause
		return nil
	}

	if _, err := w.step(); err != nil {
		return err
	}
	w.publishWatch()
	return nil
}

// pause publishes the paused state once.
func (w *worker) pause() {
	if w.executed {
		return
	}
	w.executed = true
	if w.emulator == nil {
		return
	}

	w.sink.Status(ActionPause)
	w.sink.Location(w.emulator.PC())
	w.sink.Registers(slices.Clone(w.emulator.Memory().Data.Registers))
	w.sink.WatchList(w.watchValues())
}

// step executes one instruction and pauses on BREAK.
func (w *worker) step() (bool, error) {
	if w.emulator == nil {
		return false, w.notInitialized()
	}

	r := w.emulator.Step()
	if r.Err != nil {
		return false, r.Err
	}
	if r.Halted {
		w.action = ActionPause
		w.sink.Halted(w.emulator.PC())
	}
	return r.Halted, nil
}

// stepOver executes one instruction, and when it is a call, keeps going
// until the matching return. A breakpoint or a pending command ends it
// early.
func (w *worker) stepOver() error {
	if w.emulator == nil {
		return w.notInitialized()
	}

	depth := 0
	for {
		inst, err := w.emulator.Memory().Fetch(w.emulator.PC())
		if err != nil {
			return err
		}

		halted, err := w.step()
		if err != nil || halted {
			return err
		}

		switch op := inst.Op(); {
		case op.IsCall():
			depth++
		case op.IsReturn():
			depth--
		}
		if depth <= 0 || w.atBreakpoint() || len(w.commands) > 0 {
			return nil
		}
	}
}

// notInitialized is the error of a command that needs the emulator the
// worker failed to build.
func (w *worker) notInitialized() error {
	if w.buildErr == nil {
		return ErrNotInitialized
	}
	return fmt.Errorf("%w: %w", ErrNotInitialized, w.buildErr)
}

func (w *worker) atBreakpoint() bool {
	return slices.Contains(w.breakpoints, w.emulator.PC())
}

func (w *worker) toggleBreakpoint(addr uint32) {
	if i := slices.Index(w.breakpoints, addr); i >= 0 {
		w.breakpoints = slices.Delete(w.breakpoints, i, i+1)
	} else {
		w.breakpoints = append(w.breakpoints, addr)
	}
	w.sink.Breakpoints(slices.Clone(w.breakpoints))
}

func (w *worker) toggleWatch(name string) error {
	if w.emulator == nil {
		return w.notInitialized()
	}

	name = strings.ToUpper(strings.TrimSpace(name))
	if _, ok := w.watch[name]; ok {
		delete(w.watch, name)
	} else {
		reg, ok := w.emulator.Device().FindRegister(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRegister, name)
		}
		w.watch[name] = uint32(reg.Offset)
	}

	addrs := make([]uint32, 0, len(w.watch))
	for _, a := range w.watch {
		addrs = append(addrs, a)
	}
	w.emulator.Memory().Data.SetWatchList(addrs)

	w.sink.WatchList(w.watchValues())
	return nil
}

func (w *worker) watchValues() map[string]uint8 {
	data := w.emulator.Memory().Data
	values := make(map[string]uint8, len(w.watch))
	for name, addr := range w.watch {
		v, err := data.Read(addr)
		if err != nil {
			v = 0
		}
		values[name] = v
	}
	return values
}

// publishWatch reports watched registers written while running, at most
// once per poll interval.
func (w *worker) publishWatch() {
	data := w.emulator.Memory().Data
	if !w.autoUpdate || !data.WriteObserved() {
		return
	}
	if time.Since(w.lastWatch) < w.interval {
		return
	}

	data.ResetWriteObserved()
	w.lastWatch = time.Now()
	w.sink.WatchList(w.watchValues())
}

func (w *worker) snapshot() error {
	if w.emulator == nil {
		return w.notInitialized()
	}

	rf := w.emulator.RegFile()
	w.sink.Snapshot(Snapshot{
		PC:           w.emulator.PC(),
		SP:           rf.SP(),
		SREG:         rf.SREG(),
		Registers:    slices.Clone(w.emulator.Memory().Data.Registers),
		Cycles:       w.emulator.CycleCount(),
		Instructions: w.emulator.InstructionCount(),
	})
	return nil
}

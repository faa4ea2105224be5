// Package driver sequences run, pause, step and breakpoint actions over an
// emulator running on its own goroutine.
//
// A Controller owns the worker goroutine. Commands flow to the worker over
// one channel and responses flow back over another; everything the worker
// wants to show a user is published through an EventSink.
package driver

import (
	"errors"
	"fmt"

	"github.com/sarchlab/avrsim/emu"
)

var (
	// ErrWorkerDisconnected is returned when the worker goroutine is gone.
	ErrWorkerDisconnected = errors.New("worker disconnected")

	// ErrNotInitialized is returned for commands that need an emulator
	// the worker failed to build.
	ErrNotInitialized = errors.New("simulation not initialized")

	// ErrUnknownRegister is returned when a watched register name is not
	// in the device's register map.
	ErrUnknownRegister = errors.New("unknown register")

	// ErrUnknownAction is returned for an Action the worker does not know.
	ErrUnknownAction = errors.New("unknown action")
)

// Action is what the worker is asked to do.
type Action int

// Actions.
const (
	ActionPause Action = iota
	ActionRun
	ActionStop
	ActionStep
	ActionStepOver
	ActionToggleBreakpoint
	ActionToggleWatch
	ActionWatchUpdate
	ActionSnapshot
)

var actionNames = map[Action]string{
	ActionPause:            "pause",
	ActionRun:              "run",
	ActionStop:             "stop",
	ActionStep:             "step",
	ActionStepOver:         "step-over",
	ActionToggleBreakpoint: "break",
	ActionToggleWatch:      "watch",
	ActionWatchUpdate:      "watch-update",
	ActionSnapshot:         "snapshot",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Command is an Action with its argument.
type Command struct {
	Action Action
	// Address is the flash word address of a breakpoint.
	Address uint32
	// Register is the name of a watched register.
	Register string
	// Enabled switches watch-list updates while running.
	Enabled bool

	// id pairs a command with its result. The controller assigns it.
	id uint64
}

// Run, Pause, Stop, Step and StepOver build argument-less commands.
func Run() Command { return Command{Action: ActionRun} }
func Pause() Command { return Command{Action: ActionPause} }
func Stop() Command { return Command{Action: ActionStop} }
func Step() Command { return Command{Action: ActionStep} }
func StepOver() Command { return Command{Action: ActionStepOver} }

// ToggleBreakpoint adds or removes a breakpoint at a word address.
func ToggleBreakpoint(addr uint32) Command {
	return Command{Action: ActionToggleBreakpoint, Address: addr}
}

// ToggleWatch adds or removes a register from the watch list.
func ToggleWatch(register string) Command {
	return Command{Action: ActionToggleWatch, Register: register}
}

// WatchUpdate switches publishing watch-list changes while running.
func WatchUpdate(enabled bool) Command {
	return Command{Action: ActionWatchUpdate, Enabled: enabled}
}

// TakeSnapshot asks for a Snapshot event.
func TakeSnapshot() Command {
	return Command{Action: ActionSnapshot}
}

// State is the controller's view of the worker.
type State int

// Worker states.
const (
	StateNotInitialized State = iota
	StateInitializing
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateNotInitialized:
		return "not-initialized"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Snapshot is the architectural state at one point of a run.
type Snapshot struct {
	PC           uint32
	SP           uint32
	SREG         uint8
	Registers    []uint8
	Cycles       uint64
	Instructions uint64
}

// EventSink receives what the simulation has to show. StateChanged is
// called from the goroutine using the Controller; every other method is
// called from the worker goroutine.
type EventSink interface {
	StateChanged(state State, err error)
	Status(action Action)
	Location(pc uint32)
	Registers(regs []uint8)
	WatchList(values map[string]uint8)
	Breakpoints(addrs []uint32)
	AutoUpdate(enabled bool)
	Snapshot(s Snapshot)
	Halted(pc uint32)
}

// EmulatorFactory builds the emulator a worker runs, with the program
// already loaded.
type EmulatorFactory func() (*emu.Emulator, error)

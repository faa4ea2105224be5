package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is how often a running worker may publish watch-list
// changes.
const DefaultPollInterval = 100 * time.Millisecond

const (
	commandBuffer  = 16
	responseBuffer = 64
)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithPollInterval sets the minimum time between watch-list updates while
// running.
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.interval = d
	}
}

// Controller starts, commands and stops a worker goroutine. Its methods are
// safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	sink     EventSink
	build    EmulatorFactory
	interval time.Duration

	commands  chan Command
	responses chan response
	done      chan struct{}

	state State
	err   error

	lastID uint64
}

// NewController creates a controller. No worker runs until Start or the
// first command.
func NewController(sink EventSink, build EmulatorFactory, opts ...ControllerOption) *Controller {
	c := &Controller{
		sink:     sink,
		build:    build,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the worker state and, in StateError, the error that caused
// it.
func (c *Controller) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.err
}

// Start spawns the worker if it is not running.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.init()
}

func (c *Controller) init() error {
	if c.commands != nil {
		return nil
	}

	c.commands = make(chan Command, commandBuffer)
	c.responses = make(chan response, responseBuffer)
	c.done = make(chan struct{})

	w := newWorker(c.sink, c.build, c.commands, c.responses, c.interval)
	done := c.done
	go func() {
		defer close(done)
		w.loop()
	}()

	slog.Info("controller started")
	c.setState(StateInitializing, nil)
	return nil
}

// Restart stops the current worker, waiting until it has finished, and
// starts a new one with a freshly built emulator. Breakpoints and watches
// do not carry over.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.deinit(); err != nil {
		slog.Warn("previous worker did not join", "err", err)
	}
	return c.init()
}

// Stop asks the worker to finish and waits until it has.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deinit()
}

func (c *Controller) deinit() error {
	if c.commands == nil {
		return nil
	}

	commands, responses, done := c.commands, c.responses, c.done
	c.commands, c.responses, c.done = nil, nil, nil

	select {
	case commands <- Stop():
	case <-done:
	}
	close(commands)

	joined := false
	for r := range responses {
		if r.kind == responseJoin {
			joined = true
			break
		}
		slog.Debug("dropping response while stopping", "kind", r.kind, "err", r.err)
	}
	<-done

	c.setState(StateNotInitialized, nil)
	slog.Info("controller stopped")
	if !joined {
		return ErrWorkerDisconnected
	}
	return nil
}

// Do sends a command without waiting for its result. It starts the worker
// if needed.
func (c *Controller) Do(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.send(cmd)
	return err
}

// send queues cmd and returns the id its result will carry. Responses that
// arrive meanwhile are processed so a full response channel cannot stall
// the worker.
func (c *Controller) send(cmd Command) (uint64, error) {
	if c.commands == nil {
		if err := c.init(); err != nil {
			return 0, err
		}
	}

	c.lastID++
	cmd.id = c.lastID

	for {
		select {
		case c.commands <- cmd:
			return cmd.id, nil
		case r, ok := <-c.responses:
			if err := c.evalResponse(r, ok); err != nil {
				return 0, err
			}
		case <-c.done:
			return 0, ErrWorkerDisconnected
		}
	}
}

// DoAndWait sends a command and waits for its result, which it returns.
// A failed command also moves the controller to StateError.
func (c *Controller) DoAndWait(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.send(cmd)
	if err != nil {
		return err
	}

	for {
		select {
		case r, ok := <-c.responses:
			if err := c.evalResponse(r, ok); err != nil {
				return err
			}
			if r.kind == responseResult && r.id == id {
				return r.err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Update processes at most one pending worker response without blocking.
// A worker in the error state is reported to the sink and stopped.
func (c *Controller) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateNotInitialized:
		return nil
	case StateError:
		slog.Error("simulation failed", "err", c.err)
		return c.deinit()
	}

	select {
	case r, ok := <-c.responses:
		return c.evalResponse(r, ok)
	default:
		return nil
	}
}

func (c *Controller) evalResponse(r response, ok bool) error {
	if !ok {
		return ErrWorkerDisconnected
	}

	switch r.kind {
	case responseReady:
		c.setState(StateRunning, nil)
	case responseFailed:
		c.setState(StateError, r.err)
	case responseResult:
		if r.err != nil {
			c.setState(StateError, r.err)
		}
	case responseJoin:
		return fmt.Errorf("unexpected join: %w", ErrWorkerDisconnected)
	}
	return nil
}

func (c *Controller) setState(s State, err error) {
	slog.Debug("worker state", "state", s, "err", err)
	c.state = s
	c.err = err
	c.sink.StateChanged(s, err)
}

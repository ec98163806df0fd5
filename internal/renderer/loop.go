package renderer

import (
	"log"
	"time"

	"github.com/vkngwrapper/framepipe/internal/frame"
	"github.com/vkngwrapper/framepipe/internal/gpu"
	"github.com/vkngwrapper/framepipe/internal/scene"
)

type LoopState int

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopShuttingDown
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "Idle"
	case LoopRunning:
		return "Running"
	case LoopShuttingDown:
		return "ShuttingDown"
	}
	return "unknown"
}

// Loop runs fixed-step updates and one render per iteration until the window
// asks to close.
type Loop struct {
	renderer *Renderer
	window   Window
	world    *scene.World
	clock    frame.Clock
	logger   *log.Logger

	step  *frame.FixedStep
	pacer *frame.Pacer

	state     LoopState
	suspended bool
	previous  time.Duration
}

func NewLoop(cfg Config, renderer *Renderer, window Window, world *scene.World, clock frame.Clock) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Loop{
		renderer: renderer,
		window:   window,
		world:    world,
		clock:    clock,
		logger:   logger,
		step: &frame.FixedStep{
			Interval: cfg.UpdateInterval,
			MaxSteps: cfg.MaxUpdatesPerIteration,
		},
		pacer: &frame.Pacer{
			Budget: cfg.IterationBudget,
			Clock:  clock,
		},
		state: LoopIdle,
	}
}

func (l *Loop) State() LoopState {
	return l.state
}

// Suspended reports whether rendering is paused by a minimize.
func (l *Loop) Suspended() bool {
	return l.suspended
}

// Run blocks until a close event arrives, then waits for the device to go
// idle. Render failures do not end Run directly; they post a close so the
// caller still reaches teardown.
func (l *Loop) Run() error {
	l.state = LoopRunning
	l.previous = l.clock.Now()

	for l.state == LoopRunning {
		l.iterate()
	}

	l.logger.Println("Shutting down")
	return l.renderer.WaitIdle()
}

func (l *Loop) iterate() {
	start := l.clock.Now()
	elapsed := start - l.previous
	l.previous = start

	for _, event := range l.window.Events() {
		l.handle(event)
	}
	if l.state != LoopRunning {
		return
	}

	l.step.Advance(elapsed, l.world.Update)

	if !l.suspended {
		err := l.renderer.Render(FrameState{World: l.world, Alpha: l.step.Alpha()})
		if err != nil {
			gpu.Check(err, "Render")
			l.window.PostClose()
		}
	}

	l.pacer.Pace(start)
}

func (l *Loop) handle(event Event) {
	switch event.Kind {
	case EventClose:
		l.state = LoopShuttingDown
	case EventMinimize:
		l.suspended = true
	case EventRestore:
		l.suspended = false
	case EventResize:
		if event.Width > 0 && event.Height > 0 {
			l.suspended = false
		} else {
			l.suspended = true
		}
		l.renderer.Resize(event.Width, event.Height)
	}
}

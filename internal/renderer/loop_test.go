package renderer

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/framepipe/internal/gpu/gputest"
	"github.com/vkngwrapper/framepipe/internal/scene"
)

type testClock struct {
	now time.Duration
}

func (c *testClock) Now() time.Duration {
	return c.now
}

func (c *testClock) Sleep(d time.Duration) {
	c.now += d
}

// scriptedWindow hands out one scripted batch per Events call and closes
// once the script runs out.
type scriptedWindow struct {
	script [][]Event
	calls  int
	posted []Event

	// observe runs at the start of every Events call.
	observe func(call int)
}

func (w *scriptedWindow) Events() []Event {
	if w.observe != nil {
		w.observe(w.calls)
	}

	var events []Event
	if w.calls < len(w.script) {
		events = append(events, w.script[w.calls]...)
	} else {
		events = append(events, Event{Kind: EventClose})
	}
	w.calls++

	events = append(events, w.posted...)
	w.posted = nil
	return events
}

func (w *scriptedWindow) DrawableSize() (int, int) {
	return 600, 600
}

func (w *scriptedWindow) PostClose() {
	w.posted = append(w.posted, Event{Kind: EventClose})
}

func loopConfig() Config {
	cfg := DefaultConfig()
	cfg.UpdateInterval = 10 * time.Millisecond
	cfg.IterationBudget = 20 * time.Millisecond
	return cfg
}

func TestLoopSuspendsWhileMinimized(t *testing.T) {
	driver := gputest.New()
	r := newRenderer(t, driver, quad())
	world := &scene.World{}

	var acquires []int
	var times []float32
	window := &scriptedWindow{
		script: [][]Event{
			{},
			{{Kind: EventMinimize}},
			{},
			{},
			{{Kind: EventRestore}},
		},
		observe: func(int) {
			acquires = append(acquires, driver.Acquires)
			times = append(times, world.Time)
		},
	}

	loop := NewLoop(loopConfig(), r, window, world, &testClock{})
	assert.Equal(t, LoopIdle, loop.State())
	require.NoError(t, loop.Run())
	assert.Equal(t, LoopShuttingDown, loop.State())

	assert.Equal(t, []int{0, 1, 1, 1, 1, 2}, acquires)
	for i := 2; i <= 4; i++ {
		assert.Greater(t, times[i], times[i-1])
	}
	assert.InDelta(t, 0.08, world.Time, 1e-4)

	assert.Equal(t, 2, driver.Submits)
	assert.Equal(t, 2, driver.Presents)
	assert.Equal(t, "device.wait-idle", driver.Events[len(driver.Events)-1])
}

func TestLoopCapsCatchUp(t *testing.T) {
	driver := gputest.New()
	r := newRenderer(t, driver, quad())
	world := &scene.World{}

	clock := &testClock{}
	window := &scriptedWindow{
		script: [][]Event{{}, {}, {}},
		observe: func(call int) {
			if call == 1 {
				// a long stall between iterations
				clock.now += time.Second
			}
		},
	}

	require.NoError(t, NewLoop(loopConfig(), r, window, world, clock).Run())

	// 20ms of ordinary pacing plus four capped steps of the stall
	assert.InDelta(t, 0.06, world.Time, 1e-4)
}

func TestLoopResizeRebuildsChain(t *testing.T) {
	driver := gputest.New()
	r := newRenderer(t, driver, quad())

	window := &scriptedWindow{
		script: [][]Event{
			{{Kind: EventResize, Width: 640, Height: 480}},
		},
	}

	require.NoError(t, NewLoop(loopConfig(), r, window, &scene.World{}, &testClock{}).Run())
	assert.Equal(t, 1, r.Rebuilds())
	assert.Equal(t, 640, r.Chain().Extent.Width)
	assert.Equal(t, 480, r.Chain().Extent.Height)
}

func TestLoopResizeToEmptySuspends(t *testing.T) {
	driver := gputest.New()
	r := newRenderer(t, driver, quad())

	window := &scriptedWindow{
		script: [][]Event{
			{{Kind: EventResize, Width: 0, Height: 0}},
			{},
		},
	}

	loop := NewLoop(loopConfig(), r, window, &scene.World{}, &testClock{})
	require.NoError(t, loop.Run())
	assert.True(t, loop.Suspended())
	assert.Zero(t, driver.Acquires)
	assert.Zero(t, r.Rebuilds())
}

func TestLoopClosesOnRenderFailure(t *testing.T) {
	driver := gputest.New()
	r := newRenderer(t, driver, quad())
	driver.Fail("Submit", 1, errors.New("queue lost"))

	window := &scriptedWindow{
		script: [][]Event{{}, {}, {}, {}, {}},
	}

	loop := NewLoop(loopConfig(), r, window, &scene.World{}, &testClock{})
	require.NoError(t, loop.Run())

	assert.Equal(t, 3, window.calls)
	assert.Equal(t, 1, driver.Submits)
	assert.Equal(t, 2, driver.Acquires)
	assert.Equal(t, LoopShuttingDown, loop.State())
}

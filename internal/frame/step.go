package frame

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock is the loop's view of time. Now is monotonic and only differences
// between two readings are meaningful.
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

// SystemClock reads the high resolution process timer.
type SystemClock struct{}

func (SystemClock) Now() time.Duration {
	return hrtime.Now()
}

func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FixedStep turns wall-clock time into whole simulation steps. At most
// MaxSteps run per Advance; a larger backlog is dropped and only the
// remainder below one Interval is kept.
type FixedStep struct {
	Interval time.Duration
	MaxSteps int

	lag time.Duration
}

// Advance runs nothing while Interval is not positive.
func (f *FixedStep) Advance(elapsed time.Duration, update func(step time.Duration)) int {
	if f.Interval <= 0 {
		return 0
	}

	f.lag += elapsed

	steps := 0
	for f.lag >= f.Interval && steps < f.MaxSteps {
		update(f.Interval)
		f.lag -= f.Interval
		steps++
	}

	if f.lag >= f.Interval {
		f.lag %= f.Interval
	}

	return steps
}

// Alpha is how far the simulation is between its last step and the next,
// in [0, 1).
func (f *FixedStep) Alpha() float64 {
	if f.Interval <= 0 {
		return 0
	}
	return float64(f.lag) / float64(f.Interval)
}

func (f *FixedStep) Lag() time.Duration {
	return f.lag
}

// Pacer sleeps away whatever is left of Budget after an iteration. Sleeps
// are whole milliseconds.
type Pacer struct {
	Budget time.Duration
	Clock  Clock
}

func (p *Pacer) Pace(iterationStart time.Duration) time.Duration {
	spent := p.Clock.Now() - iterationStart
	if spent >= p.Budget {
		return 0
	}

	sleep := (p.Budget - spent).Truncate(time.Millisecond)
	if sleep > 0 {
		p.Clock.Sleep(sleep)
	}
	return sleep
}

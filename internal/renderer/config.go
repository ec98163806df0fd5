package renderer

import (
	"log"
	"time"
)

type Config struct {
	// Slots is the number of frames that may be in flight at once.
	Slots int

	UpdateInterval         time.Duration
	MaxUpdatesPerIteration int
	IterationBudget        time.Duration

	ClearColor [4]float32

	WindowWidth  int
	WindowHeight int

	// Logger receives loop diagnostics. Nil means the standard logger.
	Logger *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Slots:                  2,
		UpdateInterval:         time.Second / 60,
		MaxUpdatesPerIteration: 4,
		IterationBudget:        time.Second / 60,
		ClearColor:             [4]float32{0, 0, 0, 1},
		WindowWidth:            600,
		WindowHeight:           600,
	}
}

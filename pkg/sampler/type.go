package sampler

import (
	"time"

	"github.com/vietanhduong/procmem/pkg/proc"
	"github.com/vietanhduong/procmem/pkg/usage"
)

const DEFAULT_INTERVAL = time.Second

// Interval bounds are offsets from the start of the run.
type Interval struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Sample is the result of one tick.
type Sample struct {
	Interval  Interval             `json:"interval"`
	Total     usage.Breakdown      `json:"total"`
	Processes []usage.ProcessUsage `json:"processes"`
	Faults    proc.Faults          `json:"faults"`
}

// Sink receives each sample as soon as it is assembled.
type Sink interface {
	WriteSample(s *Sample) error
}

// Renderer receives the whole sequence once the scheduler stops.
type Renderer interface {
	Render(samples []Sample) error
}

type Spec struct {
	Interval time.Duration
	Clock    Clock
	Sink     Sink
	Renderer Renderer
}

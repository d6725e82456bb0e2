// Package sampler drives a collector on a fixed cadence and keeps the
// resulting time series.
package sampler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/vietanhduong/procmem/pkg/usage"
)

type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

type Collector interface {
	Collect(ctx context.Context) (*usage.Report, error)
}

type Scheduler struct {
	collector Collector
	spec      Spec
	state     atomic.Int32
	samples   []Sample
}

func New(c Collector, spec Spec) *Scheduler {
	if spec.Interval <= 0 {
		spec.Interval = DEFAULT_INTERVAL
	}
	if spec.Clock == nil {
		spec.Clock = wallClock{}
	}
	return &Scheduler{collector: c, spec: spec}
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Run collects one sample per tick until ctx is done. The first tick runs
// immediately. A tick interrupted by cancellation contributes nothing. On
// stop the collected samples are handed to the renderer, if any, and
// returned.
func (s *Scheduler) Run(ctx context.Context) ([]Sample, error) {
	if !s.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return nil, fmt.Errorf("scheduler already running")
	}
	defer s.state.Store(int32(Stopped))

	start := s.spec.Clock.Now()
	var prev Interval
	for {
		report, err := s.collector.Collect(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			return s.samples, fmt.Errorf("collect: %w", err)
		}

		end := s.spec.Clock.Now().Sub(start)
		s.samples = append(s.samples, Sample{
			Interval:  Interval{Start: prev.End, End: end},
			Total:     report.Total,
			Processes: report.Processes,
			Faults:    report.Faults,
		})
		prev = s.samples[len(s.samples)-1].Interval

		if s.spec.Sink != nil {
			if err := s.spec.Sink.WriteSample(&s.samples[len(s.samples)-1]); err != nil {
				return s.samples, fmt.Errorf("write sample: %w", err)
			}
		}

		if err := s.spec.Clock.Sleep(ctx, s.spec.Interval); err != nil {
			break
		}
	}

	glog.Infof("Sampler stopped after %d samples", len(s.samples))
	if s.spec.Renderer != nil && len(s.samples) > 0 {
		if err := s.spec.Renderer.Render(s.samples); err != nil {
			return s.samples, fmt.Errorf("render: %w", err)
		}
	}
	return s.samples, nil
}

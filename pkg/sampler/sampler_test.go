package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanhduong/procmem/pkg/proc"
	"github.com/vietanhduong/procmem/pkg/usage"
)

type fakeClock struct {
	now    time.Time
	sleeps int
	// cancel is called once sleeps reaches stopAfter.
	stopAfter int
	cancel    context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	if c.sleeps >= c.stopAfter {
		c.cancel()
		return ctx.Err()
	}
	c.now = c.now.Add(d)
	return nil
}

type fakeCollector struct {
	clock   *fakeClock
	latency time.Duration
	calls   int
	err     error
	// cancelOn cancels the context during the given call.
	cancelOn int
	cancel   context.CancelFunc
}

func (f *fakeCollector) Collect(ctx context.Context) (*usage.Report, error) {
	f.calls++
	f.clock.now = f.clock.now.Add(f.latency)
	if f.calls == f.cancelOn {
		f.cancel()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	n := uint64(f.calls) << 10
	return &usage.Report{
		Processes: []usage.ProcessUsage{{Identity: proc.Identity{PID: 7, Cmdline: "app"}, Breakdown: usage.Breakdown{Heap: n}}},
		Total:     usage.Breakdown{Heap: n},
		Faults:    proc.Faults{Minor: uint64(f.calls)},
	}, nil
}

type recorder struct {
	written  []Sample
	rendered []Sample
	renders  int
}

func (r *recorder) WriteSample(s *Sample) error {
	r.written = append(r.written, *s)
	return nil
}

func (r *recorder) Render(samples []Sample) error {
	r.renders++
	r.rendered = samples
	return nil
}

func TestSchedulerIntervals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Unix(1000, 0), stopAfter: 3, cancel: cancel}
	col := &fakeCollector{clock: clock, latency: 50 * time.Millisecond}
	rec := &recorder{}

	s := New(col, Spec{Interval: time.Second, Clock: clock, Sink: rec, Renderer: rec})
	samples, err := s.Run(ctx)
	require.NoError(t, err)

	want := []Interval{
		{Start: 0, End: 50 * time.Millisecond},
		{Start: 50 * time.Millisecond, End: 1100 * time.Millisecond},
		{Start: 1100 * time.Millisecond, End: 2150 * time.Millisecond},
	}
	got := make([]Interval, 0, len(samples))
	for _, s := range samples {
		got = append(got, s.Interval)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("intervals mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, uint64(3<<10), samples[2].Total.Heap)
	assert.Equal(t, uint64(3), samples[2].Faults.Minor)
	assert.Equal(t, samples, rec.written)
	assert.Equal(t, samples, rec.rendered)
	assert.Equal(t, 1, rec.renders)
	assert.Equal(t, Stopped, s.State())
}

func TestSchedulerDiscardsInterruptedTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Unix(0, 0), stopAfter: 100, cancel: cancel}
	col := &fakeCollector{clock: clock, latency: time.Millisecond, cancelOn: 3, cancel: cancel}
	rec := &recorder{}

	samples, err := New(col, Spec{Interval: 10 * time.Millisecond, Clock: clock, Sink: rec, Renderer: rec}).Run(ctx)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
	assert.Len(t, rec.written, 2)
	assert.Len(t, rec.rendered, 2)
}

func TestSchedulerCollectError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Unix(0, 0), stopAfter: 100, cancel: cancel}
	boom := errors.New("boom")
	col := &fakeCollector{clock: clock, err: boom}
	rec := &recorder{}

	samples, err := New(col, Spec{Clock: clock, Renderer: rec}).Run(ctx)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, samples)
	assert.Zero(t, rec.renders)
}

func TestSchedulerNoRendererWhenEmpty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := &fakeClock{now: time.Unix(0, 0), stopAfter: 100, cancel: cancel}
	rec := &recorder{}
	samples, err := New(&fakeCollector{clock: clock}, Spec{Clock: clock, Renderer: rec}).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Zero(t, rec.renders)
}

func TestWallClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := wallClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, wallClock{}.Sleep(context.Background(), time.Millisecond))
}

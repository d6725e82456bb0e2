package usage

import (
	"context"

	"github.com/golang/glog"
	lop "github.com/samber/lo/parallel"

	"github.com/vietanhduong/procmem/pkg/proc"
)

// ProcessUsage is the breakdown of one selected process.
type ProcessUsage struct {
	proc.Identity
	Breakdown Breakdown   `json:"breakdown"`
	Faults    proc.Faults `json:"faults"`
}

// Report is the result of one collection pass, ordered by pid.
type Report struct {
	Processes []ProcessUsage
	Total     Breakdown
	Faults    proc.Faults
}

// Collector runs enumeration, parsing, classification and aggregation for
// one point in time.
type Collector struct {
	src    proc.Source
	enum   *proc.Enumerator
	policy proc.Policy
}

func NewCollector(src proc.Source, opts proc.Options, policy proc.Policy) *Collector {
	return &Collector{
		src:    src,
		enum:   proc.NewEnumerator(src, opts),
		policy: policy,
	}
}

type detail struct {
	maps []*proc.Mapping
	exe  string
	err  error
}

// Collect reads every selected process. The returned error is either a
// failure escalated by the policy or ctx's error when it was cancelled
// while reading.
func (c *Collector) Collect(ctx context.Context) (*Report, error) {
	procs, failures, err := c.enum.Enumerate()
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		if err := c.policy.Handle(f); err != nil {
			return nil, err
		}
	}

	details := lop.Map(procs, func(p proc.Process, _ int) detail {
		if ctx.Err() != nil {
			return detail{err: ctx.Err()}
		}
		return c.read(p)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Processes: make([]ProcessUsage, 0, len(procs))}
	for i, p := range procs {
		d := details[i]
		if d.err != nil {
			if err := c.policy.Handle(d.err); err != nil {
				return nil, err
			}
			continue
		}
		u := ProcessUsage{
			Identity:  p.Identity,
			Breakdown: Aggregate(d.maps, d.exe),
			Faults:    p.Faults,
		}
		report.Faults = report.Faults.Add(u.Faults)
		report.Processes = append(report.Processes, u)
	}
	breakdowns := make([]*Breakdown, 0, len(report.Processes))
	for i := range report.Processes {
		breakdowns = append(breakdowns, &report.Processes[i].Breakdown)
	}
	report.Total = Sum(breakdowns...)
	return report, nil
}

func (c *Collector) read(p proc.Process) detail {
	rc, err := c.src.Smaps(p.PID)
	if err != nil {
		return detail{err: &proc.ProcessError{PID: p.PID, Op: "smaps", Err: err}}
	}
	defer rc.Close()

	maps, err := proc.ParseSmaps(rc)
	if err != nil {
		return detail{err: &proc.ProcessError{PID: p.PID, Op: "parse smaps", Err: err}}
	}

	exe, err := c.src.Executable(p.PID)
	if err != nil {
		glog.V(2).Infof("Unable to resolve executable of pid %d, file maps stay unclassified: %v", p.PID, err)
		exe = ""
	}
	return detail{maps: maps, exe: exe}
}

package proc

import (
	"regexp"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/samber/lo"
)

// Identity is a process as seen at enumeration time.
type Identity struct {
	PID     int    `json:"pid"`
	PPID    int    `json:"ppid"`
	Cmdline string `json:"cmdline"`
}

// Process is an enumerated process with its fault counters.
type Process struct {
	Identity
	Faults Faults
}

// Options select which processes are reported.
type Options struct {
	// Pattern is matched against the space-joined command line. A nil
	// pattern selects every process.
	Pattern *regexp.Regexp
	// MatchChildren also selects every descendant of a matched process.
	MatchChildren bool
	// MatchSelf selects Self regardless of Pattern. Without it Self is
	// never reported.
	MatchSelf bool
	Self      int
}

type Enumerator struct {
	src  Source
	opts Options
}

func NewEnumerator(src Source, opts Options) *Enumerator {
	return &Enumerator{src: src, opts: opts}
}

// Enumerate lists the selected processes ordered by pid. Processes that
// exit while being read are dropped. Other per-process read failures are
// returned in failures; err is set only when the process list itself
// cannot be read.
func (e *Enumerator) Enumerate() (selected []Process, failures []error, err error) {
	pids, err := e.src.PIDs()
	if err != nil {
		return nil, nil, err
	}

	all := make([]Process, 0, len(pids))
	for _, pid := range pids {
		p, err := e.read(pid)
		if err != nil {
			if IsVanished(err) {
				glog.V(2).Infof("Process %d exited during enumeration, ignoring", pid)
				continue
			}
			failures = append(failures, err)
			continue
		}
		all = append(all, p)
	}
	return Select(all, e.opts), failures, nil
}

func (e *Enumerator) read(pid int) (Process, error) {
	st, err := e.src.Stat(pid)
	if err != nil {
		return Process{}, &ProcessError{PID: pid, Op: "stat", Err: err}
	}
	args, err := e.src.CmdLine(pid)
	if err != nil {
		return Process{}, &ProcessError{PID: pid, Op: "cmdline", Err: err}
	}
	return Process{
		Identity: Identity{PID: pid, PPID: st.PPID, Cmdline: strings.Join(args, " ")},
		Faults:   st.Faults,
	}, nil
}

// Select applies opts to procs. The parent/child index is built over the
// whole table first, so the input order does not matter. A process whose
// parent is not in procs is a root.
func Select(procs []Process, opts Options) []Process {
	index := make(map[int]int, len(procs))
	for i, p := range procs {
		index[p.PID] = i
	}
	children := make(map[int][]int)
	for i, p := range procs {
		if _, ok := index[p.PPID]; ok && p.PPID != p.PID {
			children[p.PPID] = append(children[p.PPID], i)
		}
	}

	selected := make([]bool, len(procs))
	var queue []int
	for i, p := range procs {
		if opts.Pattern == nil || opts.Pattern.MatchString(p.Cmdline) {
			selected[i] = true
			queue = append(queue, i)
		}
	}
	if opts.MatchChildren {
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			for _, c := range children[procs[i].PID] {
				if !selected[c] {
					selected[c] = true
					queue = append(queue, c)
				}
			}
		}
	}
	if i, ok := index[opts.Self]; ok && opts.Self > 0 {
		selected[i] = opts.MatchSelf
	}

	ret := lo.Filter(procs, func(_ Process, i int) bool { return selected[i] })
	sort.Slice(ret, func(i, j int) bool { return ret[i].PID < ret[j].PID })
	return ret
}

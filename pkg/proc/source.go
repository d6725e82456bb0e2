package proc

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/procfs"
	"github.com/samber/lo"
)

// Stat is the subset of /proc/<pid>/stat the enumerator needs.
type Stat struct {
	PID    int
	PPID   int
	Faults Faults
}

// Source gives access to per-process kernel data.
type Source interface {
	PIDs() ([]int, error)
	Stat(pid int) (Stat, error)
	CmdLine(pid int) ([]string, error)
	// Executable returns the resolved main executable path, or "" when the
	// process has none (kernel threads).
	Executable(pid int) (string, error)
	Smaps(pid int) (io.ReadCloser, error)
}

// FSSource reads a mounted proc filesystem.
type FSSource struct {
	root string
	fs   procfs.FS
}

func NewFSSource(root string) (*FSSource, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("new procfs %s: %w", root, err)
	}
	return &FSSource{root: root, fs: fs}, nil
}

func (s *FSSource) PIDs() ([]int, error) {
	procs, err := s.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	return lo.Map(procs, func(p procfs.Proc, _ int) int { return p.PID }), nil
}

func (s *FSSource) Stat(pid int) (Stat, error) {
	p, err := s.fs.Proc(pid)
	if err != nil {
		return Stat{}, err
	}
	st, err := p.Stat()
	if err != nil {
		return Stat{}, err
	}
	return Stat{
		PID:  st.PID,
		PPID: st.PPID,
		Faults: Faults{
			Minor: uint64(st.MinFlt),
			Major: uint64(st.MajFlt),
		},
	}, nil
}

func (s *FSSource) CmdLine(pid int) ([]string, error) {
	p, err := s.fs.Proc(pid)
	if err != nil {
		return nil, err
	}
	return p.CmdLine()
}

func (s *FSSource) Executable(pid int) (string, error) {
	p, err := s.fs.Proc(pid)
	if err != nil {
		return "", err
	}
	return p.Executable()
}

func (s *FSSource) Smaps(pid int) (io.ReadCloser, error) {
	return os.Open(pidPath(s.root, pid, "smaps"))
}

package proc

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// ProcessError is a failure reading the details of a single process.
type ProcessError struct {
	PID int
	Op  string
	Err error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("pid %d: %s: %v", e.PID, e.Op, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// IsPermission reports whether err is a permission failure.
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.EACCES) ||
		errors.Is(err, unix.EPERM)
}

// IsVanished reports whether err means the process exited while it was
// being read.
func IsVanished(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ESRCH)
}

// Policy decides what a per-process failure does to the whole run.
type Policy struct {
	FailOnPermission bool
	ShowWarnings     bool
}

// Handle returns nil when the process should be skipped and the run should
// continue, or the error that must abort the run.
func (p Policy) Handle(err error) error {
	switch {
	case err == nil:
		return nil
	case IsVanished(err):
		glog.V(2).Infof("Process exited before its details were read, ignoring: %v", err)
		return nil
	case IsPermission(err):
		if p.FailOnPermission {
			return err
		}
		if p.ShowWarnings {
			glog.Warningf("Permission denied, skipping process: %v", err)
		}
		return nil
	default:
		glog.Warningf("Failed to read process, skipping: %v", err)
		return nil
	}
}

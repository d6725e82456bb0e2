package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestErrorKinds(t *testing.T) {
	perm := &ProcessError{PID: 7, Op: "smaps", Err: &fs.PathError{Op: "open", Path: "/proc/7/smaps", Err: unix.EACCES}}
	gone := fmt.Errorf("read: %w", &ProcessError{PID: 8, Op: "stat", Err: unix.ESRCH})

	assert.True(t, IsPermission(perm))
	assert.False(t, IsVanished(perm))
	assert.True(t, IsVanished(gone))
	assert.False(t, IsPermission(gone))
	assert.Equal(t, "pid 7: smaps: open /proc/7/smaps: permission denied", perm.Error())
}

func TestPolicyHandle(t *testing.T) {
	perm := &ProcessError{PID: 1, Op: "smaps", Err: fs.ErrPermission}
	gone := &ProcessError{PID: 2, Op: "stat", Err: fs.ErrNotExist}
	other := &ProcessError{PID: 3, Op: "smaps", Err: errors.New("boom")}

	lenient := Policy{ShowWarnings: true}
	assert.NoError(t, lenient.Handle(nil))
	assert.NoError(t, lenient.Handle(perm))
	assert.NoError(t, lenient.Handle(gone))
	assert.NoError(t, lenient.Handle(other))

	strict := Policy{FailOnPermission: true}
	assert.ErrorIs(t, strict.Handle(perm), fs.ErrPermission)
	assert.NoError(t, strict.Handle(gone))
	assert.NoError(t, strict.Handle(other))
}

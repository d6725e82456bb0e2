package usage

import (
	"strings"

	"github.com/vietanhduong/procmem/pkg/proc"
)

// Classify assigns m to its category. exe is the resolved main executable
// of the owning process; when it is empty, file-backed mappings that are
// not pseudo regions fall into KindOther instead of the binary/external
// split.
func Classify(m *proc.Mapping, exe string) Category {
	path := m.Pathname
	switch {
	case path == "[heap]":
		return Scalar(KindHeap)
	case path == "[stack]":
		return Scalar(KindStack)
	case strings.HasPrefix(path, "[stack:"):
		return Scalar(KindThreadStack)
	case path == "[vdso]":
		return Scalar(KindVdso)
	case path == "[vvar]":
		return Scalar(KindVvar)
	case path == "[vsyscall]":
		return Scalar(KindVsyscall)
	case strings.HasPrefix(path, "/SYSV"):
		return Scalar(KindSysVShm)
	case path == "":
		return Scalar(KindAnonymous)
	}

	if exe != "" {
		self := path == exe
		exec := m.Perms.Has(proc.PermExec)
		write := m.Perms.Has(proc.PermWrite)
		switch {
		case self && exec:
			return Scalar(KindBinaryText)
		case self && write:
			return Scalar(KindBinaryData)
		case exec:
			return Scalar(KindExternalText)
		case write:
			return Scalar(KindExternalData)
		}
	}
	return Other(OtherKey{Path: path, Perms: m.Perms})
}

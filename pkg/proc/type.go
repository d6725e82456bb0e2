package proc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Perms is the permission set from a mapping header, e.g. "r-xp".
type Perms uint8

const (
	PermRead Perms = 1 << iota
	PermWrite
	PermExec
	PermShared
	PermPrivate
)

// ParsePerms parses the 4-character permission column of a maps header.
func ParsePerms(s string) (Perms, bool) {
	if len(s) != 4 {
		return 0, false
	}
	var p Perms
	for i, want := range [3]byte{'r', 'w', 'x'} {
		switch s[i] {
		case want:
			p |= PermRead << i
		case '-':
		default:
			return 0, false
		}
	}
	switch s[3] {
	case 's':
		p |= PermShared
	case 'p':
		p |= PermPrivate
	case '-':
	default:
		return 0, false
	}
	return p, true
}

func (p Perms) Has(q Perms) bool { return p&q == q }

func (p Perms) String() string {
	b := []byte("----")
	if p.Has(PermRead) {
		b[0] = 'r'
	}
	if p.Has(PermWrite) {
		b[1] = 'w'
	}
	if p.Has(PermExec) {
		b[2] = 'x'
	}
	switch {
	case p.Has(PermShared):
		b[3] = 's'
	case p.Has(PermPrivate):
		b[3] = 'p'
	}
	return string(b)
}

// Mapping is one virtual memory area of a process as listed in
// /proc/<pid>/smaps. Fields holds byte counts keyed by smaps field name.
type Mapping struct {
	Pathname   string
	StartAddr  uint64
	EndAddr    uint64
	Perms      Perms
	FileOffset uint64
	DevMajor   uint32
	DevMinor   uint32
	Inode      uint64
	Fields     map[string]uint64
}

func (m *Mapping) String() string {
	if m == nil {
		return ""
	}

	return fmt.Sprintf("%s 0x%016x-0x%016x %s 0x%016x dev=%d inode=%d",
		m.Pathname,
		m.StartAddr,
		m.EndAddr,
		m.Perms,
		m.FileOffset,
		m.Dev(),
		m.Inode)
}

// Dev is the device number of the backing file.
func (m *Mapping) Dev() uint64 { return unix.Mkdev(m.DevMajor, m.DevMinor) }

// Field returns the byte count of the named field. Absent fields are zero.
func (m *Mapping) Field(name string) (uint64, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

// Pss returns the proportional set size of the mapping in bytes.
func (m *Mapping) Pss() (uint64, bool) { return m.Field("Pss") }

// Faults are the cumulative page fault counters of a process.
type Faults struct {
	Minor uint64 `json:"minor"`
	Major uint64 `json:"major"`
}

func (f Faults) Add(o Faults) Faults {
	return Faults{Minor: f.Minor + o.Minor, Major: f.Major + o.Major}
}

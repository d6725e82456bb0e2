// Package filegroup ranks the categories of a breakdown for the snapshot
// report, grouping file-backed mappings by a configurable key.
package filegroup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vietanhduong/procmem/pkg/proc"
	"github.com/vietanhduong/procmem/pkg/usage"
)

var ErrInvalidMask = errors.New("invalid group key mask")

// Mask selects which attributes of a file-backed mapping tell rows apart.
//
//	f  backing file
//	r  read bit
//	w  write bit
//	x  execute bit
//	s  shared bit
//	p  private bit
type Mask uint8

const (
	File Mask = 1 << iota
	Read
	Write
	Exec
	Shared
	Private
)

const DefaultMask = File | Read | Write | Exec | Shared | Private

var maskLetters = []struct {
	letter byte
	bit    Mask
}{
	{'f', File},
	{'r', Read},
	{'w', Write},
	{'x', Exec},
	{'s', Shared},
	{'p', Private},
}

// ParseMask parses a string over the alphabet "frwxsp". Letters may appear
// in any order; the empty string selects nothing.
func ParseMask(s string) (Mask, error) {
	var m Mask
	for i := 0; i < len(s); i++ {
		bit, ok := letterBit(s[i])
		if !ok {
			return 0, fmt.Errorf("%w: %q: unknown letter %q", ErrInvalidMask, s, s[i])
		}
		m |= bit
	}
	return m, nil
}

func letterBit(c byte) (Mask, bool) {
	for _, l := range maskLetters {
		if l.letter == c {
			return l.bit, true
		}
	}
	return 0, false
}

func (m Mask) Has(bit Mask) bool { return m&bit == bit }

func (m Mask) String() string {
	var b strings.Builder
	for _, l := range maskLetters {
		if m.Has(l.bit) {
			b.WriteByte(l.letter)
		}
	}
	return b.String()
}

var permBits = []struct {
	bit  Mask
	perm proc.Perms
}{
	{Read, proc.PermRead},
	{Write, proc.PermWrite},
	{Exec, proc.PermExec},
	{Shared, proc.PermShared},
	{Private, proc.PermPrivate},
}

// Project drops the attributes the mask does not select.
func (m Mask) Project(k usage.OtherKey) usage.OtherKey {
	var ret usage.OtherKey
	if m.Has(File) {
		ret.Path = k.Path
	}
	for _, b := range permBits {
		if m.Has(b.bit) && k.Perms.Has(b.perm) {
			ret.Perms |= b.perm
		}
	}
	return ret
}

func (m Mask) hasPerms() bool { return m&(Read|Write|Exec|Shared|Private) != 0 }

// Label renders a projected key. Unselected permission positions print as
// '*'.
func (m Mask) Label(k usage.OtherKey) string {
	base := "file-backed"
	if m.Has(File) {
		base = k.Path
	}
	if !m.hasPerms() {
		return base
	}

	b := []byte("****")
	for i, p := range []struct {
		bit  Mask
		perm proc.Perms
		c    byte
	}{
		{Read, proc.PermRead, 'r'},
		{Write, proc.PermWrite, 'w'},
		{Exec, proc.PermExec, 'x'},
	} {
		if m.Has(p.bit) {
			b[i] = '-'
			if k.Perms.Has(p.perm) {
				b[i] = p.c
			}
		}
	}
	if m.Has(Shared) || m.Has(Private) {
		b[3] = '-'
		switch {
		case m.Has(Shared) && k.Perms.Has(proc.PermShared):
			b[3] = 's'
		case m.Has(Private) && k.Perms.Has(proc.PermPrivate):
			b[3] = 'p'
		}
	}
	return base + " " + string(b)
}

// Package usage classifies process mappings into memory categories and sums
// their proportional set size.
package usage

import (
	"fmt"

	"github.com/vietanhduong/procmem/pkg/proc"
)

// Kind is the closed set of memory categories.
type Kind uint8

const (
	KindStack Kind = iota
	KindHeap
	KindThreadStack
	KindBinaryText
	KindExternalText
	KindBinaryData
	KindExternalData
	KindAnonymous
	KindVdso
	KindVvar
	KindVsyscall
	KindSysVShm
	// KindOther is keyed by an OtherKey; every other kind is a scalar.
	KindOther

	numKinds
)

var kindNames = [numKinds]string{
	KindStack:        "stack",
	KindHeap:         "heap",
	KindThreadStack:  "thread_stack",
	KindBinaryText:   "bin_text",
	KindExternalText: "extern_text",
	KindBinaryData:   "bin_data",
	KindExternalData: "extern_data",
	KindAnonymous:    "anon_map",
	KindVdso:         "vdso",
	KindVvar:         "vvar",
	KindVsyscall:     "vsyscall",
	KindSysVShm:      "sysv_shm",
	KindOther:        "other",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ScalarKinds lists every kind except KindOther in display order.
func ScalarKinds() []Kind {
	ret := make([]Kind, 0, numKinds-1)
	for k := KindStack; k < KindOther; k++ {
		ret = append(ret, k)
	}
	return ret
}

// OtherKey identifies an unclassified mapping group by backing path and
// permissions.
type OtherKey struct {
	Path  string
	Perms proc.Perms
}

// String renders the key as "<perms> <path>", e.g. "r--p /usr/lib/libc.so.6".
func (k OtherKey) String() string { return k.Perms.String() + " " + k.Path }

func (k OtherKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *OtherKey) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) < 5 || s[4] != ' ' {
		return fmt.Errorf("invalid other key %q", s)
	}
	perms, ok := proc.ParsePerms(s[:4])
	if !ok {
		return fmt.Errorf("invalid permissions in other key %q", s)
	}
	k.Perms = perms
	k.Path = s[5:]
	return nil
}

// Category is exactly one of the kinds. Key is only set for KindOther.
type Category struct {
	Kind Kind
	Key  OtherKey
}

func Scalar(k Kind) Category { return Category{Kind: k} }

func Other(key OtherKey) Category { return Category{Kind: KindOther, Key: key} }

func (c Category) String() string {
	if c.Kind == KindOther {
		return fmt.Sprintf("other(%s)", c.Key)
	}
	return c.Kind.String()
}

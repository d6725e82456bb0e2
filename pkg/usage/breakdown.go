package usage

import (
	"sort"

	"github.com/golang/glog"
	"github.com/samber/lo"
	"golang.org/x/exp/constraints"

	"github.com/vietanhduong/procmem/pkg/proc"
)

// Breakdown is the PSS in bytes attributed to each category.
type Breakdown struct {
	Stack        uint64              `json:"stack"`
	Heap         uint64              `json:"heap"`
	ThreadStack  uint64              `json:"thread_stack"`
	BinaryText   uint64              `json:"bin_text"`
	ExternalText uint64              `json:"extern_text"`
	BinaryData   uint64              `json:"bin_data"`
	ExternalData uint64              `json:"extern_data"`
	Anonymous    uint64              `json:"anon_map"`
	Vdso         uint64              `json:"vdso"`
	Vvar         uint64              `json:"vvar"`
	Vsyscall     uint64              `json:"vsyscall"`
	SysVShm      uint64              `json:"sysv_shm"`
	Other        map[OtherKey]uint64 `json:"other,omitempty"`
}

func (b *Breakdown) scalar(k Kind) *uint64 {
	switch k {
	case KindStack:
		return &b.Stack
	case KindHeap:
		return &b.Heap
	case KindThreadStack:
		return &b.ThreadStack
	case KindBinaryText:
		return &b.BinaryText
	case KindExternalText:
		return &b.ExternalText
	case KindBinaryData:
		return &b.BinaryData
	case KindExternalData:
		return &b.ExternalData
	case KindAnonymous:
		return &b.Anonymous
	case KindVdso:
		return &b.Vdso
	case KindVvar:
		return &b.Vvar
	case KindVsyscall:
		return &b.Vsyscall
	case KindSysVShm:
		return &b.SysVShm
	}
	return nil
}

func (b *Breakdown) Add(c Category, n uint64) {
	if c.Kind == KindOther {
		if b.Other == nil {
			b.Other = make(map[OtherKey]uint64)
		}
		b.Other[c.Key] += n
		return
	}
	if p := b.scalar(c.Kind); p != nil {
		*p += n
	}
}

func (b *Breakdown) Get(c Category) uint64 {
	if c.Kind == KindOther {
		return b.Other[c.Key]
	}
	if p := b.scalar(c.Kind); p != nil {
		return *p
	}
	return 0
}

// OtherTotal is the sum of all KindOther entries.
func (b *Breakdown) OtherTotal() uint64 {
	return lo.Sum(lo.Values(b.Other))
}

func (b *Breakdown) Total() uint64 {
	total := b.OtherTotal()
	for _, k := range ScalarKinds() {
		total += *b.scalar(k)
	}
	return total
}

// Each calls fn for every category in a stable order: scalar kinds first,
// then other keys sorted by their string form.
func (b *Breakdown) Each(fn func(Category, uint64)) {
	for _, k := range ScalarKinds() {
		fn(Scalar(k), *b.scalar(k))
	}
	keys := lo.Keys(b.Other)
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, key := range keys {
		fn(Other(key), b.Other[key])
	}
}

// Merge adds every entry of o into b.
func (b *Breakdown) Merge(o *Breakdown) {
	for _, k := range ScalarKinds() {
		*b.scalar(k) += *o.scalar(k)
	}
	if len(o.Other) > 0 {
		b.Other = mergeCounts(b.Other, o.Other)
	}
}

// Sum returns the elementwise sum of bs.
func Sum(bs ...*Breakdown) Breakdown {
	var ret Breakdown
	for _, b := range bs {
		ret.Merge(b)
	}
	return ret
}

func mergeCounts[K comparable, V constraints.Integer](dst, src map[K]V) map[K]V {
	if dst == nil {
		dst = make(map[K]V, len(src))
	}
	for k, v := range src {
		dst[k] += v
	}
	return dst
}

// Aggregate sums the PSS of every mapping into its category. A mapping
// without a Pss field counts as zero.
func Aggregate(maps []*proc.Mapping, exe string) Breakdown {
	var b Breakdown
	for _, m := range maps {
		pss, ok := m.Pss()
		if !ok {
			if rss, _ := m.Field("Rss"); rss != 0 {
				glog.Warningf("Pss not defined but Rss is %d, assuming 0 for map %s", rss, m)
			}
		}
		b.Add(Classify(m, exe), pss)
	}
	return b
}

package filegroup

import (
	"sort"

	"github.com/samber/lo"

	"github.com/vietanhduong/procmem/pkg/usage"
)

// Threshold is the share of the total, in percent, below which an entry is
// folded into the small categories bucket.
const Threshold = 1.0

const SmallCategories = "small categories"

// Entry is one row of a ranked report.
type Entry struct {
	Label   string
	Bytes   uint64
	Percent float64
}

type Ranking struct {
	// Entries is sorted by bytes descending, then label, and includes the
	// small categories bucket when anything was folded.
	Entries []Entry
	// Folded lists the entries summed into the small categories bucket.
	Folded []Entry
	Total  uint64
}

// Rank turns b into a ranked table. Scalar categories keep their own row;
// other mappings are regrouped by mask. Empty rows are dropped.
func Rank(b *usage.Breakdown, mask Mask) Ranking {
	rows := make(map[usage.Category]uint64)
	b.Each(func(c usage.Category, n uint64) {
		if c.Kind == usage.KindOther {
			c = usage.Other(mask.Project(c.Key))
		}
		rows[c] += n
	})

	total := lo.Sum(lo.Values(rows))
	if total == 0 {
		return Ranking{}
	}

	var ranking Ranking
	ranking.Total = total
	var small uint64
	for _, c := range sortedCategories(rows) {
		n := rows[c]
		if n == 0 {
			continue
		}
		e := Entry{Label: mask.label(c), Bytes: n, Percent: percent(n, total)}
		if e.Percent < Threshold {
			ranking.Folded = append(ranking.Folded, e)
			small += n
			continue
		}
		ranking.Entries = append(ranking.Entries, e)
	}
	if len(ranking.Folded) > 0 {
		ranking.Entries = append(ranking.Entries, Entry{
			Label:   SmallCategories,
			Bytes:   small,
			Percent: percent(small, total),
		})
	}
	sortEntries(ranking.Entries)
	sortEntries(ranking.Folded)
	return ranking
}

func (m Mask) label(c usage.Category) string {
	if c.Kind == usage.KindOther {
		return m.Label(c.Key)
	}
	return c.Kind.String()
}

// sortedCategories orders rows by kind, then by key, so rows sharing a label
// and a byte count keep a fixed order.
func sortedCategories(rows map[usage.Category]uint64) []usage.Category {
	cats := lo.Keys(rows)
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Kind != cats[j].Kind {
			return cats[i].Kind < cats[j].Kind
		}
		return cats[i].Key.String() < cats[j].Key.String()
	})
	return cats
}

func percent(n, total uint64) float64 { return 100 * float64(n) / float64(total) }

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Bytes == entries[j].Bytes {
			return entries[i].Label < entries[j].Label
		}
		return entries[i].Bytes > entries[j].Bytes
	})
}

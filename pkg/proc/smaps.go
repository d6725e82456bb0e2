package proc

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// smapsFields are the per-mapping fields that carry a kB quantity.
var smapsFields = map[string]struct{}{
	"Size":            {},
	"KernelPageSize":  {},
	"MMUPageSize":     {},
	"Rss":             {},
	"Pss":             {},
	"Pss_Dirty":       {},
	"Pss_Anon":        {},
	"Pss_File":        {},
	"Pss_Shmem":       {},
	"Shared_Clean":    {},
	"Shared_Dirty":    {},
	"Private_Clean":   {},
	"Private_Dirty":   {},
	"Referenced":      {},
	"Anonymous":       {},
	"KSM":             {},
	"LazyFree":        {},
	"AnonHugePages":   {},
	"ShmemPmdMapped":  {},
	"FilePmdMapped":   {},
	"Shared_Hugetlb":  {},
	"Private_Hugetlb": {},
	"Swap":            {},
	"SwapPss":         {},
	"Locked":          {},
}

const maxSmapsLine = 1024 * 1024

// ParseSmaps parses the text of /proc/<pid>/smaps into mappings in input
// order. Lines that cannot be understood are skipped. Input without any
// header yields an empty result. The only error returned is a read error.
func ParseSmaps(r io.Reader) ([]*Mapping, error) {
	var ret []*Mapping
	var cur *Mapping

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSmapsLine)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := scanner.Text()
		m, isHeader := parseHeader(line)
		if isHeader {
			// A malformed header still ends the previous mapping so its
			// fields are not credited to the wrong region.
			cur = m
			if m == nil {
				glog.V(3).Infof("Skip malformed smaps header at line %d: %q", lineno, line)
				continue
			}
			ret = append(ret, m)
			continue
		}
		if cur == nil {
			continue
		}
		if !parseField(cur, line) {
			glog.V(3).Infof("Skip smaps field at line %d: %q", lineno, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return ret, fmt.Errorf("scan smaps: %w", err)
	}
	return ret, nil
}

// parseHeader reports whether line starts with an address range. The
// returned mapping is nil when the rest of the header is malformed.
func parseHeader(line string) (*Mapping, bool) {
	fields, rest := splitFields(line, 5)
	if len(fields) == 0 {
		return nil, false
	}
	start, end, ok := parseRange(fields[0])
	if !ok {
		return nil, false
	}
	if len(fields) < 5 {
		return nil, true
	}

	perms, ok := ParsePerms(fields[1])
	if !ok {
		return nil, true
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return nil, true
	}
	major, minor, ok := parseDev(fields[3])
	if !ok {
		return nil, true
	}
	inode, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return nil, true
	}

	return &Mapping{
		Pathname:   strings.TrimSpace(rest),
		StartAddr:  start,
		EndAddr:    end,
		Perms:      perms,
		FileOffset: offset,
		DevMajor:   major,
		DevMinor:   minor,
		Inode:      inode,
		Fields:     make(map[string]uint64),
	}, true
}

func parseField(m *Mapping, line string) bool {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return false
	}
	key = strings.TrimSpace(key)
	if _, known := smapsFields[key]; !known {
		return false
	}
	parts := strings.Fields(value)
	if len(parts) == 0 || len(parts) > 2 {
		return false
	}
	if len(parts) == 2 && parts[1] != "kB" {
		return false
	}
	kb, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || kb > math.MaxUint64/1024 {
		return false
	}
	m.Fields[key] = kb * 1024
	return true
}

func parseRange(s string) (uint64, uint64, bool) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok || lo == "" || hi == "" {
		return 0, 0, false
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

func parseDev(s string) (uint32, uint32, bool) {
	maj, min, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, false
	}
	major, err := strconv.ParseUint(maj, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	minor, err := strconv.ParseUint(min, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(major), uint32(minor), true
}

// splitFields returns up to n whitespace separated fields of s and the
// remainder after the last one. The remainder keeps inner spaces so paths
// such as "/tmp/a b (deleted)" survive intact.
func splitFields(s string, n int) ([]string, string) {
	var fields []string
	i := 0
	for len(fields) < n {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i == len(s) {
			break
		}
		j := i
		for j < len(s) && !isSpace(s[j]) {
			j++
		}
		fields = append(fields, s[i:j])
		i = j
	}
	return fields, s[i:]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

// Package output renders samples and rankings for people and tools.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vietanhduong/procmem/pkg/sampler"
	"github.com/vietanhduong/procmem/pkg/usage"
)

// TSVWriter writes one aggregate row followed by one row per process for
// every sample. Byte columns are in bytes, times in seconds.
type TSVWriter struct {
	w      *bufio.Writer
	header bool
}

func NewTSVWriter(w io.Writer) *TSVWriter {
	return &TSVWriter{w: bufio.NewWriter(w)}
}

func tsvHeader() string {
	cols := []string{"START", "END", "PID"}
	for _, k := range usage.ScalarKinds() {
		cols = append(cols, strings.ToUpper(k.String()))
	}
	cols = append(cols, "OTHER", "MINFLT", "MAJFLT", "CMD")
	return strings.Join(cols, "\t")
}

func (t *TSVWriter) WriteSample(s *sampler.Sample) error {
	if !t.header {
		if _, err := fmt.Fprintln(t.w, tsvHeader()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		t.header = true
	}

	t.row(s.Interval, "*", &s.Total, s.Faults.Minor, s.Faults.Major, "")
	for i := range s.Processes {
		p := &s.Processes[i]
		t.row(s.Interval, fmt.Sprint(p.PID), &p.Breakdown, p.Faults.Minor, p.Faults.Major, p.Cmdline)
	}
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flush tsv: %w", err)
	}
	return nil
}

func (t *TSVWriter) row(iv sampler.Interval, pid string, b *usage.Breakdown, minflt, majflt uint64, cmd string) {
	fmt.Fprintf(t.w, "%s\t%s\t%s", seconds(iv.Start), seconds(iv.End), pid)
	for _, k := range usage.ScalarKinds() {
		fmt.Fprintf(t.w, "\t%d", b.Get(usage.Scalar(k)))
	}
	fmt.Fprintf(t.w, "\t%d\t%d\t%d\t%s\n", b.OtherTotal(), minflt, majflt, sanitize(cmd))
}

func seconds(d time.Duration) string { return fmt.Sprintf("%.3f", d.Seconds()) }

// sanitize keeps a command line on one TSV cell.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
}

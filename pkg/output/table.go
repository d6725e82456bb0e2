package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/vietanhduong/procmem/pkg/filegroup"
)

const (
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorReset = "\033[0m"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// Table prints rankings as aligned text.
type Table struct {
	W     io.Writer
	Color bool
	// ShowFolded lists the entries of the small categories bucket below the
	// main table.
	ShowFolded bool
}

func (t *Table) WriteRanking(title string, r filegroup.Ranking) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s\n", t.paint(colorBold, "["+title+"]"), humanize.IBytes(r.Total))
	if len(r.Entries) == 0 {
		fmt.Fprintln(&buf, "No mapped memory")
	} else {
		writeEntries(&buf, r.Entries)
		if t.ShowFolded && len(r.Folded) > 0 {
			fmt.Fprintln(&buf, t.paint(colorDim, filegroup.SmallCategories+":"))
			writeEntries(&buf, r.Folded)
		}
	}
	buf.WriteString("\n")

	if _, err := t.W.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

func writeEntries(buf *bytes.Buffer, entries []filegroup.Entry) {
	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, e := range entries {
		fmt.Fprintf(tw, "%.0f%%\t%s\t %s\n", e.Percent, humanize.IBytes(e.Bytes), e.Label)
	}
	tw.Flush()
}

func (t *Table) paint(color, s string) string {
	if !t.Color {
		return s
	}
	return color + s + colorReset
}

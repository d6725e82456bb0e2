package output

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"github.com/vietanhduong/procmem/pkg/sampler"
	"github.com/vietanhduong/procmem/pkg/usage"
)

// Graph plots the aggregate breakdown of a sample sequence to a PNG with
// gnuplot.
type Graph struct {
	Path    string
	Command string
	run     func(script string) error
}

func NewGraph(path string) *Graph {
	g := &Graph{Path: path, Command: "gnuplot"}
	g.run = g.gnuplot
	return g
}

func (g *Graph) Render(samples []sampler.Sample) error {
	dir, err := os.MkdirTemp("", "procmem-graph-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	data := filepath.Join(dir, "samples.dat")
	if err := os.WriteFile(data, graphData(samples), 0o644); err != nil {
		return fmt.Errorf("write graph data: %w", err)
	}
	if err := g.run(graphScript(data, g.Path)); err != nil {
		return err
	}
	glog.Infof("Graph of %d samples written to %s", len(samples), g.Path)
	return nil
}

func (g *Graph) gnuplot(script string) error {
	cmd := exec.Command(g.Command)
	cmd.Stdin = strings.NewReader(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w: %s", g.Command, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func graphColumns() []string {
	cols := make([]string, 0, len(usage.ScalarKinds())+1)
	for _, k := range usage.ScalarKinds() {
		cols = append(cols, k.String())
	}
	return append(cols, "other")
}

// graphData is one whitespace separated row per sample: the end of the
// interval in seconds followed by each category in MiB.
func graphData(samples []sampler.Sample) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# time %s\n", strings.Join(graphColumns(), " "))
	for i := range samples {
		s := &samples[i]
		fmt.Fprintf(&buf, "%.3f", s.Interval.End.Seconds())
		for _, k := range usage.ScalarKinds() {
			fmt.Fprintf(&buf, " %.3f", mib(s.Total.Get(usage.Scalar(k))))
		}
		fmt.Fprintf(&buf, " %.3f\n", mib(s.Total.OtherTotal()))
	}
	return buf.Bytes()
}

func mib(n uint64) float64 { return float64(n) / (1 << 20) }

func graphScript(data, out string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "set terminal png size 1280,720\n")
	fmt.Fprintf(&b, "set output %q\n", out)
	fmt.Fprintf(&b, "set xlabel \"time (s)\"\n")
	fmt.Fprintf(&b, "set ylabel \"PSS (MiB)\"\n")
	fmt.Fprintf(&b, "set key outside right\n")
	plots := make([]string, 0, len(graphColumns()))
	for i, col := range graphColumns() {
		plots = append(plots, fmt.Sprintf("%q using 1:%d with lines title %q", data, i+2, col))
	}
	fmt.Fprintf(&b, "plot %s\n", strings.Join(plots, ", \\\n     "))
	return b.String()
}

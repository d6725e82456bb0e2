package output

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanhduong/procmem/pkg/filegroup"
	"github.com/vietanhduong/procmem/pkg/proc"
	"github.com/vietanhduong/procmem/pkg/sampler"
	"github.com/vietanhduong/procmem/pkg/usage"
)

var libc = usage.OtherKey{Path: "/lib/libc.so", Perms: proc.PermRead | proc.PermPrivate}

func testSamples() []sampler.Sample {
	app := usage.ProcessUsage{
		Identity:  proc.Identity{PID: 42, PPID: 1, Cmdline: "app\t--serve"},
		Breakdown: usage.Breakdown{Heap: 8192, BinaryText: 4096, Other: map[usage.OtherKey]uint64{libc: 1024}},
		Faults:    proc.Faults{Minor: 12, Major: 1},
	}
	worker := usage.ProcessUsage{
		Identity:  proc.Identity{PID: 43, PPID: 42, Cmdline: "worker"},
		Breakdown: usage.Breakdown{Stack: 2048},
		Faults:    proc.Faults{Minor: 3},
	}
	return []sampler.Sample{
		{
			Interval:  sampler.Interval{Start: 0, End: 20 * time.Millisecond},
			Total:     usage.Sum(&app.Breakdown, &worker.Breakdown),
			Processes: []usage.ProcessUsage{app, worker},
			Faults:    app.Faults.Add(worker.Faults),
		},
		{
			Interval:  sampler.Interval{Start: 20 * time.Millisecond, End: 1030 * time.Millisecond},
			Total:     usage.Breakdown{Heap: 1 << 20},
			Processes: []usage.ProcessUsage{{Identity: proc.Identity{PID: 42}, Breakdown: usage.Breakdown{Heap: 1 << 20}}},
		},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	samples := testSamples()
	var buf bytes.Buffer
	w := NewJSONWriter(&buf)
	for i := range samples {
		require.NoError(t, w.WriteSample(&samples[i]))
	}
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	got, err := ReadSamples(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(samples, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestReadSamplesErrors(t *testing.T) {
	got, err := ReadSamples(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadSamples(strings.NewReader("{\"interval\":{}}\n{not json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestTSVWriter(t *testing.T) {
	samples := testSamples()
	var buf bytes.Buffer
	w := NewTSVWriter(&buf)
	for i := range samples {
		require.NoError(t, w.WriteSample(&samples[i]))
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "START\tEND\tPID\tSTACK\tHEAP\tTHREAD_STACK\tBIN_TEXT\tEXTERN_TEXT\tBIN_DATA\tEXTERN_DATA\tANON_MAP\tVDSO\tVVAR\tVSYSCALL\tSYSV_SHM\tOTHER\tMINFLT\tMAJFLT\tCMD", lines[0])
	assert.Equal(t, "0.000\t0.020\t*\t2048\t8192\t0\t4096\t0\t0\t0\t0\t0\t0\t0\t0\t1024\t15\t1\t", lines[1])
	assert.Equal(t, "0.000\t0.020\t42\t0\t8192\t0\t4096\t0\t0\t0\t0\t0\t0\t0\t0\t1024\t12\t1\tapp --serve", lines[2])
	assert.Equal(t, "0.000\t0.020\t43\t2048\t0\t0\t0\t0\t0\t0\t0\t0\t0\t0\t0\t0\t3\t0\tworker", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "0.020\t1.030\t*\t0\t1048576\t"))
	for _, l := range lines {
		assert.Equal(t, 18, strings.Count(l, "\t"), l)
	}
}

func TestTableWriteRanking(t *testing.T) {
	b := usage.Breakdown{Heap: 6000, Stack: 3950, Vdso: 50}
	r := filegroup.Rank(&b, filegroup.DefaultMask)

	var buf bytes.Buffer
	tbl := &Table{W: &buf, ShowFolded: true}
	require.NoError(t, tbl.WriteRanking("pid 42 app", r))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[pid 42 app] 9.8 KiB\n"), out)
	assert.NotContains(t, out, "\033[")

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Contains(t, lines[1], "60%")
	assert.True(t, strings.HasSuffix(lines[1], " heap"), lines[1])
	assert.Contains(t, lines[2], "40%")
	assert.True(t, strings.HasSuffix(lines[2], " stack"), lines[2])
	assert.True(t, strings.HasSuffix(lines[3], " "+filegroup.SmallCategories), lines[3])
	assert.Equal(t, filegroup.SmallCategories+":", lines[4])
	assert.True(t, strings.HasSuffix(lines[5], " vdso"), lines[5])
}

func TestTableColorAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	tbl := &Table{W: &buf, Color: true}
	require.NoError(t, tbl.WriteRanking("total", filegroup.Ranking{}))
	assert.Equal(t, colorBold+"[total]"+colorReset+" 0 B\nNo mapped memory\n\n", buf.String())
}

func TestTableSizes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "[t] 512 B\n"},
		{1024, "[t] 1.0 KiB\n"},
		{12 << 10, "[t] 12 KiB\n"},
		{5 << 20, "[t] 5.0 MiB\n"},
		{3 << 30, "[t] 3.0 GiB\n"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			b := usage.Breakdown{Heap: tt.bytes}
			require.NoError(t, (&Table{W: &buf}).WriteRanking("t", filegroup.Rank(&b, filegroup.DefaultMask)))
			assert.True(t, strings.HasPrefix(buf.String(), tt.want), buf.String())
		})
	}
}

func TestGraphRender(t *testing.T) {
	var script, data string
	g := NewGraph("/tmp/out.png")
	g.run = func(s string) error {
		script = s
		for _, line := range strings.Split(s, "\n") {
			if i := strings.Index(line, "\""); i >= 0 && strings.Contains(line, "using 1:2") {
				path := line[i+1:]
				path = path[:strings.Index(path, "\"")]
				raw, err := os.ReadFile(path)
				require.NoError(t, err)
				data = string(raw)
			}
		}
		return nil
	}
	require.NoError(t, g.Render(testSamples()))

	assert.Contains(t, script, "set output \"/tmp/out.png\"")
	assert.Contains(t, script, "using 1:3 with lines title \"heap\"")
	assert.Contains(t, script, "using 1:14 with lines title \"other\"")

	rows := strings.Split(strings.TrimSpace(data), "\n")
	require.Len(t, rows, 3)
	assert.Equal(t, "# time "+strings.Join(graphColumns(), " "), rows[0])
	assert.True(t, strings.HasPrefix(rows[2], "1.030 0.000 1.000 "), rows[2])
}

func TestGraphRenderError(t *testing.T) {
	g := NewGraph("/tmp/out.png")
	boom := errors.New("boom")
	g.run = func(string) error { return boom }
	assert.ErrorIs(t, g.Render(testSamples()), boom)
}

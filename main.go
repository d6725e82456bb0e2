package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/vietanhduong/procmem/pkg/config"
	"github.com/vietanhduong/procmem/pkg/filegroup"
	"github.com/vietanhduong/procmem/pkg/output"
	"github.com/vietanhduong/procmem/pkg/proc"
	"github.com/vietanhduong/procmem/pkg/sampler"
	"github.com/vietanhduong/procmem/pkg/usage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags := config.Default()
	flags.BindFlags(flag.CommandLine)
	flag.Usage = printUsage
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(2)
	}
	mode := flag.Arg(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		glog.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}
	cfg.Overlay(&flags, flag.CommandLine)
	if flag.NArg() == 2 {
		cfg.Pattern = flag.Arg(1)
	}
	if err := cfg.Validate(); err != nil {
		glog.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}
	pattern, _ := cfg.Regexp()

	src, err := proc.NewFSSource(proc.HostProcPath())
	if err != nil {
		glog.Errorf("Failed to open proc filesystem: %v", err)
		os.Exit(1)
	}
	collector := usage.NewCollector(src,
		proc.Options{
			Pattern:       pattern,
			MatchChildren: cfg.MatchChildren,
			MatchSelf:     cfg.MatchSelf,
			Self:          unix.Getpid(),
		},
		proc.Policy{
			FailOnPermission: cfg.FailOnPermission,
			ShowWarnings:     cfg.ShowWarnings,
		},
	)

	// Subscribe to signals for terminating the program.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "profile":
		err = profile(ctx, &cfg, collector)
	case "snapshot":
		err = snapshot(ctx, &cfg, collector)
	default:
		glog.Errorf("Unknown mode %q", mode)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		glog.Errorf("Failed to run %s: %v", mode, err)
		os.Exit(1)
	}
}

func profile(ctx context.Context, cfg *config.Config, collector *usage.Collector) error {
	spec := sampler.Spec{Interval: cfg.Interval}
	switch cfg.Output {
	case config.OutputJSON:
		spec.Sink = output.NewJSONWriter(os.Stdout)
	default:
		spec.Sink = output.NewTSVWriter(os.Stdout)
	}
	if cfg.GraphPath != "" {
		spec.Renderer = output.NewGraph(cfg.GraphPath)
	}

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	glog.Infof("Profiling every %v, press Ctrl+C to stop", cfg.Interval)
	_, err := sampler.New(collector, spec).Run(ctx)
	return err
}

func snapshot(ctx context.Context, cfg *config.Config, collector *usage.Collector) error {
	mask, err := cfg.Mask()
	if err != nil {
		return err
	}
	report, err := collector.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	table := &output.Table{
		W:          os.Stdout,
		Color:      output.IsTerminal(os.Stdout),
		ShowFolded: cfg.ShowFolded,
	}
	for i := range report.Processes {
		p := &report.Processes[i]
		title := fmt.Sprintf("pid %d ppid %d: %s", p.PID, p.PPID, p.Cmdline)
		if err := table.WriteRanking(title, filegroup.Rank(&p.Breakdown, mask)); err != nil {
			return err
		}
	}
	title := fmt.Sprintf("total of %d processes", len(report.Processes))
	if err := table.WriteRanking(title, filegroup.Rank(&report.Total, mask)); err != nil {
		return err
	}
	glog.Infof("Snapshot of %d processes, %d minor and %d major faults", len(report.Processes), report.Faults.Minor, report.Faults.Major)
	return nil
}

func printUsage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage: %s [flags] profile|snapshot [REGEX]\n\n", os.Args[0])
	fmt.Fprintf(w, "  profile   print one row per process every interval until interrupted\n")
	fmt.Fprintf(w, "  snapshot  print a ranked breakdown per process and for all of them\n\n")
	flag.PrintDefaults()
}

// Package config holds the run options. Values are layered: defaults, then
// an optional YAML file, then PROCMEM_* environment variables, then flags
// given on the command line.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/vietanhduong/procmem/pkg/filegroup"
)

const EnvPrefix = "PROCMEM_"

const (
	OutputTSV  = "tsv"
	OutputJSON = "json"
)

var ErrInvalidPattern = errors.New("invalid pattern")

type Config struct {
	Pattern          string        `yaml:"pattern" env:"PATTERN"`
	MatchChildren    bool          `yaml:"match_children" env:"MATCH_CHILDREN"`
	MatchSelf        bool          `yaml:"match_self" env:"MATCH_SELF"`
	FailOnPermission bool          `yaml:"fail_on_permission" env:"FAIL_ON_PERMISSION"`
	ShowWarnings     bool          `yaml:"show_warnings" env:"SHOW_WARNINGS"`
	Interval         time.Duration `yaml:"interval" env:"INTERVAL"`
	// Duration bounds a profile run. Zero runs until interrupted.
	Duration   time.Duration `yaml:"duration" env:"DURATION"`
	Output     string        `yaml:"output" env:"OUTPUT"`
	GraphPath  string        `yaml:"graph" env:"GRAPH"`
	GroupKey   string        `yaml:"group_key" env:"GROUP_KEY"`
	ShowFolded bool          `yaml:"show_folded" env:"SHOW_FOLDED"`
}

func Default() Config {
	return Config{
		Interval: time.Second,
		Output:   OutputTSV,
		GroupKey: filegroup.DefaultMask.String(),
	}
}

// Load reads path, when not empty, over the defaults and then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// BindFlags registers one flag per option on fs, writing into c.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.MatchChildren, "c", c.MatchChildren, "Also select every descendant of a matching process")
	fs.BoolVar(&c.MatchSelf, "self", c.MatchSelf, "Include this program's own process")
	fs.BoolVar(&c.FailOnPermission, "f", c.FailOnPermission, "Abort when a process cannot be read for lack of permission")
	fs.BoolVar(&c.ShowWarnings, "w", c.ShowWarnings, "Log a warning for every process skipped for lack of permission")
	fs.DurationVar(&c.Interval, "i", c.Interval, "Sampling interval in profile mode")
	fs.DurationVar(&c.Duration, "d", c.Duration, "Stop profiling after this long, 0 runs until interrupted")
	fs.StringVar(&c.Output, "o", c.Output, "Profile output format: tsv or json")
	fs.StringVar(&c.GraphPath, "graph", c.GraphPath, "Plot the profile to this PNG file with gnuplot on exit")
	fs.StringVar(&c.GroupKey, "mask", c.GroupKey, "Snapshot grouping key over the letters frwxsp")
	fs.BoolVar(&c.ShowFolded, "folded", c.ShowFolded, "List the entries of the small categories bucket in snapshot mode")
}

// Overlay copies from src every option whose flag was set on fs.
func (c *Config) Overlay(src *Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "c":
			c.MatchChildren = src.MatchChildren
		case "self":
			c.MatchSelf = src.MatchSelf
		case "f":
			c.FailOnPermission = src.FailOnPermission
		case "w":
			c.ShowWarnings = src.ShowWarnings
		case "i":
			c.Interval = src.Interval
		case "d":
			c.Duration = src.Duration
		case "o":
			c.Output = src.Output
		case "graph":
			c.GraphPath = src.GraphPath
		case "mask":
			c.GroupKey = src.GroupKey
		case "folded":
			c.ShowFolded = src.ShowFolded
		}
	})
}

// Regexp compiles the pattern. An empty pattern selects every process and
// yields nil.
func (c *Config) Regexp() (*regexp.Regexp, error) {
	if c.Pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

func (c *Config) Mask() (filegroup.Mask, error) {
	return filegroup.ParseMask(c.GroupKey)
}

func (c *Config) Validate() error {
	if _, err := c.Regexp(); err != nil {
		return err
	}
	if _, err := c.Mask(); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %v", c.Duration)
	}
	switch c.Output {
	case OutputTSV, OutputJSON:
	default:
		return fmt.Errorf("unknown output format %q", c.Output)
	}
	return nil
}

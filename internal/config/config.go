// Package config parses the command-line options FlowInspector is started
// with, plus an optional YAML file that overrides them.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"gopkg.in/yaml.v3"

	"github.com/iGTsan/flow-inspector/internal/logger"
)

// Mode selects the frame producer.
type Mode string

// The two supported modes.
const (
	ModePcap Mode = "pcap"
	ModeLive Mode = "live"
)

// Config holds every flag and optional YAML override.
type Config struct {
	Mode      Mode   `yaml:"mode"`
	Interface string `yaml:"interface"`
	File      string `yaml:"file"`
	Cores     int    `yaml:"cores"`
	LogOutput string `yaml:"log_output"`
	Write     string `yaml:"write"`
	Rules     string `yaml:"rules"`
	StatSpeed int    `yaml:"stat_speed"`
	LogLevel  string `yaml:"log_level"`

	// YAMLConfig, if set, is read after flag parsing and overrides any field
	// it sets explicitly.
	YAMLConfig string `yaml:"-"`

	// PrintVersion is set by --version. When true, the caller should print
	// [version.Full] and exit without starting anything; every other field
	// is left at its zero or flag-derived value and is not validated.
	PrintVersion bool `yaml:"-"`
}

// Level returns the parsed [logger.Level] for c.LogLevel, defaulting to
// [logger.Info] if LogLevel is empty or unrecognized.
func (c *Config) Level() logger.Level {
	lvl, ok := logger.ParseLevel(c.LogLevel)
	if !ok {
		return logger.Info
	}

	return lvl
}

// Sentinel ConfigErrors: bad CLI input or YAML override. The caller should
// print the message to stderr alongside usage and exit non-zero.
const (
	ErrModeRequired  errors.Error = "--mode is required"
	ErrFileRequired  errors.Error = "--file is required in pcap mode"
	ErrIfaceRequired errors.Error = "--interface is required in live mode"
	ErrCoresTooLow   errors.Error = "--cores must be at least 1"
)

// Validate reports a ConfigError if c is not usable.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePcap:
		if c.File == "" {
			return ErrFileRequired
		}
	case ModeLive:
		if c.Interface == "" {
			return ErrIfaceRequired
		}
	case "":
		return ErrModeRequired
	default:
		return errors.Error(fmt.Sprintf("unknown mode %q", c.Mode))
	}

	if c.Cores < 1 {
		return ErrCoresTooLow
	}

	return nil
}

// Parse parses args (typically os.Args[1:]) into a Config, applying any
// --config YAML override file on top.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		Cores:     1,
		LogOutput: "default.log",
		Write:     "default.pcap",
		LogLevel:  "info",
	}

	fs := flag.NewFlagSet("flowinspector", flag.ContinueOnError)
	fs.Usage = func() { Usage(fs, os.Stderr) }

	var mode string
	fs.StringVar(&mode, "mode", "", "pcap | live")
	fs.StringVar(&mode, "m", "", "pcap | live (shorthand)")
	fs.StringVar(&cfg.Interface, "interface", "", "interface name (live mode)")
	fs.StringVar(&cfg.Interface, "i", "", "interface name (shorthand)")
	fs.StringVar(&cfg.File, "file", "", "input pcap path (pcap mode)")
	fs.StringVar(&cfg.File, "f", "", "input pcap path (shorthand)")
	fs.IntVar(&cfg.Cores, "cores", 1, "worker count")
	fs.IntVar(&cfg.Cores, "j", 1, "worker count (shorthand)")
	fs.StringVar(&cfg.LogOutput, "log-output", "default.log", "log output path")
	fs.StringVar(&cfg.LogOutput, "o", "default.log", "log output path (shorthand)")
	fs.StringVar(&cfg.Write, "write", "default.pcap", "captured pcap output path")
	fs.StringVar(&cfg.Write, "w", "default.pcap", "captured pcap output path (shorthand)")
	fs.StringVar(&cfg.Rules, "rules", "", "rules file path")
	fs.StringVar(&cfg.Rules, "r", "", "rules file path (shorthand)")
	fs.IntVar(&cfg.StatSpeed, "stat-speed", 0, "stats interval in seconds, 0 disables")
	fs.IntVar(&cfg.StatSpeed, "s", 0, "stats interval in seconds (shorthand)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug | info")
	fs.StringVar(&cfg.YAMLConfig, "config", "", "optional YAML file overriding these flags")
	fs.BoolVar(&cfg.PrintVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.PrintVersion {
		return cfg, nil
	}

	cfg.Mode = Mode(mode)

	if cfg.YAMLConfig != "" {
		if err := applyYAML(cfg, cfg.YAMLConfig); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyYAML(cfg *Config, path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return errors.Annotate(err, "opening config file: %w")
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	return decodeYAML(cfg, f)
}

func decodeYAML(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)

	var override Config
	if err := dec.Decode(&override); err != nil {
		return errors.Annotate(err, "parsing config file: %w")
	}

	mergeNonZero(cfg, &override)

	return nil
}

// mergeNonZero copies every non-zero-value field of override into cfg. YAML
// files are therefore partial overrides: an omitted key leaves the
// flag-derived value in place.
func mergeNonZero(cfg, override *Config) {
	if override.Mode != "" {
		cfg.Mode = override.Mode
	}
	if override.Interface != "" {
		cfg.Interface = override.Interface
	}
	if override.File != "" {
		cfg.File = override.File
	}
	if override.Cores != 0 {
		cfg.Cores = override.Cores
	}
	if override.LogOutput != "" {
		cfg.LogOutput = override.LogOutput
	}
	if override.Write != "" {
		cfg.Write = override.Write
	}
	if override.Rules != "" {
		cfg.Rules = override.Rules
	}
	if override.StatSpeed != 0 {
		cfg.StatSpeed = override.StatSpeed
	}
	if override.LogLevel != "" {
		cfg.LogLevel = override.LogLevel
	}
}

// Usage prints a usage message to w.
func Usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Usage of flowinspector:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

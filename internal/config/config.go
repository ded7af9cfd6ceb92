// Package config loads the optional defaults file (.minisciath.yaml).
//
// Example:
//
//	jobs: 4
//	timeout: 30s
//	output_dir: out
//	normalize: newlines
//	color: auto
//	report: reports/last.json
//	history: true
//	keep_runs: 20
//
// Explicit command-line flags override every value in the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the defaults file looked up in the working directory.
const FileName = ".minisciath.yaml"

const (
	DefaultJobs     = 1
	DefaultKeepRuns = 20
)

// Config holds run defaults. Zero values mean "not set" except where noted.
type Config struct {
	Jobs      int    `yaml:"jobs"`
	Timeout   string `yaml:"timeout"`
	OutputDir string `yaml:"output_dir"`
	Normalize string `yaml:"normalize"`
	Color     string `yaml:"color"`
	Report    string `yaml:"report"`
	History   *bool  `yaml:"history"`
	KeepRuns  int    `yaml:"keep_runs"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `yaml:"-"`
}

// Default returns the built-in defaults.
func Default() Config {
	history := true
	return Config{
		Jobs:      DefaultJobs,
		Normalize: "none",
		Color:     "auto",
		History:   &history,
		KeepRuns:  DefaultKeepRuns,
	}
}

// TimeoutDuration parses Timeout. An empty value is no timeout.
func (c Config) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", c.Timeout)
	}
	return d, nil
}

// HistoryEnabled reports whether runs are recorded.
func (c Config) HistoryEnabled() bool {
	return c.History == nil || *c.History
}

func (c Config) Validate() error {
	var errs []error
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs must be >= 1 (got %d)", c.Jobs))
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Color) {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("invalid color %q (expected auto|always|never)", c.Color))
	}
	switch strings.ToLower(c.Normalize) {
	case "none", "newlines", "default":
	default:
		errs = append(errs, fmt.Errorf("invalid normalize %q (expected none|newlines|default)", c.Normalize))
	}
	if c.KeepRuns < 0 {
		errs = append(errs, fmt.Errorf("keep_runs must be >= 0 (got %d)", c.KeepRuns))
	}
	return errors.Join(errs...)
}

// Load reads path on top of the defaults. A missing file is an error only
// when required is set; otherwise the defaults are returned.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := decodeStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

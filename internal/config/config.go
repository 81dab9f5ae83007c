// Package config loads the auditor's own settings: which installation to
// inspect, how much transcript content to sample, and how to present the
// report. Settings layer as defaults < config file < CLAWPILOT_* env
// vars < CLI flags.
package config

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/kcchien/clawpilot/internal/logger"
	"github.com/kcchien/clawpilot/internal/perms"
	"github.com/kcchien/clawpilot/internal/transcript"
)

var cfgLog = logger.New("config")

// envPrefix is the prefix for environment overrides (CLAWPILOT_ROOT,
// CLAWPILOT_SCAN_MAX_TRANSCRIPTS, CLAWPILOT_OUTPUT_LOG_LEVEL, ...).
const envPrefix = "clawpilot"

// Config is the auditor configuration.
type Config struct {
	// Root is the gateway installation to inspect.
	Root string `yaml:"root" envconfig:"ROOT"`

	Scan   ScanConfig   `yaml:"scan"`
	Output OutputConfig `yaml:"output"`

	// Policy overrides the shipped permission expectation table. Empty
	// means the defaults apply.
	Policy []PolicyRule `yaml:"policy" validate:"dive"`
}

// ScanConfig bounds the content scanning work.
type ScanConfig struct {
	MaxTranscripts int  `yaml:"max_transcripts" envconfig:"MAX_TRANSCRIPTS" validate:"min=0,max=10000"`
	Deep           bool `yaml:"deep" envconfig:"DEEP"`

	// ScopeWindow is the line window used when a config field is looked
	// up under a parent key. A heuristic knob, not a guarantee.
	ScopeWindow int `yaml:"scope_window" envconfig:"SCOPE_WINDOW" validate:"min=0,max=1000"`
}

// OutputConfig controls report presentation.
type OutputConfig struct {
	JSON     bool   `yaml:"json" envconfig:"JSON"`
	NoColor  bool   `yaml:"no_color" envconfig:"NO_COLOR"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error"`
}

// PolicyRule is one user-supplied permission expectation. Mode is an
// octal string so YAML round-trips it without surprises.
type PolicyRule struct {
	Pattern string `yaml:"pattern" validate:"required"`
	Mode    string `yaml:"mode" validate:"required"`
	Label   string `yaml:"label"`
}

// DefaultRoot returns the stock gateway installation path.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".openclaw"
	}
	return filepath.Join(home, ".openclaw")
}

// DefaultConfigPath returns the default auditor config location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "clawpilot.yaml"
	}
	return filepath.Join(home, ".clawpilot", "config.yaml")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Root: DefaultRoot(),
		Scan: ScanConfig{
			MaxTranscripts: transcript.DefaultMax,
			ScopeWindow:    0, // 0 means the extractor default
		},
		Output: OutputConfig{
			LogLevel: "info",
		},
	}
}

// isUnknownFieldError returns true when yaml strict decoding rejected an
// unrecognized key (typo like "scann:").
func isUnknownFieldError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found in type")
}

// Load reads the config file at path, then applies CLAWPILOT_* env
// overrides. A missing file is not an error. Load does not validate;
// callers apply CLI overrides first and then call Validate themselves.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if derr := dec.Decode(cfg); derr != nil {
			if isUnknownFieldError(derr) {
				cfgLog.Warn("config has unknown fields (ignored): %v", derr)
				cfg = DefaultConfig()
				if lerr := yaml.Unmarshal(data, cfg); lerr != nil {
					return nil, fmt.Errorf("config parse error: %w", lerr)
				}
			} else {
				return nil, fmt.Errorf("config parse error: %w", derr)
			}
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the assembled configuration. Call after CLI overrides.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				errs = append(errs, fmt.Sprintf("%s: failed %q constraint (got %v)", ve.Namespace(), ve.Tag(), ve.Value()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	for i, rule := range c.Policy {
		if _, err := parseOctalMode(rule.Mode); err != nil {
			errs = append(errs, fmt.Sprintf("policy[%d].mode: %v", i, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for i, e := range errs {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e)
	}
	return fmt.Errorf("%s", sb.String())
}

func parseOctalMode(s string) (fs.FileMode, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not an octal mode", s)
	}
	if n > 0o777 {
		return 0, fmt.Errorf("mode %q sets bits beyond permissions", s)
	}
	return fs.FileMode(n), nil
}

// PolicyTable compiles the effective permission policy: the user's
// override when present, otherwise the shipped defaults.
func (c *Config) PolicyTable() ([]perms.PolicyEntry, error) {
	if len(c.Policy) == 0 {
		return perms.CompilePolicy(perms.DefaultPolicy())
	}
	entries := make([]perms.PolicyEntry, 0, len(c.Policy))
	for _, rule := range c.Policy {
		mode, err := parseOctalMode(rule.Mode)
		if err != nil {
			return nil, err
		}
		label := rule.Label
		if label == "" {
			label = rule.Pattern
		}
		entries = append(entries, perms.PolicyEntry{Pattern: rule.Pattern, Mode: mode, Label: label})
	}
	return perms.CompilePolicy(entries)
}

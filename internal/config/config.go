// Package config loads and validates the recurd configuration file: YAML on
// disk, checked against an embedded CUE schema before anything touches it.
package config

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/openvault/recur/internal/event"

	_ "embed"
)

//go:embed schema.cue
var schemaCUE string

// Config is the validated process configuration.
type Config struct {
	Database         string `yaml:"database"`
	ProgramAddress   string `yaml:"program_address"`
	OperatorAddress  string `yaml:"operator_address"`
	SubmitterAddress string `yaml:"submitter_address"`
	Credential       string `yaml:"credential"`
	IntervalSeconds  int    `yaml:"interval_seconds"`
	BackoffMinMS     int    `yaml:"backoff_min_ms"`
	BackoffMaxMS     int    `yaml:"backoff_max_ms"`
	IdempotentToggle bool   `yaml:"idempotent_toggle"`
	MetricsListen    string `yaml:"metrics_listen"`
}

// Defaults applied after validation for fields the file omits.
const (
	DefaultIntervalSeconds = 15
	DefaultBackoffMinMS    = 250
	DefaultBackoffMaxMS    = 30000
)

// Load reads, validates and defaults a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw YAML bytes against the embedded schema and decodes
// them.
func Parse(raw []byte) (*Config, error) {
	var loose map[string]any
	if err := yaml.Unmarshal(raw, &loose); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if loose == nil {
		return nil, fmt.Errorf("config: empty file")
	}

	if err := validate(loose); err != nil {
		return nil, err
	}

	cfg := &Config{
		IntervalSeconds: DefaultIntervalSeconds,
		BackoffMinMS:    DefaultBackoffMinMS,
		BackoffMaxMS:    DefaultBackoffMaxMS,
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if cfg.BackoffMaxMS < cfg.BackoffMinMS {
		return nil, fmt.Errorf("config: backoff_max_ms %d below backoff_min_ms %d", cfg.BackoffMaxMS, cfg.BackoffMinMS)
	}
	return cfg, nil
}

// validate unifies the loaded values with #Config from the embedded schema.
func validate(loose map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("config: schema has no #Config: %w", err)
	}

	data := ctx.Encode(loose)
	if err := data.Err(); err != nil {
		return fmt.Errorf("config: encode values: %w", err)
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Interval returns the scheduler tick interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// BackoffMin returns the lower retry bound.
func (c *Config) BackoffMin() time.Duration {
	return time.Duration(c.BackoffMinMS) * time.Millisecond
}

// BackoffMax returns the upper retry bound.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMS) * time.Millisecond
}

// Program returns the parsed ledger program address.
func (c *Config) Program() (event.Address, error) {
	return event.ParseAddress(c.ProgramAddress)
}

// Operator returns the parsed operator address.
func (c *Config) Operator() (event.Address, error) {
	return event.ParseAddress(c.OperatorAddress)
}

// Submitter returns the parsed settlement-caller address.
func (c *Config) Submitter() (event.Address, error) {
	return event.ParseAddress(c.SubmitterAddress)
}

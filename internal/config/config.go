// Package config loads the rollout pipeline configuration from a YAML
// file, with environment variable overrides for operational knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// Config is the full pipeline configuration.
type Config struct {
	Application string `yaml:"application"`

	Build BuildConfig `yaml:"build"`

	// Gates run in listed order; the first failure halts the pipeline.
	Gates []GateConfig `yaml:"gates"`

	Environments map[string]EnvironmentConfig `yaml:"environments"`

	Staging    string `yaml:"staging"`
	Production string `yaml:"production"`

	Probe ProbeConfig `yaml:"probe"`

	// LedgerPath is the SQLite database holding the release ledger and
	// run history.
	LedgerPath string `yaml:"ledger_path"`

	// WorkflowBackend selects the execution engine: sync, durable, or
	// dbos.
	WorkflowBackend string `yaml:"workflow_backend"`

	// WorkflowDBPath is the SQLite database the durable backend uses
	// for workflow history.
	WorkflowDBPath string `yaml:"workflow_db_path"`

	// DatabaseURL is the Postgres connection string for the dbos
	// backend.
	DatabaseURL string `yaml:"database_url"`

	Registry string `yaml:"registry"`
}

// BuildConfig describes the Docker image build.
type BuildConfig struct {
	ContextDir string `yaml:"context_dir"`
	Dockerfile string `yaml:"dockerfile"`
	Push       bool   `yaml:"push"`
}

// GateConfig describes one gate command and its policy.
type GateConfig struct {
	Name    string            `yaml:"name"`
	Command []string          `yaml:"command"`
	Timeout Duration          `yaml:"timeout"`
	Policy  domain.GatePolicy `yaml:"policy"`
}

// EnvironmentConfig maps one named environment onto a container and
// its liveness endpoint.
type EnvironmentConfig struct {
	ContainerName string            `yaml:"container_name"`
	HealthURL     string            `yaml:"health_url"`
	Ports         map[string]string `yaml:"ports"`
	Env           []string          `yaml:"env"`
}

// ProbeConfig bounds readiness checks.
type ProbeConfig struct {
	Timeout        Duration `yaml:"timeout"`
	Interval       Duration `yaml:"interval"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

const (
	defaultLedgerPath = "rollout.db"
	defaultBackend    = "sync"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "5m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads, validates, and defaults a config file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Staging == "" {
		c.Staging = "staging"
	}
	if c.Production == "" {
		c.Production = "production"
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = Duration(domain.DefaultProbeTimeout)
	}
	if c.Probe.Interval <= 0 {
		c.Probe.Interval = Duration(domain.DefaultProbeInterval)
	}
	if c.Probe.AttemptTimeout <= 0 {
		c.Probe.AttemptTimeout = Duration(5 * time.Second)
	}
	if c.LedgerPath == "" {
		c.LedgerPath = GetString("ROLLOUT_LEDGER_PATH", defaultLedgerPath)
	}
	if c.WorkflowBackend == "" {
		c.WorkflowBackend = GetString("ROLLOUT_WORKFLOW_BACKEND", defaultBackend)
	}
	if c.WorkflowDBPath == "" {
		c.WorkflowDBPath = "rollout-workflows.db"
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = GetString("ROLLOUT_DATABASE_URL", "")
	}
	if c.Build.Dockerfile == "" {
		c.Build.Dockerfile = "Dockerfile"
	}
	if c.Build.ContextDir == "" {
		c.Build.ContextDir = "."
	}
	// ROLLOUT_PUSH forces or suppresses the registry push regardless
	// of the file setting; unset leaves the file's choice.
	c.Build.Push = GetBool("ROLLOUT_PUSH", c.Build.Push)
}

// Validate checks cross-field invariants the YAML schema cannot
// express.
func (c *Config) Validate() error {
	if c.Application == "" {
		return fmt.Errorf("%w: application is required", domain.ErrInvalidArgument)
	}
	switch c.WorkflowBackend {
	case "sync", "durable":
	case "dbos":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: dbos backend requires database_url", domain.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown workflow_backend %q", domain.ErrInvalidArgument, c.WorkflowBackend)
	}

	for _, name := range []string{c.Staging, c.Production} {
		env, ok := c.Environments[name]
		if !ok {
			return fmt.Errorf("%w: environment %q is not defined", domain.ErrInvalidArgument, name)
		}
		if env.ContainerName == "" {
			return fmt.Errorf("%w: environment %q needs container_name", domain.ErrInvalidArgument, name)
		}
		if env.HealthURL == "" {
			return fmt.Errorf("%w: environment %q needs health_url", domain.ErrInvalidArgument, name)
		}
	}
	if c.Staging == c.Production {
		return fmt.Errorf("%w: staging and production must be distinct environments", domain.ErrInvalidArgument)
	}

	seen := make(map[string]struct{}, len(c.Gates))
	for _, gate := range c.Gates {
		if gate.Name == "" {
			return fmt.Errorf("%w: every gate needs a name", domain.ErrInvalidArgument)
		}
		if _, dup := seen[gate.Name]; dup {
			return fmt.Errorf("%w: duplicate gate %q", domain.ErrInvalidArgument, gate.Name)
		}
		seen[gate.Name] = struct{}{}
		if len(gate.Command) == 0 {
			return fmt.Errorf("%w: gate %q needs a command", domain.ErrInvalidArgument, gate.Name)
		}
	}
	return nil
}

// HealthEndpoints returns the environment name to liveness URL map the
// prober consumes.
func (c *Config) HealthEndpoints() map[string]string {
	endpoints := make(map[string]string, len(c.Environments))
	for name, env := range c.Environments {
		endpoints[name] = env.HealthURL
	}
	return endpoints
}

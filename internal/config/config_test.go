package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/config"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

const sampleConfig = `
application: house-price
build:
  context_dir: ./service
  push: true
registry: registry.example.com
gates:
  - name: tests
    command: ["make", "test"]
    timeout: 5m
  - name: quality
    command: ["make", "lint"]
    policy:
      max_findings: 10
  - name: security
    command: ["make", "scan"]
    policy:
      forbid_severities: [high, critical]
environments:
  staging:
    container_name: house-price-staging
    health_url: http://localhost:8081/healthz
    ports:
      "8080/tcp": "8081"
  production:
    container_name: house-price-prod
    health_url: http://localhost:8080/healthz
probe:
  timeout: 2m
  interval: 2s
workflow_backend: durable
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollout.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Application != "house-price" {
		t.Errorf("Application = %q", cfg.Application)
	}
	if len(cfg.Gates) != 3 {
		t.Fatalf("Gates len = %d, want 3", len(cfg.Gates))
	}
	if cfg.Gates[0].Name != "tests" || cfg.Gates[0].Timeout.Std() != 5*time.Minute {
		t.Errorf("gate[0] = %+v", cfg.Gates[0])
	}
	if cfg.Gates[1].Policy.MaxFindings == nil || *cfg.Gates[1].Policy.MaxFindings != 10 {
		t.Errorf("quality policy = %+v", cfg.Gates[1].Policy)
	}
	if got := cfg.Gates[2].Policy.ForbidSeverities; len(got) != 2 || got[1] != domain.SeverityCritical {
		t.Errorf("security policy = %+v", got)
	}
	if cfg.Probe.Timeout.Std() != 2*time.Minute || cfg.Probe.Interval.Std() != 2*time.Second {
		t.Errorf("probe = %+v", cfg.Probe)
	}
	if cfg.Staging != "staging" || cfg.Production != "production" {
		t.Errorf("environments = %q/%q", cfg.Staging, cfg.Production)
	}
	if cfg.LedgerPath != "rollout.db" {
		t.Errorf("LedgerPath = %q, want default", cfg.LedgerPath)
	}

	endpoints := cfg.HealthEndpoints()
	if endpoints["staging"] != "http://localhost:8081/healthz" {
		t.Errorf("staging endpoint = %q", endpoints["staging"])
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing application": `
environments:
  staging: {container_name: a, health_url: http://x}
  production: {container_name: b, health_url: http://y}
`,
		"missing environment": `
application: app
environments:
  staging: {container_name: a, health_url: http://x}
`,
		"environment without health url": `
application: app
environments:
  staging: {container_name: a}
  production: {container_name: b, health_url: http://y}
`,
		"gate without command": `
application: app
gates:
  - name: tests
environments:
  staging: {container_name: a, health_url: http://x}
  production: {container_name: b, health_url: http://y}
`,
		"duplicate gate": `
application: app
gates:
  - {name: tests, command: [a]}
  - {name: tests, command: [b]}
environments:
  staging: {container_name: a, health_url: http://x}
  production: {container_name: b, health_url: http://y}
`,
		"unknown backend": `
application: app
workflow_backend: temporal
environments:
  staging: {container_name: a, health_url: http://x}
  production: {container_name: b, health_url: http://y}
`,
		"dbos without database": `
application: app
workflow_backend: dbos
environments:
  staging: {container_name: a, health_url: http://x}
  production: {container_name: b, health_url: http://y}
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, content))
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("Load err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ROLLOUT_LEDGER_PATH", "/var/lib/rollout/ledger.db")
	t.Setenv("ROLLOUT_WORKFLOW_BACKEND", "sync")
	t.Setenv("ROLLOUT_PUSH", "true")

	minimal := `
application: house-price
environments:
  staging: {container_name: a, health_url: http://x}
  production: {container_name: b, health_url: http://y}
`
	cfg, err := config.Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LedgerPath != "/var/lib/rollout/ledger.db" {
		t.Errorf("LedgerPath = %q, want env override", cfg.LedgerPath)
	}
	if cfg.WorkflowBackend != "sync" {
		t.Errorf("WorkflowBackend = %q, want sync", cfg.WorkflowBackend)
	}
	if !cfg.Build.Push {
		t.Error("Build.Push = false, want env override")
	}
}

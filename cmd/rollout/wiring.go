package main

import (
	"context"
	"fmt"
	"time"

	wfsqlite "github.com/cschleiden/go-workflows/backend/sqlite"
	wfclient "github.com/cschleiden/go-workflows/client"
	"github.com/cschleiden/go-workflows/worker"
	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/docker/go-connections/nat"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/application"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/config"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/credstore"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/dbosworkflows"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/dockerenv"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/execgate"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/goworkflows"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/httpprobe"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/sqlite"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/syncworkflow"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/metrics"
)

// buildService wires the full pipeline from configuration. The
// returned cleanup releases everything the wiring opened.
func buildService(ctx context.Context, cfg config.Config) (*application.RolloutService, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := sqlite.Open(cfg.LedgerPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger database: %w", err)
	}
	cleanups = append(cleanups, func() { db.Close() })

	docker, err := dockerenv.NewClient("")
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { docker.Close() })
	if err := docker.Ping(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	builder := &dockerenv.Builder{
		Client:     docker,
		ContextDir: cfg.Build.ContextDir,
		Dockerfile: cfg.Build.Dockerfile,
		Push:       cfg.Build.Push,
		Log:        log,
	}
	if cfg.Build.Push && cfg.Registry != "" {
		builder.Auth = &credstore.Store{Registry: cfg.Registry}
	}

	gates := make([]domain.Gate, 0, len(cfg.Gates))
	for _, gc := range cfg.Gates {
		gates = append(gates, &execgate.Gate{
			GateName: gc.Name,
			Command:  gc.Command,
			Policy:   gc.Policy,
			Timeout:  gc.Timeout.Std(),
			Log:      log,
		})
	}

	environments := make(map[string]dockerenv.EnvironmentSpec, len(cfg.Environments))
	for name, ec := range cfg.Environments {
		ports, err := portMap(ec.Ports)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("environment %q: %w", name, err)
		}
		environments[name] = dockerenv.EnvironmentSpec{
			ContainerName: ec.ContainerName,
			Ports:         ports,
			Env:           ec.Env,
		}
	}

	prober := httpprobe.New(cfg.HealthEndpoints(), cfg.Probe.AttemptTimeout.Std())
	prober.Log = log
	prober.Metrics = m

	wf := &domain.RolloutWorkflow{
		Builder:    builder,
		Gates:      gates,
		Controller: &dockerenv.Controller{Client: docker, Environments: environments, Log: log},
		Prober:     prober,
		Ledger:     &sqlite.LedgerRepo{DB: db},
		Runs:       &sqlite.RunRepo{DB: db},
		Config: domain.RolloutConfig{
			StagingEnvironment:    cfg.Staging,
			ProductionEnvironment: cfg.Production,
			ProbeTimeout:          cfg.Probe.Timeout.Std(),
			ProbeInterval:         cfg.Probe.Interval.Std(),
		},
	}

	runner, engineCleanup, err := buildRunner(ctx, cfg, wf)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if engineCleanup != nil {
		cleanups = append(cleanups, engineCleanup)
	}

	service := &application.RolloutService{
		Runs:          wf.Runs,
		Orchestration: &application.OrchestrationService{Workflow: runner},
		Log:           log,
		Metrics:       m,
	}
	return service, cleanup, nil
}

func buildRunner(ctx context.Context, cfg config.Config, wf *domain.RolloutWorkflow) (domain.RolloutRunner, func(), error) {
	switch cfg.WorkflowBackend {
	case "sync":
		runner, err := (&syncworkflow.Engine{}).RolloutRunner(wf)
		return runner, nil, err

	case "durable":
		b := wfsqlite.NewSqliteBackend(cfg.WorkflowDBPath)
		w := worker.New(b, nil)
		engine := &goworkflows.Engine{Worker: w, Client: wfclient.New(b)}
		runner, err := engine.RolloutRunner(wf)
		if err != nil {
			return nil, nil, err
		}
		workerCtx, cancel := context.WithCancel(ctx)
		if err := w.Start(workerCtx); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("start workflow worker: %w", err)
		}
		stop := func() {
			cancel()
			_ = w.WaitForCompletion()
		}
		return runner, stop, nil

	case "dbos":
		dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
			AppName:     "house-price-rollout",
			DatabaseURL: cfg.DatabaseURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create DBOS context: %w", err)
		}
		engine := &dbosworkflows.Engine{DBOSCtx: dbosCtx}
		runner, err := engine.RolloutRunner(wf)
		if err != nil {
			return nil, nil, err
		}
		if err := dbos.Launch(dbosCtx); err != nil {
			return nil, nil, fmt.Errorf("launch DBOS: %w", err)
		}
		stop := func() { dbos.Shutdown(dbosCtx, 5*time.Second) }
		return runner, stop, nil

	default:
		return nil, nil, fmt.Errorf("unknown workflow backend %q", cfg.WorkflowBackend)
	}
}

func portMap(ports map[string]string) (nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil
	}
	out := make(nat.PortMap, len(ports))
	for containerPort, hostPort := range ports {
		port, err := nat.NewPort(nat.SplitProtoPort(containerPort))
		if err != nil {
			return nil, fmt.Errorf("parse port %q: %w", containerPort, err)
		}
		out[port] = []nat.PortBinding{{HostPort: hostPort}}
	}
	return out, nil
}

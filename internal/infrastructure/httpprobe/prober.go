// Package httpprobe implements [domain.HealthProber] by polling an
// HTTP liveness endpoint per environment.
package httpprobe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"resty.dev/v3"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/metrics"
)

// Prober polls environment liveness endpoints over HTTP. Any 2xx
// response counts as ready; connection errors and non-2xx responses
// count as one failed attempt and the poll continues until the
// caller's budget runs out.
type Prober struct {
	// Endpoints maps environment name to its liveness URL.
	Endpoints map[string]string
	Log       *slog.Logger
	Metrics   *metrics.Metrics

	client *resty.Client
}

// New creates a Prober with one HTTP attempt bounded by attemptTimeout.
func New(endpoints map[string]string, attemptTimeout time.Duration) *Prober {
	if attemptTimeout <= 0 {
		attemptTimeout = 5 * time.Second
	}
	return &Prober{
		Endpoints: endpoints,
		client:    resty.New().SetTimeout(attemptTimeout),
	}
}

// Probe polls the environment's endpoint at interval until it responds
// healthy or timeout elapses. It returns [domain.HealthNotReady] when
// the budget runs out, including for an environment that is simply
// unreachable. The only error returned is the caller's context
// cancellation.
func (p *Prober) Probe(ctx context.Context, environment string, timeout, interval time.Duration) (domain.Health, error) {
	endpoint, ok := p.Endpoints[environment]
	if !ok {
		return domain.HealthUnknown, fmt.Errorf("%w: no endpoint for environment %q", domain.ErrInvalidArgument, environment)
	}
	if timeout <= 0 {
		timeout = domain.DefaultProbeTimeout
	}
	if interval <= 0 {
		interval = domain.DefaultProbeInterval
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.attempt(deadline, environment, endpoint) {
			p.Metrics.ObserveProbe(environment, string(domain.HealthReady))
			return domain.HealthReady, nil
		}
		select {
		case <-ticker.C:
		case <-deadline.Done():
			if ctx.Err() != nil {
				p.Metrics.ObserveProbe(environment, string(domain.HealthUnknown))
				return domain.HealthUnknown, ctx.Err()
			}
			p.Metrics.ObserveProbe(environment, string(domain.HealthNotReady))
			return domain.HealthNotReady, nil
		}
	}
}

func (p *Prober) attempt(ctx context.Context, environment, endpoint string) bool {
	resp, err := p.client.R().SetContext(ctx).Get(endpoint)
	if err != nil {
		p.log().Debug("probe attempt failed", "environment", environment, "error", err)
		return false
	}
	if !resp.IsSuccess() {
		p.log().Debug("probe attempt unhealthy", "environment", environment, "status", resp.StatusCode())
		return false
	}
	return true
}

func (p *Prober) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

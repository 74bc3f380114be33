package dockerenv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

const (
	labelArtifactName    = "rollout.artifact.name"
	labelArtifactVersion = "rollout.artifact.version"
	labelEnvironment     = "rollout.environment"
)

// EnvironmentSpec describes how one named environment maps onto a
// container.
type EnvironmentSpec struct {
	ContainerName string
	Ports         nat.PortMap
	Env           []string
}

// Controller implements [domain.EnvironmentController] on the Docker
// daemon. Each environment owns exactly one container; a deploy
// replaces that container with one running the requested artifact's
// image. Deploys are serialized per environment.
type Controller struct {
	Client       *Client
	Environments map[string]EnvironmentSpec
	Log          *slog.Logger
	Now          func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (c *Controller) Deploy(ctx context.Context, environment string, artifact domain.ArtifactRef) (domain.EnvironmentState, error) {
	spec, ok := c.Environments[environment]
	if !ok {
		return domain.EnvironmentState{}, &domain.DeployError{
			Environment: environment,
			Reason:      "environment is not configured",
		}
	}

	lock := c.envLock(environment)
	lock.Lock()
	defer lock.Unlock()

	current, err := c.inspectArtifact(ctx, spec.ContainerName)
	if err == nil && current.Equal(artifact) {
		// Same version already running. The orchestrator still
		// re-probes health, so this stays a pure no-op.
		c.log().Info("environment already at requested version",
			"environment", environment, "artifact", artifact.String())
		return c.state(environment, artifact), nil
	}

	if err := c.removeContainer(ctx, spec.ContainerName); err != nil {
		return domain.EnvironmentState{}, &domain.DeployError{
			Environment: environment,
			Reason:      "remove previous container",
			Err:         err,
		}
	}

	if err := c.startContainer(ctx, environment, spec, artifact); err != nil {
		return domain.EnvironmentState{}, &domain.DeployError{
			Environment: environment,
			Reason:      fmt.Sprintf("start %s", artifact),
			Err:         err,
		}
	}

	c.log().Info("environment promoted",
		"environment", environment, "artifact", artifact.String())
	return c.state(environment, artifact), nil
}

func (c *Controller) CurrentArtifact(ctx context.Context, environment string) (domain.ArtifactRef, error) {
	spec, ok := c.Environments[environment]
	if !ok {
		return domain.ArtifactRef{}, fmt.Errorf("%w: environment %q is not configured", domain.ErrInvalidArgument, environment)
	}
	return c.inspectArtifact(ctx, spec.ContainerName)
}

// inspectArtifact reads the artifact labels off the environment's
// container, returning ErrNotFound when the container does not exist
// or was not created by this controller.
func (c *Controller) inspectArtifact(ctx context.Context, containerName string) (domain.ArtifactRef, error) {
	inspect, err := c.Client.inner.ContainerInspect(ctx, containerName)
	if err != nil {
		if client.IsErrNotFound(err) {
			return domain.ArtifactRef{}, domain.ErrNotFound
		}
		return domain.ArtifactRef{}, fmt.Errorf("inspect container %q: %w", containerName, err)
	}
	labels := inspect.Config.Labels
	name, version := labels[labelArtifactName], labels[labelArtifactVersion]
	if name == "" || version == "" {
		return domain.ArtifactRef{}, domain.ErrNotFound
	}
	return domain.ArtifactRef{Name: name, Version: version}, nil
}

func (c *Controller) removeContainer(ctx context.Context, containerName string) error {
	err := c.Client.inner.ContainerRemove(ctx, containerName, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("remove container %q: %w", containerName, err)
	}
	return nil
}

func (c *Controller) startContainer(ctx context.Context, environment string, spec EnvironmentSpec, artifact domain.ArtifactRef) error {
	config := &container.Config{
		Image: fmt.Sprintf("%s:%s", artifact.Name, artifact.Version),
		Env:   spec.Env,
		Labels: map[string]string{
			labelArtifactName:    artifact.Name,
			labelArtifactVersion: artifact.Version,
			labelEnvironment:     environment,
		},
		ExposedPorts: map[nat.Port]struct{}{},
	}
	for p := range spec.Ports {
		config.ExposedPorts[p] = struct{}{}
	}
	hostCfg := &container.HostConfig{
		PortBindings:  spec.Ports,
		RestartPolicy: container.RestartPolicy{Name: "always"},
	}

	created, err := c.Client.inner.ContainerCreate(ctx, config, hostCfg, nil, nil, spec.ContainerName)
	if err != nil {
		return fmt.Errorf("container create: %w", err)
	}
	if err := c.Client.inner.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		// A created-but-not-started container would shadow the next
		// deploy's create, so clean it up before reporting failure.
		_ = c.removeContainer(ctx, spec.ContainerName)
		return fmt.Errorf("container start: %w", err)
	}
	return nil
}

func (c *Controller) state(environment string, artifact domain.ArtifactRef) domain.EnvironmentState {
	return domain.EnvironmentState{
		Environment:      environment,
		CurrentArtifact:  &artifact,
		Health:           domain.HealthUnknown,
		LastTransitionAt: c.now(),
	}
}

func (c *Controller) envLock(environment string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks == nil {
		c.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := c.locks[environment]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[environment] = lock
	}
	return lock
}

func (c *Controller) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

package dockerenv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/archive"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

// RegistryAuthProvider supplies the base64 registry auth payload for
// image pushes.
type RegistryAuthProvider interface {
	RegistryAuth(ctx context.Context) (string, error)
}

// Builder implements [domain.ArtifactBuilder] with a Docker image
// build. The build context directory is tarred and sent to the daemon;
// the resulting image is tagged <application>:<version>. When Push is
// set the image is also pushed using credentials from Auth.
type Builder struct {
	Client     *Client
	ContextDir string
	Dockerfile string
	Push       bool
	Auth       RegistryAuthProvider
	Log        *slog.Logger
	Now        func() time.Time
}

func (b *Builder) Build(ctx context.Context, req domain.BuildRequest) (domain.ArtifactRef, error) {
	if req.Application == "" || req.Version == "" {
		return domain.ArtifactRef{}, &domain.BuildError{Stage: "validate", Message: "application and version are required"}
	}

	tag := fmt.Sprintf("%s:%s", req.Application, req.Version)

	buildCtx, err := archive.TarWithOptions(b.ContextDir, &archive.TarOptions{})
	if err != nil {
		return domain.ArtifactRef{}, &domain.BuildError{Stage: "context", Message: err.Error()}
	}
	defer buildCtx.Close()

	opts := types.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  b.Dockerfile,
		Remove:      true,
		ForceRemove: true,
		BuildArgs: map[string]*string{
			"SOURCE_REV": &req.SourceRev,
		},
	}
	resp, err := b.Client.inner.ImageBuild(ctx, buildCtx, opts)
	if err != nil {
		return domain.ArtifactRef{}, &domain.BuildError{Stage: "build", Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := drainBuildOutput(resp.Body, b.log()); err != nil {
		return domain.ArtifactRef{}, &domain.BuildError{Stage: "build", Message: err.Error()}
	}

	if b.Push {
		if err := b.push(ctx, tag); err != nil {
			return domain.ArtifactRef{}, &domain.BuildError{Stage: "push", Message: err.Error()}
		}
	}

	b.log().Info("artifact built", "image", tag, "source_rev", req.SourceRev)
	return domain.ArtifactRef{
		Name:      req.Application,
		Version:   req.Version,
		CreatedAt: b.now(),
	}, nil
}

func (b *Builder) push(ctx context.Context, tag string) error {
	var auth string
	if b.Auth != nil {
		var err error
		if auth, err = b.Auth.RegistryAuth(ctx); err != nil {
			return fmt.Errorf("registry auth: %w", err)
		}
	}
	resp, err := b.Client.inner.ImagePush(ctx, tag, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return fmt.Errorf("image push: %w", err)
	}
	defer resp.Close()
	return drainBuildOutput(resp, b.log())
}

// drainBuildOutput consumes the daemon's JSON message stream, logging
// progress lines and surfacing the first embedded error.
func drainBuildOutput(r io.Reader, log *slog.Logger) error {
	decoder := json.NewDecoder(r)
	for {
		var msg buildMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode daemon output: %w", err)
		}
		if m := msg.errorMessage(); m != "" {
			return errors.New(m)
		}
		if line := strings.TrimSpace(msg.Stream); line != "" {
			log.Debug("docker build", "output", line)
		}
	}
}

type buildMessage struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

func (m buildMessage) errorMessage() string {
	if s := strings.TrimSpace(m.Error); s != "" {
		return s
	}
	return strings.TrimSpace(m.ErrorDetail.Message)
}

func (b *Builder) log() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return slog.Default()
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

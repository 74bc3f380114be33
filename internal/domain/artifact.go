package domain

import (
	"context"
	"fmt"
	"time"
)

// ArtifactRef identifies one immutable build output. Name carries the
// logical application identity, Version the build identifier. The two
// fields stay separate for the whole lifetime of the ref; a combined
// image reference is only ever constructed for display or for handing
// to a container runtime, never parsed back apart.
type ArtifactRef struct {
	Name      string    `json:"name" yaml:"name"`
	Version   string    `json:"version" yaml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Equal reports whether two refs identify the same build output.
// CreatedAt is informational and does not participate in identity.
func (a ArtifactRef) Equal(b ArtifactRef) bool {
	return a.Name == b.Name && a.Version == b.Version
}

// IsZero reports whether the ref is unset.
func (a ArtifactRef) IsZero() bool {
	return a.Name == "" && a.Version == ""
}

func (a ArtifactRef) String() string {
	return fmt.Sprintf("%s@%s", a.Name, a.Version)
}

// BuildRequest is the input handed to an [ArtifactBuilder].
type BuildRequest struct {
	Application string `json:"application"`
	SourceRev   string `json:"source_rev"`
	Version     string `json:"version"`
}

// ArtifactBuilder produces a versioned, immutable deployable unit from
// source plus a generated model artifact. Failures are reported as
// [*BuildError]; when Build fails no artifact exists and nothing
// downstream may run.
type ArtifactBuilder interface {
	Build(ctx context.Context, req BuildRequest) (ArtifactRef, error)
}

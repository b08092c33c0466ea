package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/aona/internal/dagger"
)

// Build and return a directory holding the aona binary for the given platform.
// The sqlite driver needs cgo, so builds run natively per architecture
// rather than cross compiling.
func (a *Aona) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,

	// Target architecture
	// +optional
	// +default="amd64"
	arch string,
) *dagger.Directory {
	path := fmt.Sprintf("linux/%s/", arch)

	build := dag.Container(dagger.ContainerOpts{Platform: dagger.Platform("linux/" + arch)}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+arch)).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+arch)).
		WithDirectory("/src", a.Source).
		WithWorkdir("/src").
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/aona"})

	return dag.Directory().WithDirectory(path, build.Directory(path))
}

// BuildRelease compiles versioned release binaries for amd64 and arm64 with
// embedded version info
func (a *Aona) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := strings.Join([]string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/aona-labs/aona/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/aona-labs/aona/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/aona-labs/aona/pkg/utils.Buildtime=%s'", buildtime),
	}, " ")

	outputs := dag.Directory()
	for _, arch := range []string{"amd64", "arm64"} {
		outputs = outputs.WithDirectory(".", a.Build(ctx, ldflags, arch))
	}
	return outputs
}

package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/aona/internal/dagger"
)

// CheckGoMod fails when "go mod tidy" would change go.mod or go.sum, or when
// the downloaded modules do not match go.sum.
//
// +check
func (a *Aona) CheckGoMod(ctx context.Context) (string, error) {
	out, err := a.goContainer().
		WithExec([]string{"sh", "-c", "cp go.mod /tmp/go.mod.HEAD && cp go.sum /tmp/go.sum.HEAD"}).
		WithExec([]string{"go", "mod", "tidy"}).
		WithExec([]string{"sh", "-c", "diff -u /tmp/go.mod.HEAD go.mod && diff -u /tmp/go.sum.HEAD go.sum"}).
		WithExec([]string{"go", "mod", "verify"}).
		Stdout(ctx)

	var e *dagger.ExecError
	switch {
	case errors.As(err, &e):
		return "", fmt.Errorf("go.mod or go.sum are out of date: run 'go mod tidy' and commit the changes\n\n%s%s", e.Stdout, e.Stderr)
	case err != nil:
		return "", fmt.Errorf("unexpected error: %w", err)
	}
	return out, nil
}

// Package builder implements the image builder (C1): it turns a
// registered Function into a backend-specific Docker image tagged with a
// deterministic name, embedding a language wrapper that enforces the
// Envelope wire contract.
package builder

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"

	"github.com/nimbusrun/fnrun/internal/domain"
	"github.com/nimbusrun/fnrun/internal/logging"
)

// Builder builds and removes the per-(function, backend) images used by
// the executors. It holds no per-function state; every call is
// self-contained, so a single Builder is shared across every backend.
type Builder struct {
	docker *client.Client
}

// New wraps an existing Docker SDK client.
func New(docker *client.Client) *Builder {
	return &Builder{docker: docker}
}

// Prepare builds the image for fn on the given backend and returns the
// resulting PreparedImage. The image tag is deterministic in
// (function ID, backend) so callers can treat Prepare as idempotent: a
// second call simply rebuilds the same tag.
func (b *Builder) Prepare(ctx context.Context, fn *domain.Function, backend domain.BackendTag) (*domain.PreparedImage, error) {
	if err := fn.Validate(); err != nil {
		return nil, fmt.Errorf("invalid function: %w", err)
	}

	buildCtx, err := buildContext(fn)
	if err != nil {
		return nil, fmt.Errorf("assemble build context: %w", err)
	}

	tag := ImageTag(fn.ID, backend)
	resp, err := b.docker.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("image build: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return nil, fmt.Errorf("read build output: %w", err)
	}

	logging.Op().Info("image built", "function_id", fn.ID, "backend", backend, "tag", tag)

	return &domain.PreparedImage{
		FunctionID: fn.ID,
		Backend:    backend,
		ImageTag:   tag,
		Language:   fn.Language,
		MemoryMB:   fn.MemoryMB,
	}, nil
}

// Remove deletes a previously built image. A missing image is not an
// error: the caller's bookkeeping may already be stale.
func (b *Builder) Remove(ctx context.Context, tag string) error {
	_, err := b.docker.ImageRemove(ctx, tag, types.ImageRemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("image remove %s: %w", tag, err)
	}
	return nil
}

// ImageTag returns the deterministic image name for a (function, backend)
// pair. Both executors and the pool derive the same tag independently
// instead of threading it through shared state.
func ImageTag(functionID string, backend domain.BackendTag) string {
	return fmt.Sprintf("fn-%s-%s", backend, functionID)
}

// buildContext assembles an in-memory tar stream containing the
// Dockerfile, the user's handler source, and the language wrapper.
func buildContext(fn *domain.Function) (io.Reader, error) {
	var handlerFile, wrapperFile, dockerfile, wrapperSrc string

	switch fn.Language {
	case domain.LanguagePython:
		handlerFile, wrapperFile, dockerfile, wrapperSrc = "function.py", "wrapper.py", pythonDockerfile, pythonWrapper
	case domain.LanguageJavaScript:
		handlerFile, wrapperFile, dockerfile, wrapperSrc = "function.js", "wrapper.js", javascriptDockerfile, javascriptWrapper
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, fn.Language)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	files := map[string]string{
		"Dockerfile": dockerfile,
		handlerFile:  fn.Code,
		wrapperFile:  wrapperSrc,
	}
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("write tar header %s: %w", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("write tar entry %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}
	return &buf, nil
}

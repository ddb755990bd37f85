// Package backend implements the single Docker container driver shared by
// both executor backends. The only difference between the standard and
// sandbox backends is the OCI runtime named in HostConfig.Runtime; every
// other lifecycle operation (create, start, wait, logs, kill, remove) is
// identical, which is what lets internal/executor express both backends
// against one driver.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/nimbusrun/fnrun/internal/domain"
)

// Driver creates and runs single-shot containers from a prepared image.
type Driver struct {
	docker *client.Client
	// Runtime is the OCI runtime passed in HostConfig.Runtime. Empty
	// selects the Docker daemon's default (the standard backend); a
	// non-empty value such as "runsc" selects the sandbox.
	Runtime string
}

// NewDriver wraps an existing Docker SDK client. runtime is the
// HostConfig.Runtime value this driver's containers are created with.
func NewDriver(docker *client.Client, runtime string) *Driver {
	return &Driver{docker: docker, Runtime: runtime}
}

// RunOnce creates a single-shot container from tag with event bound as the
// INPUT_DATA environment variable plus any function-configured env vars,
// starts it, waits for it to exit (or kills it at the deadline), and
// returns its captured stdout. The container is always removed before
// returning, successful or not.
//
// event is passed through the container's environment at creation time,
// never shell-interpolated into a command string run inside the
// container — the shell-interpolation route is exactly the injection
// hazard this driver avoids.
func (d *Driver) RunOnce(ctx context.Context, tag string, memoryMB int, event []byte, envVars map[string]string, timeout time.Duration) ([]byte, error) {
	containerID, err := d.create(ctx, tag, memoryMB, event, envVars)
	if err != nil {
		return nil, err
	}
	defer d.Remove(context.Background(), containerID)

	return d.run(ctx, containerID, timeout)
}

func (d *Driver) create(ctx context.Context, tag string, memoryMB int, event []byte, envVars map[string]string) (string, error) {
	cfg := &container.Config{
		Image: tag,
		Env:   buildEnv(event, envVars),
	}
	resp, err := d.docker.ContainerCreate(ctx, cfg, d.hostConfig(memoryMB), nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("%w: container create: %v", domain.ErrInfrastructureError, err)
	}
	return resp.ID, nil
}

// buildEnv assembles the container's environment list: INPUT_DATA first,
// then the function's own configured env vars. Event bytes land in the
// environment, never in a shell command string.
func buildEnv(event []byte, envVars map[string]string) []string {
	env := make([]string, 0, len(envVars)+1)
	env = append(env, "INPUT_DATA="+string(event))
	for k, v := range envVars {
		env = append(env, k+"="+v)
	}
	return env
}

func (d *Driver) run(ctx context.Context, containerID string, timeout time.Duration) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.docker.ContainerStart(runCtx, containerID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: container start: %v", domain.ErrInfrastructureError, err)
	}

	statusCh, errCh := d.docker.ContainerWait(runCtx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if runCtx.Err() != nil {
			_ = d.Kill(ctx, containerID)
			return nil, domain.ErrTimeout
		}
		if err != nil {
			return nil, fmt.Errorf("%w: container wait: %v", domain.ErrInfrastructureError, err)
		}
	case status := <-statusCh:
		if status.StatusCode == 137 {
			return nil, domain.ErrOutOfMemory
		}
		if status.StatusCode != 0 {
			logs, _ := d.Logs(ctx, containerID)
			return nil, fmt.Errorf("%w: exit status %d: %s", domain.ErrWrapperError, status.StatusCode, logs)
		}
	}

	out, err := d.Logs(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInfrastructureError, err)
	}
	return out, nil
}

// Logs returns the container's stdout. Containers are created with Tty
// false, so the daemon multiplexes stdout/stderr over the 8-byte-framed
// stdcopy stream; stdcopy.StdCopy demuxes it back into separate streams
// before the envelope parser ever sees the bytes.
func (d *Driver) Logs(ctx context.Context, containerID string) ([]byte, error) {
	rc, err := d.docker.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	return demuxStdout(rc)
}

// demuxStdout splits a raw stdcopy-framed stream (what the daemon returns
// for a Tty:false container) into its stdout half, discarding stderr.
func demuxStdout(r io.Reader) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, r); err != nil {
		return nil, fmt.Errorf("demux container logs: %w", err)
	}
	return stdout.Bytes(), nil
}

// Kill force-kills a running container. Used when an invocation exceeds
// its deadline.
func (d *Driver) Kill(ctx context.Context, containerID string) error {
	if err := d.docker.ContainerKill(ctx, containerID, "SIGKILL"); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container kill: %w", err)
	}
	return nil
}

// Remove force-removes a container. Single-shot containers are always
// removed after one Run; they are never restarted.
func (d *Driver) Remove(ctx context.Context, containerID string) error {
	if err := d.docker.ContainerRemove(ctx, containerID, types.ContainerRemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container remove: %w", err)
	}
	return nil
}

func (d *Driver) hostConfig(memoryMB int) *container.HostConfig {
	hc := &container.HostConfig{
		Resources: container.Resources{
			Memory:    int64(memoryMB) * 1024 * 1024,
			CPUQuota:  100000,
			CPUPeriod: 100000,
		},
	}
	if d.Runtime != "" {
		hc.Runtime = d.Runtime
	}
	return hc
}

package hostcheck

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// DockerExecBackend implements ContainerBackend against a running container
// on the local Docker daemon. Adapted from the teacher's
// internal/ghostpool/pool_backend.go DockerBackend, trimmed to the single
// operation the host-integrity proxy needs: running an already-packaged
// scanner image's command inside a container that some other process
// (compose, a sidecar, the deployment tooling) has already started. Unlike
// ghostpool's PoolBackend, this type never creates, starts, or removes
// containers — a file-integrity scan must not provision a fresh sandbox on
// every check.
type DockerExecBackend struct{}

// ExecInContainer runs cmd inside containerID and returns its combined
// stdout/stderr.
func (DockerExecBackend) ExecInContainer(ctx context.Context, containerID string, cmd []string) ([]byte, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("hostcheck: docker client: %w", err)
	}
	defer cli.Close()

	execConfig := types.ExecConfig{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	}

	execID, err := cli.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("hostcheck: exec create: %w", err)
	}

	resp, err := cli.ContainerExecAttach(ctx, execID.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("hostcheck: exec attach: %w", err)
	}
	defer resp.Close()

	output, err := io.ReadAll(resp.Reader)
	if err != nil {
		return nil, fmt.Errorf("hostcheck: read exec output: %w", err)
	}
	return output, nil
}

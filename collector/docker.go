package collector

import (
	"context"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// ContainerIndex maps the host PID of each container's init process to the
// container name
type ContainerIndex interface {
	ContainerPIDs(ctx context.Context) (map[int32]string, error)
}

// DockerIndex answers ContainerPIDs from the local Docker daemon
type DockerIndex struct {
	cli *client.Client
}

func NewDockerIndex() (*DockerIndex, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerIndex{cli: cli}, nil
}

func (d *DockerIndex) ContainerPIDs(ctx context.Context) (map[int32]string, error) {
	// running containers only, stopped ones have no PID
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, err
	}

	pids := make(map[int32]string, len(containers))
	for _, c := range containers {
		info, err := d.cli.ContainerInspect(ctx, c.ID)
		if err != nil || info.ContainerJSONBase == nil || info.State == nil || info.State.Pid == 0 {
			continue
		}

		name := c.ID[:12]
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		pids[int32(info.State.Pid)] = name
	}
	return pids, nil
}

func (d *DockerIndex) Close() error {
	return d.cli.Close()
}

package runner

import (
	"bufio"
	"context"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	"github.com/ds-ai96/SRP/common/errors"
	"github.com/ds-ai96/SRP/common/log"
	"github.com/ds-ai96/SRP/config"
	constant "github.com/ds-ai96/SRP/const"
	"github.com/ds-ai96/SRP/internal/launch"
)

const (
	containerDataBin    = "/app/data-bin"
	containerPretrained = "/app/pretrained"
)

// rebase swaps oldRoot for newRoot at the front of path.
func rebase(path, oldRoot, newRoot string) string {
	rel, err := filepath.Rel(oldRoot, path)
	if err != nil {
		return path
	}
	return filepath.Join(newRoot, rel)
}

// Docker runs the trainer inside a container with the task directory
// bind-mounted and resource quotas from config applied.
type Docker struct {
	conf   config.Runner
	logger log.Logger
}

func NewDocker(conf config.Runner, logger log.Logger) *Docker {
	return &Docker{conf: conf, logger: logger}
}

func (d *Docker) Run(ctx context.Context, spec *launch.TrainSpec, taskDir string, sink Sink) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return errors.Wrap(err, "create docker client")
	}
	defer cli.Close()

	hostConfig, err := d.generateHostConfig(ctx, cli, taskDir, len(spec.GPUs) > 0)
	if err != nil {
		return err
	}
	inside := d.rebaseSpec(spec, taskDir, hostConfig)

	containerConfig := &container.Config{
		Image: d.conf.Image,
		Cmd:   inside.Command(d.conf.PythonBinary, d.conf.TrainScript),
		Env:   inside.Env(),
	}
	return d.runContainer(ctx, cli, containerConfig, hostConfig, sink)
}

func (d *Docker) Generate(ctx context.Context, spec *launch.TrainSpec, taskDir, checkpointPath string, sink Sink) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return errors.Wrap(err, "create docker client")
	}
	defer cli.Close()

	hostConfig, err := d.generateHostConfig(ctx, cli, taskDir, len(spec.GPUs) > 0)
	if err != nil {
		return err
	}
	inside := d.rebaseSpec(spec, taskDir, hostConfig)

	insideCkpt := checkpointPath
	if strings.HasPrefix(checkpointPath, taskDir) {
		insideCkpt = rebase(checkpointPath, taskDir, constant.ContainerBasePath)
	}

	containerConfig := &container.Config{
		Image: d.conf.Image,
		Cmd:   inside.GenerateCommand(d.conf.PythonBinary, d.conf.GenScript, insideCkpt),
		Env:   inside.Env(),
	}
	return d.runContainer(ctx, cli, containerConfig, hostConfig, sink)
}

// rebaseSpec maps the spec's host paths into the container view. The
// container sees the task dir at its fixed mount point; data-bin and a
// foreign pretrained checkpoint get their own read-only mounts.
func (d *Docker) rebaseSpec(spec *launch.TrainSpec, taskDir string, hostConfig *container.HostConfig) *launch.TrainSpec {
	inside := *spec
	inside.Checkpoints.SaveDir = rebase(spec.Checkpoints.SaveDir, taskDir, constant.ContainerBasePath)
	if spec.Checkpoints.RestoreFile != "" {
		inside.Checkpoints.RestoreFile = rebase(spec.Checkpoints.RestoreFile, taskDir, constant.ContainerBasePath)
	}
	if spec.PretrainedModel != "" && strings.HasPrefix(spec.PretrainedModel, taskDir) {
		inside.PretrainedModel = rebase(spec.PretrainedModel, taskDir, constant.ContainerBasePath)
	}
	hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
		Type:     mount.TypeBind,
		Source:   spec.DataBin,
		Target:   containerDataBin,
		ReadOnly: true,
	})
	inside.DataBin = containerDataBin

	if spec.PretrainedModel != "" && !strings.HasPrefix(spec.PretrainedModel, taskDir) {
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   filepath.Dir(spec.PretrainedModel),
			Target:   containerPretrained,
			ReadOnly: true,
		})
		inside.PretrainedModel = filepath.Join(containerPretrained, filepath.Base(spec.PretrainedModel))
	}
	return &inside
}

func (d *Docker) runContainer(ctx context.Context, cli *client.Client, containerConfig *container.Config, hostConfig *container.HostConfig, sink Sink) error {
	resp, err := cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return errors.Wrap(err, "create container")
	}
	containerID := resp.ID
	defer d.cleanupContainer(cli, containerID)

	if err := cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return errors.Wrap(err, "start container")
	}
	d.logger.Infof("container %s started", containerID)

	logs, err := cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return errors.Wrap(err, "fetch container logs")
	}
	defer logs.Close()

	streamDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(logs)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if err := sink.Line(scanner.Text()); err != nil {
				streamDone <- err
				return
			}
		}
		streamDone <- scanner.Err()
	}()

	statusCh, errCh := cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "wait for container")
		}
	case status := <-statusCh:
		<-streamDone
		if status.StatusCode != 0 {
			return errors.Errorf("trainer exited with status %d", status.StatusCode)
		}
	case err := <-streamDone:
		if err != nil {
			// The sink aborted the run.
			d.stopContainer(cli, containerID)
			return err
		}
		<-statusCh
	case <-ctx.Done():
		d.stopContainer(cli, containerID)
		return ctx.Err()
	}

	return nil
}

func (d *Docker) generateHostConfig(ctx context.Context, cli *client.Client, taskDir string, wantGPU bool) (*container.HostConfig, error) {
	info, err := cli.Info(ctx)
	if err != nil {
		return nil, err
	}

	runtime := ""
	deviceRequests := make([]container.DeviceRequest, 0)
	if wantGPU {
		if _, ok := info.Runtimes[d.conf.Runtime]; ok {
			runtime = d.conf.Runtime

			if info.OSType == "linux" {
				deviceRequests = append(deviceRequests, container.DeviceRequest{
					Count:        int(d.conf.Quota.GpuCount),
					Capabilities: [][]string{{"gpu"}},
				})
			} else {
				d.logger.Warnf("DeviceRequests is only supported on Linux. Current os type: %v.", info.OSType)
			}
		} else {
			d.logger.Warnf("%s runtime not found.", d.conf.Runtime)
		}
	}

	cpuCount := d.conf.Quota.CpuCount
	if cpuCount > int64(info.NCPU) {
		d.logger.Warnf("Limit CPU count to total CPU %v, expected: %v.", info.NCPU, cpuCount)
		cpuCount = int64(info.NCPU)
	}

	memory := d.conf.Quota.Memory * 1024 * 1024 * 1024
	if memory > info.MemTotal {
		d.logger.Warnf("Limit memory to total memory %v, expected: %v.", info.MemTotal, memory)
		memory = info.MemTotal
	}

	return &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: taskDir,
				Target: constant.ContainerBasePath,
			},
		},
		Runtime: runtime,
		Resources: container.Resources{
			Memory:         memory,
			NanoCPUs:       cpuCount * 1e9,
			DeviceRequests: deviceRequests,
		},
	}, nil
}

func (d *Docker) stopContainer(cli *client.Client, containerID string) {
	if err := cli.ContainerStop(context.Background(), containerID, container.StopOptions{}); err != nil {
		d.logger.Errorf("Error stopping container: %v", err)
	}
}

func (d *Docker) cleanupContainer(cli *client.Client, containerID string) {
	err := cli.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil {
		d.logger.Errorf("Failed to remove container: %v", err)
	} else {
		d.logger.Infof("Container %s removed successfully", containerID)
	}
}

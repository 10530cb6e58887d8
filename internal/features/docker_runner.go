package features

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	dockerpkg "github.com/dyluth/assay/internal/docker"
	"github.com/dyluth/assay/pkg/bioactivity"
)

// Mount points inside the generator container.
const (
	containerWorkDir = "/work"
	containerSpecDir = "/spec"
)

// DockerRunner runs the generator as a one-shot container. The image's
// entrypoint must be the generator; the rendered options become its Cmd.
type DockerRunner struct {
	Client  *client.Client
	Image   string
	Project string
	RunID   string
	Timeout time.Duration
}

// containerSpec builds the container and host configuration for an invocation.
// The work directory is bind-mounted read-write, the descriptor file's directory read-only.
func (r *DockerRunner) containerSpec(inv Invocation) (*container.Config, *container.HostConfig) {
	args := inv.Options.Args(
		containerWorkDir+"/"+filepath.Base(inv.MoleculeFile),
		containerSpecDir+"/"+filepath.Base(inv.SpecFile),
		containerWorkDir+"/"+filepath.Base(inv.OutputFile),
	)

	config := &container.Config{
		Image:      r.Image,
		Cmd:        args,
		WorkingDir: containerWorkDir,
		Labels:     dockerpkg.BuildLabels(r.Project, r.RunID, inv.WorkDir, "fingerprint"),
	}

	hostConfig := &container.HostConfig{
		AutoRemove: false, // removed explicitly after logs are collected
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: inv.WorkDir,
				Target: containerWorkDir,
			},
			{
				Type:     mount.TypeBind,
				Source:   filepath.Dir(inv.SpecFile),
				Target:   containerSpecDir,
				ReadOnly: true,
			},
		},
	}

	return config, hostConfig
}

// Run creates, starts and waits for the generator container, then removes it.
func (r *DockerRunner) Run(ctx context.Context, inv Invocation) error {
	if r.Client == nil {
		return fmt.Errorf("%w: docker client not configured", bioactivity.ErrExternalTool)
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	config, hostConfig := r.containerSpec(inv)
	name := dockerpkg.FingerprintContainerName(r.Project, r.RunID)

	resp, err := r.Client.ContainerCreate(runCtx, config, hostConfig, nil, nil, name)
	if err != nil {
		return fmt.Errorf("%w: failed to create generator container: %v", bioactivity.ErrExternalTool, err)
	}
	// Remove with a fresh context so cleanup still happens after a timeout.
	defer r.Client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	log.Printf("[Features] Starting generator container: name=%s image=%s", name, r.Image)
	startTime := time.Now()

	if err := r.Client.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("%w: failed to start generator container: %v", bioactivity.ErrExternalTool, err)
	}

	statusCh, errCh := r.Client.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)

	select {
	case err := <-errCh:
		return fmt.Errorf("%w: error waiting for generator container: %v", bioactivity.ErrExternalTool, err)

	case status := <-statusCh:
		duration := time.Since(startTime)
		if status.StatusCode != 0 {
			logs := r.containerLogs(context.Background(), resp.ID)
			log.Printf("[Features] Generator container failed: exit_code=%d duration=%s", status.StatusCode, duration)
			return fmt.Errorf("%w: generator container exited with code %d: %s",
				bioactivity.ErrExternalTool, status.StatusCode, truncate(logs, 500))
		}
		log.Printf("[Features] Generator container completed: duration=%s", duration)
		return nil
	}
}

// containerLogs returns the last 100 log lines for failure reporting.
func (r *DockerRunner) containerLogs(ctx context.Context, containerID string) string {
	reader, err := r.Client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "100",
	})
	if err != nil {
		return fmt.Sprintf("(failed to retrieve logs: %v)", err)
	}
	defer reader.Close()

	logs, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Sprintf("(failed to read logs: %v)", err)
	}

	return string(logs)
}

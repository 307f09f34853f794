package invoker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

// DockerInvoker runs the experiment inside a container, bind-mounting the
// per-run output locations so parsing can read them from the host afterward.
type DockerInvoker struct {
	Image      string
	Script     string
	StaticArgs []string
	Timeout    time.Duration
}

const (
	containerScript    = "/experiment.sh"
	containerMetrics   = "/outputs/metrics"
	containerLog       = "/outputs/run.log"
	containerArtifacts = "/outputs/artifacts"
)

func (d *DockerInvoker) Run(ctx context.Context, paths Paths, runConfig, extra map[string]any) (Result, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return Result{}, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	scriptAbs, err := filepath.Abs(d.Script)
	if err != nil {
		return Result{}, fmt.Errorf("resolving script path: %w", err)
	}
	metricsAbs, err := filepath.Abs(paths.MetricsDir)
	if err != nil {
		return Result{}, fmt.Errorf("resolving metrics dir: %w", err)
	}

	mounts := []mount.Mount{
		{Type: mount.TypeBind, Source: scriptAbs, Target: containerScript, ReadOnly: true},
		{Type: mount.TypeBind, Source: metricsAbs, Target: containerMetrics},
	}

	inner := Paths{MetricsDir: containerMetrics}
	if paths.LogFile != "" {
		// The log file must exist before it can be bind-mounted.
		if f, err := os.OpenFile(paths.LogFile, os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			f.Close()
		}
		logAbs, err := filepath.Abs(paths.LogFile)
		if err != nil {
			return Result{}, fmt.Errorf("resolving log path: %w", err)
		}
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: logAbs, Target: containerLog})
		inner.LogFile = containerLog
	}
	if paths.ArtifactsDir != "" {
		artAbs, err := filepath.Abs(paths.ArtifactsDir)
		if err != nil {
			return Result{}, fmt.Errorf("resolving artifacts dir: %w", err)
		}
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: artAbs, Target: containerArtifacts})
		inner.ArtifactsDir = containerArtifacts
	}

	cmd := append([]string{"bash", containerScript}, BuildArgs(inner, d.StaticArgs, runConfig, extra)...)

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: mounts,
		Init:   &initTrue,
	}
	containerCfg := &container.Config{
		Image:  d.Image,
		Cmd:    cmd,
		Labels: map[string]string{"exptrack": "true"},
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return Result{}, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return Result{}, fmt.Errorf("starting container: %w", err)
	}

	waitCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	waitResult := cli.ContainerWait(waitCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				return Result{Duration: time.Since(start), ExitCode: 124}, nil
			}
		case status := <-waitResult.Result:
			return Result{Duration: time.Since(start), ExitCode: int(status.StatusCode)}, nil
		}
	}
}

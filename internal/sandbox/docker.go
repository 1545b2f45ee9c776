// Package sandbox wraps the Docker SDK build/run primitives shared by the
// `run` tool and the Validator, grounded on the docker_executor.go reference
// (ContainerCreate/ContainerStart/ContainerWait/ContainerLogs+stdcopy,
// network.NetworkNone, errdefs classification) whose originating repo's real
// go.mod directly requires github.com/docker/docker.
package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
)

// Runtime is the subset of Docker's build/run surface that the `run` tool
// and the Validator depend on, extracted so tests can supply a fake runtime
// without a Docker daemon.
type Runtime interface {
	Build(ctx context.Context, buildContextDir, dockerfilePath, tag string, timeout time.Duration) (RunOutcome, error)
	Run(ctx context.Context, tag string, timeout time.Duration) (RunOutcome, error)
	RemoveImage(ctx context.Context, tag string) error
}

// Docker wraps a negotiated Docker SDK client.
type Docker struct {
	cli *client.Client
}

// New connects to the local Docker daemon via the standard environment
// variables, negotiating the API version like the reference executor.
func New() (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Docker{cli: cli}, nil
}

// RunOutcome is the result of building and running one image.
type RunOutcome struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	BuildFailed bool
	TimedOut   bool
}

// ImageTag derives a deterministic image tag from a project slug, per spec
// §4.2: "build the image tagged by a deterministic function of the project
// slug".
func ImageTag(projectSlug string) string {
	return fmt.Sprintf("povagent-vuln-%s:latest", projectSlug)
}

// RemoveImage removes any prior image for the tag, ignoring not-found.
// Called at Engine setup (spec §4.6).
func (d *Docker) RemoveImage(ctx context.Context, tag string) error {
	_, err := d.cli.ImageRemove(ctx, tag, image.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove image %s: %w", tag, err)
	}
	return nil
}

// Build builds buildContextDir's Dockerfile.vuln into an image tagged tag,
// with a bounded timeout. A build failure (nonzero exit from the builder,
// or timeout) is reported via RunOutcome.BuildFailed rather than an error,
// preserving the dual-truth contract: build failure is tool-layer success.
func (d *Docker) Build(ctx context.Context, buildContextDir, dockerfilePath, tag string, timeout time.Duration) (RunOutcome, error) {
	buildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tarball, err := tarDirectory(buildContextDir)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("tar build context: %w", err)
	}

	relDockerfile, err := filepath.Rel(buildContextDir, dockerfilePath)
	if err != nil {
		relDockerfile = "Dockerfile.vuln"
	}

	resp, err := d.cli.ImageBuild(buildCtx, tarball, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: relDockerfile,
		Remove:     true,
	})
	if err != nil {
		if errors.Is(buildCtx.Err(), context.DeadlineExceeded) {
			return RunOutcome{BuildFailed: true, TimedOut: true, Stderr: "build timed out"}, nil
		}
		return RunOutcome{BuildFailed: true, Stderr: err.Error()}, nil
	}
	defer resp.Body.Close()

	var buildLog bytes.Buffer
	dec := json.NewDecoder(resp.Body)
	var buildErr string
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			if buildCtx.Err() != nil {
				return RunOutcome{BuildFailed: true, TimedOut: true, Stderr: buildLog.String()}, nil
			}
			return RunOutcome{BuildFailed: true, Stderr: err.Error()}, nil
		}
		if msg.Stream != "" {
			buildLog.WriteString(msg.Stream)
		}
		if msg.Error != nil {
			buildErr = msg.Error.Message
		} else if msg.ErrorMessage != "" {
			buildErr = msg.ErrorMessage
		}
	}

	if buildCtx.Err() != nil {
		return RunOutcome{BuildFailed: true, TimedOut: true, Stderr: buildLog.String()}, nil
	}

	if buildErr != "" {
		return RunOutcome{BuildFailed: true, Stderr: buildErr, Stdout: buildLog.String()}, nil
	}

	return RunOutcome{Stdout: buildLog.String()}, nil
}

// Run creates and runs a no-network container from tag, capturing demuxed
// stdout/stderr, and removes the container afterward.
func (d *Docker) Run(ctx context.Context, tag string, timeout time.Duration) (RunOutcome, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	createResp, err := d.cli.ContainerCreate(runCtx,
		&container.Config{Image: tag, AttachStdout: true, AttachStderr: true},
		&container.HostConfig{
			NetworkMode:   network.NetworkNone,
			AutoRemove:    false,
			RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
		},
		nil, nil, "")
	if err != nil {
		return RunOutcome{}, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		_ = d.cli.ContainerRemove(context.Background(), createResp.ID, container.RemoveOptions{Force: true})
	}()

	if err := d.cli.ContainerStart(runCtx, createResp.ID, container.StartOptions{}); err != nil {
		return RunOutcome{}, fmt.Errorf("start container: %w", err)
	}

	statusCh, errCh := d.cli.ContainerWait(runCtx, createResp.ID, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		if err != nil {
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return RunOutcome{TimedOut: true}, nil
			}
			return RunOutcome{}, fmt.Errorf("wait for container: %w", err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-runCtx.Done():
		return RunOutcome{TimedOut: true}, nil
	}

	logs, err := d.cli.ContainerLogs(context.Background(), createResp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return RunOutcome{ExitCode: exitCode}, fmt.Errorf("read container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return RunOutcome{ExitCode: exitCode}, fmt.Errorf("demux container logs: %w", err)
	}

	return RunOutcome{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// tarDirectory packages dir into a tar stream for ImageBuild's build context.
func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	defer tw.Close()

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &buf, nil
}

// Package sandbox isolates async CLI executions inside
// short-lived Docker containers instead of bare host processes, per the
// SandboxConfig knobs the gateway's config package references but never
// implements. One container is created per (agent, workspace) key and
// reused across calls until Shutdown; callers that never enable sandboxing see
// ErrSandboxDisabled and fall back to host execution.
package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/superbrain/gateway/internal/config"
)

// ErrSandboxDisabled is returned by Get when the process has no sandbox
// configured, signalling callers to execute on the host instead.
var ErrSandboxDisabled = errors.New("sandbox: disabled")

// ExecResult is the outcome of running a command inside a container.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Container is a running sandbox instance bound to one workspace.
type Container interface {
	ID() string
	Exec(ctx context.Context, cmd []string, cwd string) (*ExecResult, error)
	Close(ctx context.Context) error
}

// Manager creates and reuses sandbox containers keyed by an opaque string
// (typically "{agentID}:{workspacePath}").
type Manager interface {
	Get(ctx context.Context, key, hostWorkspace string) (Container, error)
	Shutdown(ctx context.Context)
}

// DockerManager implements Manager on top of the Docker Engine API.
type DockerManager struct {
	cli    *client.Client
	cfg    config.SandboxConfig
	mu     sync.Mutex
	active map[string]*dockerContainer
}

// NewDockerManager connects to the local Docker daemon. If cfg.Mode is "off"
// or the daemon is unreachable, Get always returns ErrSandboxDisabled.
func NewDockerManager(cfg config.SandboxConfig) (*DockerManager, error) {
	m := &DockerManager{cfg: cfg, active: make(map[string]*dockerContainer)}
	if cfg.Mode == "" || cfg.Mode == "off" {
		return m, nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		slog.Warn("sandbox: docker client unavailable, disabling sandbox", "error", err)
		return m, nil
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		slog.Warn("sandbox: docker daemon unreachable, disabling sandbox", "error", err)
		_ = cli.Close()
		return m, nil
	}
	m.cli = cli
	return m, nil
}

func (m *DockerManager) Get(ctx context.Context, key, hostWorkspace string) (Container, error) {
	if m.cli == nil || m.cfg.Mode == "off" || m.cfg.Mode == "" {
		return nil, ErrSandboxDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.active[key]; ok {
		return c, nil
	}

	image := m.cfg.Image
	if image == "" {
		image = "superbrain-sandbox:bookworm-slim"
	}

	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: hostWorkspace,
			Target: "/workspace",
		}},
		NetworkMode: "none",
	}
	if m.cfg.NetworkEnabled {
		hostCfg.NetworkMode = "bridge"
	}
	if m.cfg.MemoryMB > 0 {
		hostCfg.Resources.Memory = int64(m.cfg.MemoryMB) * 1024 * 1024
	}
	if m.cfg.CPUs > 0 {
		hostCfg.Resources.NanoCPUs = int64(m.cfg.CPUs * 1e9)
	}

	containerCfg := &container.Config{
		Image:      image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: "/workspace",
		Tty:        false,
	}
	if m.cfg.User != "" {
		containerCfg.User = m.cfg.User
	}

	resp, err := m.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("sandbox: create container: %w", err)
	}
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("sandbox: start container: %w", err)
	}

	dc := &dockerContainer{cli: m.cli, id: resp.ID}
	m.active[key] = dc
	return dc, nil
}

func (m *DockerManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, c := range m.active {
		if err := c.Close(ctx); err != nil {
			slog.Warn("sandbox: error stopping container", "key", key, "error", err)
		}
		delete(m.active, key)
	}
}

type dockerContainer struct {
	cli *client.Client
	id  string
}

func (c *dockerContainer) ID() string { return c.id }

func (c *dockerContainer) Exec(ctx context.Context, cmd []string, cwd string) (*ExecResult, error) {
	execCfg := container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   cwd,
		AttachStdout: true,
		AttachStderr: true,
	}
	created, err := c.cli.ContainerExecCreate(ctx, c.id, execCfg)
	if err != nil {
		return nil, fmt.Errorf("sandbox: exec create: %w", err)
	}
	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("sandbox: exec attach: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := io.Copy(&stdout, attach.Reader); err != nil && !errors.Is(err, io.EOF) {
		slog.Debug("sandbox: exec stream read error", "error", err)
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("sandbox: exec inspect: %w", err)
	}
	return &ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: inspect.ExitCode}, nil
}

func (c *dockerContainer) Close(ctx context.Context) error {
	timeout := 5
	if err := c.cli.ContainerStop(ctx, c.id, container.StopOptions{Timeout: &timeout}); err != nil {
		return err
	}
	return c.cli.ContainerRemove(ctx, c.id, container.RemoveOptions{Force: true})
}

// FsBridge reads files inside a container via the Docker tar-archive copy
// API, letting read_file operate the same way whether sandboxed or not. It
// has no write method.
type FsBridge struct {
	containerID string
	root        string
}

// NewFsBridge returns a bridge rooted at root inside the named container.
func NewFsBridge(containerID, root string) *FsBridge {
	return &FsBridge{containerID: containerID, root: root}
}

// ReadFile is implemented via CopyFromContainer against a throwaway client;
// callers needing high call volume should keep a client.Client around
// instead of constructing one per read.
func (b *FsBridge) ReadFile(ctx context.Context, path string) (string, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return "", fmt.Errorf("fsbridge: docker client: %w", err)
	}
	defer cli.Close()

	if path == "" || path[0] != '/' {
		path = b.root + "/" + path
	}
	reader, _, err := cli.CopyFromContainer(ctx, b.containerID, path)
	if err != nil {
		return "", fmt.Errorf("fsbridge: copy from container: %w", err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	if _, err := tr.Next(); err != nil {
		return "", fmt.Errorf("fsbridge: read tar header: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, tr); err != nil {
		return "", fmt.Errorf("fsbridge: read tar body: %w", err)
	}
	return buf.String(), nil
}

var _ nat.PortSet // keep go-connections/nat imported for future port-mapped sandboxes

// Package docker runs snippets inside throwaway Docker containers drawn from
// per-language pools of pre-warmed containers.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/codevault/codevault/internal/executor"
)

// Executor implements executor.Executor on a local Docker daemon.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pools  map[string]*Pool
}

var _ executor.Executor = (*Executor)(nil)

// New connects to the daemon from the environment (DOCKER_HOST etc.), pulls
// every runtime image and starts one pool per language.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon not reachable: %w", err)
	}

	e := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pools:  make(map[string]*Pool, len(cfg.Runtimes)),
	}

	pulled := make(map[string]bool)
	for _, lang := range cfg.Languages() {
		rt := cfg.Runtimes[lang]
		if !pulled[rt.Image] {
			if err := e.pullImage(ctx, rt.Image); err != nil {
				e.Close()
				return nil, err
			}
			pulled[rt.Image] = true
		}
		pool := NewPool(cli, rt.Image, cfg, logger)
		pool.Start()
		e.pools[lang] = pool
	}

	return e, nil
}

func (e *Executor) pullImage(ctx context.Context, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	e.logger.Info("ensuring docker image is available", slog.String("image", ref))
	reader, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()
	// The pull only finishes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// Close stops every pool and the docker client.
func (e *Executor) Close() error {
	for _, p := range e.pools {
		p.Stop()
	}
	return e.cli.Close()
}

func (e *Executor) Languages() []string {
	return e.config.Languages()
}

// Execute runs req.Code with the runtime for req.Language in a fresh
// container. A run that outlives the timeout reports exit code 124.
func (e *Executor) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	pool, ok := e.pools[req.Language]
	if !ok {
		return nil, fmt.Errorf("%w: %q", executor.ErrUnsupportedLanguage, req.Language)
	}
	rt := e.config.Runtimes[req.Language]

	start := time.Now()

	containerID, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	// Containers are single-use; whatever the run did to it is thrown away.
	defer pool.removeContainer(containerID)

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          rt.command(req.Code),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	stdout := &executor.CappedBuffer{Limit: e.config.MaxOutputBytes}
	stderr := &executor.CappedBuffer{Limit: e.config.MaxOutputBytes}

	done := make(chan struct{})
	go func() {
		_, _ = stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		close(done)
	}()

	res := &executor.Result{}
	select {
	case <-done:
		inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect exec: %w", err)
		}
		res.ExitCode = inspect.ExitCode
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Closing the hijacked connection unblocks StdCopy.
		attachResp.Close()
		<-done
		res.ExitCode = executor.TimeoutExitCode
		res.TimedOut = true
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if res.TimedOut {
		res.Stderr += "\nExecution timed out.\n"
	}
	res.Truncated = stdout.Truncated() || stderr.Truncated()
	res.Duration = time.Since(start)

	e.logger.Debug("sandbox run finished",
		slog.String("language", req.Language),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

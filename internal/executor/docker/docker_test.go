package docker_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/executor"
	"github.com/codevault/codevault/internal/executor/docker"
)

// These tests need a Docker daemon and network access to pull images.
func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("CODEVAULT_DOCKER_TESTS") != "1" {
		t.Skip("set CODEVAULT_DOCKER_TESTS=1 to run sandbox tests")
	}
}

func TestDockerExecutor(t *testing.T) {
	requireDocker(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := docker.DefaultConfig()
	cfg.PoolSize = 1
	cfg.Timeout = 3 * time.Second

	exec, err := docker.New(context.Background(), cfg, logger)
	require.NoError(t, err, "should initialize docker executor")
	defer exec.Close()

	t.Run("python hello", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.Request{
			Language: "python",
			Code:     `print("Hello from test sandbox!")`,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "Hello from test sandbox!")
		assert.Empty(t, res.Stderr)
		assert.Greater(t, res.Duration, time.Duration(0))
	})

	t.Run("javascript fib", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.Request{
			Language: "javascript",
			Code:     "function fib(n){ return n <= 1 ? n : fib(n-1) + fib(n-2) }\nconsole.log(fib(10))",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Equal(t, "55", strings.TrimSpace(res.Stdout))
	})

	t.Run("python syntax error", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.Request{
			Language: "python",
			Code:     `print("Missing parenthesis"`,
		})
		require.NoError(t, err)
		assert.NotEqual(t, 0, res.ExitCode)
		assert.Contains(t, res.Stderr, "SyntaxError")
		assert.Empty(t, res.Stdout)
	})

	t.Run("infinite loop times out", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.Request{
			Language: "python",
			Code:     `while True: pass`,
		})
		require.NoError(t, err)
		assert.Equal(t, executor.TimeoutExitCode, res.ExitCode)
		assert.True(t, res.TimedOut)
		assert.Contains(t, res.Stderr, "timed out")
	})

	t.Run("no network", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.Request{
			Language: "python",
			Code:     "import urllib.request\nurllib.request.urlopen('http://example.com', timeout=1)",
		})
		require.NoError(t, err)
		assert.NotEqual(t, 0, res.ExitCode)
	})

	t.Run("unsupported language", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), executor.Request{Language: "cobol", Code: "DISPLAY 'HI'."})
		assert.ErrorIs(t, err, executor.ErrUnsupportedLanguage)
	})
}

package docker

import (
	"fmt"
	"slices"
	"time"
)

// Runtime is how one language is run: the image its pooled containers use
// and the command prefix the code is appended to.
type Runtime struct {
	Image   string
	Command []string
}

// Config holds the sandbox settings shared by every runtime.
type Config struct {
	// Runtimes maps a snippet language to its sandbox runtime.
	Runtimes map[string]Runtime
	// MemoryLimit is the container memory cap in bytes.
	MemoryLimit int64
	// CPULimit is the number of CPUs a container may use.
	CPULimit float64
	// Timeout bounds a single run.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers kept per runtime.
	PoolSize int
	// MaxOutputBytes caps stdout and stderr separately.
	MaxOutputBytes int
}

// DefaultConfig runs python and javascript snippets on small alpine images.
func DefaultConfig() Config {
	return Config{
		Runtimes: map[string]Runtime{
			"python":     {Image: "python:3.12-alpine", Command: []string{"python", "-c"}},
			"javascript": {Image: "node:22-alpine", Command: []string{"node", "-e"}},
		},
		MemoryLimit:    128 * 1024 * 1024,
		CPULimit:       0.5,
		Timeout:        5 * time.Second,
		PoolSize:       2,
		MaxOutputBytes: 64 * 1024,
	}
}

func (c Config) Validate() error {
	if len(c.Runtimes) == 0 {
		return fmt.Errorf("docker: at least one runtime required")
	}
	for lang, rt := range c.Runtimes {
		if rt.Image == "" || len(rt.Command) == 0 {
			return fmt.Errorf("docker: runtime %q needs an image and a command", lang)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("docker: timeout must be positive")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("docker: pool size must be positive")
	}
	if c.MaxOutputBytes <= 0 {
		return fmt.Errorf("docker: max output bytes must be positive")
	}
	return nil
}

// Languages lists the configured languages in sorted order.
func (c Config) Languages() []string {
	langs := make([]string, 0, len(c.Runtimes))
	for lang := range c.Runtimes {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

// command builds the exec argv for code under rt.
func (rt Runtime) command(code string) []string {
	return append(slices.Clone(rt.Command), code)
}

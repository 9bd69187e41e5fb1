// Package executor runs a snippet's code in an isolated sandbox and reports
// what it printed.
package executor

import (
	"context"
	"errors"
	"time"
)

// TimeoutExitCode is reported when a run is killed for exceeding its time
// limit, matching the coreutils `timeout` convention.
const TimeoutExitCode = 124

var (
	// ErrUnsupportedLanguage means no sandbox runtime is configured for the
	// requested language.
	ErrUnsupportedLanguage = errors.New("executor: unsupported language")
	// ErrUnavailable means the sandbox backend could not be started.
	ErrUnavailable = errors.New("executor: sandbox unavailable")
)

// Request is one piece of code to run.
type Request struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Result is the output and status of one run.
type Result struct {
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	ExitCode  int           `json:"exitCode"`
	TimedOut  bool          `json:"timedOut"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"duration"`
}

// Executor runs code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
	Languages() []string
}

// Unavailable stands in when no sandbox could be started (no Docker daemon,
// sandbox disabled by config). Every run fails with ErrUnavailable.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Execute(context.Context, Request) (*Result, error) {
	if u.Reason != nil {
		return nil, errors.Join(ErrUnavailable, u.Reason)
	}
	return nil, ErrUnavailable
}

func (Unavailable) Languages() []string { return nil }

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Swap point for tests.
var commandContext = exec.CommandContext

// ErrExtractTimeout means the tool exceeded its wall-clock limit and was
// force-killed.
var ErrExtractTimeout = errors.New("extraction timed out")

// ToolError carries a bounded tail of the tool's diagnostic output.
type ToolError struct {
	Err    error
	Stderr string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("extraction tool failed: %v", e.Err)
	}
	return fmt.Sprintf("extraction tool failed: %v | %s", e.Err, e.Stderr)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Extractor invokes the external extraction tool. It is the only component
// that talks to the subprocess.
type Extractor struct {
	binary      string
	cookiesPath string
	timeout     time.Duration
	log         *slog.Logger
}

func NewExtractor(binary, cookiesPath string, timeout time.Duration, log *slog.Logger) *Extractor {
	return &Extractor{binary: binary, cookiesPath: cookiesPath, timeout: timeout, log: log}
}

// Extract runs the tool against url and parses its JSON document. The tool
// runs in its own process group so a timeout kill reaps descendants too.
func (e *Extractor) Extract(ctx context.Context, url string) (*ExtractInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{"--dump-json", "--no-download", "--no-warnings"}
	if e.cookiesReadable() {
		args = append(args, "--cookies", e.cookiesPath)
	}
	args = append(args, url)

	cmd := commandContext(ctx, e.binary, args...)
	var stdout bytes.Buffer
	stderr := newTailBuffer(1000)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		// Negative pid signals the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrExtractTimeout, e.timeout)
		}
		return nil, &ToolError{Err: err, Stderr: stderr.String()}
	}

	var info ExtractInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse tool output: %w", err)
	}
	return &info, nil
}

// Version probes the tool binary; used by the health endpoint.
func (e *Extractor) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := commandContext(ctx, e.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("tool version probe: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Update runs the tool's self-update subcommand.
func (e *Extractor) Update(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := commandContext(ctx, e.binary, "-U")
	stderr := newTailBuffer(500)
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return &ToolError{Err: err, Stderr: stderr.String()}
	}
	return nil
}

func (e *Extractor) cookiesReadable() bool {
	if e.cookiesPath == "" {
		return false
	}
	f, err := os.Open(e.cookiesPath)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// tailBuffer keeps only the last max bytes written, so a verbose tool cannot
// grow memory without bound.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}

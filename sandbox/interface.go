package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Mode selects the execution budget of a request.
type Mode string

const (
	// ModeRun is free-form execution.
	ModeRun Mode = "run"
	// ModeTest is execution on behalf of a single test case.
	ModeTest Mode = "test"
)

// ExecuteRequest represents the parameters for code execution
type ExecuteRequest struct {
	Language string
	Source   string
	// Stdin is fed to the program's standard input, if the adapter runs one.
	Stdin string
	Mode  Mode
}

// ExecuteResult represents the result of code execution.
//
// Exactly one of Output and Error is populated.
type ExecuteResult struct {
	Success   bool          `json:"success"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Executor defines the interface exposed to the transports
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) ExecuteResult
	Languages() []LanguageInfo
}

// Command describes a single subprocess invocation.
type Command struct {
	Args  []string
	Dir   string
	Stdin string
	Env   map[string]string
}

// CommandResult holds the captured output of a finished subprocess.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd Command) (CommandResult, error)
}

// RealCommandRunner implements CommandRunner using actual exec commands.
//
// Each command gets its own process group; when ctx expires the whole group
// is killed, so programs that fork cannot outlive their budget.
type RealCommandRunner struct {
	// MaxOutputBytes caps each captured stream. Zero means unlimited.
	MaxOutputBytes int
	// WaitDelay bounds how long Wait keeps draining pipes after a kill.
	WaitDelay time.Duration
}

// RunCommand executes the given command with arguments.
//
// A non-zero exit is reported through ExitCode with a nil error; err is only
// set when the process could not be started.
func (r RealCommandRunner) RunCommand(ctx context.Context, c Command) (CommandResult, error) {
	if len(c.Args) < 1 {
		return CommandResult{}, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...) //nolint:gosec // running submitted programs is the point
	cmd.Dir = c.Dir
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	if len(c.Env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range c.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
		}
	}

	waitDelay := r.WaitDelay
	if waitDelay <= 0 {
		waitDelay = 500 * time.Millisecond
	}
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	stdoutBuf := newCappedBuffer(r.MaxOutputBytes)
	stderrBuf := newCappedBuffer(r.MaxOutputBytes)
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	if err := cmd.Start(); err != nil {
		return CommandResult{}, err
	}
	err := cmd.Wait()
	killProcessGroup(cmd)

	result := CommandResult{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitError.ExitCode()
			return result, nil
		}
		// Pipes still held open by an escaped grandchild after WaitDelay.
		if errors.Is(err, exec.ErrWaitDelay) {
			return result, nil
		}
		return result, err
	}

	return result, nil
}

const truncationMarker = "\n... output truncated"

// cappedBuffer keeps at most limit bytes and silently drops the rest, so a
// chatty program cannot exhaust memory before its timeout fires.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncationMarker
	}
	return b.buf.String()
}

var _ io.Writer = (*cappedBuffer)(nil)

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// FilePermission is used for source files written into a workspace.
const FilePermission = 0o600

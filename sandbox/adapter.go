package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// AdapterKind describes how an adapter turns source into a result.
type AdapterKind string

const (
	AdapterInterpreted AdapterKind = "interpreted"
	AdapterSubprocess  AdapterKind = "subprocess"
	AdapterCompiled    AdapterKind = "compiled"
	AdapterValidation  AdapterKind = "validation"
	AdapterRelational  AdapterKind = "relational"
)

// EvalMode tells the evaluator how a test case input is applied.
type EvalMode string

const (
	// EvalProbe appends RenderProbe(input) to the source and compares the
	// printed value.
	EvalProbe EvalMode = "probe"
	// EvalWholeProgram runs the source unchanged, feeds the input on stdin
	// and compares the whole program output.
	EvalWholeProgram EvalMode = "whole_program"
)

// MatchRule selects how actual output is compared with expected output.
type MatchRule string

const (
	MatchExact MatchRule = "exact"
	// MatchContains also accepts actual output that contains the expected
	// text. Only the relational adapter uses it, because its output is a
	// formatted multi-line report rather than a single value.
	MatchContains MatchRule = "contains"
)

// Limits are the wall-clock budgets of one execution.
type Limits struct {
	Run     time.Duration
	Compile time.Duration
}

// Job is a single unit of work handed to an adapter.
type Job struct {
	ID     string
	Source string
	Stdin  string
	Limits Limits
}

// LanguageAdapter executes or validates source code of one language.
//
// Execute returns the raw captured output. Every failure must be returned as
// an *Error; the engine converts anything else, panics included, into an
// internal error.
type LanguageAdapter interface {
	Name() string
	Kind() AdapterKind
	EvalMode() EvalMode
	Match() MatchRule
	// RenderProbe returns the source fragment that prints the value of
	// expression. It is only consulted when EvalMode is EvalProbe.
	RenderProbe(expression string) string
	Execute(ctx context.Context, job Job) (string, error)
}

// LanguageInfo describes a registered language to API callers.
type LanguageInfo struct {
	Name           string      `json:"name"`
	Aliases        []string    `json:"aliases,omitempty"`
	Kind           AdapterKind `json:"kind"`
	EvaluationMode EvalMode    `json:"evaluation_mode"`
	Match          MatchRule   `json:"match"`
}

// toolchain identifies an external binary an adapter depends on.
type toolchain struct {
	language    string
	binary      string
	installHint string
	// artifact marks a binary produced by a compile step rather than
	// installed on the host.
	artifact bool
}

func (t toolchain) missing(err error) *Error {
	if t.artifact {
		return newError(KindInternal, err, "compiled %s program %q was not produced", t.language, t.binary)
	}
	msg := fmt.Sprintf("%s toolchain %q is not installed on this host.", t.language, t.binary)
	if t.installHint != "" {
		msg += " " + t.installHint
	}
	return &Error{Kind: KindToolchainMissing, Message: msg, Err: err}
}

// runPhase runs one subprocess under its own budget. A missing binary,
// budget expiry and caller cancellation come back as an *Error; a non-zero
// exit does not, the caller classifies it.
func runPhase(ctx context.Context, runner CommandRunner, tc toolchain, cmd Command, budget time.Duration, phase string) (CommandResult, error) {
	phaseCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	result, err := runner.RunCommand(phaseCtx, cmd)

	if errors.Is(phaseCtx.Err(), context.DeadlineExceeded) {
		return result, newError(KindTimeout, phaseCtx.Err(), "%s timed out after %s", phase, budget)
	}
	if ctx.Err() != nil {
		return result, newError(KindInternal, ctx.Err(), "%s cancelled: %v", phase, ctx.Err())
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return result, tc.missing(err)
		}
		return result, newError(KindInternal, err, "failed to start %s: %v", tc.binary, err)
	}

	return result, nil
}

// runtimeFailure builds the error of a program that exited non-zero.
func runtimeFailure(result CommandResult, clean func(string) string) *Error {
	msg := strings.TrimSpace(result.Stderr)
	if clean != nil {
		msg = clean(msg)
	}
	if msg == "" {
		msg = fmt.Sprintf("process exited with status %d", result.ExitCode)
	}
	return &Error{Kind: KindRuntimeError, Message: msg}
}

// stripStackFrames drops indented "at ..." frames and runtime banners from
// interpreter diagnostics, keeping the exception line itself.
func stripStackFrames(msg string) string {
	lines := strings.Split(msg, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		indented := len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
		switch {
		case indented && strings.HasPrefix(trimmed, "at "):
			continue
		case indented && strings.HasPrefix(trimmed, "... ") && strings.HasSuffix(trimmed, " more"):
			continue
		case strings.HasPrefix(trimmed, "Node.js v"):
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

package sandbox

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
)

// buildPlan is the compile and run invocation of one source file inside a
// workspace. Compile paths are relative to the workspace so diagnostics do
// not mention the temporary directory.
type buildPlan struct {
	SourceFile string
	Compile    []string
	Run        []string
	// RunTool is the binary Run[0] refers to, for missing-toolchain reports.
	RunTool toolchain
}

// planFunc derives the build plan from the workspace and the source.
type planFunc func(dir, source string, lang config.Language) buildPlan

// compiledAdapter writes the source into an ephemeral workspace, compiles
// it, and runs the produced program. The workspace is removed on every path.
type compiledAdapter struct {
	name     string
	logger   *zap.Logger
	runner   CommandRunner
	fs       FileSystem
	workDir  string
	lang     config.Language
	compiler toolchain
	plan     planFunc
	clean    func(string) string
}

func (c *compiledAdapter) Name() string     { return c.name }
func (*compiledAdapter) Kind() AdapterKind  { return AdapterCompiled }
func (*compiledAdapter) EvalMode() EvalMode { return EvalWholeProgram }
func (*compiledAdapter) Match() MatchRule   { return MatchExact }

// RenderProbe is unused: compiled programs are evaluated as a whole.
func (*compiledAdapter) RenderProbe(string) string { return "" }

func (c *compiledAdapter) Execute(ctx context.Context, job Job) (string, error) {
	dir, err := c.fs.MkdirTemp(c.workDir, "coderun-"+c.name+"-*")
	if err != nil {
		return "", newError(KindInternal, err, "failed to create workspace: %v", err)
	}
	defer func() {
		if rmErr := c.fs.RemoveAll(dir); rmErr != nil {
			c.logger.Error("failed to remove workspace", zap.String("path", dir), zap.Error(rmErr))
		}
	}()

	plan := c.plan(dir, job.Source, c.lang)

	sourcePath := filepath.Join(dir, plan.SourceFile)
	if writeErr := c.fs.WriteFile(sourcePath, []byte(job.Source), FilePermission); writeErr != nil {
		return "", newError(KindInternal, writeErr, "failed to write source file: %v", writeErr)
	}

	compiled, err := runPhase(ctx, c.runner, c.compiler, Command{
		Args: plan.Compile,
		Dir:  dir,
		Env:  c.lang.Environment,
	}, job.Limits.Compile, "compilation")
	if err != nil {
		return "", err
	}
	if compiled.ExitCode != 0 {
		return "", &Error{Kind: KindCompileError, Message: compilerDiagnostic(compiled, dir)}
	}

	c.logger.Debug("compilation succeeded",
		zap.String("execution_id", job.ID),
		zap.String("language", c.name))

	ran, err := runPhase(ctx, c.runner, plan.RunTool, Command{
		Args:  plan.Run,
		Dir:   dir,
		Stdin: job.Stdin,
		Env:   c.lang.Environment,
	}, job.Limits.Run, "execution")
	if err != nil {
		return "", err
	}
	if ran.ExitCode != 0 {
		return "", runtimeFailure(ran, c.clean)
	}

	return ran.Stdout, nil
}

// compilerDiagnostic keeps the compiler output verbatim apart from the
// workspace path, which differs on every run.
func compilerDiagnostic(result CommandResult, dir string) string {
	parts := make([]string, 0, 2)
	for _, stream := range []string{result.Stderr, result.Stdout} {
		if s := strings.TrimSpace(stream); s != "" {
			parts = append(parts, s)
		}
	}
	diag := strings.Join(parts, "\n")
	diag = strings.ReplaceAll(diag, dir+string(filepath.Separator), "")
	diag = strings.ReplaceAll(diag, dir, ".")
	if diag == "" {
		diag = "compilation failed with no diagnostic output"
	}
	return diag
}

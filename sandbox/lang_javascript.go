package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/isdmx/coderun/config"
)

type javascriptAdapter struct {
	runner CommandRunner
	tc     toolchain
	env    map[string]string
}

func newJavascriptAdapter(runner CommandRunner, lang config.Language) *javascriptAdapter {
	return &javascriptAdapter{
		runner: runner,
		tc:     toolchain{language: LanguageJavascript, binary: lang.Toolchain, installHint: lang.InstallHint},
		env:    lang.Environment,
	}
}

func (*javascriptAdapter) Name() string       { return LanguageJavascript }
func (*javascriptAdapter) Kind() AdapterKind  { return AdapterSubprocess }
func (*javascriptAdapter) EvalMode() EvalMode { return EvalProbe }
func (*javascriptAdapter) Match() MatchRule   { return MatchExact }

func (*javascriptAdapter) RenderProbe(expression string) string {
	return fmt.Sprintf("console.log(%s);", strings.TrimSpace(expression))
}

func (j *javascriptAdapter) Execute(ctx context.Context, job Job) (string, error) {
	result, err := runPhase(ctx, j.runner, j.tc, Command{
		Args:  []string{j.tc.binary, "-e", job.Source},
		Stdin: job.Stdin,
		Env:   j.env,
	}, job.Limits.Run, "execution")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", runtimeFailure(result, stripStackFrames)
	}

	return result.Stdout, nil
}

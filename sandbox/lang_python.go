package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/isdmx/coderun/config"
)

// pythonHarness executes the source read from stdin in a namespace built for
// this process only. Stdin starts with the source length in bytes on its own
// line; whatever follows the source is left for the program to read.
// Arguments are "module:alias" pairs bound into the namespace when
// importable; a missing module is ignored.
const pythonHarness = `import sys
ns = {"__name__": "__main__", "__builtins__": __builtins__}
for entry in sys.argv[1:]:
    module, _, alias = entry.partition(":")
    try:
        ns[alias or module] = __import__(module)
    except Exception:
        pass
size = int(sys.stdin.buffer.readline())
source = sys.stdin.buffer.read(size).decode("utf-8")
try:
    exec(compile(source, "<submission>", "exec"), ns)
except Exception as exc:
    sys.stdout.flush()
    sys.stderr.write("%s: %s" % (type(exc).__name__, exc))
    sys.exit(1)
`

type pythonAdapter struct {
	runner  CommandRunner
	tc      toolchain
	preload []string
	env     map[string]string
}

func newPythonAdapter(runner CommandRunner, lang config.Language) *pythonAdapter {
	return &pythonAdapter{
		runner:  runner,
		tc:      toolchain{language: LanguagePython, binary: lang.Toolchain, installHint: lang.InstallHint},
		preload: lang.Preload,
		env:     lang.Environment,
	}
}

func (*pythonAdapter) Name() string       { return LanguagePython }
func (*pythonAdapter) Kind() AdapterKind  { return AdapterInterpreted }
func (*pythonAdapter) EvalMode() EvalMode { return EvalProbe }
func (*pythonAdapter) Match() MatchRule   { return MatchExact }

func (*pythonAdapter) RenderProbe(expression string) string {
	return fmt.Sprintf("print(%s)", strings.TrimSpace(expression))
}

func (p *pythonAdapter) Execute(ctx context.Context, job Job) (string, error) {
	args := append([]string{p.tc.binary, "-c", pythonHarness}, p.preload...)

	result, err := runPhase(ctx, p.runner, p.tc, Command{
		Args:  args,
		Stdin: harnessInput(job.Source, job.Stdin),
		Env:   p.env,
	}, job.Limits.Run, "execution")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", runtimeFailure(result, nil)
	}

	return result.Stdout, nil
}

func harnessInput(source, stdin string) string {
	return strconv.Itoa(len(source)) + "\n" + source + stdin
}

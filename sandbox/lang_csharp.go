package sandbox

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
)

func newCSharpAdapter(logger *zap.Logger, runner CommandRunner, fs FileSystem, workDir string, lang config.Language) *compiledAdapter {
	return &compiledAdapter{
		name:     LanguageCSharp,
		logger:   logger,
		runner:   runner,
		fs:       fs,
		workDir:  workDir,
		lang:     lang,
		compiler: toolchain{language: LanguageCSharp, binary: lang.Toolchain, installHint: lang.InstallHint},
		plan:     csharpPlan,
		clean:    stripStackFrames,
	}
}

// csharpPlan targets the Mono toolchain: mcs emits app.exe, mono runs it.
// With an empty runner the artifact is executed directly.
func csharpPlan(dir, _ string, lang config.Language) buildPlan {
	compile := append([]string{lang.Toolchain}, lang.Flags...)
	compile = append(compile, "-out:app.exe", "main.cs")

	if lang.Runner == "" {
		return buildPlan{
			SourceFile: "main.cs",
			Compile:    compile,
			Run:        []string{filepath.Join(dir, "app.exe")},
			RunTool:    toolchain{language: LanguageCSharp, binary: "app.exe", artifact: true},
		}
	}

	return buildPlan{
		SourceFile: "main.cs",
		Compile:    compile,
		Run:        []string{lang.Runner, "app.exe"},
		RunTool:    toolchain{language: LanguageCSharp, binary: lang.Runner, installHint: lang.InstallHint},
	}
}

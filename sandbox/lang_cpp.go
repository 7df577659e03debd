package sandbox

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
)

func newCppAdapter(logger *zap.Logger, runner CommandRunner, fs FileSystem, workDir string, lang config.Language) *compiledAdapter {
	return &compiledAdapter{
		name:     LanguageCPP,
		logger:   logger,
		runner:   runner,
		fs:       fs,
		workDir:  workDir,
		lang:     lang,
		compiler: toolchain{language: LanguageCPP, binary: lang.Toolchain, installHint: lang.InstallHint},
		plan:     cppPlan,
	}
}

func cppPlan(dir, _ string, lang config.Language) buildPlan {
	compile := append([]string{lang.Toolchain}, lang.Flags...)
	compile = append(compile, "-o", "app", "main.cpp")

	binary := filepath.Join(dir, "app")
	return buildPlan{
		SourceFile: "main.cpp",
		Compile:    compile,
		Run:        []string{binary},
		RunTool:    toolchain{language: LanguageCPP, binary: "app", artifact: true},
	}
}

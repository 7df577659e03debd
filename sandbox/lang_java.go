package sandbox

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
)

var (
	// javaPublicClass finds the class javac requires the file to be named after.
	javaPublicClass = regexp.MustCompile(`(?m)^\s*public\s+(?:(?:final|abstract|static)\s+)*class\s+([A-Za-z_$][\w$]*)`)
	javaAnyClass    = regexp.MustCompile(`\bclass\s+([A-Za-z_$][\w$]*)`)
)

// javaClassName picks the public class, then the first declared class,
// then Main.
func javaClassName(source string) string {
	if m := javaPublicClass.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	if m := javaAnyClass.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return "Main"
}

func newJavaAdapter(logger *zap.Logger, runner CommandRunner, fs FileSystem, workDir string, lang config.Language) *compiledAdapter {
	return &compiledAdapter{
		name:     LanguageJava,
		logger:   logger,
		runner:   runner,
		fs:       fs,
		workDir:  workDir,
		lang:     lang,
		compiler: toolchain{language: LanguageJava, binary: lang.Toolchain, installHint: lang.InstallHint},
		plan:     javaPlan,
		clean:    stripStackFrames,
	}
}

func javaPlan(_, source string, lang config.Language) buildPlan {
	class := javaClassName(source)
	file := class + ".java"

	compile := append([]string{lang.Toolchain}, lang.Flags...)
	compile = append(compile, "-d", ".", file)

	return buildPlan{
		SourceFile: file,
		Compile:    compile,
		Run:        []string{lang.Runner, "-cp", ".", class},
		RunTool:    toolchain{language: LanguageJava, binary: lang.Runner, installHint: lang.InstallHint},
	}
}

package sandbox

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/metrics"
)

// Language constants
const (
	LanguagePython     = "python"
	LanguageJavascript = "javascript"
	LanguageJava       = "java"
	LanguageCPP        = "cpp"
	LanguageCSharp     = "csharp"
	LanguageSQL        = "sql"
	LanguageHTML       = "html"
	LanguageCSS        = "css"
)

// Placeholders reported instead of an empty successful output.
const (
	NoOutputMessage    = "Code executed successfully (no output)."
	NoSQLOutputMessage = "SQL executed successfully (no text output)."
)

// unsupportedLabel is the metrics label for requests naming no known language.
const unsupportedLabel = "unsupported"

var defaultAliases = map[string]string{
	"c++": LanguageCPP,
	"c#":  LanguageCSharp,
}

// Engine dispatches execution requests to the language adapters.
//
// It holds no per-request state, so a single Engine serves concurrent
// requests; every request gets its own subprocess, workspace or database.
type Engine struct {
	logger     *zap.Logger
	cmdRunner  CommandRunner
	fs         FileSystem
	adapters   map[string]LanguageAdapter
	aliases    map[string]string
	order      []string
	overrides  []LanguageAdapter
	runLimits  Limits
	testLimits Limits
}

// EngineOption defines a functional option for Engine
type EngineOption func(*Engine)

// WithCommandRunner sets the CommandRunner used by subprocess adapters
func WithCommandRunner(cmdRunner CommandRunner) EngineOption {
	return func(e *Engine) {
		e.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem used for compile workspaces
func WithFileSystem(fs FileSystem) EngineOption {
	return func(e *Engine) {
		e.fs = fs
	}
}

// WithAdapter registers adapter under its name, replacing a built-in adapter
// of the same name.
func WithAdapter(adapter LanguageAdapter) EngineOption {
	return func(e *Engine) {
		e.overrides = append(e.overrides, adapter)
	}
}

// NewExecutor creates the execution engine with default implementations and
// optional overrides.
func NewExecutor(logger *zap.Logger, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		logger:    logger,
		cmdRunner: RealCommandRunner{MaxOutputBytes: cfg.Sandbox.MaxOutputKB * 1024},
		fs:        RealFileSystem{},
		adapters:  make(map[string]LanguageAdapter),
		aliases:   make(map[string]string, len(defaultAliases)),
		runLimits: Limits{
			Run:     cfg.GetRunTimeout(),
			Compile: cfg.GetCompileTimeout(),
		},
		testLimits: Limits{
			Run:     cfg.GetTestTimeout(),
			Compile: cfg.GetCompileTimeout(),
		},
	}
	for alias, name := range defaultAliases {
		e.aliases[alias] = name
	}

	for _, opt := range opts {
		opt(e)
	}

	workDir := cfg.Sandbox.WorkDir
	builtins := []LanguageAdapter{
		newPythonAdapter(e.cmdRunner, cfg.Language(LanguagePython)),
		newJavascriptAdapter(e.cmdRunner, cfg.Language(LanguageJavascript)),
		newJavaAdapter(logger, e.cmdRunner, e.fs, workDir, cfg.Language(LanguageJava)),
		newCppAdapter(logger, e.cmdRunner, e.fs, workDir, cfg.Language(LanguageCPP)),
		newCSharpAdapter(logger, e.cmdRunner, e.fs, workDir, cfg.Language(LanguageCSharp)),
		newSQLAdapter(logger, cfg.Sandbox.MaxOutputKB*1024),
		htmlAdapter{},
		cssAdapter{},
	}
	for _, adapter := range append(builtins, e.overrides...) {
		e.register(adapter)
	}

	logger.Info("Execution engine ready",
		zap.Strings("languages", e.order),
		zap.Duration("run_timeout", e.runLimits.Run),
		zap.Duration("test_timeout", e.testLimits.Run),
		zap.Duration("compile_timeout", e.runLimits.Compile))

	return e, nil
}

func (e *Engine) register(adapter LanguageAdapter) {
	name := strings.ToLower(adapter.Name())
	if _, exists := e.adapters[name]; !exists {
		e.order = append(e.order, name)
	}
	e.adapters[name] = adapter
}

// Adapter resolves a language name or alias, ignoring case and surrounding
// whitespace.
func (e *Engine) Adapter(language string) (LanguageAdapter, error) {
	key := strings.ToLower(strings.TrimSpace(language))
	if canonical, ok := e.aliases[key]; ok {
		key = canonical
	}
	if adapter, ok := e.adapters[key]; ok {
		return adapter, nil
	}
	return nil, &Error{Kind: KindUnsupportedLanguage, Message: e.unsupportedMessage(language)}
}

func (e *Engine) unsupportedMessage(language string) string {
	names := make([]string, 0, len(e.order))
	for _, name := range e.order {
		label := name
		for alias, canonical := range e.aliases {
			if canonical == name {
				label = fmt.Sprintf("%s (%s)", name, alias)
			}
		}
		names = append(names, label)
	}
	return fmt.Sprintf("Execution for '%s' is not supported. Supported languages: %s",
		strings.TrimSpace(language), strings.Join(names, ", "))
}

// Languages describes every registered adapter in registration order.
func (e *Engine) Languages() []LanguageInfo {
	infos := make([]LanguageInfo, 0, len(e.order))
	for _, name := range e.order {
		adapter := e.adapters[name]
		info := LanguageInfo{
			Name:           name,
			Kind:           adapter.Kind(),
			EvaluationMode: adapter.EvalMode(),
			Match:          adapter.Match(),
		}
		for alias, canonical := range e.aliases {
			if canonical == name {
				info.Aliases = append(info.Aliases, alias)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// Run executes a request and returns the raw captured output. Every failure
// is an *Error.
func (e *Engine) Run(ctx context.Context, req ExecuteRequest) (output string, err error) {
	adapter, err := e.Adapter(req.Language)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues(unsupportedLabel, string(KindUnsupportedLanguage)).Inc()
		e.logger.Warn("Unsupported language requested", zap.String("language", req.Language))
		return "", err
	}

	job := Job{
		ID:     uuid.NewString(),
		Source: req.Source,
		Stdin:  req.Stdin,
		Limits: e.limits(req.Mode),
	}
	language := adapter.Name()
	mode := req.Mode
	if mode == "" {
		mode = ModeRun
	}

	log := e.logger.With(
		zap.String("execution_id", job.ID),
		zap.String("language", language),
		zap.String("mode", string(mode)))
	log.Debug("Executing code", zap.Int("source_bytes", len(req.Source)))

	metrics.InflightExecutions.Inc()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Adapter panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			output, err = "", newError(KindInternal, fmt.Errorf("panic: %v", r), "internal error while executing %s code", language)
		}
		elapsed := time.Since(start)
		metrics.InflightExecutions.Dec()
		metrics.ExecutionDuration.WithLabelValues(language, string(mode)).Observe(elapsed.Seconds())

		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		metrics.ExecutionsTotal.WithLabelValues(language, outcome).Inc()

		if err != nil {
			log.Info("Execution failed",
				zap.String("error_kind", outcome),
				zap.Duration("duration", elapsed),
				zap.Error(err))
			return
		}
		log.Info("Execution completed",
			zap.Int("output_bytes", len(output)),
			zap.Duration("duration", elapsed))
	}()

	output, err = adapter.Execute(ctx, job)
	if err != nil {
		return "", asError(err)
	}
	return output, nil
}

// Execute runs a request and shapes the outcome for transports.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) ExecuteResult {
	start := time.Now()
	output, err := e.Run(ctx, req)
	result := ExecuteResult{Duration: time.Since(start)}

	if err != nil {
		sbErr := asError(err)
		result.Error = sbErr.Message
		result.ErrorKind = sbErr.Kind
		return result
	}

	result.Success = true
	result.Output = strings.TrimRight(output, "\r\n")
	if strings.TrimSpace(result.Output) == "" {
		result.Output = NoOutputMessage
		if adapter, adapterErr := e.Adapter(req.Language); adapterErr == nil && adapter.Kind() == AdapterRelational {
			result.Output = NoSQLOutputMessage
		}
	}
	return result
}

func (e *Engine) limits(mode Mode) Limits {
	if mode == ModeTest {
		return e.testLimits
	}
	return e.runLimits
}

var _ Executor = (*Engine)(nil)

package evaluator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/metrics"
	"github.com/isdmx/coderun/sandbox"
)

// TestCase is a single input and the output it must produce.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// TestResult is the outcome of one test case. TestID is the 1-based
// position of the case in the request.
type TestResult struct {
	TestID   int    `json:"test_id"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Error    string `json:"error,omitempty"`
	Passed   bool   `json:"passed"`
}

// Result aggregates the test case outcomes in request order.
type Result struct {
	Language  string           `json:"language"`
	Mode      sandbox.EvalMode `json:"evaluation_mode,omitempty"`
	Results   []TestResult     `json:"results"`
	AllPassed bool             `json:"all_passed"`
	Error     string           `json:"error,omitempty"`
}

// Runner is the part of the execution engine the evaluator needs.
type Runner interface {
	Adapter(language string) (sandbox.LanguageAdapter, error)
	Run(ctx context.Context, req sandbox.ExecuteRequest) (string, error)
}

// Evaluator runs test cases through a Runner.
type Evaluator struct {
	logger *zap.Logger
	runner Runner
}

// New creates an Evaluator
func New(logger *zap.Logger, runner Runner) *Evaluator {
	return &Evaluator{
		logger: logger,
		runner: runner,
	}
}

// Evaluate runs every test case against source and reports each outcome.
// A failing case never stops the remaining ones.
func (e *Evaluator) Evaluate(ctx context.Context, source, language string, cases []TestCase) Result {
	result := Result{
		Language: strings.TrimSpace(language),
		Results:  make([]TestResult, 0, len(cases)),
	}

	adapter, err := e.runner.Adapter(language)
	if err != nil {
		result.Error = err.Error()
		for i, tc := range cases {
			result.Results = append(result.Results, TestResult{
				TestID:   i + 1,
				Input:    tc.Input,
				Expected: tc.ExpectedOutput,
				Error:    err.Error(),
			})
		}
		metrics.EvaluationsTotal.WithLabelValues("unsupported", "failed").Inc()
		e.logger.Warn("Evaluation requested for unsupported language",
			zap.String("language", language),
			zap.Int("test_cases", len(cases)))
		return result
	}

	result.Language = adapter.Name()
	result.Mode = adapter.EvalMode()
	result.AllPassed = true

	for i, tc := range cases {
		tr := e.runCase(ctx, adapter, source, i+1, tc)
		result.Results = append(result.Results, tr)
		result.AllPassed = result.AllPassed && tr.Passed

		outcome := "failed"
		if tr.Passed {
			outcome = "passed"
		}
		metrics.TestCasesTotal.WithLabelValues(result.Language, outcome).Inc()
	}

	outcome := "failed"
	if result.AllPassed {
		outcome = "passed"
	}
	metrics.EvaluationsTotal.WithLabelValues(result.Language, outcome).Inc()

	e.logger.Info("Evaluation completed",
		zap.String("language", result.Language),
		zap.String("mode", string(result.Mode)),
		zap.Int("test_cases", len(cases)),
		zap.Bool("all_passed", result.AllPassed))

	return result
}

func (e *Evaluator) runCase(ctx context.Context, adapter sandbox.LanguageAdapter, source string, id int, tc TestCase) TestResult {
	tr := TestResult{
		TestID:   id,
		Input:    tc.Input,
		Expected: tc.ExpectedOutput,
	}

	output, err := e.runner.Run(ctx, buildRequest(adapter, source, tc.Input))
	if err != nil {
		tr.Error = err.Error()
		e.logger.Debug("Test case failed to execute",
			zap.Int("test_id", id),
			zap.String("error_kind", string(sandbox.KindOf(err))),
			zap.Error(err))
		return tr
	}

	tr.Actual = strings.TrimSpace(output)
	tr.Passed = matches(adapter.Match(), tr.Actual, strings.TrimSpace(tc.ExpectedOutput))
	return tr
}

// buildRequest augments source for one test case. Probe adapters get the
// rendered expression appended; whole-program adapters get the input on
// stdin. An empty input runs the source unchanged.
func buildRequest(adapter sandbox.LanguageAdapter, source, input string) sandbox.ExecuteRequest {
	req := sandbox.ExecuteRequest{
		Language: adapter.Name(),
		Source:   source,
		Mode:     sandbox.ModeTest,
	}
	if strings.TrimSpace(input) == "" {
		return req
	}

	switch adapter.EvalMode() {
	case sandbox.EvalProbe:
		req.Source = source + "\n" + adapter.RenderProbe(input)
	case sandbox.EvalWholeProgram:
		req.Stdin = input
	}
	return req
}

func matches(rule sandbox.MatchRule, actual, expected string) bool {
	if actual == expected {
		return true
	}
	return rule == sandbox.MatchContains && strings.Contains(actual, expected)
}

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/evaluator"
	"github.com/isdmx/coderun/sandbox"
)

// Version is reported to MCP clients during initialization.
const Version = "1.0.0"

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.Executor
	evaluator *evaluator.Evaluator
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor, eval *evaluator.Evaluator) (*MCPServer, error) {
	s := &MCPServer{
		config:    cfg,
		logger:    logger,
		executor:  executor,
		evaluator: eval,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int("sandbox.run_timeout_sec", s.config.Sandbox.RunTimeoutSec),
		zap.Int("sandbox.test_timeout_sec", s.config.Sandbox.TestTimeoutSec),
		zap.Int("sandbox.compile_timeout_sec", s.config.Sandbox.CompileTimeoutSec),
		zap.Int("sandbox.max_output_kb", s.config.Sandbox.MaxOutputKB),
		zap.String("languages.python.toolchain", s.config.Language(sandbox.LanguagePython).Toolchain),
		zap.String("languages.javascript.toolchain", s.config.Language(sandbox.LanguageJavascript).Toolchain),
		zap.String("languages.java.toolchain", s.config.Language(sandbox.LanguageJava).Toolchain),
		zap.String("languages.cpp.toolchain", s.config.Language(sandbox.LanguageCPP).Toolchain),
		zap.String("languages.csharp.toolchain", s.config.Language(sandbox.LanguageCSharp).Toolchain),
	)

	s.mcpServer = server.NewMCPServer("coderun", Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.registerRunCodeTool()
	s.registerEvaluateCodeTool()
	s.registerListLanguagesTool()

	return s, nil
}

func (s *MCPServer) languageNames() string {
	infos := s.executor.Languages()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name
		if len(info.Aliases) > 0 {
			name += " (" + strings.Join(info.Aliases, ", ") + ")"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// registerRunCodeTool registers the run_code tool
func (s *MCPServer) registerRunCodeTool() {
	tool := mcp.NewTool("run_code",
		mcp.WithDescription("Execute source code with a wall-clock timeout and return its output"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Source code to execute"),
		),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Language of the source code, case-insensitive: "+s.languageNames()),
		),
		mcp.WithString("stdin",
			mcp.Description("Standard input passed to the program (optional)"),
		),
	)

	s.mcpServer.AddTool(tool, s.handleRunCode)
}

// registerEvaluateCodeTool registers the evaluate_code tool
func (s *MCPServer) registerEvaluateCodeTool() {
	tool := mcp.NewTool("evaluate_code",
		mcp.WithDescription("Run source code against ordered test cases and report which ones pass. "+
			"Probe languages append each input as an expression to print; the others run the whole program with the input on stdin. "+
				"An unsupported language fails every case and reports all_passed false, even with no test cases."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Source code under test"),
		),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Language of the source code, case-insensitive: "+s.languageNames()),
		),
		mcp.WithArray("test_cases",
			mcp.Required(),
			mcp.Description("Ordered test cases"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{
						"type":        "string",
						"description": "Expression to evaluate, or stdin for whole-program languages",
					},
					"expected_output": map[string]any{
						"type":        "string",
						"description": "Expected output, compared after trimming whitespace",
					},
				},
				"required": []string{"input", "expected_output"},
			}),
		),
	)

	s.mcpServer.AddTool(tool, s.handleEvaluateCode)
}

// registerListLanguagesTool registers the list_languages tool
func (s *MCPServer) registerListLanguagesTool() {
	tool := mcp.NewTool("list_languages",
		mcp.WithDescription("List supported languages with their aliases and evaluation mode"),
	)

	s.mcpServer.AddTool(tool, s.handleListLanguages)
}

// handleRunCode handles the run_code tool
func (s *MCPServer) handleRunCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	language, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}

	s.logger.Info("code execution requested", zap.String("language", language))

	result := s.executor.Execute(ctx, sandbox.ExecuteRequest{
		Language: language,
		Source:   code,
		Stdin:    request.GetString("stdin", ""),
		Mode:     sandbox.ModeRun,
	})

	s.logger.Info("code execution completed",
		zap.String("language", language),
		zap.Bool("success", result.Success),
		zap.String("error_kind", string(result.ErrorKind)),
		zap.Duration("duration", result.Duration))

	return jsonResult(result, !result.Success)
}

type evaluateArgs struct {
	Code      string               `json:"code"`
	Language  string               `json:"language"`
	TestCases []evaluator.TestCase `json:"test_cases"`
}

// handleEvaluateCode handles the evaluate_code tool
func (s *MCPServer) handleEvaluateCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args evaluateArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Code == "" {
		return nil, fmt.Errorf("code parameter is required")
	}
	if args.Language == "" {
		return nil, fmt.Errorf("language parameter is required")
	}

	s.logger.Info("code evaluation requested",
		zap.String("language", args.Language),
		zap.Int("test_cases", len(args.TestCases)))

	result := s.evaluator.Evaluate(ctx, args.Code, args.Language, args.TestCases)

	return jsonResult(result, result.Error != "")
}

// handleListLanguages handles the list_languages tool
func (s *MCPServer) handleListLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.executor.Languages(), false)
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(body),
			},
		},
		IsError: isError,
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer, server.WithErrorLogger(zap.NewStdLog(s.logger)))
}

// Handler returns the streamable HTTP transport for mounting on a router.
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

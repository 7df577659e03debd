package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/evaluator"
	"github.com/isdmx/coderun/mcpserver"
	"github.com/isdmx/coderun/metrics"
	"github.com/isdmx/coderun/sandbox"
)

// DefaultLanguage is used when a request omits the language field.
const DefaultLanguage = sandbox.LanguagePython

// Server exposes the execution engine over HTTP
type Server struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.Executor
	evaluator *evaluator.Evaluator
	mcp       *mcpserver.MCPServer
	router    *chi.Mux

	httpServer *http.Server
	listener   net.Listener
}

// New creates a new Server and builds its routes
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor, eval *evaluator.Evaluator, mcp *mcpserver.MCPServer) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		executor:  executor,
		evaluator: eval,
		mcp:       mcp,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(s.requestLogger)
	mux.Use(middleware.Recoverer)
	mux.Use(metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	mux.Post("/run-code", s.handleRunCode)
	mux.Post("/evaluate-code", s.handleEvaluateCode)
	mux.Get("/languages", s.handleLanguages)
	mux.Get("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp.Handler())
	}

	return mux
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the configured port and serves in the background
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.HTTPPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address, or an empty string before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

type runCodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
}

type evaluateCodeRequest struct {
	Code      string               `json:"code"`
	Language  string               `json:"language"`
	TestCases []evaluator.TestCase `json:"test_cases"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRunCode(w http.ResponseWriter, r *http.Request) {
	var req runCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = DefaultLanguage
	}

	result := s.executor.Execute(r.Context(), sandbox.ExecuteRequest{
		Language: req.Language,
		Source:   req.Code,
		Stdin:    req.Stdin,
		Mode:     sandbox.ModeRun,
	})

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvaluateCode(w http.ResponseWriter, r *http.Request) {
	var req evaluateCodeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = DefaultLanguage
	}

	result := s.evaluator.Evaluate(r.Context(), req.Code, req.Language, req.TestCases)

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.executor.Languages())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into v, answering 400 or 413 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := r.Body
	if limit := s.config.Server.MaxRequestKB; limit > 0 {
		body = http.MaxBytesReader(w, r.Body, int64(limit)*1024)
	}

	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return false
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr))
	})
}

// Package httpserver exposes the execution engine as a JSON REST API.
//
// Routes:
//
//	POST /run-code        {code, language, stdin} -> {success, output|error, error_kind}
//	POST /evaluate-code   {code, language, test_cases} -> evaluation result
//	GET  /languages       supported languages with aliases
//	GET  /healthz         liveness probe
//	GET  /metrics         Prometheus metrics
//	     /mcp             MCP streamable HTTP transport
//
// The language field defaults to python. Execution failures are reported in
// the response body with status 200; only malformed or oversized requests get
// a 4xx status.
package httpserver

// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// execution engine as tools. It uses the mark3labs/mcp-go library to handle
// the protocol details and registers three tools: run_code, evaluate_code and
// list_languages. Tool results are JSON documents; IsError is set when an
// execution fails or a language is unsupported.
//
// The server is served either on stdio or, through Handler, as the
// streamable HTTP transport mounted by the httpserver package.
//
// Usage:
//
//	server, err := mcpserver.New(cfg, logger, engine, evaluator.New(logger, engine))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio()
package mcpserver

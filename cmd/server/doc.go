// Package main is the entry point for the coderun server.
//
// The coderun server executes submitted code in Python, JavaScript, Java, C++,
// C# and SQL, validates HTML and CSS, and evaluates code against test cases.
// It serves either the Model Context Protocol on stdio, or a REST API over
// HTTP with the MCP streamable HTTP transport mounted at /mcp.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main

// Package sandbox provides time-bounded code execution capabilities.
//
// The sandbox package implements the execution engine behind the HTTP and
// MCP transports. Supported languages are python, javascript, java, cpp
// (alias c++), csharp (alias c#), sql, html and css. Interpreted languages
// run as subprocesses, compiled languages are built in an ephemeral
// workspace that is removed afterwards, SQL runs against a private
// in-memory database, and HTML and CSS are only validated.
//
// Every failure is reported as an *Error carrying an ErrorKind, so callers
// can tell a compile error from a timeout without parsing messages.
//
// Usage:
//
//	engine, err := sandbox.NewExecutor(logger, cfg)
//	result := engine.Execute(ctx, sandbox.ExecuteRequest{
//	    Language: "python",
//	    Source:   "print('Hello, World!')",
//	})
package sandbox

// Package config provides application configuration management.
//
// The config package loads the service configuration from a YAML file,
// a .env file and CODERUN_-prefixed environment variables. It covers the
// transport settings, the execution budgets used by the sandbox and the
// per-language toolchain settings.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Run timeout: %s\n", cfg.GetRunTimeout())
package config

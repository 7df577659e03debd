package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "http",
			HTTPPort:  8000,
		},
		Sandbox: SandboxConfig{
			RunTimeoutSec:     5,
			TestTimeoutSec:    3,
			CompileTimeoutSec: 10,
			MaxOutputKB:       1024,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := validConfig()
		cfg.Languages = map[string]Language{
			"python": {Toolchain: "python3.12"},
		}

		require.NoError(t, cfg.validate())
	})

	t.Run("InvalidServerTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Transport = "invalid"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server.transport")
	})

	t.Run("InvalidHTTPPort", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.HTTPPort = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server.http_port")
	})

	t.Run("PortIgnoredForStdio", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Transport = "stdio"
		cfg.Server.HTTPPort = 0

		require.NoError(t, cfg.validate())
	})

	t.Run("InvalidRunTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.RunTimeoutSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.run_timeout_sec must be positive")
	})

	t.Run("InvalidTestTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.TestTimeoutSec = -1

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.test_timeout_sec must be positive")
	})

	t.Run("InvalidCompileTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.CompileTimeoutSec = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.compile_timeout_sec must be positive")
	})

	t.Run("InvalidMaxOutput", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.MaxOutputKB = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.max_output_kb must be positive")
	})

	t.Run("InvalidLoggingMode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Mode = "invalid_mode"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.mode")
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "invalid_level"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.level")
	})

	t.Run("InvalidLogEncoding", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Encoding = "xml"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.encoding")
	})

	t.Run("UnknownLanguage", func(t *testing.T) {
		cfg := validConfig()
		cfg.Languages = map[string]Language{"ruby": {Toolchain: "ruby"}}

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown language in languages section: ruby")
	})
}

func TestLoad(t *testing.T) {
	t.Run("DefaultsWithEmptyFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "http", cfg.Server.Transport)
		assert.Equal(t, 8000, cfg.Server.HTTPPort)
		assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
		assert.Equal(t, 5*time.Second, cfg.GetRunTimeout())
		assert.Equal(t, 3*time.Second, cfg.GetTestTimeout())
		assert.Equal(t, 10*time.Second, cfg.GetCompileTimeout())
		assert.Equal(t, "python3", cfg.Language("python").Toolchain)
		assert.Empty(t, cfg.Language("python").Preload)
		assert.Equal(t, "g++", cfg.Language("cpp").Toolchain)
	})

	t.Run("OverridesFromYAML", func(t *testing.T) {
		doc := map[string]any{
			"server": map[string]any{
				"transport": "stdio",
			},
			"sandbox": map[string]any{
				"run_timeout_sec":  8,
				"test_timeout_sec": 2,
			},
			"logging": map[string]any{
				"mode":  "development",
				"level": "debug",
			},
			"languages": map[string]any{
				"cpp": map[string]any{
					"toolchain": "clang++",
					"flags":     []string{"-std=c++20"},
				},
				"python": map[string]any{
					"preload": []string{"numpy:np", "pandas:pd"},
				},
			},
		}
		data, err := yaml.Marshal(doc)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "stdio", cfg.Server.Transport)
		assert.Equal(t, 8*time.Second, cfg.GetRunTimeout())
		assert.Equal(t, 2*time.Second, cfg.GetTestTimeout())
		assert.Equal(t, "development", cfg.Logging.Mode)

		cpp := cfg.Language("cpp")
		assert.Equal(t, "clang++", cpp.Toolchain)
		assert.Equal(t, []string{"-std=c++20"}, cpp.Flags)
		assert.NotEmpty(t, cpp.InstallHint)

		python := cfg.Language("python")
		assert.Equal(t, "python3", python.Toolchain)
		assert.Equal(t, []string{"numpy:np", "pandas:pd"}, python.Preload)
	})

	t.Run("EnvironmentOverride", func(t *testing.T) {
		t.Setenv("CODERUN_SANDBOX_COMPILE_TIMEOUT_SEC", "20")

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 20*time.Second, cfg.GetCompileTimeout())
	})

	t.Run("InvalidFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sandbox: [unterminated\n"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("ValidationFailure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sandbox:\n  run_timeout_sec: 0\n"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation error")
	})
}

func TestLanguageFallback(t *testing.T) {
	cfg := validConfig()

	t.Run("MissingSectionUsesDefaults", func(t *testing.T) {
		java := cfg.Language("java")
		assert.Equal(t, "javac", java.Toolchain)
		assert.Equal(t, "java", java.Runner)
	})

	t.Run("PartialOverrideKeepsDefaults", func(t *testing.T) {
		cfg.Languages = map[string]Language{"csharp": {Runner: "/opt/mono/bin/mono"}}
		csharp := cfg.Language("csharp")
		assert.Equal(t, "mcs", csharp.Toolchain)
		assert.Equal(t, "/opt/mono/bin/mono", csharp.Runner)
	})

	t.Run("ValidationOnlyLanguageHasNoToolchain", func(t *testing.T) {
		assert.Empty(t, cfg.Language("html").Toolchain)
	})
}

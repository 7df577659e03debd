package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable overrides, e.g. CODERUN_SERVER_HTTP_PORT.
const EnvPrefix = "CODERUN"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Sandbox   SandboxConfig       `mapstructure:"sandbox"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Languages map[string]Language `mapstructure:"languages"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport          string   `mapstructure:"transport"`
	HTTPPort           int      `mapstructure:"http_port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	MaxRequestKB       int      `mapstructure:"max_request_kb"`
}

// SandboxConfig holds the execution budgets shared by every language adapter
type SandboxConfig struct {
	RunTimeoutSec     int    `mapstructure:"run_timeout_sec"`
	TestTimeoutSec    int    `mapstructure:"test_timeout_sec"`
	CompileTimeoutSec int    `mapstructure:"compile_timeout_sec"`
	WorkDir           string `mapstructure:"work_dir"`
	MaxOutputKB       int    `mapstructure:"max_output_kb"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode     string `mapstructure:"mode"`
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Language holds the toolchain settings of a single language adapter.
//
// Toolchain is the interpreter or compiler binary; Runner is the program used
// to launch a compiled artifact when it is not directly executable (java, mono).
// Preload lists "module:alias" pairs bound into every python run. Each run,
// and so each test case, is a fresh interpreter that imports them again, so
// heavy modules eat into the run budget.
type Language struct {
	Toolchain   string            `mapstructure:"toolchain"`
	Runner      string            `mapstructure:"runner"`
	Flags       []string          `mapstructure:"flags"`
	InstallHint string            `mapstructure:"install_hint"`
	Environment map[string]string `mapstructure:"environment"`
	Preload     []string          `mapstructure:"preload"`
}

// KnownLanguages lists the language keys accepted under the languages section.
var KnownLanguages = []string{"python", "javascript", "java", "cpp", "csharp", "sql", "html", "css"}

// New loads and validates the application configuration
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}

	return load(v)
}

// Load reads the configuration from an explicit YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "http")
	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.max_request_kb", 512)

	v.SetDefault("sandbox.run_timeout_sec", 5)
	v.SetDefault("sandbox.test_timeout_sec", 3)
	v.SetDefault("sandbox.compile_timeout_sec", 10)
	v.SetDefault("sandbox.work_dir", "")
	v.SetDefault("sandbox.max_output_kb", 1024)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "")

	for name, lang := range DefaultLanguages() {
		v.SetDefault("languages."+name+".toolchain", lang.Toolchain)
		v.SetDefault("languages."+name+".runner", lang.Runner)
		v.SetDefault("languages."+name+".flags", lang.Flags)
		v.SetDefault("languages."+name+".install_hint", lang.InstallHint)
		v.SetDefault("languages."+name+".preload", lang.Preload)
	}
}

// DefaultLanguages returns the built-in toolchain settings.
func DefaultLanguages() map[string]Language {
	return map[string]Language{
		"python": {
			Toolchain:   "python3",
			InstallHint: "Install Python 3 (https://www.python.org/downloads/) and make sure python3 is on PATH.",
		},
		"javascript": {
			Toolchain:   "node",
			InstallHint: "Install Node.js (https://nodejs.org/) and make sure node is on PATH.",
		},
		"java": {
			Toolchain:   "javac",
			Runner:      "java",
			Flags:       []string{"-encoding", "UTF-8"},
			InstallHint: "Install a JDK (e.g. apt-get install default-jdk) so that javac and java are on PATH.",
		},
		"cpp": {
			Toolchain:   "g++",
			Flags:       []string{"-std=c++17", "-O2"},
			InstallHint: "Install GCC with C++ support (e.g. apt-get install g++).",
		},
		"csharp": {
			Toolchain:   "mcs",
			Runner:      "mono",
			InstallHint: "Install Mono (https://www.mono-project.com/download/) so that mcs and mono are on PATH.",
		},
	}
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.MaxRequestKB < 0 {
		return fmt.Errorf("server.max_request_kb must not be negative, got: %d", c.Server.MaxRequestKB)
	}

	if c.Sandbox.RunTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.run_timeout_sec must be positive, got: %d", c.Sandbox.RunTimeoutSec)
	}

	if c.Sandbox.TestTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.test_timeout_sec must be positive, got: %d", c.Sandbox.TestTimeoutSec)
	}

	if c.Sandbox.CompileTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.compile_timeout_sec must be positive, got: %d", c.Sandbox.CompileTimeoutSec)
	}

	if c.Sandbox.MaxOutputKB <= 0 {
		return fmt.Errorf("sandbox.max_output_kb must be positive, got: %d", c.Sandbox.MaxOutputKB)
	}

	validModes := map[string]bool{"development": true, "production": true}
	if !validModes[c.Logging.Mode] {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	if c.Logging.Encoding != "" && c.Logging.Encoding != "json" && c.Logging.Encoding != "console" {
		return fmt.Errorf("invalid logging.encoding: %s, must be 'json' or 'console'", c.Logging.Encoding)
	}

	known := make(map[string]bool, len(KnownLanguages))
	for _, name := range KnownLanguages {
		known[name] = true
	}
	names := make([]string, 0, len(c.Languages))
	for name := range c.Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !known[name] {
			return fmt.Errorf("unknown language in languages section: %s", name)
		}
	}

	return nil
}

// Language returns the settings for name, falling back to the built-in defaults
// for fields left empty.
func (c *Config) Language(name string) Language {
	lang := DefaultLanguages()[name]
	override, ok := c.Languages[name]
	if !ok {
		return lang
	}
	if override.Toolchain != "" {
		lang.Toolchain = override.Toolchain
	}
	if override.Runner != "" {
		lang.Runner = override.Runner
	}
	if override.Flags != nil {
		lang.Flags = override.Flags
	}
	if override.InstallHint != "" {
		lang.InstallHint = override.InstallHint
	}
	if override.Environment != nil {
		lang.Environment = override.Environment
	}
	if override.Preload != nil {
		lang.Preload = override.Preload
	}
	return lang
}

// GetRunTimeout returns the free-form execution budget as a duration
func (c *Config) GetRunTimeout() time.Duration {
	return time.Duration(c.Sandbox.RunTimeoutSec) * time.Second
}

// GetTestTimeout returns the per-test-case execution budget as a duration
func (c *Config) GetTestTimeout() time.Duration {
	return time.Duration(c.Sandbox.TestTimeoutSec) * time.Second
}

// GetCompileTimeout returns the compiler budget as a duration
func (c *Config) GetCompileTimeout() time.Duration {
	return time.Duration(c.Sandbox.CompileTimeoutSec) * time.Second
}

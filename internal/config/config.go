package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/luarun/internal/config/loader"
	"github.com/dshills/luarun/internal/integration/process"
	"github.com/dshills/luarun/internal/logging"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "LUARUN_"

// Config is the complete luarun configuration.
type Config struct {
	Process ProcessConfig  `toml:"process"`
	Lua     LuaConfig      `toml:"lua"`
	Logging logging.Config `toml:"logging"`
	Metrics MetricsConfig  `toml:"metrics"`
}

// ProcessConfig configures the process layer.
type ProcessConfig struct {
	// Shell interprets command strings on Unix.
	Shell string `toml:"shell"`

	// DefaultReadSize is used by read calls that do not pass a size.
	DefaultReadSize int `toml:"default_read_size"`

	// MaxReadBytes is the largest size a single read may request.
	MaxReadBytes int `toml:"max_read_bytes"`

	// PollInterval is the pause between empty reads in `luarun exec`.
	PollInterval string `toml:"poll_interval"`
}

// LuaConfig configures the script runtime.
type LuaConfig struct {
	// ExecutionTimeout cancels a running script. "0s" means no limit.
	ExecutionTimeout string `toml:"execution_timeout"`

	// Capabilities granted to scripts, e.g. "process.spawn".
	Capabilities []string `toml:"capabilities"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables it.
	Addr string `toml:"addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Process: ProcessConfig{
			Shell:           process.DefaultShell,
			DefaultReadSize: process.DefaultReadSize,
			MaxReadBytes:    process.DefaultMaxReadBytes,
			PollInterval:    "10ms",
		},
		Lua: LuaConfig{
			ExecutionTimeout: "0s",
			Capabilities:     []string{"process.spawn"},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load layers defaults, the file at path (if non-empty) and LUARUN_*
// environment variables, then validates the result. A missing file is an
// error only when path was given explicitly.
func Load(path string) (Config, error) {
	return LoadWithFS(loader.DefaultFS(), path)
}

// LoadWithFS is Load with a custom file system.
func LoadWithFS(fsys loader.FileSystem, path string) (Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		if _, err := fsys.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		l, err := loader.ForPath(fsys, path)
		if err != nil {
			return Config{}, err
		}
		fileCfg, err := l.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, fileCfg)
	}

	envCfg, err := loader.NewEnvLoader(EnvPrefix).Load()
	if err != nil {
		return Config{}, err
	}
	merged = loader.DeepMerge(merged, envCfg)

	cfg, err := fromMap(merged)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultPath returns ./luarun.toml when it exists, otherwise "".
func DefaultPath() string {
	for _, p := range []string{"luarun.toml", "luarun.yaml", "luarun.yml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks every setting.
func (c Config) Validate() error {
	if c.Process.Shell == "" {
		return &ValidationError{Path: "process.shell", Message: "must not be empty"}
	}
	if c.Process.MaxReadBytes <= 0 {
		return &ValidationError{Path: "process.max_read_bytes", Message: "must be positive"}
	}
	if c.Process.DefaultReadSize <= 0 {
		return &ValidationError{Path: "process.default_read_size", Message: "must be positive"}
	}
	if c.Process.DefaultReadSize > c.Process.MaxReadBytes {
		return &ValidationError{
			Path:    "process.default_read_size",
			Message: fmt.Sprintf("%d exceeds process.max_read_bytes (%d)", c.Process.DefaultReadSize, c.Process.MaxReadBytes),
		}
	}
	if d, err := time.ParseDuration(c.Process.PollInterval); err != nil || d <= 0 {
		return &ValidationError{Path: "process.poll_interval", Message: fmt.Sprintf("%q is not a positive duration", c.Process.PollInterval)}
	}
	if d, err := time.ParseDuration(c.Lua.ExecutionTimeout); err != nil || d < 0 {
		return &ValidationError{Path: "lua.execution_timeout", Message: fmt.Sprintf("%q is not a duration", c.Lua.ExecutionTimeout)}
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return &ValidationError{Path: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return &ValidationError{Path: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	return nil
}

// PollIntervalDuration returns the parsed process.poll_interval.
func (c ProcessConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 10 * time.Millisecond
	}
	return d
}

// ExecutionTimeoutDuration returns the parsed lua.execution_timeout.
func (c LuaConfig) ExecutionTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ExecutionTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// toMap converts cfg into the nested map form the loaders produce.
func toMap(cfg Config) (map[string]any, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	m, err := loader.ParseTOML("<defaults>", data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// fromMap decodes a merged map into a Config.
func fromMap(m map[string]any) (Config, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("encoding merged config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding merged config: %w", err)
	}
	return cfg, nil
}

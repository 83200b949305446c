package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runview configuration.
type Config struct {
	// Evaluator endpoint
	Server ServerConfig `yaml:"server"`

	// Terminal form
	UI UIConfig `yaml:"ui"`

	// Browser form
	Web WebConfig `yaml:"web"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig locates the /run evaluator.
type ServerConfig struct {
	Addr    string `yaml:"addr"`    // host name or IP (SERVER_ADDR)
	Port    int    `yaml:"port"`    // TCP port (SERVER_PORT)
	Path    string `yaml:"path"`    // request path, normally /run
	Timeout string `yaml:"timeout"` // per-request timeout, "0" disables
}

// UIConfig configures the terminal form.
type UIConfig struct {
	DarkMode       bool `yaml:"dark_mode"`
	RenderMarkdown bool `yaml:"render_markdown"` // render the AST pane through glamour
}

// WebConfig configures the browser form.
type WebConfig struct {
	Listen string `yaml:"listen"`
}

const (
	DefaultServerAddr = "localhost"
	DefaultServerPort = 8000
	DefaultRunPath    = "/run"
	DefaultTimeout    = 60 * time.Second
	DefaultWebListen  = "127.0.0.1:8080"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    DefaultServerAddr,
			Port:    DefaultServerPort,
			Path:    DefaultRunPath,
			Timeout: DefaultTimeout.String(),
		},
		UI: UIConfig{
			RenderMarkdown: true,
		},
		Web: WebConfig{
			Listen: DefaultWebListen,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigDir returns ~/.runview, falling back to ./.runview when the
// home directory cannot be resolved.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".runview"
	}
	return filepath.Join(home, ".runview")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// String renders the configuration as YAML.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<invalid config: %v>", err)
	}
	return string(data)
}

// applyEnvOverrides applies environment variable overrides.
// An unparsable SERVER_PORT is ignored so the file value survives.
func (c *Config) applyEnvOverrides() {
	if addr := strings.TrimSpace(os.Getenv("SERVER_ADDR")); addr != "" {
		c.Server.Addr = addr
	}
	if port := strings.TrimSpace(os.Getenv("SERVER_PORT")); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if timeout := strings.TrimSpace(os.Getenv("RUNVIEW_TIMEOUT")); timeout != "" {
		c.Server.Timeout = timeout
	}
	if os.Getenv("RUNVIEW_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// GetTimeout returns the request timeout. Zero means no timeout.
func (c *Config) GetTimeout() time.Duration {
	if strings.TrimSpace(c.Server.Timeout) == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.Server.Timeout)
	if err != nil || d < 0 {
		return DefaultTimeout
	}
	return d
}

// Endpoint returns the full URL of the evaluator, e.g. http://localhost:8000/run.
func (c *Config) Endpoint() string {
	path := c.Server.Path
	if path == "" {
		path = DefaultRunPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(c.Server.Addr, strconv.Itoa(c.Server.Port)),
		Path:   path,
	}
	return u.String()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server address not configured (set server.addr or SERVER_ADDR)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if t := strings.TrimSpace(c.Server.Timeout); t != "" && t != "0" {
		if d, err := time.ParseDuration(t); err != nil {
			return fmt.Errorf("invalid server timeout %q: %w", t, err)
		} else if d < 0 {
			return fmt.Errorf("invalid server timeout %q: must not be negative", t)
		}
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
